package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goCustodyd/internal/di"
)

var (
	settleShardIndex int
	settleShardCount int
	settleTxID       string
)

// settleCmd runs settlement once and exits, for cron-style deployments and
// manual repair.
var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Run one settlement pass and exit",
	Long: `Run a single settlement pass over this node's shard and exit.

With --tx, settle exactly one transaction by id instead of a full pass.
The shard assignment comes from the configuration and can be overridden
with --shard-index and --shard-count.`,
	RunE: runSettle,
}

func init() {
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().IntVar(&settleShardIndex, "shard-index", 0, "shard to settle, overriding settlement.shard_index")
	settleCmd.Flags().IntVar(&settleShardCount, "shard-count", 0, "total shard count, overriding settlement.shard_count")
	settleCmd.Flags().StringVar(&settleTxID, "tx", "", "settle a single transaction by id")
}

func runSettle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("shard-index") {
		cfg.Settlement.ShardIndex = settleShardIndex
	}
	if cmd.Flags().Changed("shard-count") {
		cfg.Settlement.ShardCount = settleShardCount
	}
	if err := cfg.Settlement.Validate(); err != nil {
		return fmt.Errorf("settlement config: %w", err)
	}

	provider := di.NewProvider(di.New(), cfg, di.WithLogger(newLogger()))
	if err := provider.RegisterAll(); err != nil {
		return err
	}

	ctx := context.Background()

	manager, err := provider.GetStoreManager()
	if err != nil {
		return err
	}
	if err := manager.Open(ctx); err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Database.Backend, err)
	}
	defer manager.Close(ctx)

	engine, err := provider.GetSettlement()
	if err != nil {
		return err
	}

	if settleTxID != "" {
		if err := engine.SettleOne(ctx, settleTxID); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("settled transaction %s\n", settleTxID)
		}
		return nil
	}

	if !engine.Enabled() {
		return fmt.Errorf("no shard assigned; set settlement.shard_index or pass --shard-index")
	}

	result, err := engine.Tick(ctx)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Printf("settled shard %d of %d: %d accounts, %d settled, %d canceled, %d pruned in %s\n",
			cfg.Settlement.ShardIndex, cfg.Settlement.ShardCount,
			result.Accounts, result.Settled, result.Canceled, result.Pruned, result.Elapsed)
	}
	return nil
}
