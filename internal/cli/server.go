package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goCustodyd/internal/config"
	"github.com/LeJamon/goCustodyd/internal/core/settlement"
	"github.com/LeJamon/goCustodyd/internal/di"
	grpcserver "github.com/LeJamon/goCustodyd/internal/grpc"
	"github.com/LeJamon/goCustodyd/internal/server"
)

var serverAddr string

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the custodyd daemon",
	Long: `Start the custodyd daemon which provides:
- HTTP JSON-RPC endpoint for accounts, deposits and transactions
- WebSocket event feed
- Health check endpoint
- Optional gRPC health service for orchestration probes
- Sharded background settlement when a shard is assigned

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Set server as the default command
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}

	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "listen address, overriding server.addr")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverAddr != "" {
		cfg.Server.Addr = serverAddr
	}

	logger := newLogger()

	provider := di.NewProvider(di.New(), cfg, di.WithLogger(logger))
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

	bus, err := provider.GetEventBus()
	if err != nil {
		manager.Close(ctx)
		return err
	}
	credentials, err := provider.GetCredentials()
	if err != nil {
		manager.Close(ctx)
		return err
	}
	accounts, err := provider.GetAccounts()
	if err != nil {
		manager.Close(ctx)
		return err
	}
	ingestor, err := provider.GetIngestor()
	if err != nil {
		manager.Close(ctx)
		return err
	}
	engine, err := provider.GetSettlement()
	if err != nil {
		manager.Close(ctx)
		return err
	}

	methods := server.NewMethods(server.Services{
		Credentials: credentials,
		Accounts:    accounts,
		Ingestor:    ingestor,
		Settlement:  engine,
		Health:      manager,
		Backend:     cfg.Database.Backend,
		Version:     rootCmd.Version,
		ShardIndex:  cfg.Settlement.ShardIndex,
		ShardCount:  cfg.Settlement.ShardCount,
	})
	registry := server.NewRegistry()
	methods.Register(registry, cfg.Server.Admin)

	feed := server.NewEventFeed(bus, logger)
	httpSrv := server.New(cfg.Server, registry, feed, manager, server.WithLogger(logger))
	if err := httpSrv.Start(); err != nil {
		manager.Close(ctx)
		return err
	}

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcCfg := grpcserver.DefaultServerConfig()
		grpcCfg.Address = cfg.GRPC.Address
		if cfg.GRPC.MaxRecvMsgSize > 0 {
			grpcCfg.MaxRecvMsgSize = cfg.GRPC.MaxRecvMsgSize
		}
		if cfg.GRPC.MaxSendMsgSize > 0 {
			grpcCfg.MaxSendMsgSize = cfg.GRPC.MaxSendMsgSize
		}

		grpcSrv, err = grpcserver.NewServer(grpcCfg, manager, grpcserver.WithLogger(logger))
		if err == nil {
			err = grpcSrv.StartAsync()
		}
		if err != nil {
			httpSrv.Shutdown(ctx)
			manager.Close(ctx)
			return fmt.Errorf("grpc server: %w", err)
		}
	}

	var runner *settlement.Runner
	if cfg.Settlement.Enabled() {
		runner = settlement.NewRunner(engine, cfg.Settlement.TickInterval,
			settlement.WithRunnerLogger(logger))
		runner.Start(ctx)
	}

	if !quiet {
		printEndpoints(cfg, httpSrv.Addr(), grpcSrv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	// Producers stop first, then the servers drain, the store closes last.
	if runner != nil {
		runner.Stop()
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	bus.Close()

	if err := manager.Close(shutdownCtx); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

func printEndpoints(cfg *config.Config, addr string, grpcSrv *grpcserver.Server) {
	fmt.Println("custodyd is running")
	fmt.Printf("  - JSON-RPC:  http://%s/\n", addr)
	fmt.Printf("  - JSON-RPC:  http://%s/rpc\n", addr)
	if cfg.Server.Websocket {
		fmt.Printf("  - Events:    ws://%s/ws\n", addr)
	}
	fmt.Printf("  - Health:    http://%s/health\n", addr)
	if grpcSrv != nil {
		fmt.Printf("  - gRPC:      %s\n", grpcSrv.Address())
	}
	fmt.Printf("  - Store:     %s\n", cfg.Database.Backend)
	if cfg.Settlement.Enabled() {
		fmt.Printf("  - Settling:  shard %d of %d every %s\n",
			cfg.Settlement.ShardIndex, cfg.Settlement.ShardCount, cfg.Settlement.TickInterval)
	} else {
		fmt.Println("  - Settling:  disabled (no shard assigned)")
	}
	fmt.Println()
}
