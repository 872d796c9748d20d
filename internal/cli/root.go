package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goCustodyd/internal/config"
	"github.com/LeJamon/goCustodyd/internal/storage/accountdb"
)

var (
	// Global flags
	configFile string
	debug      bool
	verbose    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "custodyd",
	Short: "custodyd - custodial account daemon",
	Long: `custodyd keeps customer account balances against observed on-chain
deposits. It serves a JSON-RPC 2.0 API for signup, login, account queries and
deposit submission, streams ledger events over a websocket feed, and settles
pending transactions in sharded background passes.`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable normally suppressed debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output to console after startup")
}

// loadConfig resolves the configuration: the --conf file when given,
// otherwise the default path if a file is present there, otherwise the
// built-in defaults.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadConfig(configFile)
	}
	return config.LoadDefaultConfig()
}

// infoLogger keeps Info and above, dropping Debug.
type infoLogger struct {
	inner accountdb.Logger
}

func (l infoLogger) Debug(msg string, fields ...interface{}) {}
func (l infoLogger) Info(msg string, fields ...interface{})  { l.inner.Info(msg, fields...) }
func (l infoLogger) Warn(msg string, fields ...interface{})  { l.inner.Warn(msg, fields...) }
func (l infoLogger) Error(msg string, fields ...interface{}) { l.inner.Error(msg, fields...) }

// newLogger maps the global verbosity flags to a logger.
func newLogger() accountdb.Logger {
	switch {
	case quiet:
		return accountdb.NoOpLogger{}
	case debug || verbose:
		return accountdb.NewDefaultLogger()
	default:
		return infoLogger{inner: accountdb.NewDefaultLogger()}
	}
}
