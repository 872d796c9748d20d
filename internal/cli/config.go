package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goCustodyd/internal/config"
)

// configCmd groups configuration utilities.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a commented starter configuration file",
	Long: `Write a starter configuration file whose values match the built-in
defaults. Without a path the file is written to ` + config.DefaultConfigFile + `
in the current directory. Refuses to overwrite an existing file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.SaveExampleConfig(path); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("wrote %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}
