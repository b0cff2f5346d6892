package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/ilsp/am"
	"github.com/teranos/ilsp/cmd/ilsp/commands"
	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ilsp",
	Short: "ilsp - language server for SKILL .il files",
	Long: `ilsp - language intelligence for SKILL-style .il files.

ilsp flattens and annotates .il sources, caches the resulting tokens per file
and serves diagnostics, completion, hover, document symbols and semantic
tokens over the Language Server Protocol.

Available commands:
  serve   - Run the language server (stdio or websocket)
  check   - Analyse files and print diagnostics
  config  - Manage the ilsp configuration
  version - Show build information

Examples:
  ilsp serve --stdio          # Editor integration
  ilsp serve --ws :7437       # Browser clients
  ilsp check ./src            # CI lint
  ilsp config show --sources  # Where each setting comes from`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(logOptions(cmd)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Explicit config file, merged over user and project files")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON log lines")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

// logOptions combines the log section of the config with the command line.
// A config that fails to load is reported by the command itself.
func logOptions(cmd *cobra.Command) logger.Options {
	var opts logger.Options
	path, _ := cmd.Flags().GetString("config")
	if cfg, err := am.Load(path); err == nil {
		opts = logger.Options{JSON: cfg.Log.JSON, Verbosity: cfg.Log.Verbosity, File: cfg.Log.File}
	}

	if v, _ := cmd.Flags().GetCount("verbose"); v > opts.Verbosity {
		opts.Verbosity = v
	}
	if f, _ := cmd.Flags().GetString("log-file"); f != "" {
		opts.File = f
	}
	if j, _ := cmd.Flags().GetBool("log-json"); j {
		opts.JSON = true
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Cleanup()
		if !errors.Is(err, commands.ErrCheckFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			for _, hint := range errors.GetAllHints(err) {
				fmt.Fprintln(os.Stderr, "Hint:", hint)
			}
		}
		os.Exit(1)
	}
}
