// Command aide is the AIde event-sourced living-page kernel's CLI and
// server entry point, grounded on the teacher's cmd/bd root-command shape
// (a package-global rootCmd, one file per subcommand, a PersistentPreRun
// that loads configuration before any command body runs).
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidekernel/aide/internal/config"
	"github.com/aidekernel/aide/internal/obslog"
)

var (
	jsonOutput bool
	dataDir    string

	logger    *slog.Logger
	logCloser = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "aide",
	Short: "AIde: an event-sourced living-page editing kernel",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if dataDir == "" {
			dataDir = ".aide"
		}

		level := parseLevel(config.GetString("log.level"))
		lg, closer := obslog.New(obslog.Config{
			Path:       config.GetString("log.path"),
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Level:      level,
			JSON:       config.GetBool("log.json"),
		})
		logger = lg
		logCloser = closer.Close
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logCloser()
	},
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// outputJSON writes v to stdout as indented JSON, mirroring the teacher's
// --json output convention used across its command files.
func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "error encoding output: %v\n", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "path to the .aide data directory (default: ./.aide)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
