// Package cmd wires the cobra commands. Running cardshift with no
// subcommand starts the terminal UI.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/nconklindev/cardshift/internal/config"
	"github.com/nconklindev/cardshift/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:   "cardshift",
	Short: "Convert DragonShield card exports into an importable CSV",
	Long: `cardshift takes a CSV export from DragonShield, drops the line the
exporter writes ahead of the header, renames the columns

  Quantity    -> Count
  Card Name   -> Name
  Set Code    -> Edition
  Card Number -> Collector Number

and appends the rows to an output CSV file. A header row is written only
when the output file is empty.

Run without a subcommand to pick files interactively.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runUI,
}

// Execute runs the root command. It is the only place the process exits
// with a failure status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default $XDG_CONFIG_HOME/cardshift/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides settings)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file (overrides settings)")
}

// loadSettings reads the settings file and applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path := cfgFile
	required := cmd.Flags().Changed("config")
	if path == "" {
		// No config dir (e.g. $HOME unset) just means no settings file.
		path, _ = config.DefaultPath()
	}

	settings := config.Default()
	if path != "" {
		var err error
		if settings, err = config.Load(path, required); err != nil {
			return nil, err
		}
	}

	if logLevel != "" {
		if _, err := log.ParseLevel(logLevel); err != nil {
			return nil, fmt.Errorf("--log-level %q: %w", logLevel, err)
		}
		settings.LogLevel = logLevel
	}
	if logFile != "" {
		settings.LogFile = logFile
	}

	return settings, nil
}

// newLogger builds the shared logger. fallback is used when no log file is
// configured. The returned closer must be called once logging is done.
func newLogger(settings *config.Settings, fallback io.Writer) (*log.Logger, io.Closer, error) {
	w := fallback
	var closer io.Closer = io.NopCloser(nil)

	if settings.LogFile != "" {
		f, err := os.OpenFile(settings.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closer = f
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           settings.Level(),
		Prefix:          "cardshift",
		ReportTimestamp: true,
	})
	return logger, closer, nil
}

func runUI(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	// Anything written to the terminal would corrupt the alt screen.
	logger, closer, err := newLogger(settings, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Debug("starting ui", "input_dir", settings.InputDir, "output", settings.OutputPath)

	p := tea.NewProgram(ui.InitialModel(ui.Options{
		StartDir:   settings.InputDir,
		OutputPath: settings.OutputPath,
		Logger:     logger,
	}), tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
