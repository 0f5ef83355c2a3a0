// Package cmd implements the skyplayer CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/skyplayer/internal/config"
	"github.com/jmylchreest/skyplayer/internal/observability"
	"github.com/jmylchreest/skyplayer/internal/transport"
	"github.com/jmylchreest/skyplayer/internal/version"
)

// cfgFile holds the --config path.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "skyplayer",
	Short:   "Headless HLS playback service",
	Version: version.Short(),
	Long: `skyplayer plays HLS streams on behalf of a remote front end.

A client drives the player through named commands over HTTP and follows
its state through a server-sent event stream. Playback sessions are kept
in a small history store, and on Linux desktops the player can also be
controlled through MPRIS2 media keys.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Flags are not bound to viper: an unset flag must not mask env or file
	// values, so loadConfig only applies flags whose Changed() is true.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, $HOME/.skyplayer/config.yaml or /etc/skyplayer/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// loadConfig loads the configuration and applies explicitly set log flags.
// Priority: flag > SKYPLAYER_* env > config file > default.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Logging.Level = normalizeLevel(level)
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func normalizeLevel(level string) string {
	level = strings.ToLower(level)
	if level == "warning" {
		return "warn"
	}
	return level
}

// logging is the process logger together with the handles initLogger needs
// to change it at runtime.
type logging struct {
	logger *slog.Logger
	level  *slog.LevelVar
	base   slog.Level
	output *observability.Output
	file   config.LogFileConfig
}

func newLogging(cfg config.LoggingConfig) (*logging, error) {
	l := &logging{
		level:  new(slog.LevelVar),
		base:   observability.ParseLevel(cfg.Level),
		output: observability.NewOutput(os.Stderr),
		file:   cfg.File,
	}
	l.level.Set(l.base)

	if cfg.File.Enabled {
		if err := l.output.EnableFile(cfg.File.Path, cfg.File.MaxBytes); err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
	}

	l.logger = observability.NewLoggerWithLevel(cfg, l.output, l.level).With(slog.String("app", version.ApplicationName))
	observability.SetDefault(l.logger)
	return l, nil
}

// configure applies initLogger settings. Debug lowers the level to debug and
// clearing it restores the configured level.
func (l *logging) configure(s transport.LogSettings) error {
	if s.Debug {
		l.level.Set(slog.LevelDebug)
	} else {
		l.level.Set(l.base)
	}

	if !s.EnableFileLogging {
		return l.output.DisableFile()
	}
	path := s.LogFilePath
	if path == "" {
		path = l.file.Path
	}
	if err := l.output.EnableFile(path, l.file.MaxBytes); err != nil {
		return fmt.Errorf("enabling file logging: %w", err)
	}
	l.logger.Info("file logging enabled", slog.String("path", path))
	return nil
}
