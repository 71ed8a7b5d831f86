// Package main provides the emojidb binary entry point.
// emojidb builds a JSON database of every fully-qualified emoji, enriched
// with aliases, shortcodes and vendor images from the detail site.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"emojidb/internal/common/logging"
	"emojidb/internal/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "emojidb"
)

// exitCancelled is returned when a run is interrupted by a signal
const exitCancelled = 130

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	logging.MustSync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if stderrors.Is(err, context.Canceled) {
			os.Exit(exitCancelled)
		}
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
	logFile    string
}

// windowFlags select the registry input and output of a command
type windowFlags struct {
	output       string
	limit        int
	offset       int
	registryFile string
}

func rootCmd() *cobra.Command {
	var globals globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Build an enriched emoji database",
		Long: `emojidb reads the Unicode emoji-test.txt registry, looks every
fully-qualified emoji up on the detail site and writes the result as one
JSON array.

Each record carries its category, code points, aliases, shortcodes by
source and a vendor image. Records the site cannot describe are written
as parsed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&globals.configPath, "config", "c", "", "Config file path (YAML, default $EMOJIDB_CONFIG)")
	cmd.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&globals.logFile, "log-file", "", "Append logs to this file instead of stderr")

	cmd.AddCommand(runCmd(&globals))
	cmd.AddCommand(parseCmd(&globals))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func runCmd(globals *globalFlags) *cobra.Command {
	var (
		window  windowFlags
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := setup(cmd, globals, &window)
			if err != nil {
				return err
			}
			defer cleanup()

			if noCache {
				cfg.CacheEnabled = false
			}

			a, err := newApp(cmd.Context(), cfg, appOptions{cache: true, store: true, lock: true, stdout: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.driver.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run %s: %w", summary.RunID, err)
			}

			logging.Info("Summary",
				logging.String("run_id", summary.RunID),
				logging.Int("records", summary.Total),
				logging.Int("enriched", summary.Enriched),
				logging.Int("unchanged", summary.Unchanged),
				logging.Any("sources", summary.Sources),
				logging.Duration("duration", summary.Duration),
			)
			return nil
		},
	}

	addWindowFlags(cmd, &window)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the detail data cache")
	return cmd
}

func parseCmd(globals *globalFlags) *cobra.Command {
	var window windowFlags

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Write the parsed registry without enrichment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := setup(cmd, globals, &window)
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := newApp(cmd.Context(), cfg, appOptions{stdout: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.driver.ParseOnly(cmd.Context(), nil)
			if err != nil {
				return err
			}
			logging.Info("Registry written", logging.Int("records", n), logging.String("output", cfg.OutputPath))
			return nil
		},
	}

	addWindowFlags(cmd, &window)
	return cmd
}

func addWindowFlags(cmd *cobra.Command, window *windowFlags) {
	cmd.Flags().StringVarP(&window.output, "output", "o", "", "Output file, '-' for stdout (default $EMOJIDB_OUTPUT or emoji-2db.json)")
	cmd.Flags().IntVar(&window.limit, "limit", 0, "Process at most this many records")
	cmd.Flags().IntVar(&window.offset, "offset", 0, "Skip this many records from the start of the registry")
	cmd.Flags().StringVar(&window.registryFile, "registry-file", "", "Read the registry from a local file instead of the URL")
}

// setup loads configuration, applies command line overrides and initializes
// the global logger. The returned cleanup closes the log file.
func setup(cmd *cobra.Command, globals *globalFlags, window *windowFlags) (*config.Config, func(), error) {
	configPath := globals.configPath
	if configPath == "" {
		configPath = os.Getenv("EMOJIDB_CONFIG")
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputPath = window.output
	}
	if flags.Changed("limit") {
		cfg.Limit = window.limit
	}
	if flags.Changed("offset") {
		cfg.Offset = window.offset
	}
	if flags.Changed("registry-file") {
		cfg.RegistryPath = window.registryFile
	}
	if globals.logLevel != "" {
		cfg.LogLevel = globals.logLevel
	}
	if globals.logFile != "" {
		cfg.LogFile = globals.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	closeLog, err := logging.InitGlobalLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		logging.MustSync()
		_ = closeLog()
	}
	return cfg, cleanup, nil
}
