package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/adpulse-cli/internal/config"
	"github.com/KaramelBytes/adpulse-cli/internal/logging"
)

var (
	cfgFile       string
	debug         bool
	flagLogLevel  string
	flagLogFormat string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
	// logger writes to stderr so reports on stdout stay pipeable.
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "adpulse",
	Short: "AdPulse CLI: turn ad-performance exports into prioritized insights",
	Long: `AdPulse reads ad-platform CSV exports, validates the known columns, aggregates
account metrics and flags rows with weak ROAS, poor cart conversion or creative
fatigue. Reports can be narrated by an LLM (mock, OpenRouter or Ollama) or served
over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.adpulse/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text|json (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, loadErr := cfgpkg.Load(cfgFile)
	if loadErr != nil {
		// Non-fatal: commands still run on defaults.
		c = cfgpkg.Default()
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	logger = logging.Setup(cfg.LogLevel, cfg.LogFormat, rootCmd.ErrOrStderr())
	if loadErr != nil {
		logger.Warn().Err(loadErr).Msg("failed to load config, using defaults")
	}
}

// commandContext returns the command context carrying the configured logger.
func commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithContext(ctx, logger)
}
