package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
)

// Global configuration structure.
type Global struct {
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	Rules analysis.RuleSettings `mapstructure:"rules" yaml:"rules"`

	// Inputs
	SampleURL     string `mapstructure:"sample_url" yaml:"sample_url"`
	MaxInputBytes int64  `mapstructure:"max_input_bytes" yaml:"max_input_bytes"`
	BatchWorkers  int    `mapstructure:"batch_workers" yaml:"batch_workers"`

	// Narration
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	NarrateProvider string  `mapstructure:"narrate_provider" yaml:"narrate_provider"`
	NarrateModel    string  `mapstructure:"narrate_model" yaml:"narrate_model"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP            float64 `mapstructure:"top_p" yaml:"top_p"`
	PromptLimit     int     `mapstructure:"prompt_limit" yaml:"prompt_limit"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// HTTP server
	ServerAddr      string `mapstructure:"server_addr" yaml:"server_addr"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_sec" yaml:"shutdown_timeout_sec"`
}

// Dir returns the configuration directory, ~/.adpulse.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".adpulse"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.adpulse/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; command flags are applied by callers.
// Nested keys map to env names with underscores, e.g. ADPULSE_RULES_MIN_SPEND.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("ADPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return &c, nil
}

// Default returns the configuration Load produces with no file or env.
func Default() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("output_format", "markdown")

	r := analysis.DefaultRuleSettings()
	v.SetDefault("rules.min_spend", r.MinSpend)
	v.SetDefault("rules.roas_guardrail", r.ROASGuardrail)
	v.SetDefault("rules.roas_critical", r.ROASCritical)
	v.SetDefault("rules.ctr_healthy", r.CTRHealthy)
	v.SetDefault("rules.atc_purchase_floor", r.ATCPurchaseFloor)
	v.SetDefault("rules.fatigue_drop", r.FatigueDrop)

	v.SetDefault("sample_url", "")
	v.SetDefault("max_input_bytes", 10<<20)
	v.SetDefault("batch_workers", 4)

	v.SetDefault("api_key", "")
	v.SetDefault("narrate_provider", "mock")
	v.SetDefault("narrate_model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("top_p", 1.0)
	v.SetDefault("prompt_limit", 4000)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("shutdown_timeout_sec", 10)
}
