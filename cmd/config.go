package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/adpulse-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/adpulse-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set AdPulse configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(w, "No config loaded")
			return nil
		}
		r := cfg.Rules
		fmt.Fprintf(w, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(w, "log_format: %s\n", cfg.LogFormat)
		fmt.Fprintf(w, "output_format: %s\n", cfg.OutputFormat)
		fmt.Fprintf(w, "rules.min_spend: %g\n", r.MinSpend)
		fmt.Fprintf(w, "rules.roas_guardrail: %g\n", r.ROASGuardrail)
		fmt.Fprintf(w, "rules.roas_critical: %g\n", r.ROASCritical)
		fmt.Fprintf(w, "rules.ctr_healthy: %g\n", r.CTRHealthy)
		fmt.Fprintf(w, "rules.atc_purchase_floor: %g\n", r.ATCPurchaseFloor)
		fmt.Fprintf(w, "rules.fatigue_drop: %g\n", r.FatigueDrop)
		if cfg.SampleURL != "" {
			fmt.Fprintf(w, "sample_url: %s\n", cfg.SampleURL)
		}
		fmt.Fprintf(w, "max_input_bytes: %d\n", cfg.MaxInputBytes)
		fmt.Fprintf(w, "batch_workers: %d\n", cfg.BatchWorkers)
		fmt.Fprintf(w, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(w, "narrate_provider: %s\n", cfg.NarrateProvider)
		fmt.Fprintf(w, "narrate_model: %s\n", cfg.NarrateModel)
		fmt.Fprintf(w, "max_tokens: %d\n", cfg.MaxTokens)
		fmt.Fprintf(w, "temperature: %.3f\n", cfg.Temperature)
		fmt.Fprintf(w, "top_p: %.3f\n", cfg.TopP)
		fmt.Fprintf(w, "prompt_limit: %d\n", cfg.PromptLimit)
		fmt.Fprintf(w, "ollama_host: %s\n", cfg.OllamaHost)
		fmt.Fprintf(w, "server_addr: %s\n", cfg.ServerAddr)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setConfigValue(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Rules.Validate(); err != nil {
			return fmt.Errorf("invalid rules: %w", err)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	floatVal := func(dst *float64) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for %s: %w", key, err)
		}
		*dst = f
		return nil
	}
	intVal := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}

	switch key {
	case "log_level", "log_format":
		if key == "log_level" {
			c.LogLevel = strings.ToLower(val)
		} else {
			c.LogFormat = strings.ToLower(val)
		}
	case "output_format":
		switch val {
		case "markdown", "md", "text", "json", "yaml", "yml":
			c.OutputFormat = val
		default:
			return fmt.Errorf("invalid output_format: %s (use markdown, json or yaml)", val)
		}
	case "rules.min_spend":
		return floatVal(&c.Rules.MinSpend)
	case "rules.roas_guardrail":
		return floatVal(&c.Rules.ROASGuardrail)
	case "rules.roas_critical":
		return floatVal(&c.Rules.ROASCritical)
	case "rules.ctr_healthy":
		return floatVal(&c.Rules.CTRHealthy)
	case "rules.atc_purchase_floor":
		return floatVal(&c.Rules.ATCPurchaseFloor)
	case "rules.fatigue_drop":
		return floatVal(&c.Rules.FatigueDrop)
	case "sample_url":
		c.SampleURL = val
	case "max_input_bytes":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid size for max_input_bytes: %v", val)
		}
		c.MaxInputBytes = n
	case "batch_workers":
		return intVal(&c.BatchWorkers)
	case "api_key":
		c.APIKey = val
	case "narrate_provider":
		p := ai.NormalizeProvider(strings.ToLower(val))
		if !slices.Contains(ai.Providers(), p) {
			return fmt.Errorf("invalid narrate_provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
		}
		c.NarrateProvider = p
	case "narrate_model":
		c.NarrateModel = val
	case "max_tokens":
		return intVal(&c.MaxTokens)
	case "temperature":
		return floatVal(&c.Temperature)
	case "top_p":
		return floatVal(&c.TopP)
	case "prompt_limit":
		return intVal(&c.PromptLimit)
	case "ollama_host":
		c.OllamaHost = val
	case "server_addr":
		c.ServerAddr = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
