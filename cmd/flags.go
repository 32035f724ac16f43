package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/source"
)

// ruleFlags holds per-command threshold overrides. Only flags the user set
// replace the configured value.
type ruleFlags struct {
	minSpend      float64
	roasGuardrail float64
	roasCritical  float64
	ctrHealthy    float64
	atcFloor      float64
	fatigueDrop   float64
}

func addRuleFlags(cmd *cobra.Command, rf *ruleFlags) {
	d := analysis.DefaultRuleSettings()
	f := cmd.Flags()
	f.Float64Var(&rf.minSpend, "min-spend", d.MinSpend, "skip rows spending less than this")
	f.Float64Var(&rf.roasGuardrail, "roas-guardrail", d.ROASGuardrail, "flag ROAS below this value")
	f.Float64Var(&rf.roasCritical, "roas-critical", d.ROASCritical, "ROAS at or below this is critical")
	f.Float64Var(&rf.ctrHealthy, "ctr-healthy", d.CTRHealthy, "CTR at or above this counts as healthy")
	f.Float64Var(&rf.atcFloor, "atc-floor", d.ATCPurchaseFloor, "flag cart-to-purchase rates below this")
	f.Float64Var(&rf.fatigueDrop, "fatigue-drop", d.FatigueDrop, "flag 7-day CTR drops larger than this fraction")
}

func (rf *ruleFlags) apply(cmd *cobra.Command, base analysis.RuleSettings) (analysis.RuleSettings, error) {
	f := cmd.Flags()
	set := func(name string, dst *float64, v float64) {
		if f.Changed(name) {
			*dst = v
		}
	}
	set("min-spend", &base.MinSpend, rf.minSpend)
	set("roas-guardrail", &base.ROASGuardrail, rf.roasGuardrail)
	set("roas-critical", &base.ROASCritical, rf.roasCritical)
	set("ctr-healthy", &base.CTRHealthy, rf.ctrHealthy)
	set("atc-floor", &base.ATCPurchaseFloor, rf.atcFloor)
	set("fatigue-drop", &base.FatigueDrop, rf.fatigueDrop)
	if err := base.Validate(); err != nil {
		return base, fmt.Errorf("invalid rule flags: %w", err)
	}
	return base, nil
}

// sourceOptions maps configuration onto loader options.
func sourceOptions(sheetName string, sheetIndex int, stdin io.Reader) source.Options {
	opt := source.Options{SheetName: sheetName, SheetIndex: sheetIndex, Stdin: stdin}
	if cfg == nil {
		return opt
	}
	opt.MaxBytes = cfg.MaxInputBytes
	opt.HTTP = source.HTTPOptions{
		Timeout:   time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		RetryMax:  cfg.RetryMaxAttempts,
		BaseDelay: time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
	}
	return opt
}

func configuredRules() analysis.RuleSettings {
	if cfg == nil {
		return analysis.DefaultRuleSettings()
	}
	return cfg.Rules
}

func outputFormat(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.OutputFormat != "" {
		return cfg.OutputFormat
	}
	return "markdown"
}

// extension maps an output format to a file suffix.
func extension(format string) string {
	switch format {
	case "json":
		return ".json"
	case "yaml", "yml":
		return ".yaml"
	case "text":
		return ".txt"
	}
	return ".md"
}
