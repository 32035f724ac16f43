package analysis

import "fmt"

// RuleSettings holds the thresholds used by the insight rules.
type RuleSettings struct {
	// MinSpend excludes rows spending less than this from every rule.
	MinSpend float64 `mapstructure:"min_spend" yaml:"min_spend"`
	// ROASGuardrail fires the ROAS rule when effective ROAS is below it.
	ROASGuardrail float64 `mapstructure:"roas_guardrail" yaml:"roas_guardrail"`
	// ROASCritical escalates a ROAS finding to critical at or below this value.
	ROASCritical float64 `mapstructure:"roas_critical" yaml:"roas_critical"`
	// CTRHealthy is the click-through rate at which the conversion rule applies.
	CTRHealthy float64 `mapstructure:"ctr_healthy" yaml:"ctr_healthy"`
	// ATCPurchaseFloor is the minimum acceptable adds-to-cart to purchase ratio.
	ATCPurchaseFloor float64 `mapstructure:"atc_purchase_floor" yaml:"atc_purchase_floor"`
	// FatigueDrop is the relative week-over-week CTR decline that signals fatigue.
	FatigueDrop float64 `mapstructure:"fatigue_drop" yaml:"fatigue_drop"`
}

// DefaultRuleSettings returns the stock thresholds.
func DefaultRuleSettings() RuleSettings {
	return RuleSettings{
		MinSpend:         50,
		ROASGuardrail:    1.5,
		ROASCritical:     1.0,
		CTRHealthy:       0.015,
		ATCPurchaseFloor: 0.2,
		FatigueDrop:      0.25,
	}
}

// Validate rejects settings that would make the rules meaningless.
func (s RuleSettings) Validate() error {
	if s.MinSpend < 0 {
		return fmt.Errorf("min_spend must be >= 0, got %v", s.MinSpend)
	}
	if s.ROASCritical > s.ROASGuardrail {
		return fmt.Errorf("roas_critical (%v) must not exceed roas_guardrail (%v)", s.ROASCritical, s.ROASGuardrail)
	}
	if s.CTRHealthy < 0 || s.ATCPurchaseFloor < 0 {
		return fmt.Errorf("ctr_healthy and atc_purchase_floor must be >= 0")
	}
	if s.FatigueDrop < 0 || s.FatigueDrop >= 1 {
		return fmt.Errorf("fatigue_drop must be in [0,1), got %v", s.FatigueDrop)
	}
	return nil
}
