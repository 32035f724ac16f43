package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/adpulse-cli/internal/schema"
)

// Topic classifies an insight.
type Topic string

const (
	TopicROAS       Topic = "roas"
	TopicCTR        Topic = "ctr"
	TopicConversion Topic = "conversion"
	TopicFatigue    Topic = "fatigue"
	TopicStatus     Topic = "status"
	TopicMeta       Topic = "meta"
)

// Severity ranks an insight.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Insight is one finding. SupportingData holds the numbers the rule compared.
type Insight struct {
	Topic            Topic              `json:"topic" yaml:"topic"`
	Severity         Severity           `json:"severity" yaml:"severity"`
	Summary          string             `json:"summary" yaml:"summary"`
	Recommendation   string             `json:"recommendation" yaml:"recommendation"`
	ImpactedEntities []string           `json:"impactedEntities" yaml:"impactedEntities"`
	SupportingData   map[string]float64 `json:"supportingData" yaml:"supportingData"`
}

const (
	recROAS       = "Test 2–3 new hooks/thumbnails, rotate in new ad creative, and cap frequency."
	recConversion = "Audit landing/checkout, review tracking, and consider CRO experimentation."
	recFatigue    = "Rotate fatigued creatives, refresh best hooks, and rebuild warm audiences."
	recMeta       = "Maintain pacing, continue monitoring ROAS and funnel KPIs."

	summaryMeta = "No critical anomalies detected across paid media rows."
)

// GenerateInsights evaluates the ROAS, conversion and fatigue rules for each
// row with enough spend, in row order. When nothing fires a single meta
// finding is returned instead.
func GenerateInsights(rows []schema.Row, s RuleSettings) []Insight {
	var out []Insight
	for _, r := range rows {
		out = append(out, evaluateRow(r, s)...)
	}
	if len(out) == 0 {
		out = append(out, Insight{
			Topic:            TopicMeta,
			Severity:         SeverityInfo,
			Summary:          summaryMeta,
			Recommendation:   recMeta,
			ImpactedEntities: []string{},
			SupportingData:   map[string]float64{},
		})
	}
	return out
}

// Eligible reports whether a row spends enough to be evaluated.
func Eligible(r schema.Row, s RuleSettings) bool { return r.Spend >= s.MinSpend }

func evaluateRow(r schema.Row, s RuleSettings) []Insight {
	if !Eligible(r, s) {
		return nil
	}
	entities := joinEntities(r.Entities())
	var out []Insight

	roas := schema.Value(r.PurchaseValue) / r.Spend
	if r.ROAS != nil {
		roas = *r.ROAS
	}
	if !math.IsNaN(roas) && !math.IsInf(roas, 0) && roas < s.ROASGuardrail {
		sev := SeverityWarning
		if roas <= s.ROASCritical {
			sev = SeverityCritical
		}
		out = append(out, Insight{
			Topic:            TopicROAS,
			Severity:         sev,
			Summary:          fmt.Sprintf("ROAS is below efficiency guardrail at %.2f.", roas),
			Recommendation:   recROAS,
			ImpactedEntities: entities,
			SupportingData:   map[string]float64{"spend": r.Spend, "roas": roas},
		})
	}

	ctr := r.Clicks / math.Max(r.Impressions, 1)
	if r.CTR != nil {
		ctr = *r.CTR
	}
	// max(x,1) floor here, unlike the 0-on-zero policy of Aggregate.
	atc := schema.Value(r.Purchases) / math.Max(schema.Value(r.AddsToCart), 1)
	if ctr >= s.CTRHealthy && atc < s.ATCPurchaseFloor {
		out = append(out, Insight{
			Topic:    TopicConversion,
			Severity: SeverityWarning,
			Summary: fmt.Sprintf("CTR is healthy but conversion from adds-to-cart to purchase is under %s%%.",
				percent(s.ATCPurchaseFloor)),
			Recommendation:   recConversion,
			ImpactedEntities: entities,
			SupportingData:   map[string]float64{"ctr": ctr, "atcToPurchase": atc},
		})
	}

	if r.CTR7d != nil && r.CTRPrev7 != nil && *r.CTRPrev7 > 0 {
		cur, prev := *r.CTR7d, *r.CTRPrev7
		drop := (prev - cur) / prev
		if drop > s.FatigueDrop {
			out = append(out, Insight{
				Topic:            TopicFatigue,
				Severity:         SeverityInfo,
				Summary:          fmt.Sprintf("CTR dropped >%s%% vs previous 7 days.", percent(s.FatigueDrop)),
				Recommendation:   recFatigue,
				ImpactedEntities: entities,
				SupportingData:   map[string]float64{"ctr7d": cur, "ctrPrev7": prev, "drop": drop},
			})
		}
	}
	return out
}

// joinEntities folds identity labels into a single "a, b & c" label.
func joinEntities(parts []string) []string {
	switch len(parts) {
	case 0:
		return []string{}
	case 1:
		return []string{parts[0]}
	}
	last := len(parts) - 1
	return []string{strings.Join(parts[:last], ", ") + " & " + parts[last]}
}

func percent(frac float64) string {
	return strconv.FormatFloat(math.Round(frac*10000)/100, 'f', -1, 64)
}
