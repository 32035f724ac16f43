package analysis

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/adpulse-cli/internal/schema"
	"github.com/KaramelBytes/adpulse-cli/internal/utils"
)

// Report wraps one analysis for rendering.
type Report struct {
	Name      string
	ID        string
	Dataset   *Dataset
	Result    *Result
	Rules     RuleSettings
	Narrative string
}

// Document is the serialised form used for JSON and YAML output.
type Document struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Headers   []string  `json:"headers" yaml:"headers"`
	Insights  []Insight `json:"insights" yaml:"insights"`
	Metrics   Metrics   `json:"metrics" yaml:"metrics"`
	Narrative string    `json:"narrative,omitempty" yaml:"narrative,omitempty"`
}

// Document flattens the report.
func (r *Report) Document() Document {
	d := Document{ID: r.ID, Source: r.Name, Narrative: r.Narrative, Headers: []string{}, Insights: []Insight{}}
	if r.Dataset != nil {
		d.Headers = r.Dataset.Headers
	}
	if r.Result != nil {
		d.Insights = r.Result.Insights
		d.Metrics = r.Result.Metrics
	}
	return d
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return utils.PrettyJSON(r.Document())
}

// YAML renders the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	b, err := yaml.Marshal(r.Document())
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}

// Render dispatches on an output format name.
func (r *Report) Render(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md", "text":
		return []byte(r.Markdown()), nil
	case "json":
		return r.JSON()
	case "yaml", "yml":
		return r.YAML()
	}
	return nil, fmt.Errorf("unsupported format: %s (use markdown|json|yaml)", format)
}

// Markdown renders a compact, sectioned text report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[AD PERFORMANCE SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Name))
	}
	if r.ID != "" {
		b.WriteString(fmt.Sprintf("Analysis: %s\n", r.ID))
	}
	if r.Dataset != nil {
		rows := len(r.Dataset.Rows)
		eligible := EligibleCount(r.Dataset.Rows, r.Rules)
		b.WriteString(fmt.Sprintf("Rows: %d (evaluated %d, below spend floor %d)\n", rows, eligible, rows-eligible))
		b.WriteString(fmt.Sprintf("Columns: %d\n", len(r.Dataset.Headers)))
		if extra := schema.Unrecognized(r.Dataset.Headers); len(extra) > 0 {
			b.WriteString(fmt.Sprintf("Ignored columns: %s\n", strings.Join(extra, ", ")))
		}
	}
	if r.Result == nil {
		return b.String()
	}

	m := r.Result.Metrics
	b.WriteString("\n[METRICS]\n")
	b.WriteString(fmt.Sprintf("- Spend: %.2f\n", m.Spend))
	b.WriteString(fmt.Sprintf("- Impressions: %.0f\n", m.Impressions))
	b.WriteString(fmt.Sprintf("- Clicks: %.0f\n", m.Clicks))
	b.WriteString(fmt.Sprintf("- CTR: %.2f%%\n", m.CTR*100))
	b.WriteString(fmt.Sprintf("- ROAS: %.2f\n", m.ROAS))
	b.WriteString(fmt.Sprintf("- Purchases: %.0f\n", m.Purchases))
	b.WriteString(fmt.Sprintf("- Purchase value: %.2f\n", m.PurchaseValue))
	b.WriteString(fmt.Sprintf("- Adds to cart: %.0f\n", m.AddsToCart))
	b.WriteString(fmt.Sprintf("- Adds-to-cart to purchase: %.1f%%\n", m.ATCToPurchase*100))

	b.WriteString("\n[INSIGHTS]\n")
	for i, in := range r.Result.Insights {
		b.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", i+1, strings.ToUpper(string(in.Severity)), in.Topic, in.Summary))
		if len(in.ImpactedEntities) > 0 {
			b.WriteString(fmt.Sprintf("   Entities: %s\n", safeVal(strings.Join(in.ImpactedEntities, "; "))))
		}
		b.WriteString(fmt.Sprintf("   Recommendation: %s\n", in.Recommendation))
		if len(in.SupportingData) > 0 {
			b.WriteString(fmt.Sprintf("   Data: %s\n", formatData(in.SupportingData)))
		}
	}

	if r.Narrative != "" {
		b.WriteString("\n[NARRATIVE]\n")
		b.WriteString(strings.TrimSpace(r.Narrative))
		b.WriteString("\n")
	}
	return b.String()
}

func formatData(data map[string]float64) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.4g", k, data[k])
	}
	return strings.Join(parts, ", ")
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
