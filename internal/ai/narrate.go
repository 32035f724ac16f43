package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/adpulse-cli/internal/analysis"
	"github.com/KaramelBytes/adpulse-cli/internal/utils"
)

const narrationInstructions = "You are a paid-social performance analyst. Using only the metrics and " +
	"insights below, write a short plain-language briefing for the account owner. Keep the " +
	"recommendations already given; do not invent numbers."

// NarrationOptions controls the request sent to a runtime.
type NarrationOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	// PromptLimit caps the user prompt in estimated tokens; 0 disables the cap.
	PromptLimit int
}

// BuildPrompt renders the metrics snapshot followed by the insight list.
func BuildPrompt(source string, res *analysis.Result, limit int) string {
	var b strings.Builder
	if source != "" {
		fmt.Fprintf(&b, "Source: %s\n", source)
	}
	m := res.Metrics
	b.WriteString("Metrics:\n")
	fmt.Fprintf(&b, "- spend=%.2f impressions=%.0f clicks=%.0f ctr=%.4f\n", m.Spend, m.Impressions, m.Clicks, m.CTR)
	fmt.Fprintf(&b, "- purchases=%.0f purchaseValue=%.2f roas=%.2f addsToCart=%.0f atcToPurchase=%.4f\n",
		m.Purchases, m.PurchaseValue, m.ROAS, m.AddsToCart, m.ATCToPurchase)
	b.WriteString("Insights:\n")
	for i, in := range res.Insights {
		fmt.Fprintf(&b, "%d. [%s/%s] %s\n", i+1, in.Topic, in.Severity, in.Summary)
		if len(in.ImpactedEntities) > 0 {
			fmt.Fprintf(&b, "   entities: %s\n", strings.Join(in.ImpactedEntities, "; "))
		}
		fmt.Fprintf(&b, "   recommendation: %s\n", in.Recommendation)
	}
	out := b.String()
	if limit > 0 && utils.CountTokens(out) > limit {
		out = utils.TruncateToTokenLimit(out, limit)
	}
	return out
}

// Narrate asks rt for a prose briefing of res and returns the reply text.
func Narrate(ctx context.Context, rt Runtime, source string, res *analysis.Result, opt NarrationOptions) (string, *GenerateResponse, error) {
	if rt == nil {
		return "", nil, errors.New("no narration runtime configured")
	}
	if res == nil {
		return "", nil, errors.New("nothing to narrate")
	}
	resp, err := rt.Generate(ctx, GenerateRequest{
		Model: opt.Model,
		Messages: []Message{
			{Role: "system", Content: narrationInstructions},
			{Role: "user", Content: BuildPrompt(source, res, opt.PromptLimit)},
		},
		MaxTokens:   opt.MaxTokens,
		Temperature: opt.Temperature,
		TopP:        opt.TopP,
	})
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(resp.Text()), resp, nil
}
