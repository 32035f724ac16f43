package analysis

import "github.com/KaramelBytes/adpulse-cli/internal/schema"

// Metrics is the dataset-wide snapshot. Ratios are 0 when their denominator is 0.
type Metrics struct {
	Spend         float64 `json:"spend" yaml:"spend"`
	Impressions   float64 `json:"impressions" yaml:"impressions"`
	Clicks        float64 `json:"clicks" yaml:"clicks"`
	CTR           float64 `json:"ctr" yaml:"ctr"`
	ROAS          float64 `json:"roas" yaml:"roas"`
	Purchases     float64 `json:"purchases" yaml:"purchases"`
	PurchaseValue float64 `json:"purchaseValue" yaml:"purchaseValue"`
	AddsToCart    float64 `json:"addsToCart" yaml:"addsToCart"`
	ATCToPurchase float64 `json:"atcToPurchase" yaml:"atcToPurchase"`
}

// Aggregate sums every row; absent optional fields count as 0.
func Aggregate(rows []schema.Row) Metrics {
	var m Metrics
	for _, r := range rows {
		m.Spend += r.Spend
		m.Impressions += r.Impressions
		m.Clicks += r.Clicks
		m.Purchases += schema.Value(r.Purchases)
		m.PurchaseValue += schema.Value(r.PurchaseValue)
		m.AddsToCart += schema.Value(r.AddsToCart)
	}
	m.CTR = safeDiv(m.Clicks, m.Impressions)
	m.ROAS = safeDiv(m.PurchaseValue, m.Spend)
	m.ATCToPurchase = safeDiv(m.Purchases, m.AddsToCart)
	return m
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
