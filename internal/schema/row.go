// Package schema defines the canonical ad-performance row and turns loosely
// typed records into it without ever failing.
package schema

// Canonical header strings. Matching is exact; no case folding or trimming.
const (
	ColCampaignName  = "Campaign name"
	ColAdSetName     = "Ad set name"
	ColAdName        = "Ad name"
	ColAdID          = "Ad ID"
	ColSpend         = "Spend"
	ColImpressions   = "Impressions"
	ColClicks        = "Clicks"
	ColCTR           = "CTR %"
	ColFrequency     = "Frequency"
	ColROAS          = "ROAS"
	ColPurchases     = "Purchases"
	ColPurchaseValue = "Purchase value"
	ColAddsToCart    = "Adds to cart"
	ColCTR7d         = "CTR 7d %"
	ColCTRPrev7      = "CTR prev7 %"
	ColStatus        = "Status"
)

// CanonicalColumns lists every recognised header in display order.
var CanonicalColumns = []string{
	ColCampaignName, ColAdSetName, ColAdName, ColAdID,
	ColSpend, ColImpressions, ColClicks,
	ColCTR, ColFrequency, ColROAS, ColPurchases, ColPurchaseValue, ColAddsToCart,
	ColCTR7d, ColCTRPrev7, ColStatus,
}

// Row is one validated record. Optional fields are nil when the column was
// absent from the source record; a present but unparsable numeric is 0.
// Rows are values: callers must not mutate the pointed-to data.
type Row struct {
	CampaignName *string `json:"Campaign name,omitempty" yaml:"Campaign name,omitempty"`
	AdSetName    *string `json:"Ad set name,omitempty" yaml:"Ad set name,omitempty"`
	AdName       *string `json:"Ad name,omitempty" yaml:"Ad name,omitempty"`
	AdID         *string `json:"Ad ID,omitempty" yaml:"Ad ID,omitempty"`

	Spend       float64 `json:"Spend" yaml:"Spend"`
	Impressions float64 `json:"Impressions" yaml:"Impressions"`
	Clicks      float64 `json:"Clicks" yaml:"Clicks"`

	CTR           *float64 `json:"CTR %,omitempty" yaml:"CTR %,omitempty"`
	Frequency     *float64 `json:"Frequency,omitempty" yaml:"Frequency,omitempty"`
	ROAS          *float64 `json:"ROAS,omitempty" yaml:"ROAS,omitempty"`
	Purchases     *float64 `json:"Purchases,omitempty" yaml:"Purchases,omitempty"`
	PurchaseValue *float64 `json:"Purchase value,omitempty" yaml:"Purchase value,omitempty"`
	AddsToCart    *float64 `json:"Adds to cart,omitempty" yaml:"Adds to cart,omitempty"`
	CTR7d         *float64 `json:"CTR 7d %,omitempty" yaml:"CTR 7d %,omitempty"`
	CTRPrev7      *float64 `json:"CTR prev7 %,omitempty" yaml:"CTR prev7 %,omitempty"`

	Status *string `json:"Status,omitempty" yaml:"Status,omitempty"`
}

// Entities returns the identity fields in label order: campaign, ad set,
// ad name, ad id. Absent and empty values are omitted.
func (r Row) Entities() []string {
	var out []string
	for _, p := range []*string{r.CampaignName, r.AdSetName, r.AdName, r.AdID} {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}

// Value returns the optional number or 0 when absent.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// Unrecognized returns headers that are not canonical columns, in order.
func Unrecognized(headers []string) []string {
	known := make(map[string]struct{}, len(CanonicalColumns))
	for _, c := range CanonicalColumns {
		known[c] = struct{}{}
	}
	var out []string
	for _, h := range headers {
		if _, ok := known[h]; !ok {
			out = append(out, h)
		}
	}
	return out
}
