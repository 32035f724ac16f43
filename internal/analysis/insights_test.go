package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/adpulse-cli/internal/parser"
	"github.com/KaramelBytes/adpulse-cli/internal/schema"
)

func mustRows(t *testing.T, text string) []schema.Row {
	t.Helper()
	ds, err := Parse(text, parser.DefaultOptions())
	require.NoError(t, err)
	return ds.Rows
}

func TestGenerateInsights_ROASCritical(t *testing.T) {
	rows := mustRows(t, "Spend,Impressions,Clicks,Purchase value\n100,1000,10,80")
	got := GenerateInsights(rows, DefaultRuleSettings())

	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, TopicROAS, in.Topic)
	assert.Equal(t, SeverityCritical, in.Severity)
	assert.Equal(t, "ROAS is below efficiency guardrail at 0.80.", in.Summary)
	assert.Equal(t, "Test 2–3 new hooks/thumbnails, rotate in new ad creative, and cap frequency.", in.Recommendation)
	assert.Equal(t, map[string]float64{"spend": 100, "roas": 0.8}, in.SupportingData)
	assert.Empty(t, in.ImpactedEntities)
}

func TestGenerateInsights_ROASSeverityBoundaries(t *testing.T) {
	cases := []struct {
		roas string
		want Severity
		fire bool
	}{
		{"0", SeverityCritical, true},
		{"1", SeverityCritical, true},
		{"1.01", SeverityWarning, true},
		{"1.49", SeverityWarning, true},
		{"1.5", "", false},
		{"4", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.roas, func(t *testing.T) {
			rows := mustRows(t, "Spend,Impressions,Clicks,ROAS,Purchase value\n100,1000,1,"+tc.roas+",9999")
			got := GenerateInsights(rows, DefaultRuleSettings())
			if !tc.fire {
				require.Len(t, got, 1)
				assert.Equal(t, TopicMeta, got[0].Topic)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, TopicROAS, got[0].Topic)
			assert.Equal(t, tc.want, got[0].Severity)
		})
	}
}

func TestGenerateInsights_ExplicitROASWinsOverDerived(t *testing.T) {
	// Derived ROAS would be 0.5; the explicit column says healthy.
	rows := mustRows(t, "Spend,Impressions,Clicks,ROAS,Purchase value\n200,1000,1,3,100")
	got := GenerateInsights(rows, DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, TopicMeta, got[0].Topic)
}

func TestGenerateInsights_ConversionWarning(t *testing.T) {
	rows := mustRows(t, "Spend,Impressions,Clicks,CTR %,Adds to cart,Purchases,Purchase value\n200,10000,200,0.02,50,5,600")
	got := GenerateInsights(rows, DefaultRuleSettings())

	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, TopicConversion, in.Topic)
	assert.Equal(t, SeverityWarning, in.Severity)
	assert.Equal(t, "CTR is healthy but conversion from adds-to-cart to purchase is under 20%.", in.Summary)
	assert.Equal(t, "Audit landing/checkout, review tracking, and consider CRO experimentation.", in.Recommendation)
	assert.InDelta(t, 0.02, in.SupportingData["ctr"], 1e-12)
	assert.InDelta(t, 0.1, in.SupportingData["atcToPurchase"], 1e-12)
}

func TestGenerateInsights_ConversionUsesFloorOfOne(t *testing.T) {
	// No adds-to-cart column: ratio is purchases / max(0, 1) = 0.
	rows := mustRows(t, "Spend,Impressions,Clicks,Purchase value\n100,1000,20,500")
	got := GenerateInsights(rows, DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, TopicConversion, got[0].Topic)
	assert.InDelta(t, 0.02, got[0].SupportingData["ctr"], 1e-12)
	assert.Equal(t, 0.0, got[0].SupportingData["atcToPurchase"])

	// Zero impressions are floored to 1 when deriving CTR.
	rows = mustRows(t, "Spend,Impressions,Clicks,Purchase value\n100,0,1,500")
	got = GenerateInsights(rows, DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, TopicConversion, got[0].Topic)
	assert.Equal(t, 1.0, got[0].SupportingData["ctr"])
}

func TestGenerateInsights_Fatigue(t *testing.T) {
	rows := mustRows(t, "Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n100,1000,5,500,1,2")
	got := GenerateInsights(rows, DefaultRuleSettings())

	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, TopicFatigue, in.Topic)
	assert.Equal(t, SeverityInfo, in.Severity)
	assert.Equal(t, "CTR dropped >25% vs previous 7 days.", in.Summary)
	assert.Equal(t, "Rotate fatigued creatives, refresh best hooks, and rebuild warm audiences.", in.Recommendation)
	assert.Equal(t, map[string]float64{"ctr7d": 1, "ctrPrev7": 2, "drop": 0.5}, in.SupportingData)
}

func TestGenerateInsights_FatigueRequiresBothValues(t *testing.T) {
	cases := map[string]string{
		"only current":   "Spend,Impressions,Clicks,Purchase value,CTR 7d %\n100,1000,5,500,1",
		"only previous":  "Spend,Impressions,Clicks,Purchase value,CTR prev7 %\n100,1000,5,500,2",
		"previous zero":  "Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n100,1000,5,500,1,0",
		"small decline":  "Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n100,1000,5,500,1.6,2",
		"exactly at 25%": "Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n100,1000,5,500,1.5,2",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got := GenerateInsights(mustRows(t, in), DefaultRuleSettings())
			require.Len(t, got, 1)
			assert.Equal(t, TopicMeta, got[0].Topic)
		})
	}

	// A present zero current CTR is a full drop.
	got := GenerateInsights(mustRows(t, "Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n100,1000,5,500,0,2"), DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].SupportingData["drop"])
}

func TestGenerateInsights_OrderWithinAndAcrossRows(t *testing.T) {
	text := "Campaign name,Ad set name,Ad name,Ad ID,Spend,Impressions,Clicks,Purchase value,CTR 7d %,CTR prev7 %\n" +
		"Spring,Prospecting,Hook A,101,100,1000,30,50,1,4\n" +
		"Summer,,,,100,1000,1,900,,\n" +
		",,,202,80,1000,1,10,,\n"
	got := GenerateInsights(mustRows(t, text), DefaultRuleSettings())

	require.Len(t, got, 4)
	assert.Equal(t, []Topic{TopicROAS, TopicConversion, TopicFatigue, TopicROAS},
		[]Topic{got[0].Topic, got[1].Topic, got[2].Topic, got[3].Topic})
	for _, in := range got[:3] {
		assert.Equal(t, []string{"Spring, Prospecting, Hook A & 101"}, in.ImpactedEntities)
	}
	assert.Equal(t, []string{"202"}, got[3].ImpactedEntities)
}

func TestGenerateInsights_LowSpendNeverFires(t *testing.T) {
	text := "Campaign name,Spend,Impressions,Clicks,ROAS,CTR %,CTR 7d %,CTR prev7 %\nTiny,49.99,100,100,0,0.9,0,9"
	rows := mustRows(t, text)
	got := GenerateInsights(rows, DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, TopicMeta, got[0].Topic)

	m := Aggregate(rows)
	assert.Equal(t, 49.99, m.Spend)
	assert.Equal(t, 100.0, m.Clicks)
}

// Without purchase value the derived ROAS is 0, so bare delivery columns
// still trip the ROAS rule once per eligible row.
func TestGenerateInsights_DeliveryColumnsOnly(t *testing.T) {
	rows := mustRows(t, "Spend,Impressions,Clicks\n1000,10000,100\n2500,40000,300")
	got := GenerateInsights(rows, DefaultRuleSettings())
	require.Len(t, got, 2)
	for _, in := range got {
		assert.Equal(t, TopicROAS, in.Topic)
		assert.Equal(t, SeverityCritical, in.Severity)
		assert.Equal(t, 0.0, in.SupportingData["roas"])
	}

	got = GenerateInsights(mustRows(t, "Spend,Impressions,Clicks,Purchase value\n1000,10000,100,5000"), DefaultRuleSettings())
	require.Len(t, got, 1)
	assert.Equal(t, TopicMeta, got[0].Topic)
}

func TestGenerateInsights_FallbackShape(t *testing.T) {
	got := GenerateInsights(nil, DefaultRuleSettings())
	require.Len(t, got, 1)
	in := got[0]
	assert.Equal(t, TopicMeta, in.Topic)
	assert.Equal(t, SeverityInfo, in.Severity)
	assert.Equal(t, "No critical anomalies detected across paid media rows.", in.Summary)
	assert.Equal(t, "Maintain pacing, continue monitoring ROAS and funnel KPIs.", in.Recommendation)
	assert.NotNil(t, in.ImpactedEntities)
	assert.Empty(t, in.ImpactedEntities)
	assert.NotNil(t, in.SupportingData)
	assert.Empty(t, in.SupportingData)
}

func TestGenerateInsights_CustomThresholds(t *testing.T) {
	s := DefaultRuleSettings()
	s.MinSpend = 10
	s.ATCPurchaseFloor = 0.125
	rows := mustRows(t, "Spend,Impressions,Clicks,Purchase value,Adds to cart,Purchases\n20,1000,20,100,10,1")
	got := GenerateInsights(rows, s)
	require.Len(t, got, 1)
	assert.Equal(t, "CTR is healthy but conversion from adds-to-cart to purchase is under 12.5%.", got[0].Summary)
}

func TestJoinEntities(t *testing.T) {
	assert.Equal(t, []string{}, joinEntities(nil))
	assert.Equal(t, []string{"A"}, joinEntities([]string{"A"}))
	assert.Equal(t, []string{"A & B"}, joinEntities([]string{"A", "B"}))
	assert.Equal(t, []string{"A, B, C & D"}, joinEntities([]string{"A", "B", "C", "D"}))
}

func TestRuleSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultRuleSettings().Validate())

	bad := DefaultRuleSettings()
	bad.ROASCritical = 2
	assert.Error(t, bad.Validate())

	bad = DefaultRuleSettings()
	bad.FatigueDrop = 1
	assert.Error(t, bad.Validate())

	bad = DefaultRuleSettings()
	bad.MinSpend = -1
	assert.Error(t, bad.Validate())
}
