package schema

// Validate converts a string-keyed record into a Row. It never fails.
func Validate(rec map[string]string) Row {
	get := func(key string) (any, bool) {
		v, ok := rec[key]
		return v, ok
	}
	return build(get)
}

// ValidateValues is Validate for decoded JSON objects where cells may be
// numbers or strings. Cells of any other type are treated as unparsable.
func ValidateValues(rec map[string]any) Row {
	get := func(key string) (any, bool) {
		v, ok := rec[key]
		if ok && v == nil {
			return nil, false
		}
		return v, ok
	}
	return build(get)
}

// ValidateAll validates records in order.
func ValidateAll[M ~map[string]string](recs []M) []Row {
	rows := make([]Row, len(recs))
	for i, r := range recs {
		rows[i] = Validate(r)
	}
	return rows
}

type lookup func(key string) (any, bool)

func build(get lookup) Row {
	return Row{
		CampaignName: optString(get, ColCampaignName),
		AdSetName:    optString(get, ColAdSetName),
		AdName:       optString(get, ColAdName),
		AdID:         optString(get, ColAdID),

		Spend:       required(get, ColSpend),
		Impressions: required(get, ColImpressions),
		Clicks:      required(get, ColClicks),

		CTR:           optNumber(get, ColCTR),
		Frequency:     optNumber(get, ColFrequency),
		ROAS:          optNumber(get, ColROAS),
		Purchases:     optNumber(get, ColPurchases),
		PurchaseValue: optNumber(get, ColPurchaseValue),
		AddsToCart:    optNumber(get, ColAddsToCart),
		CTR7d:         optNumber(get, ColCTR7d),
		CTRPrev7:      optNumber(get, ColCTRPrev7),

		Status: optString(get, ColStatus),
	}
}

func required(get lookup, key string) float64 {
	v, ok := get(key)
	if !ok {
		return 0
	}
	f, _ := ToNumber(v)
	return f
}

func optNumber(get lookup, key string) *float64 {
	v, ok := get(key)
	if !ok {
		return nil
	}
	f, _ := ToNumber(v)
	return &f
}

func optString(get lookup, key string) *string {
	v, ok := get(key)
	if !ok {
		return nil
	}
	s, ok := toString(v)
	if !ok {
		return nil
	}
	return &s
}
