package table

import "adsdash/pkg/adtypes"

// minConversions is the volume under which a row is never flagged.
const minConversions = 3

// CampaignRowAnomalous flags overview rows whose ROAS fell below 80% of the comparison
// period or whose cost per conversion rose above 125% of it.
func CampaignRowAnomalous(row adtypes.Row) bool {
	if looseFloat(row["conversions"]) < minConversions {
		return false
	}

	roas := looseFloat(row["roas"])
	roasComp := looseFloat(row["roascompare_to"])
	if roasComp > 0 && roas < roasComp*0.8 {
		return true
	}

	cpa := looseFloat(row["cost_conv"])
	cpaComp := looseFloat(row["cost_conv_compare_to"])
	return cpaComp > 0 && cpa > cpaComp*1.25
}

// DetailRowAnomalous flags detail sub-table rows. There cpa_compare holds the change
// against the previous period, so the previous CPA is cpa - cpa_compare.
func DetailRowAnomalous(row adtypes.Row) bool {
	if looseFloat(row["conversions"]) < minConversions {
		return false
	}

	roas := looseFloat(firstTruthy(row, "roas", "conv_value_cost"))
	roasComp := looseFloat(row["roas_compare"])
	if roasComp > 0 && roas < roasComp*0.8 {
		return true
	}

	cpa := looseFloat(firstTruthy(row, "cpa", "cost_conv"))
	cpaComp := looseFloat(row["cpa_compare"])
	return cpaComp > 0 && cpa > (cpa-cpaComp)*1.25
}

// RecomputeDetailMetrics returns a copy of row whose ROAS and CPA columns are recomputed
// from the raw totals (conv_value / cost and cost / conversions), formatted with two
// decimals. Only columns already present in the row are overwritten.
func RecomputeDetailMetrics(row adtypes.Row) adtypes.Row {
	out := make(adtypes.Row, len(row))
	for k, v := range row {
		out[k] = v
	}

	cost := looseFloat(row["cost"])
	value := looseFloat(row["conv_value"])
	conv := looseFloat(row["conversions"])

	roas := 0.0
	if cost > 0 {
		roas = value / cost
	}
	cpa := 0.0
	if conv > 0 {
		cpa = cost / conv
	}

	for _, k := range []string{"conv_value_cost", "roas"} {
		if _, ok := row[k]; ok {
			out[k] = toFixed2(roas)
		}
	}
	for _, k := range []string{"cost_conv", "cpa"} {
		if _, ok := row[k]; ok {
			out[k] = toFixed2(cpa)
		}
	}
	return out
}
