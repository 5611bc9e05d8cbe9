// Package adtypes defines anomaly monitor types for adsdash.
package adtypes

// CampaignAnomaly is one row of GET /api/anomalies/campaign.
// Metric fields are pointers because the backend omits them when unavailable.
type CampaignAnomaly struct {
	Campaign    string   `json:"campaign"`
	Date        string   `json:"date"`
	Reason      string   `json:"reason"`
	PrevConv    *float64 `json:"prev_conv"`
	CurrentConv *float64 `json:"current_conv"`
	PrevROAS    *float64 `json:"prev_roas"`
	CurrROAS    *float64 `json:"curr_roas"`
	PrevCPA     *float64 `json:"prev_cpa"`
	CurrCPA     *float64 `json:"curr_cpa"`
	Growth      *float64 `json:"growth"`
}

// ProductAnomaly is one row of GET /api/anomalies/product.
type ProductAnomaly struct {
	ItemID     string   `json:"item_id"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Reason     string   `json:"reason"`
	PrevCost   *float64 `json:"prev_cost"`
	CurrCost   *float64 `json:"curr_cost"`
	PrevClicks *float64 `json:"prev_clicks"`
	CurrClicks *float64 `json:"curr_clicks"`
	PrevCTR    *float64 `json:"prev_ctr"`
	CurrCTR    *float64 `json:"curr_ctr"`
	PrevConv   *float64 `json:"prev_conv,omitempty"`
	CurrConv   *float64 `json:"curr_conv,omitempty"`
	PrevROAS   *float64 `json:"prev_roas,omitempty"`
	CurrROAS   *float64 `json:"curr_roas,omitempty"`
}

// AnomalyDateRange is the span of dates the campaign anomaly table covers.
type AnomalyDateRange struct {
	MinDate string `json:"min_date"`
	MaxDate string `json:"max_date"`
}
