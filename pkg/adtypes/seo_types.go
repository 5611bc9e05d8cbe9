// Package adtypes defines SEO analysis types for adsdash.
package adtypes

// SEODateRange is the response of GET /api/seo/date-range.
type SEODateRange struct {
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Message   string `json:"message,omitempty"`
}

// SEOPage is a page with a click-through rate below the requested threshold.
type SEOPage struct {
	URL         string   `json:"url"`
	CTR         float64  `json:"ctr"`
	Clicks      *float64 `json:"clicks,omitempty"`
	Impressions *float64 `json:"impressions,omitempty"`
	Position    *float64 `json:"position,omitempty"`
}

// SEOPagesResponse is the response of GET /api/seo/low-ctr-pages.
type SEOPagesResponse struct {
	Status  string    `json:"status"`
	Data    []SEOPage `json:"data"`
	Message string    `json:"message,omitempty"`
}

// SEOQuery holds the parameters of a low-CTR page query.
type SEOQuery struct {
	CTRThreshold int
	StartDate    string
	EndDate      string
	RowLimit     int
}
