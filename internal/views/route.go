package views

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"adsdash/pkg/adtypes"
)

const campaignPrefix = "/campaign/"

// Anomaly context keys carried in a detail route query.
const (
	sourceParam   = "source"
	sourceAnomaly = "anomaly"
)

// DetailRoute is a parsed campaign detail route.
type DetailRoute struct {
	Campaign  string
	DateRange adtypes.DateRange
	// Anomaly is set when the route was opened from an anomaly panel.
	Anomaly *AnomalyContext
}

// AnomalyContext is the anomaly summary a detail route carries for its banner.
// Metric values are kept as the two-decimal strings of the route.
type AnomalyContext struct {
	Reason   string
	CurrROAS string
	PrevROAS string
	CurrCPA  string
	PrevCPA  string
	CurrConv string
	PrevConv string
}

// CampaignRoute builds the detail route of a campaign for the given date range. Rows
// without a campaign name, or with the "--" placeholder, have no route.
func CampaignRoute(name string, dr adtypes.DateRange) (string, bool) {
	if name == "" || name == "--" {
		return "", false
	}
	q := url.Values{}
	if dr.Start != "" {
		q.Set("start_date", dr.Start)
	}
	if dr.End != "" {
		q.Set("end_date", dr.End)
	}
	route := campaignPrefix + url.PathEscape(name)
	if len(q) > 0 {
		route += "?" + q.Encode()
	}
	return route, true
}

// AnomalyRoute builds the detail route opened from a campaign anomaly. The anomaly date is
// used as both bounds and the metric pairs are written with two decimals.
func AnomalyRoute(a adtypes.CampaignAnomaly) (string, bool) {
	if a.Campaign == "" || a.Campaign == "--" {
		return "", false
	}
	params := []string{
		"start_date", a.Date,
		"end_date", a.Date,
		sourceParam, sourceAnomaly,
		"reason", a.Reason,
		"curr_roas", fixed(a.CurrROAS),
		"prev_roas", fixed(a.PrevROAS),
		"curr_cpa", fixed(a.CurrCPA),
		"prev_cpa", fixed(a.PrevCPA),
		"curr_conv", fixed(a.CurrentConv),
		"prev_conv", fixed(a.PrevConv),
	}
	// Built by hand to keep the parameter order stable.
	var b strings.Builder
	b.WriteString(campaignPrefix)
	b.WriteString(url.PathEscape(a.Campaign))
	for i := 0; i < len(params); i += 2 {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(params[i])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[i+1]))
	}
	return b.String(), true
}

// fixed renders an optional metric with two decimals, "0.00" when missing.
func fixed(v *float64) string {
	if v == nil {
		return "0.00"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// ParseRoute parses a campaign detail route. A bare campaign name is accepted as well.
func ParseRoute(route string) (DetailRoute, error) {
	route = strings.TrimSpace(route)
	if route == "" {
		return DetailRoute{}, fmt.Errorf("empty campaign route")
	}
	if !strings.HasPrefix(route, campaignPrefix) {
		return DetailRoute{Campaign: route}, nil
	}

	u, err := url.Parse(route)
	if err != nil {
		return DetailRoute{}, fmt.Errorf("invalid campaign route %q: %w", route, err)
	}
	escaped := strings.TrimPrefix(u.EscapedPath(), campaignPrefix)
	if escaped == "" || strings.Contains(escaped, "/") {
		return DetailRoute{}, fmt.Errorf("invalid campaign route %q", route)
	}
	name, err := url.PathUnescape(escaped)
	if err != nil {
		return DetailRoute{}, fmt.Errorf("invalid campaign route %q: %w", route, err)
	}

	q := u.Query()
	dr := DetailRoute{
		Campaign:  name,
		DateRange: adtypes.DateRange{Start: q.Get("start_date"), End: q.Get("end_date")},
	}
	if q.Get(sourceParam) == sourceAnomaly {
		dr.Anomaly = &AnomalyContext{
			Reason:   q.Get("reason"),
			CurrROAS: q.Get("curr_roas"),
			PrevROAS: q.Get("prev_roas"),
			CurrCPA:  q.Get("curr_cpa"),
			PrevCPA:  q.Get("prev_cpa"),
			CurrConv: q.Get("curr_conv"),
			PrevConv: q.Get("prev_conv"),
		}
	}
	return dr, nil
}
