package views

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsdash/pkg/adtypes"
)

type fakeDetailSource struct {
	payload adtypes.DetailPayload
	err     error
	name    string
	dr      adtypes.DateRange
	anomaly bool
}

func (f *fakeDetailSource) CampaignDetails(_ context.Context, name string, dr adtypes.DateRange, anomaly bool) (adtypes.DetailPayload, error) {
	f.name, f.dr, f.anomaly = name, dr, anomaly
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func detailPayload() adtypes.DetailPayload {
	return adtypes.DetailPayload{
		"zeta_extra":  {Columns: []string{"x"}, Data: []adtypes.Row{{"x": 1}}},
		"ad_schedule": {Columns: []string{"hour"}, Data: []adtypes.Row{}},
		"location_by_cities_all_campaign": {
			Columns:      []string{"city", "cost", "conv_value", "conversions", "roas", "cpa"},
			Data:         []adtypes.Row{{"city": "Berlin", "cost": 100.0, "conv_value": 250.0, "conversions": 4.0, "roas": "9.99", "cpa": "1"}},
			Rule:         "ROAS below 80% of the account average",
			AnomalyCount: 2,
		},
		"search_term": {Columns: []string{"term"}, Error: "query failed"},
		"alpha_extra": {Columns: []string{"y"}, Data: []adtypes.Row{{"y": 2}}},
	}
}

func TestDetailView_OrderAndPlaceholders(t *testing.T) {
	src := &fakeDetailSource{payload: detailPayload()}
	route, err := ParseRoute("/campaign/Brand?start_date=2026-01-01&end_date=2026-01-31")
	require.NoError(t, err)

	v := NewDetailView(src, route, 50)
	require.NoError(t, v.Load(context.Background()))

	assert.Equal(t, "Brand", src.name)
	assert.False(t, src.anomaly)
	assert.Equal(t, adtypes.DateRange{Start: "2026-01-01", End: "2026-01-31"}, src.dr)

	var names, labels []string
	for _, tbl := range v.Tables() {
		names = append(names, tbl.Name)
		labels = append(labels, tbl.Label)
	}
	assert.Equal(t, []string{"search_term", "channel", "asset", "audience", "age", "gender",
		"location_by_cities_all_campaign", "ad_schedule", "alpha_extra", "zeta_extra"}, names)
	assert.Equal(t, []string{"Search Term", "Channel", "Asset", "Audience", "Age", "Gender",
		"Location", "Ad Schedule", "alpha_extra", "zeta_extra"}, labels)

	channel, ok := v.Table("channel")
	require.True(t, ok, "a known sub-table the backend left out is still shown")
	assert.Equal(t, "Error loading channel data", channel.Placeholder())
	assert.Zero(t, channel.Total())

	search, ok := v.Table("search_term")
	require.True(t, ok)
	assert.Equal(t, "Error loading search_term data", search.Placeholder())

	schedule, _ := v.Table("ad_schedule")
	assert.Equal(t, "No ad_schedule data found for this campaign", schedule.Placeholder())

	location, _ := v.Table("location_by_cities_all_campaign")
	assert.Empty(t, location.Placeholder())
	assert.True(t, location.Flagged())
	assert.False(t, schedule.Flagged())
	assert.Equal(t, "ROAS below 80% of the account average", location.Rule)
	assert.Equal(t, "(1 / 1)", location.Status())

	_, ok = v.Table("missing")
	assert.False(t, ok)
}

func TestDetailView_RecomputesMetrics(t *testing.T) {
	v := NewDetailView(&fakeDetailSource{payload: detailPayload()}, DetailRoute{Campaign: "Brand"}, 50)
	require.NoError(t, v.Load(context.Background()))

	location, ok := v.Table("location_by_cities_all_campaign")
	require.True(t, ok)
	row := location.Rows()[0]
	assert.Equal(t, "2.50", row["roas"])
	assert.Equal(t, "25.00", row["cpa"])
	_, added := row["conv_value_cost"]
	assert.False(t, added)
}

func TestDetailView_AnomalyRouteUsesAnomalyEndpoint(t *testing.T) {
	src := &fakeDetailSource{payload: detailPayload()}
	route, _ := AnomalyRoute(adtypes.CampaignAnomaly{
		Campaign: "Brand", Date: "2026-03-02", Reason: "ROAS drop",
		CurrROAS: ptr(1), PrevROAS: ptr(2),
		CurrCPA: ptr(12), PrevCPA: ptr(10),
		CurrentConv: ptr(5), PrevConv: ptr(5),
	})
	parsed, err := ParseRoute(route)
	require.NoError(t, err)

	v := NewDetailView(src, parsed, 50)
	require.NoError(t, v.Load(context.Background()))
	assert.True(t, src.anomaly)

	banner, ok := v.Banner()
	require.True(t, ok)
	assert.Equal(t, "ROAS drop", banner.Reason)
	assert.Equal(t, []Trend{
		{Label: "ROAS", Prev: "2.00", Curr: "1.00", Direction: TrendDrop, Bad: true},
		{Label: "CPA", Prev: "10.00", Curr: "12.00", Direction: TrendRise, Bad: true},
		{Label: "Conversions", Prev: "5.00", Curr: "5.00", Direction: TrendFlat},
	}, banner.Trends)

	_, ok = NewDetailView(src, DetailRoute{Campaign: "Brand"}, 50).Banner()
	assert.False(t, ok)
}

func TestDetailView_BannerPolarity(t *testing.T) {
	tests := []struct {
		name  string
		query string
		label string
		dir   TrendDirection
		bad   bool
	}{
		{"roas rise is good", "prev_roas=1.00&curr_roas=2.00", "ROAS", TrendRise, false},
		{"cpa drop is good", "prev_cpa=12.00&curr_cpa=10.00", "CPA", TrendDrop, false},
		{"conversions drop is bad", "prev_conv=8.00&curr_conv=3.00", "Conversions", TrendDrop, true},
		{"missing value is flat", "prev_roas=2.00", "ROAS", TrendFlat, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := ParseRoute("/campaign/Brand?start_date=2026-03-02&end_date=2026-03-02&source=anomaly&" + tt.query)
			require.NoError(t, err)

			banner, ok := NewDetailView(&fakeDetailSource{}, route, 50).Banner()
			require.True(t, ok)
			var found bool
			for _, tr := range banner.Trends {
				if tr.Label == tt.label {
					found = true
					assert.Equal(t, tt.dir, tr.Direction)
					assert.Equal(t, tt.bad, tr.Bad)
				}
			}
			assert.True(t, found)
		})
	}
}

func TestDetailView_FailedLoadKeepsTables(t *testing.T) {
	src := &fakeDetailSource{payload: detailPayload()}
	v := NewDetailView(src, DetailRoute{Campaign: "Brand"}, 50)
	require.NoError(t, v.Load(context.Background()))
	require.Len(t, v.Tables(), 10)

	src.err = errors.New("timeout")
	assert.Error(t, v.Load(context.Background()))
	assert.Len(t, v.Tables(), 10)
	assert.EqualError(t, v.Err(), "timeout")
}

func TestDetailTable_IndependentSortAndReveal(t *testing.T) {
	rows := make([]adtypes.Row, 70)
	for i := range rows {
		rows[i] = adtypes.Row{"term": i}
	}
	v := NewDetailView(&fakeDetailSource{payload: adtypes.DetailPayload{
		"search_term": {Columns: []string{"term"}, Data: rows},
		"channel":     {Columns: []string{"term"}, Data: rows},
	}}, DetailRoute{Campaign: "Brand"}, 50)
	require.NoError(t, v.Load(context.Background()))

	search, _ := v.Table("search_term")
	channel, _ := v.Table("channel")

	search.Sorter().HeaderClick("term")
	search.Sorter().HeaderClick("term")
	assert.Equal(t, 69, search.Rows()[0]["term"])
	assert.Equal(t, 0, channel.Rows()[0]["term"])

	assert.True(t, search.ShowMore())
	assert.Equal(t, "(70 / 70)", search.Status())
	assert.Equal(t, "(50 / 70)", channel.Status())
}
