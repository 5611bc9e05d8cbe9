package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsdash/internal/storage"
	"adsdash/internal/testutils"
	"adsdash/pkg/adtypes"
)

// newAPI returns an initialized, logged-in client of a fresh fake backend.
func newAPI(t *testing.T) (*testutils.FakeBackend, *APIService, *AuthService) {
	t.Helper()
	backend, auth, _ := newAuth(t)
	require.True(t, auth.Login(context.Background(), "alice", "secret").Success)
	api := NewAPIService(auth, 5*time.Second)
	require.NoError(t, api.Initialize())
	return backend, api, auth
}

func TestAPIService_Initialize(t *testing.T) {
	api := NewAPIService(nil, 0)
	assert.Equal(t, "api", api.Name())
	assert.Error(t, api.Initialize())

	_, err := api.Table(context.Background(), adtypes.TableCampaign, adtypes.DateRange{})
	assert.ErrorContains(t, err, "not initialized")
}

func TestAPIService_Table(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.Tables["campaign"] = testutils.CampaignTable(3)

	payload, err := api.Table(context.Background(), adtypes.TableCampaign, adtypes.DateRange{Start: "2025-01-01", End: "2025-01-31"})
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign", "cost", "roas", "conversions", "cost_conv"}, payload.Columns)
	require.Len(t, payload.Data, 3)
	assert.Equal(t, "Campaign 002", payload.Data[2]["campaign"])
	assert.Equal(t, 2.0, payload.Data[2]["roas"])

	req, ok := backend.LastRequest("/api/tables/campaign")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"start_date": "2025-01-01", "end_date": "2025-01-31"}, req.Query)

	_, err = api.Table(context.Background(), adtypes.TableProduct, adtypes.DateRange{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "backend returned 404: Unknown table", apiErr.Error())
	req, _ = backend.LastRequest("/api/tables/product")
	assert.Empty(t, req.Query, "empty dates are left out")
}

func TestAPIService_CampaignDetails(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.Details["Brand / EU"] = adtypes.DetailPayload{
		"age": {Columns: []string{"age", "cost"}, Data: []adtypes.Row{{"age": "18-24", "cost": 10.0}}},
	}
	backend.AnomalyDetails["Brand / EU"] = adtypes.DetailPayload{
		"channel": {Columns: []string{"channel"}, Rule: "ROAS below 2", AnomalyCount: 1},
	}

	details, err := api.CampaignDetails(context.Background(), "Brand / EU", adtypes.DateRange{}, false)
	require.NoError(t, err)
	require.Contains(t, details, "age")
	assert.Equal(t, "18-24", details["age"].Data[0]["age"])

	details, err = api.CampaignDetails(context.Background(), "Brand / EU", adtypes.DateRange{Start: "2025-02-01"}, true)
	require.NoError(t, err)
	assert.Equal(t, "ROAS below 2", details["channel"].Rule)
	assert.Equal(t, 1, details["channel"].AnomalyCount)

	requests := backend.Requests()
	last := requests[len(requests)-1]
	assert.Equal(t, map[string]string{"start_date": "2025-02-01"}, last.Query)
}

func TestAPIService_Anomalies(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.CampaignAnomalies[""] = testutils.CampaignAnomalies("2025-03-10")
	backend.CampaignAnomalies["2025-03-09"] = map[string]string{"detail": "oops"}
	backend.ProductAnomalies["2025-03-10"] = []adtypes.ProductAnomaly{{ItemID: "sku-1", Title: "Shoe", Reason: "Cost spike"}}
	backend.AnomalyRange = adtypes.AnomalyDateRange{MinDate: "2025-01-01", MaxDate: "2025-03-10"}
	ctx := context.Background()

	latest, err := api.CampaignAnomalies(ctx, "")
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, "Brand", latest[0].Campaign)
	require.NotNil(t, latest[0].CurrROAS)
	assert.Equal(t, 1.0, *latest[0].CurrROAS)
	req, _ := backend.LastRequest("/api/anomalies/campaign")
	assert.Empty(t, req.Query)

	empty, err := api.CampaignAnomalies(ctx, "2024-12-31")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = api.CampaignAnomalies(ctx, "2025-03-09")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)

	products, err := api.ProductAnomalies(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "sku-1", products[0].ItemID)
	req, _ = backend.LastRequest("/api/anomalies/product")
	assert.Equal(t, "2025-03-10", req.Query["target_date"])

	dr, err := api.CampaignAnomalyDateRange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", dr.MaxDate)
}

func TestAPIService_SEO(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.SEORange = adtypes.SEODateRange{Status: "success", StartDate: "2025-01-01", EndDate: "2025-03-01"}
	backend.SEOPages = map[string]any{
		"status": "success",
		"data":   []map[string]any{{"url": "https://example.com/a", "ctr": 0.8, "clicks": 3}},
	}
	ctx := context.Background()

	dr, err := api.SEODateRange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", dr.EndDate)

	resp, raw, err := api.LowCTRPages(ctx, adtypes.SEOQuery{CTRThreshold: 2, StartDate: "2025-01-01", RowLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://example.com/a", resp.Data[0].URL)
	assert.JSONEq(t, `[{"url":"https://example.com/a","ctr":0.8,"clicks":3}]`, string(raw))

	req, _ := backend.LastRequest("/api/seo/low-ctr-pages")
	assert.Equal(t, map[string]string{"ctr_threshold": "2", "start_date": "2025-01-01", "row_limit": "100"}, req.Query)

	backend.SEOPages = map[string]any{"status": "error", "message": "quota exceeded"}
	resp, raw, err = api.LowCTRPages(ctx, adtypes.SEOQuery{CTRThreshold: 2, RowLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, "quota exceeded", resp.Message)
	assert.Empty(t, resp.Data)
	assert.Equal(t, "[]", string(raw))
}

func TestAPIService_Rules(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.Prompts["age"] = "Flag age groups with CPA 30% above average."
	ctx := context.Background()

	rule, err := api.AgentRule(ctx, "age")
	require.NoError(t, err)
	assert.Empty(t, rule)

	require.NoError(t, api.SaveAgentRule(ctx, "age", "Ignore 65+"))
	req, _ := backend.LastRequest("/api/agent-rules")
	assert.Equal(t, http.MethodPost, req.Method)
	assert.JSONEq(t, `{"table_name":"age","rule_prompt":"Ignore 65+"}`, string(req.Body))

	rule, err = api.AgentRule(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, "Ignore 65+", rule)

	prompt, err := api.AgentDefaultPrompt(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, "Flag age groups with CPA 30% above average.", prompt)

	_, err = api.AgentDefaultPrompt(ctx, "weather")
	assert.Error(t, err)

	// RuleService drives the same endpoints.
	rules := NewRuleService(api)
	require.NoError(t, rules.Initialize())
	text, custom, err := rules.Load(ctx, "age")
	require.NoError(t, err)
	assert.True(t, custom)
	assert.Equal(t, "Ignore 65+", text)
}

func TestAPIService_Chat(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.ChatChunks = []string{"Brand ", "looks ", "healthy."}

	body, err := api.Chat(context.Background(), adtypes.ChatRequest{Message: "analyze Brand"})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "Brand looks healthy.", string(data))

	req, _ := backend.LastRequest("/api/chat")
	assert.JSONEq(t, `{"message":"analyze Brand","messages":[],"selectedTables":[],"seo_pages_data":null}`, string(req.Body))

	backend.ChatStatus = http.StatusServiceUnavailable
	_, err = api.Chat(context.Background(), adtypes.ChatRequest{Message: "again"})
	assert.EqualError(t, err, "server error: 503 Service Unavailable: backend returned 503: Agent unavailable")
}

func TestAPIService_SessionExpiry(t *testing.T) {
	backend, api, auth := newAPI(t)
	backend.SetExpired(true)

	_, err := api.SEODateRange(context.Background())
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Empty(t, auth.Session().Token)

	_, err = api.Chat(context.Background(), adtypes.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestAPIService_EndToEndChat(t *testing.T) {
	backend, api, _ := newAPI(t)
	backend.ChatChunks = []string{"Ad", "s ok"}
	store := storage.NewMemoryStore()

	conversations := NewConversationService(store)
	require.NoError(t, conversations.Initialize())
	rules := NewRuleService(api)
	require.NoError(t, rules.Initialize())
	chat := NewChatService(api, conversations, NewExperts(), rules, store)
	require.NoError(t, chat.Initialize())

	require.NoError(t, chat.Send(context.Background(), "status?", nil))
	cur, _ := conversations.Current()
	require.Len(t, cur.Messages, 3)
	assert.Equal(t, "Ads ok", cur.Messages[2].Content)
}
