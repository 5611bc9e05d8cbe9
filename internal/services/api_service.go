package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"adsdash/pkg/adtypes"
)

// ErrUnexpectedResponse is returned when a body decodes but has the wrong shape,
// such as an object where a list was expected.
var ErrUnexpectedResponse = errors.New("unexpected response shape")

// APIService is the typed client of the analytics backend. Every call goes through
// AuthService.Fetch, so a 401 anywhere ends the session.
type APIService struct {
	initialized bool
	auth        *AuthService
	timeout     time.Duration
}

// NewAPIService creates an APIService. timeout bounds every call except the chat stream.
func NewAPIService(auth *AuthService, timeout time.Duration) *APIService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIService{auth: auth, timeout: timeout}
}

// Name returns the service name "api" for registration.
func (a *APIService) Name() string {
	return "api"
}

// Initialize checks the service has an auth wrapper.
func (a *APIService) Initialize() error {
	if a.auth == nil {
		return fmt.Errorf("api service needs an auth service")
	}
	a.initialized = true
	return nil
}

// query builds a query string from key/value pairs, leaving out empty values.
func query(pairs ...string) string {
	values := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			values.Set(pairs[i], pairs[i+1])
		}
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (a *APIService) do(ctx context.Context, method, path string, in, out any) error {
	if !a.initialized {
		return fmt.Errorf("api service not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request for %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := a.auth.Fetch(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// decodeList decodes a JSON array, rejecting any other shape.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrUnexpectedResponse
	}
	var list []T
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// Table fetches a top-level table.
func (a *APIService) Table(ctx context.Context, kind adtypes.TableKind, dr adtypes.DateRange) (*adtypes.TablePayload, error) {
	var payload adtypes.TablePayload
	path := "/api/tables/" + url.PathEscape(string(kind)) + query("start_date", dr.Start, "end_date", dr.End)
	if err := a.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Columns == nil {
		payload.Columns = []string{}
	}
	if payload.Data == nil {
		payload.Data = []adtypes.Row{}
	}
	return &payload, nil
}

// CampaignDetails fetches the sub-tables of one campaign. With anomaly set it asks for
// the anomaly variant, which adds rules and per-table anomaly counts.
func (a *APIService) CampaignDetails(ctx context.Context, name string, dr adtypes.DateRange, anomaly bool) (adtypes.DetailPayload, error) {
	endpoint := "details"
	if anomaly {
		endpoint = "anomaly-details"
	}
	path := "/api/campaigns/" + url.PathEscape(name) + "/" + endpoint + query("start_date", dr.Start, "end_date", dr.End)

	payload := adtypes.DetailPayload{}
	if err := a.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// CampaignAnomalies lists the campaign anomalies of a date; empty means the latest date.
func (a *APIService) CampaignAnomalies(ctx context.Context, targetDate string) ([]adtypes.CampaignAnomaly, error) {
	var raw json.RawMessage
	if err := a.do(ctx, http.MethodGet, "/api/anomalies/campaign"+query("target_date", targetDate), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[adtypes.CampaignAnomaly](raw)
}

// CampaignAnomalyDateRange returns the dates the campaign anomaly table covers.
func (a *APIService) CampaignAnomalyDateRange(ctx context.Context) (*adtypes.AnomalyDateRange, error) {
	var dr adtypes.AnomalyDateRange
	if err := a.do(ctx, http.MethodGet, "/api/anomalies/campaign/date-range", nil, &dr); err != nil {
		return nil, err
	}
	return &dr, nil
}

// ProductAnomalies lists the product anomalies of a date; empty means the latest date.
func (a *APIService) ProductAnomalies(ctx context.Context, targetDate string) ([]adtypes.ProductAnomaly, error) {
	var raw json.RawMessage
	if err := a.do(ctx, http.MethodGet, "/api/anomalies/product"+query("target_date", targetDate), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[adtypes.ProductAnomaly](raw)
}

// SEODateRange returns the dates SEO data is available for.
func (a *APIService) SEODateRange(ctx context.Context) (*adtypes.SEODateRange, error) {
	var dr adtypes.SEODateRange
	if err := a.do(ctx, http.MethodGet, "/api/seo/date-range", nil, &dr); err != nil {
		return nil, err
	}
	return &dr, nil
}

// LowCTRPages queries pages under the CTR threshold. The raw data array is returned
// alongside the decoded response so callers can cache it verbatim.
func (a *APIService) LowCTRPages(ctx context.Context, q adtypes.SEOQuery) (*adtypes.SEOPagesResponse, json.RawMessage, error) {
	path := "/api/seo/low-ctr-pages" + query(
		"ctr_threshold", strconv.Itoa(q.CTRThreshold),
		"start_date", q.StartDate,
		"end_date", q.EndDate,
		"row_limit", strconv.Itoa(q.RowLimit),
	)

	var envelope struct {
		Status  string          `json:"status"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, nil, err
	}

	resp := &adtypes.SEOPagesResponse{Status: envelope.Status, Message: envelope.Message, Data: []adtypes.SEOPage{}}
	raw := json.RawMessage("[]")
	if trimmed := bytes.TrimSpace(envelope.Data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &resp.Data); err != nil {
			return nil, nil, fmt.Errorf("decoding seo pages: %w", err)
		}
		raw = trimmed
	}
	return resp, raw, nil
}

// AgentRule returns the saved prompt override of a domain, empty when none is saved.
func (a *APIService) AgentRule(ctx context.Context, domain string) (string, error) {
	var rule adtypes.AgentRule
	if err := a.do(ctx, http.MethodGet, "/api/agent-rules/"+url.PathEscape(domain), nil, &rule); err != nil {
		return "", err
	}
	return rule.RulePrompt, nil
}

// SaveAgentRule stores a prompt override for a domain.
func (a *APIService) SaveAgentRule(ctx context.Context, domain, text string) error {
	return a.do(ctx, http.MethodPost, "/api/agent-rules", adtypes.AgentRuleUpdate{TableName: domain, RulePrompt: text}, nil)
}

// AgentDefaultPrompt returns the documented default prompt of a domain.
func (a *APIService) AgentDefaultPrompt(ctx context.Context, domain string) (string, error) {
	var prompt adtypes.AgentPrompt
	if err := a.do(ctx, http.MethodGet, "/api/agent-prompts/"+url.PathEscape(domain), nil, &prompt); err != nil {
		return "", err
	}
	return prompt.DefaultPrompt, nil
}

// Chat posts a chat request and returns the streamed text body. The stream is bounded
// only by ctx; the caller must close it.
func (a *APIService) Chat(ctx context.Context, req adtypes.ChatRequest) (io.ReadCloser, error) {
	if !a.initialized {
		return nil, fmt.Errorf("api service not initialized")
	}
	if req.Messages == nil {
		req.Messages = []adtypes.Message{}
	}
	if req.SelectedTables == nil {
		req.SelectedTables = []string{}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	resp, err := a.auth.Fetch(ctx, http.MethodPost, "/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		apiErr := newAPIError(resp)
		return nil, fmt.Errorf("server error: %d %s: %w", resp.StatusCode, strings.TrimSpace(http.StatusText(resp.StatusCode)), apiErr)
	}
	return resp.Body, nil
}

// GetGlobalAPIService returns the api service from the global registry.
func GetGlobalAPIService() (*APIService, error) {
	return Lookup[*APIService](GetGlobalRegistry(), "api")
}
