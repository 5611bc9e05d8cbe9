package testutils

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"adsdash/pkg/adtypes"
)

// FakeToken is the bearer token the fake backend hands out and accepts.
const FakeToken = "test-token"

// RecordedRequest is a request seen by the fake backend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Body   []byte
	Auth   string
}

// FakeBackend is an in-process analytics backend serving canned data. Fields may be
// changed between calls; handlers read them under the lock.
type FakeBackend struct {
	Server *httptest.Server

	mu                sync.Mutex
	Users             map[string]string
	Tables            map[string]adtypes.TablePayload
	Details           map[string]adtypes.DetailPayload
	AnomalyDetails    map[string]adtypes.DetailPayload
	CampaignAnomalies map[string]any
	ProductAnomalies  map[string]any
	AnomalyRange      adtypes.AnomalyDateRange
	SEORange          adtypes.SEODateRange
	SEOPages          map[string]any
	Rules             map[string]string
	Prompts           map[string]string
	ChatChunks        []string
	ChatStatus        int
	Expired           bool
	requests          []RecordedRequest
}

// NewFakeBackend starts a fake backend that is shut down when t finishes.
// The user "alice" with password "secret" can log in.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		Users:             map[string]string{"alice": "secret"},
		Tables:            map[string]adtypes.TablePayload{},
		Details:           map[string]adtypes.DetailPayload{},
		AnomalyDetails:    map[string]adtypes.DetailPayload{},
		CampaignAnomalies: map[string]any{},
		ProductAnomalies:  map[string]any{},
		SEOPages:          map[string]any{"status": "success", "data": []any{}},
		Rules:             map[string]string{},
		Prompts:           map[string]string{},
		ChatStatus:        http.StatusOK,
	}
	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the backend.
func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// Requests returns every request seen so far.
func (f *FakeBackend) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// LastRequest returns the most recent request to path.
func (f *FakeBackend) LastRequest(path string) (RecordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Path == path {
			return f.requests[i], true
		}
	}
	return RecordedRequest{}, false
}

// SetExpired makes every authenticated endpoint answer 401.
func (f *FakeBackend) SetExpired(expired bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Expired = expired
}

func (f *FakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(f.record)

	r.Post("/api/login", f.login)
	r.Group(func(r chi.Router) {
		r.Use(f.requireToken)
		r.Post("/api/logout", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/api/tables/{kind}", f.table)
		r.Get("/api/campaigns/{name}/details", f.details(false))
		r.Get("/api/campaigns/{name}/anomaly-details", f.details(true))
		r.Get("/api/anomalies/campaign", f.anomalies(func() map[string]any { return f.CampaignAnomalies }))
		r.Get("/api/anomalies/campaign/date-range", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, f.AnomalyRange)
		})
		r.Get("/api/anomalies/product", f.anomalies(func() map[string]any { return f.ProductAnomalies }))
		r.Get("/api/seo/date-range", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, f.SEORange)
		})
		r.Get("/api/seo/low-ctr-pages", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			writeJSON(w, http.StatusOK, f.SEOPages)
		})
		r.Get("/api/agent-rules/{domain}", f.getRule)
		r.Post("/api/agent-rules", f.saveRule)
		r.Get("/api/agent-prompts/{domain}", f.getPrompt)
		r.Post("/api/chat", f.chat)
	})
	return r
}

func (f *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		q := map[string]string{}
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				q[k] = v[0]
			}
		}
		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  q,
			Body:   body,
			Auth:   r.Header.Get("Authorization"),
		})
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		expired := f.Expired
		f.mu.Unlock()
		if expired || r.Header.Get("Authorization") != "Bearer "+FakeToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid request"})
		return
	}

	f.mu.Lock()
	password, ok := f.Users[creds.Username]
	f.mu.Unlock()
	if !ok || password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}
	writeJSON(w, http.StatusOK, adtypes.LoginResponse{AccessToken: FakeToken, Username: creds.Username, Role: "admin"})
}

func (f *FakeBackend) table(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.Tables[chi.URLParam(r, "kind")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Unknown table"})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (f *FakeBackend) details(anomaly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		source := f.Details
		if anomaly {
			source = f.AnomalyDetails
		}
		// chi matches on the raw path, so escaped names arrive escaped.
		name, err := url.PathUnescape(chi.URLParam(r, "name"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid campaign name"})
			return
		}
		payload, ok := source[name]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Campaign not found"})
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// anomalies serves the list registered under the target_date query, "" for latest.
func (f *FakeBackend) anomalies(lists func() map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		list, ok := lists()[r.URL.Query().Get("target_date")]
		if !ok {
			list = []any{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (f *FakeBackend) getRule(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, adtypes.AgentRule{RulePrompt: f.Rules[chi.URLParam(r, "domain")]})
}

func (f *FakeBackend) saveRule(w http.ResponseWriter, r *http.Request) {
	var update adtypes.AgentRuleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil || update.TableName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "Invalid rule"})
		return
	}
	f.mu.Lock()
	f.Rules[update.TableName] = update.RulePrompt
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (f *FakeBackend) getPrompt(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prompt, ok := f.Prompts[chi.URLParam(r, "domain")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Unknown domain"})
		return
	}
	writeJSON(w, http.StatusOK, adtypes.AgentPrompt{DefaultPrompt: prompt})
}

func (f *FakeBackend) chat(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	status := f.ChatStatus
	chunks := append([]string(nil), f.ChatChunks...)
	f.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"detail": "Agent unavailable"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, c := range chunks {
		_, _ = io.WriteString(w, c)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
