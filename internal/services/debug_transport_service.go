package services

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"adsdash/internal/logger"
)

// DebugTransportService captures the backend traffic for troubleshooting. Every exchange
// is logged at debug level and the last one is kept as JSON.
type DebugTransportService struct {
	mu       sync.RWMutex
	captured string
}

// NewDebugTransportService creates a new DebugTransportService instance.
func NewDebugTransportService() *DebugTransportService {
	return &DebugTransportService{}
}

// Name returns the service name "debug-transport" for registration.
func (d *DebugTransportService) Name() string {
	return "debug-transport"
}

// Initialize clears the captured exchange.
func (d *DebugTransportService) Initialize() error {
	d.ClearCapturedData()
	return nil
}

// Transport wraps base, or http.DefaultTransport when nil, with capture.
func (d *DebugTransportService) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &debugTransport{base: base, service: d, log: logger.NewStyledLogger("HTTP")}
}

// GetCapturedData returns the last exchange as JSON, or "" before the first request.
func (d *DebugTransportService) GetCapturedData() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.captured
}

// ClearCapturedData forgets the last exchange.
func (d *DebugTransportService) ClearCapturedData() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captured = ""
}

func (d *DebugTransportService) setCapturedData(data string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captured = data
}

type debugTransport struct {
	base    http.RoundTripper
	service *DebugTransportService
	log     *log.Logger
}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	request := map[string]any{
		"method":  req.Method,
		"url":     req.URL.String(),
		"headers": sanitizeHeaders(req.Header),
	}
	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
		if len(body) > 0 {
			request["body"] = decodeBody(body)
		}
	}

	resp, err := dt.base.RoundTrip(req)
	elapsed := time.Since(start)
	if err != nil {
		dt.store(request, map[string]any{"error": err.Error()}, start, elapsed)
		dt.log.Debug("Exchange failed", "method", req.Method, "path", req.URL.Path, "error", err)
		return nil, err
	}

	response := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     sanitizeHeaders(resp.Header),
	}
	// Chat answers stream as text; reading them here would stall the stream.
	if isJSON(resp.Header.Get("Content-Type")) && resp.Body != nil {
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		if readErr != nil {
			response["error"] = readErr.Error()
		} else if len(body) > 0 {
			response["body"] = decodeBody(body)
		}
	}
	dt.store(request, response, start, elapsed)
	dt.log.Debug("Exchange", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "duration", elapsed)
	return resp, nil
}

func (dt *debugTransport) store(request, response map[string]any, start time.Time, elapsed time.Duration) {
	data, err := json.Marshal(map[string]any{
		"http_request":  request,
		"http_response": response,
		"timing": map[string]any{
			"request_time": start.Format(time.RFC3339),
			"duration_ms":  elapsed.Milliseconds(),
		},
	})
	if err != nil {
		logger.Error("Failed to marshal debug data", "error", err)
		return
	}
	dt.service.setCapturedData(string(data))
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// secretFields are masked in captured JSON bodies.
var secretFields = []string{"password", "access_token"}

func decodeBody(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	if obj, ok := v.(map[string]any); ok {
		for _, field := range secretFields {
			if _, ok := obj[field]; ok {
				obj[field] = "***[MASKED]***"
			}
		}
	}
	return v
}

// sanitizeHeaders masks credential headers.
func sanitizeHeaders(headers http.Header) map[string][]string {
	sanitized := make(map[string][]string, len(headers))
	for name, values := range headers {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "authorization") || strings.Contains(lower, "token") || strings.Contains(lower, "cookie") {
			masked := "***[MASKED]***"
			if len(values) > 0 && len(values[0]) > 10 {
				masked = values[0][:10] + masked
			}
			sanitized[name] = []string{masked}
			continue
		}
		sanitized[name] = values
	}
	return sanitized
}

// GetGlobalDebugTransportService returns the registered debug transport service.
func GetGlobalDebugTransportService() (*DebugTransportService, error) {
	return Lookup[*DebugTransportService](GetGlobalRegistry(), "debug-transport")
}
