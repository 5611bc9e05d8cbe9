// Package storage provides the key/value "local storage" that adsdash uses to keep
// client-side state (session, table filters, conversations, panel dates) between runs.
package storage

import (
	"encoding/json"
	"fmt"
)

// Keys used by adsdash. The names match the keys of the browser client so that
// exported state stays recognisable.
const (
	KeyAuthToken                = "auth_token"
	KeyAuthUser                 = "auth_user"
	KeyConversations            = "agent_conversations"
	KeyAnomalyTargetDate        = "anomaly_target_date"
	KeyProductAnomalyTargetDate = "product_anomaly_target_date"
	KeySEOCTRThreshold          = "seo_ctr_threshold"
	KeySEOStartDate             = "seo_start_date"
	KeySEOEndDate               = "seo_end_date"
	KeySEORowLimit              = "seo_row_limit"
	KeySEOPagesData             = "seo_pages_data"
)

// FiltersKey returns the key holding the filter conditions of a table.
func FiltersKey(table string) string {
	return table + "_filters"
}

// SortKey returns the key holding the sort configuration of a table.
func SortKey(table string) string {
	return table + "_sort"
}

// Store is a string key/value store. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error

	// Close releases the underlying resources.
	Close() error
}

// GetJSON decodes the JSON value stored under key into v.
// It reports false when the key is missing or the stored value is not valid JSON for v,
// so callers can treat corrupt entries the same way as absent ones.
func GetJSON(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return false, err
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.Set(key, string(data))
}
