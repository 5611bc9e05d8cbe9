package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"adsdash/pkg/adtypes"
)

// Ptr returns a pointer to f, for optional anomaly metrics.
func Ptr(f float64) *float64 {
	return &f
}

// CampaignTable returns a campaign table of n rows. Row i has roas i%7 and cost
// "$1,000.00"; every row has the comparison columns the highlight check reads.
func CampaignTable(n int) adtypes.TablePayload {
	rows := make([]adtypes.Row, n)
	for i := range rows {
		rows[i] = adtypes.Row{
			"campaign":             fmt.Sprintf("Campaign %03d", i),
			"cost":                 "$1,000.00",
			"roas":                 float64(i % 7),
			"roascompare_to":       3.0,
			"conversions":          float64(i),
			"cost_conv":            10.0,
			"cost_conv_compare_to": 10.0,
		}
	}
	return adtypes.TablePayload{
		Columns: []string{"campaign", "cost", "roas", "conversions", "cost_conv"},
		Data:    rows,
	}
}

// CampaignAnomalies returns three anomalies dated date.
func CampaignAnomalies(date string) []adtypes.CampaignAnomaly {
	return []adtypes.CampaignAnomaly{
		{Campaign: "Brand", Date: date, Reason: "ROAS drop", PrevROAS: Ptr(2), CurrROAS: Ptr(1), PrevCPA: Ptr(10), CurrCPA: Ptr(12), PrevConv: Ptr(20), CurrentConv: Ptr(18)},
		{Campaign: "Shopping DE", Date: date, Reason: "CPA spike", PrevROAS: Ptr(3), CurrROAS: Ptr(3.2), PrevCPA: Ptr(8), CurrCPA: Ptr(14), PrevConv: Ptr(40), CurrentConv: Ptr(25)},
		{Campaign: "Generic", Date: date, Reason: "Conversion drop", PrevROAS: Ptr(1.5), CurrROAS: Ptr(1.4), PrevCPA: Ptr(20), CurrCPA: Ptr(21), PrevConv: Ptr(9), CurrentConv: Ptr(3)},
	}
}

// FileHelpers provides utilities for working with test files
type FileHelpers struct{}

// NewFileHelpers creates a new file helpers instance
func NewFileHelpers() *FileHelpers {
	return &FileHelpers{}
}

// CreateTempFile creates a temporary file with given content
func (f *FileHelpers) CreateTempFile(t *testing.T, filename, content string) string {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, filename)

	err := os.WriteFile(filePath, []byte(content), 0644)
	require.NoError(t, err, "Should create temp file successfully")

	return filePath
}

// CreateTempDir creates a temporary directory structure
func (f *FileHelpers) CreateTempDir(t *testing.T, files map[string]string) string {
	tmpDir := t.TempDir()

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)

		// Create directory if needed
		dir := filepath.Dir(filePath)
		if dir != tmpDir {
			err := os.MkdirAll(dir, 0755)
			require.NoError(t, err, "Should create directory %s", dir)
		}

		err := os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err, "Should create file %s", filename)
	}

	return tmpDir
}
