package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, GitCommit, BuildDate
	SetBuildInfo(v, commit, date)
	t.Cleanup(func() { SetBuildInfo(oldV, oldC, oldD) })
}

func TestGetFormattedVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		date    string
		want    string
	}{
		{name: "development build", version: "0.1.0", commit: "unknown", date: "unknown", want: "adsdash v0.1.0"},
		{name: "release build", version: "1.2.3", commit: "abcdef1234567", date: "2026-03-01", want: "adsdash v1.2.3, commit abcdef1, built 2026-03-01"},
		{name: "invalid version", version: "nope", commit: "unknown", date: "unknown", want: "adsdash vnope (invalid version)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuildInfo(t, tt.version, tt.commit, tt.date)
			assert.Equal(t, tt.want, GetFormattedVersion())
		})
	}
}

func TestGetDetailedVersion(t *testing.T) {
	withBuildInfo(t, "0.3.0+42.abc", "abc", "2026-01-01")
	out := GetDetailedVersion()
	assert.Contains(t, out, "adsdash v0.3.0+42.abc")
	assert.Contains(t, out, "Build Metadata: 42.abc")
	assert.Contains(t, out, "Platform: ")
}

func TestIsPrerelease(t *testing.T) {
	withBuildInfo(t, "0.2.0-beta.1", "unknown", "unknown")
	assert.True(t, IsPrerelease())
	assert.True(t, IsDevelopment())

	SetBuildInfo("0.2.0", "abc", "2026-01-01")
	assert.False(t, IsPrerelease())
	assert.False(t, IsDevelopment())
}

func TestCompareVersions(t *testing.T) {
	c, err := CompareVersions("0.1.0", "0.2.0")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = CompareVersions("1.0.0", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	_, err = CompareVersions("x", "1.0.0")
	assert.Error(t, err)
}

func TestSatisfies(t *testing.T) {
	withBuildInfo(t, "0.4.1", "unknown", "unknown")

	ok, err := Satisfies(">= 0.4")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Satisfies("< 0.4")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Satisfies("not a constraint !!")
	assert.Error(t, err)
}

func TestGetBuildTime(t *testing.T) {
	withBuildInfo(t, "0.1.0", "unknown", "2026-02-03")
	bt, err := GetBuildTime()
	require.NoError(t, err)
	assert.Equal(t, 2026, bt.Year())

	SetBuildInfo("0.1.0", "unknown", "unknown")
	_, err = GetBuildTime()
	assert.Error(t, err)
}
