package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

//nolint:paralleltest // mutates the process-wide build info
func TestSetAndCurrent(t *testing.T) {
	orig := Get()
	t.Cleanup(func() { Set(orig) })

	Set(BuildInfo{})
	assert.Equal(t, Dev, Current())

	Set(BuildInfo{Version: "v0.3.0", Commit: "abc1234"})
	assert.Equal(t, "v0.3.0", Current())
	assert.Equal(t, "abc1234", Get().Commit)
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"all fields", BuildInfo{Version: "v1.2.3", Commit: "abc1234", Date: "2024-01-15"}, "v1.2.3 (commit: abc1234, built: 2024-01-15)"},
		{"empty", BuildInfo{}, "dev (commit: unknown, built: unknown)"},
		{"no version", BuildInfo{Commit: "def5678", Date: "2024-02-20"}, "dev (commit: def5678, built: 2024-02-20)"},
		{"no commit", BuildInfo{Version: "v2.0.0", Date: "2024-03-25"}, "v2.0.0 (commit: unknown, built: 2024-03-25)"},
		{"no date", BuildInfo{Version: "v3.0.0", Commit: "ghi9012"}, "v3.0.0 (commit: ghi9012, built: unknown)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatVersion(tt.info))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.2.0", "1.1.9", 1},
		{"1.2", "1.2.1", -1},
		{"v2.0.0-rc1", "2.0.0", 0},
		{"dev", "0.0.1", -1},
		{"0.0.1", "abc1234", 1},
		{"dev", "", 0},
		{"10.0.0", "9.9.9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
		})
	}
}

func TestIsNewerVersion(t *testing.T) {
	t.Parallel()
	assert.True(t, IsNewerVersion("v0.1.0", "v0.2.0"))
	assert.False(t, IsNewerVersion("v0.2.0", "v0.2.0"))
	assert.True(t, IsNewerVersion("dev", "v0.0.1"))
}

func TestNormalizeVersion(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.2.3", NormalizeVersion(" v1.2.3+build.7 "))
	assert.Equal(t, "1.0.0", NormalizeVersion("1.0.0-dirty"))
}

func TestIsCommitHash(t *testing.T) {
	t.Parallel()
	assert.True(t, isCommitHash("abc1234"))
	assert.True(t, isCommitHash("ABCDEF0123"))
	assert.False(t, isCommitHash("1234567"))
	assert.False(t, isCommitHash("abc12"))
	assert.False(t, isCommitHash("xyz1234"))
}
