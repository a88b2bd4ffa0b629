// Package version reports the mns build and compares it against published releases.
package version

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Dev is reported when the binary carries no release version.
const Dev = "dev"

// BuildInfo is injected into the binary at link time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

//nolint:gochecknoglobals // set once from main before commands run
var (
	buildMu sync.RWMutex
	build   BuildInfo
)

// Set records the build information of the running binary.
func Set(info BuildInfo) {
	buildMu.Lock()
	defer buildMu.Unlock()
	build = info
}

// Get returns the build information of the running binary.
func Get() BuildInfo {
	buildMu.RLock()
	defer buildMu.RUnlock()
	return build
}

// Current returns the running version, or Dev.
func Current() string {
	if v := Get().Version; v != "" {
		return v
	}
	return Dev
}

// FormatVersion renders build info as "v1.2.3 (commit: abc, built: date)".
func FormatVersion(info BuildInfo) string {
	v, commit, date := info.Version, info.Commit, info.Date
	if v == "" {
		v = Dev
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", v, commit, date)
}

// CompareVersions returns 1 when a is newer than b, -1 when older and 0 when equal.
// Dev builds and bare commit hashes sort before every release.
func CompareVersions(a, b string) int {
	a, b = NormalizeVersion(a), NormalizeVersion(b)

	aDev, bDev := isUnreleased(a), isUnreleased(b)
	switch {
	case aDev && bDev:
		return 0
	case aDev:
		return -1
	case bDev:
		return 1
	}

	pa, pb := parseVersion(a), parseVersion(b)
	for i := 0; i < 3; i++ {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewerVersion reports whether latest is a newer release than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

// NormalizeVersion strips whitespace, "v" prefixes and pre-release or build suffixes.
func NormalizeVersion(v string) string {
	if i := strings.IndexAny(v, "-+"); i != -1 {
		v = v[:i]
	}
	return strings.TrimLeft(strings.TrimSpace(v), "v")
}

func isUnreleased(v string) bool {
	return v == "" || v == Dev || isCommitHash(v)
}

func parseVersion(v string) []int {
	parts := strings.Split(v, ".")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		nums = append(nums, n)
	}
	return nums
}

// isCommitHash matches 7-40 hex characters with at least one letter, so
// purely numeric strings still parse as versions.
func isCommitHash(s string) bool {
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	letter := false
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'f':
			letter = true
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return letter
}
