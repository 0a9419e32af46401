package toolchain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrNoVersion is returned when tool output holds no version number.
var ErrNoVersion = errors.New("no version number in output")

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?([-+][0-9A-Za-z.-]+)?`)

// ParseVersion extracts the first version number from a --version banner,
// e.g. "cargo 1.75.0 (1d8b05cdd 2023-11-20)" or "Docker version 24.0.7, build afdd53b".
func ParseVersion(output string) (*semver.Version, error) {
	m := versionPattern.FindString(output)
	if m == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoVersion, firstLine(output))
	}
	return parseSemver(m)
}

// CompareVersions compares two version strings using semver.
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) (int, error) {
	av, err := parseSemver(a)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", a, err)
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", b, err)
	}
	return av.Compare(bv), nil
}

// AtLeast reports whether v is min or newer.
func AtLeast(v *semver.Version, min string) (bool, error) {
	c, err := CompareVersions(v.String(), min)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
