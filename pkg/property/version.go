package property

import (
	"fmt"
	"strconv"
	"strings"
)

// minorSpan weights the major component when ordering versions.
const minorSpan = 100000

// SemVer is a two-part "major.minor" version.
type SemVer struct {
	Major int
	Minor int
}

// ParseVersion parses a "major.minor" string. Malformed input is a VALIDATION error.
func ParseVersion(s string) (SemVer, error) {
	majorRaw, minorRaw, ok := strings.Cut(s, ".")
	if !ok {
		return SemVer{}, NewValidationf("Invalid version format: %s", s)
	}
	major, err := strconv.Atoi(majorRaw)
	if err != nil || major < 0 {
		return SemVer{}, NewValidationf("Invalid version format: %s", s)
	}
	minor, err := strconv.Atoi(minorRaw)
	if err != nil || minor < 0 {
		return SemVer{}, NewValidationf("Invalid version format: %s", s)
	}
	return SemVer{Major: major, Minor: minor}, nil
}

// Score orders versions: major*100000 + minor.
func (v SemVer) Score() int {
	return v.Major*minorSpan + v.Minor
}

// Next returns the version with the minor component incremented.
func (v SemVer) Next() SemVer {
	return SemVer{Major: v.Major, Minor: v.Minor + 1}
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// NextVersion returns the successor of the highest version in versions.
// Empty input is NOT_FOUND; any malformed entry is VALIDATION.
func NextVersion(versions []string) (string, error) {
	if len(versions) == 0 {
		return "", NewNotFound(MsgUnknownProperty)
	}
	var best SemVer
	for i, raw := range versions {
		v, err := ParseVersion(raw)
		if err != nil {
			return "", err
		}
		if i == 0 || v.Score() > best.Score() {
			best = v
		}
	}
	return best.Next().String(), nil
}
