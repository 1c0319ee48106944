// Package version compares launcher and application version strings.
//
// Versions are a dot-separated numeric prefix optionally followed by a
// "-tag" suffix. Parsing never fails: malformed numeric segments read as 0.
// A version of the form "0.0.0-<tag>" is a branch build and is never
// eligible as an update target.
package version

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Lowest is the version assumed when none is reported.
const Lowest = "0.0.0"

// Version is a parsed version string.
type Version struct {
	Segments []int
	Tag      string
	Raw      string
	hasTag   bool
}

// Parse splits s into numeric segments and an optional tag.
func Parse(s string) Version {
	s = strings.TrimSpace(s)
	v := Version{Raw: s}

	prefix := s
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		prefix = s[:idx]
		v.Tag = s[idx+1:]
		v.hasTag = true
	}

	for _, part := range strings.Split(prefix, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			n = 0
		}
		v.Segments = append(v.Segments, n)
	}
	return v
}

// String returns the raw input.
func (v Version) String() string {
	return v.Raw
}

// HasTag reports whether the version carries a "-tag" suffix.
func (v Version) HasTag() bool {
	return v.hasTag
}

// IsBranch reports whether v is a 0.0.0-<tag> development build.
func (v Version) IsBranch() bool {
	return v.hasTag && strings.HasPrefix(v.Raw, Lowest+"-")
}

// IsPrerelease reports whether v has a tag and is not a branch build.
func (v Version) IsPrerelease() bool {
	return v.hasTag && !v.IsBranch()
}

// Compare compares two versions.
// Returns:
//
//	-1 if v < other
//	 0 if v == other
//	 1 if v > other
//
// A release outranks any tagged version with the same numeric prefix.
func (v Version) Compare(other Version) int {
	n := len(v.Segments)
	if len(other.Segments) > n {
		n = len(other.Segments)
	}
	for i := 0; i < n; i++ {
		if c := compareInt(v.segment(i), other.segment(i)); c != 0 {
			return c
		}
	}
	return compareTag(v, other)
}

// LessThan returns true if v < other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan returns true if v > other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// Equal returns true if v == other.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

func (v Version) segment(i int) int {
	if i < len(v.Segments) {
		return v.Segments[i]
	}
	return 0
}

// Compare compares two version strings. See Version.Compare.
func Compare(a, b string) int {
	return Parse(a).Compare(Parse(b))
}

// IsBranch reports whether s is a branch build version.
func IsBranch(s string) bool {
	return Parse(s).IsBranch()
}

// IsPrerelease reports whether s is a pre-release version.
func IsPrerelease(s string) bool {
	return Parse(s).IsPrerelease()
}

// Max returns the greatest eligible candidate. Branch versions are always
// skipped; pre-releases only count when includePrerelease is set.
func Max(candidates []string, includePrerelease bool) (string, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		v := Parse(c)
		if v.Raw == "" || v.IsBranch() {
			continue
		}
		if !includePrerelease && v.IsPrerelease() {
			continue
		}
		if !found || v.GreaterThan(best) {
			best = v
			found = true
		}
	}
	return best.Raw, found
}

// IsStrictSemver reports whether s is a well-formed semantic version.
// Ordering never depends on this; it only flags lenient input.
func IsStrictSemver(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return semver.IsValid(s) && semver.Canonical(s) == strings.SplitN(s, "+", 2)[0]
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareTag(a, b Version) int {
	// No tag is greater than any tag
	switch {
	case !a.hasTag && !b.hasTag:
		return 0
	case !a.hasTag:
		return 1
	case !b.hasTag:
		return -1
	}
	// Byte-wise comparison for tags
	return strings.Compare(a.Tag, b.Tag)
}
