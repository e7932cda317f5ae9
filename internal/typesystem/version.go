package typesystem

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is an API version such as "5.15" or "6.2.1". The zero Version is
// unset.
type Version struct {
	canonical string
}

// ParseVersion parses a dotted version. Up to three numeric components are
// accepted; a leading "v" is optional.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, nil
	}
	v := s
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{canonical: semver.Canonical(v)}, nil
}

// MustParseVersion is ParseVersion for literals known to be valid.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool {
	return v.canonical == ""
}

// Compare returns -1, 0 or +1. Unset versions compare lower than any set one.
func (v Version) Compare(other Version) int {
	switch {
	case v.IsZero() && other.IsZero():
		return 0
	case v.IsZero():
		return -1
	case other.IsZero():
		return 1
	}
	return semver.Compare(v.canonical, other.canonical)
}

func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	return strings.TrimPrefix(v.canonical, "v")
}

// VersionRange is the inclusive [Since, Until] interval in which a rule is
// visible. An unset bound is open.
type VersionRange struct {
	Since Version
	Until Version
}

// ParseVersionRange parses since/until attribute values.
func ParseVersionRange(since, until string) (VersionRange, error) {
	s, err := ParseVersion(since)
	if err != nil {
		return VersionRange{}, err
	}
	u, err := ParseVersion(until)
	if err != nil {
		return VersionRange{}, err
	}
	if !s.IsZero() && !u.IsZero() && s.Compare(u) > 0 {
		return VersionRange{}, fmt.Errorf("since %s is after until %s", s, u)
	}
	return VersionRange{Since: s, Until: u}, nil
}

// Contains reports whether v falls in the range. An unset v means no API
// version is active and every range matches.
func (r VersionRange) Contains(v Version) bool {
	if v.IsZero() {
		return true
	}
	if !r.Since.IsZero() && v.Compare(r.Since) < 0 {
		return false
	}
	if !r.Until.IsZero() && v.Compare(r.Until) > 0 {
		return false
	}
	return true
}

// Overlaps reports whether the two ranges share at least one version.
func (r VersionRange) Overlaps(other VersionRange) bool {
	// [a,b] and [c,d] are disjoint when b < c or d < a.
	if !r.Until.IsZero() && !other.Since.IsZero() && r.Until.Compare(other.Since) < 0 {
		return false
	}
	if !other.Until.IsZero() && !r.Since.IsZero() && other.Until.Compare(r.Since) < 0 {
		return false
	}
	return true
}

// Intersect narrows r to the part that is also in outer. Nested rules use it
// to inherit the range of the node that encloses them.
func (r VersionRange) Intersect(outer VersionRange) VersionRange {
	out := r
	if out.Since.Compare(outer.Since) < 0 {
		out.Since = outer.Since
	}
	if !outer.Until.IsZero() && (out.Until.IsZero() || out.Until.Compare(outer.Until) > 0) {
		out.Until = outer.Until
	}
	return out
}

// IsUnbounded reports whether neither bound is set.
func (r VersionRange) IsUnbounded() bool {
	return r.Since.IsZero() && r.Until.IsZero()
}

func (r VersionRange) String() string {
	switch {
	case r.IsUnbounded():
		return "all versions"
	case r.Until.IsZero():
		return "since " + r.Since.String()
	case r.Since.IsZero():
		return "until " + r.Until.String()
	}
	return r.Since.String() + " to " + r.Until.String()
}
