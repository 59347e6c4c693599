// Package rules derives repository naming conventions from CI configuration.
// It scans .gitlab-ci.yml text for a naming-check stage and extracts branch
// and commit message patterns using an ordered list of matcher strategies,
// first match wins per field. Extraction never fails: malformed config or an
// uncompilable pattern degrades to "no rules".
package rules

import (
	"regexp"
)

// Set holds the naming rules derived from one CI config snapshot. It is
// recomputed per workflow invocation and never cached across runs.
type Set struct {
	// HasRules is true when a recognized naming-check stage exists.
	HasRules bool

	// BranchPattern and BranchRegex are always both set or both empty.
	BranchPattern string
	BranchRegex   *regexp.Regexp

	// CommitPattern and CommitRegex are always both set or both empty.
	CommitPattern string
	CommitRegex   *regexp.Regexp

	// AllowedTypes lists permitted branch type prefixes (feature, bugfix, ...).
	AllowedTypes []string

	BranchRequiresTicket bool
	CommitRequiresTicket bool
}

// DefaultTypes are the branch type prefixes assumed when the CI config does
// not constrain them.
var DefaultTypes = []string{"feature", "bugfix", "hotfix", "release", "chore", "docs"}

// TypeAllowed reports whether typ is a permitted branch type prefix.
func (s Set) TypeAllowed(typ string) bool {
	types := s.AllowedTypes
	if len(types) == 0 {
		types = DefaultTypes
	}
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}
