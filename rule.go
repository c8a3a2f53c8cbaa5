// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// RuleKind identifies how a [Rule] matches members and computes destinations.
type RuleKind int

const (
	// ExactRootMove selects listed paths and places them at the container root.
	ExactRootMove RuleKind = iota + 1

	// ExactPrefixStrip selects listed paths and removes the root token.
	ExactPrefixStrip

	// DirectoryPrefixStrip selects all non-directory members below a prefix
	// and removes the root token.
	DirectoryPrefixStrip

	// DirectoryPrefixStripWithSuffix is [DirectoryPrefixStrip] restricted to
	// member paths ending with a suffix.
	DirectoryPrefixStripWithSuffix
)

var ruleKindNames = map[RuleKind]string{
	ExactRootMove:                  "exact-root-move",
	ExactPrefixStrip:               "exact-prefix-strip",
	DirectoryPrefixStrip:           "directory-prefix-strip",
	DirectoryPrefixStripWithSuffix: "directory-prefix-strip-suffix",
}

// String returns the name used in ruleset files.
func (k RuleKind) String() string {
	if name, ok := ruleKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RuleKind(%d)", int(k))
}

// ParseRuleKind returns the [RuleKind] for name.
func ParseRuleKind(name string) (RuleKind, error) {
	for k, n := range ruleKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidRuleset, "unknown rule kind %q", name)
}

// IsExact returns true for kinds that select a fixed list of paths.
func (k RuleKind) IsExact() bool {
	return k == ExactRootMove || k == ExactPrefixStrip
}

// Rule is one entry of a [Ruleset].
type Rule struct {
	// Kind decides which of the other fields are used.
	Kind RuleKind

	// Paths are the exact member paths for exact rules.
	Paths []string

	// Prefix is the directory prefix for directory rules. It is compared as a
	// plain string prefix.
	Prefix string

	// Suffix is the required path suffix for [DirectoryPrefixStripWithSuffix].
	Suffix string
}

// Validate checks that the fields required by the rule kind are set.
func (r Rule) Validate() error {
	switch r.Kind {
	case ExactRootMove, ExactPrefixStrip:
		if len(r.Paths) == 0 {
			return errors.Wrapf(ErrInvalidRuleset, "%s rule without paths", r.Kind)
		}
		for _, p := range r.Paths {
			if p == "" {
				return errors.Wrapf(ErrInvalidRuleset, "%s rule with empty path", r.Kind)
			}
		}
	case DirectoryPrefixStrip:
		if r.Prefix == "" {
			return errors.Wrapf(ErrInvalidRuleset, "%s rule without prefix", r.Kind)
		}
	case DirectoryPrefixStripWithSuffix:
		if r.Prefix == "" {
			return errors.Wrapf(ErrInvalidRuleset, "%s rule without prefix", r.Kind)
		}
		if r.Suffix == "" {
			return errors.Wrapf(ErrInvalidRuleset, "%s rule without suffix", r.Kind)
		}
	default:
		return errors.Wrapf(ErrInvalidRuleset, "unknown rule kind %d", int(r.Kind))
	}
	return nil
}

// matches reports whether m is selected by the rule. Exact rules compare the
// full path, directory rules never select directory members.
func (r Rule) matches(m *Member) bool {
	switch r.Kind {
	case ExactRootMove, ExactPrefixStrip:
		for _, p := range r.Paths {
			if m.Name == p {
				return true
			}
		}
		return false
	case DirectoryPrefixStrip:
		return !m.IsDir() && strings.HasPrefix(m.Name, r.Prefix)
	case DirectoryPrefixStripWithSuffix:
		return !m.IsDir() && strings.HasPrefix(m.Name, r.Prefix) && strings.HasSuffix(m.Name, r.Suffix)
	}
	return false
}

// Destination computes the container path for a member selected by the rule.
func (r Rule) Destination(name string, root string) string {
	if r.Kind == ExactRootMove {
		return path.Base(name)
	}
	return trimRoot(name, root)
}

// trimRoot removes root from the front of name exactly once.
func trimRoot(name string, root string) string {
	if root != "" && strings.HasPrefix(name, root) {
		return name[len(root):]
	}
	return name
}
