// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

// Selection is a member admitted to the container together with its destination.
type Selection struct {
	// Member is the selected source member.
	Member *Member

	// Destination is the path of the member inside the container.
	Destination string

	// Rule is the rule that claimed the member.
	Rule Rule
}

// Selector decides which members of a source archive are admitted to the
// container and computes their destination paths.
type Selector struct {
	ruleset Ruleset
	logger  logger
}

// NewSelector returns a [Selector] applying rs. A nil logger discards all messages.
func NewSelector(rs Ruleset, l logger) *Selector {
	if l == nil {
		l = defaultLogger
	}
	return &Selector{ruleset: rs, logger: l}
}

// Classify returns the destination of the member m of src under the first
// rule selecting it. The second return value is false if m is not admitted to
// the container: no rule selects it, it is shadowed by a later member of the
// same name, or it has no readable content.
func (s *Selector) Classify(src *SourceArchive, m *Member) (string, bool) {
	if m == nil || src.Shadowed(m) || src.Resolve(m) == nil {
		return "", false
	}
	for _, r := range s.ruleset.Rules {
		if r.matches(m) {
			return r.Destination(m.Name, s.ruleset.Root), true
		}
	}
	return "", false
}

// Plan returns the admitted members of src in container order: rules in
// ruleset order, exact rules in list order and directory rules in archive
// order. Listed paths missing from src are logged as warnings and skipped.
func (s *Selector) Plan(src *SourceArchive) []Selection {
	var plan []Selection
	s.walk(src, true, func(r Rule, m *Member) {
		plan = append(plan, Selection{
			Member:      m,
			Destination: r.Destination(m.Name, s.ruleset.Root),
			Rule:        r,
		})
	})
	return plan
}

// Count returns the number of members [Selector.Plan] admits without
// computing destinations or logging warnings.
func (s *Selector) Count(src *SourceArchive) int {
	n := 0
	s.walk(src, false, func(Rule, *Member) {
		n++
	})
	return n
}

// Missing returns the listed exact paths that are not present in src.
func (s *Selector) Missing(src *SourceArchive) []string {
	var missing []string
	for _, r := range s.ruleset.Rules {
		if !r.Kind.IsExact() {
			continue
		}
		for _, p := range r.Paths {
			if _, ok := src.Lookup(p); !ok {
				missing = append(missing, p)
			}
		}
	}
	return missing
}

// walk calls fn for every admitted member in container order. A member is
// admitted at most once, by the first rule selecting it.
func (s *Selector) walk(src *SourceArchive, warn bool, fn func(Rule, *Member)) {
	claimed := make(map[*Member]bool)

	admit := func(r Rule, m *Member) {
		if claimed[m] || src.Resolve(m) == nil {
			return
		}
		claimed[m] = true
		fn(r, m)
	}

	for _, r := range s.ruleset.Rules {
		if r.Kind.IsExact() {
			for _, p := range r.Paths {
				m, ok := src.Lookup(p)
				if !ok {
					if warn {
						s.logger.Warn("member not found in source archive", "path", p, "rule", r.Kind.String())
					}
					continue
				}
				if warn && src.Resolve(m) == nil {
					s.logger.Warn("member has no readable content", "path", p, "rule", r.Kind.String())
				}
				admit(r, m)
			}
			continue
		}

		for _, m := range src.Members() {
			if src.Shadowed(m) || !r.matches(m) {
				continue
			}
			admit(r, m)
		}
	}
}
