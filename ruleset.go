// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultRoot is the root token trimmed from destination paths of the builtin rulesets.
const DefaultRoot = "cangjie/"

// Ruleset is an ordered list of rules sharing one root token. Rules are
// applied in order and a member is claimed by the first rule selecting it.
type Ruleset struct {
	// Root is removed once from the front of destination paths.
	Root string

	// Rules in evaluation order.
	Rules []Rule
}

// Validate checks every rule of the ruleset.
func (rs Ruleset) Validate() error {
	if len(rs.Rules) == 0 {
		return errors.Wrap(ErrInvalidRuleset, "ruleset without rules")
	}
	for i, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "rule %d", i)
		}
	}
	return nil
}

// DefaultRuleset returns the ruleset that packs the linter and formatter
// of a Cangjie SDK together with their shared libraries, configuration and
// standard library modules.
func DefaultRuleset() Ruleset {
	return Ruleset{
		Root: DefaultRoot,
		Rules: []Rule{
			{
				Kind: ExactRootMove,
				Paths: []string{
					"cangjie/tools/lib/libcjlint.so",
					"cangjie/tools/lib/libcangjie-lsp.so",
					"cangjie/runtime/lib/linux_x86_64_llvm/libsecurec.so",
					"cangjie/runtime/lib/linux_x86_64_llvm/libcangjie-runtime.so",
				},
			},
			{
				Kind: ExactPrefixStrip,
				Paths: []string{
					"cangjie/tools/bin/cjlint",
					"cangjie/tools/bin/cjfmt",
				},
			},
			{Kind: DirectoryPrefixStrip, Prefix: "cangjie/tools/config"},
			{Kind: DirectoryPrefixStripWithSuffix, Prefix: "cangjie/modules/linux_x86_64_llvm", Suffix: ".cjo"},
		},
	}
}

// RuntimeLibraryRuleset returns a variant of [DefaultRuleset] that keeps the
// runtime libraries in their directory and selects all of them by suffix.
func RuntimeLibraryRuleset() Ruleset {
	return Ruleset{
		Root: DefaultRoot,
		Rules: []Rule{
			{
				Kind: ExactRootMove,
				Paths: []string{
					"cangjie/tools/lib/libcjlint.so",
					"cangjie/tools/lib/libcangjie-lsp.so",
				},
			},
			{
				Kind: ExactPrefixStrip,
				Paths: []string{
					"cangjie/tools/bin/cjlint",
					"cangjie/tools/bin/cjfmt",
				},
			},
			{Kind: DirectoryPrefixStrip, Prefix: "cangjie/tools/config"},
			{Kind: DirectoryPrefixStripWithSuffix, Prefix: "cangjie/modules/linux_x86_64_llvm", Suffix: ".cjo"},
			{Kind: DirectoryPrefixStripWithSuffix, Prefix: "cangjie/runtime/lib/linux_x86_64_llvm", Suffix: ".so"},
		},
	}
}

var builtinRulesets = map[string]func() Ruleset{
	"default":      DefaultRuleset,
	"runtime-libs": RuntimeLibraryRuleset,
}

// RulesetNames returns the names of the builtin rulesets in sorted order.
func RulesetNames() []string {
	names := make([]string, 0, len(builtinRulesets))
	for name := range builtinRulesets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupRuleset returns the builtin ruleset called name.
func LookupRuleset(name string) (Ruleset, error) {
	fn, ok := builtinRulesets[name]
	if !ok {
		return Ruleset{}, errors.Wrapf(ErrInvalidRuleset, "unknown builtin ruleset %q", name)
	}
	return fn(), nil
}

// rulesetFile is the YAML representation of a [Ruleset]
type rulesetFile struct {
	Root  string     `yaml:"root"`
	Rules []ruleFile `yaml:"rules"`
}

// ruleFile is the YAML representation of a [Rule]
type ruleFile struct {
	Kind   string   `yaml:"kind"`
	Paths  []string `yaml:"paths,omitempty"`
	Prefix string   `yaml:"prefix,omitempty"`
	Suffix string   `yaml:"suffix,omitempty"`
}

// LoadRuleset decodes and validates a YAML ruleset from r.
//
//	root: cangjie/
//	rules:
//	  - kind: exact-root-move
//	    paths: [cangjie/tools/lib/libcjlint.so]
//	  - kind: directory-prefix-strip-suffix
//	    prefix: cangjie/modules/linux_x86_64_llvm
//	    suffix: .cjo
func LoadRuleset(r io.Reader) (Ruleset, error) {
	var f rulesetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Ruleset{}, errors.Wrapf(ErrInvalidRuleset, "cannot decode ruleset: %v", err)
	}

	rs := Ruleset{Root: f.Root}
	for _, rf := range f.Rules {
		kind, err := ParseRuleKind(rf.Kind)
		if err != nil {
			return Ruleset{}, err
		}
		rs.Rules = append(rs.Rules, Rule{
			Kind:   kind,
			Paths:  rf.Paths,
			Prefix: rf.Prefix,
			Suffix: rf.Suffix,
		})
	}

	if err := rs.Validate(); err != nil {
		return Ruleset{}, err
	}
	return rs, nil
}

// LoadRulesetFile reads a YAML ruleset from the file at name.
func LoadRulesetFile(name string) (Ruleset, error) {
	f, err := os.Open(name)
	if err != nil {
		return Ruleset{}, errors.Wrap(err, "cannot open ruleset file")
	}
	defer f.Close()
	return LoadRuleset(f)
}

// WriteYAML encodes the ruleset in the format read by [LoadRuleset].
func (rs Ruleset) WriteYAML(w io.Writer) error {
	f := rulesetFile{Root: rs.Root}
	for _, r := range rs.Rules {
		f.Rules = append(f.Rules, ruleFile{
			Kind:   r.Kind.String(),
			Paths:  r.Paths,
			Prefix: r.Prefix,
			Suffix: r.Suffix,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return errors.Wrap(err, "cannot encode ruleset")
	}
	return enc.Close()
}
