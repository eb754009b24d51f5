// Package meta implements rule driven projection of metadata object
// graphs before they are persisted as sidecar files.
package meta

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Rule decides whether a dotted key path is included in the projection.
// Rules are declared broad-first: a rule declared later overrides any
// earlier rule matching the same path.
type Rule struct {
	Include bool
	pattern *regexp.Regexp
}

func (r Rule) Match(keyPath string) bool {
	return r.pattern.MatchString(keyPath)
}

// CompileRules parses a list of rule strings. A leading "!" marks an
// exclude rule, a leading "\!" escapes a literal bang in an include
// pattern. The remainder is a glob over dotted key paths: "*" matches
// within a single path segment, "**" matches across segments.
func CompileRules(patterns []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(patterns))

	for _, raw := range patterns {
		var (
			include = true
			pattern = raw
		)

		switch {
		case strings.HasPrefix(raw, "!"):
			include = false
			pattern = raw[1:]
		case strings.HasPrefix(raw, `\!`):
			pattern = raw[1:]
		}

		re, err := compileGlob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid field rule %q", raw)
		}

		rules = append(rules, Rule{Include: include, pattern: re})
	}

	return rules, nil
}

// compileGlob turns a key path glob into an anchored regexp. "**" is
// replaced first so its asterisks are not consumed by the single segment
// "*" replacement.
func compileGlob(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	for i := 0; i < len(glob); {
		if strings.HasPrefix(glob[i:], "**") {
			b.WriteString(".*")
			i += 2
			continue
		}
		if glob[i] == '*' {
			b.WriteString("[^.]+")
			i++
			continue
		}

		b.WriteString(regexp.QuoteMeta(string(glob[i])))
		i++
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}

// included reports whether the key path survives the rule list. Later
// declared rules take precedence, so evaluation walks the list from the
// end and the first matching rule decides. No match means excluded.
func included(rules []Rule, keyPath string) bool {
	for i := len(rules) - 1; i >= 0; i-- {
		if rules[i].Match(keyPath) {
			return rules[i].Include
		}
	}

	return false
}
