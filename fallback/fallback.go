// Package fallback implements the Offline Fallback (C9): a pure,
// deterministic local suggestion source used whenever the remote client is
// unusable (not configured, or the last call failed with Offline/Timeout).
package fallback

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// transformation is one regex-based softening rule loaded from rules.yaml.
type transformation struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

type ruleFile struct {
	Transformations []transformation `yaml:"transformations"`
}

// Source produces a single deterministic suggestion for the current text.
// All state is read-only after construction, so a Source is safe for
// concurrent use.
type Source struct {
	compiled []compiledRule
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

// New loads and compiles the bundled rule set. A malformed bundled asset is
// a programmer error (the asset ships with the binary), so New panics —
// mirroring how this module's teacher treats compile-time template/schema
// assets (agents/codegen/templates.go).
func New() *Source {
	var rf ruleFile
	if err := yaml.Unmarshal(rulesYAML, &rf); err != nil {
		panic(fmt.Sprintf("fallback: bundled rules.yaml is invalid: %v", err))
	}
	s := &Source{}
	for _, t := range rf.Transformations {
		s.compiled = append(s.compiled, compiledRule{
			re:          regexp.MustCompile(t.Pattern),
			replacement: t.Replacement,
		})
	}
	return s
}

// Suggest returns one short, deterministic suggestion derived from text, or
// "" if no rule applies and the text otherwise needs no help. It never
// performs network I/O and never returns different output for the same
// input (§4.9).
func (s *Source) Suggest(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	softened := trimmed
	for _, r := range s.compiled {
		if r.re.MatchString(softened) {
			softened = r.re.ReplaceAllString(softened, r.replacement)
			break
		}
	}
	softened = capitalizeFirst(softened)
	if needsTerminator(softened) {
		softened += "."
	}

	if softened == trimmed {
		// Capitalization, termination and softening all no-ops: nothing
		// worth surfacing to the user.
		return ""
	}
	return softened
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}

func needsTerminator(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	switch last {
	case '.', '!', '?':
		return false
	default:
		return true
	}
}

