// Package match compiles static-model when-clauses and regex literals into
// cheap runtime matchers, built once per snapshot load and reused across
// every request the static engine serves.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/llm-lab/mockllm/internal/config"
)

// Matcher evaluates a single condition against the last user message text.
type Matcher interface {
	Match(text string) bool
}

// When is the compiled form of a config.When combinator.
type When struct {
	Any  []Matcher
	All  []Matcher
	None []Matcher
}

// Evaluate reports whether text satisfies the combinator: at least one of
// Any (vacuously true when empty), all of All, and none of None.
func (w *When) Evaluate(text string) bool {
	anyOK := len(w.Any) == 0
	for _, m := range w.Any {
		if m.Match(text) {
			anyOK = true
			break
		}
	}
	allOK := true
	for _, m := range w.All {
		if !m.Match(text) {
			allOK = false
			break
		}
	}
	noneOK := true
	for _, m := range w.None {
		if m.Match(text) {
			noneOK = false
			break
		}
	}
	return anyOK && allOK && noneOK
}

type containsMatcher struct {
	needle        string
	caseSensitive bool
}

func (m containsMatcher) Match(text string) bool {
	if m.caseSensitive {
		return strings.Contains(text, m.needle)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(m.needle))
}

type equalsMatcher struct {
	value         string
	caseSensitive bool
}

func (m equalsMatcher) Match(text string) bool {
	if m.caseSensitive {
		return text == m.value
	}
	return strings.EqualFold(text, m.value)
}

type startsWithMatcher struct {
	prefix        string
	caseSensitive bool
}

func (m startsWithMatcher) Match(text string) bool {
	if m.caseSensitive {
		return strings.HasPrefix(text, m.prefix)
	}
	return strings.HasPrefix(strings.ToLower(text), strings.ToLower(m.prefix))
}

type endsWithMatcher struct {
	suffix        string
	caseSensitive bool
}

func (m endsWithMatcher) Match(text string) bool {
	if m.caseSensitive {
		return strings.HasSuffix(text, m.suffix)
	}
	return strings.HasSuffix(strings.ToLower(text), strings.ToLower(m.suffix))
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// CompileCondition turns one config.Condition into a Matcher.
func CompileCondition(c config.Condition) (Matcher, error) {
	caseSensitive := true
	if c.CaseSensitive != nil {
		caseSensitive = *c.CaseSensitive
	}
	switch {
	case c.Contains != "":
		return containsMatcher{needle: c.Contains, caseSensitive: caseSensitive}, nil
	case c.Equals != "":
		return equalsMatcher{value: c.Equals, caseSensitive: caseSensitive}, nil
	case c.StartsWith != "":
		return startsWithMatcher{prefix: c.StartsWith, caseSensitive: caseSensitive}, nil
	case c.EndsWith != "":
		return endsWithMatcher{suffix: c.EndsWith, caseSensitive: caseSensitive}, nil
	case c.Regex != "":
		re, err := compileRegexLiteral(c.Regex)
		if err != nil {
			return nil, fmt.Errorf("regex condition: %w", err)
		}
		return regexMatcher{re: re}, nil
	default:
		return nil, fmt.Errorf("condition has no recognized field set")
	}
}

// compileRegexLiteral parses a "/pattern/flags" literal, recognizing only
// the "i" flag, and compiles it with Go's regexp package.
func compileRegexLiteral(source string) (*regexp.Regexp, error) {
	pattern, caseInsensitive, err := parseRegexLiteral(source)
	if err != nil {
		return nil, err
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

func parseRegexLiteral(source string) (pattern string, caseInsensitive bool, err error) {
	if !strings.HasPrefix(source, "/") {
		return "", false, fmt.Errorf("regex must be in /pattern/flags form, got %q", source)
	}
	escaped := false
	lastSlash := -1
	for i := 1; i < len(source); i++ {
		ch := source[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '/' {
			lastSlash = i
		}
	}
	if lastSlash < 0 {
		return "", false, fmt.Errorf("regex literal %q is missing its closing /", source)
	}
	pattern = source[1:lastSlash]
	flags := source[lastSlash+1:]
	for _, f := range flags {
		switch f {
		case 'i':
			caseInsensitive = true
		case ' ', '\t':
		default:
			return "", false, fmt.Errorf("unsupported regex flag %q in %q", f, source)
		}
	}
	return pattern, caseInsensitive, nil
}

// CompileWhen compiles an optional config.When, returning nil for a nil input.
func CompileWhen(w *config.When) (*When, error) {
	if w == nil {
		return nil, nil
	}
	out := &When{}
	var err error
	if out.Any, err = compileConditions(w.Any); err != nil {
		return nil, fmt.Errorf("any: %w", err)
	}
	if out.All, err = compileConditions(w.All); err != nil {
		return nil, fmt.Errorf("all: %w", err)
	}
	if out.None, err = compileConditions(w.None); err != nil {
		return nil, fmt.Errorf("none: %w", err)
	}
	return out, nil
}

func compileConditions(conds []config.Condition) ([]Matcher, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	out := make([]Matcher, 0, len(conds))
	for i, c := range conds {
		m, err := CompileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
