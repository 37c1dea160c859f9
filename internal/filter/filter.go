// Package filter selects archive entries by "module/filename" path rules.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/woozymasta/pathrules"
)

// ErrInvalidPattern means a filter pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid filter pattern")

// Filter matches "module/filename" paths. Exclude rules are applied after
// include rules, so an exclude always wins over an include for the same path.
// A nil Filter matches everything.
type Filter struct {
	matcher *pathrules.Matcher
}

// New compiles include and exclude patterns. With no include patterns every
// path starts out included. Matching ignores case, as legacy names do.
func New(include, exclude []string) (*Filter, error) {
	rules := make([]pathrules.Rule, 0, len(include)+len(exclude))
	for _, p := range include {
		if p = normalize(p); p != "" {
			rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
		}
	}
	hasInclude := len(rules) > 0
	for _, p := range exclude {
		if p = normalize(p); p != "" {
			rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: p})
		}
	}
	if len(rules) == 0 {
		return nil, nil
	}

	defaultAction := pathrules.ActionInclude
	if hasInclude {
		defaultAction = pathrules.ActionExclude
	}

	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   defaultAction,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return &Filter{matcher: matcher}, nil
}

// Path joins a module and file name into the form patterns are matched against.
func Path(module, name string) string {
	return normalize(module) + "/" + normalize(name)
}

// Match reports whether the entry name inside module is selected.
func (f *Filter) Match(module, name string) bool {
	if f == nil || f.matcher == nil {
		return true
	}
	return f.matcher.Included(Path(module, name), false)
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(p, "./")
}
