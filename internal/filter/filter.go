package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/cases"
)

type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpLike       Operator = "like"
	OpGlob       Operator = "glob"
	OpRegex      Operator = "regex"
	// OpInfer picks wildcard or exact matching from the value itself.
	OpInfer Operator = ""
)

// Operators lists every accepted operator name.
var Operators = []Operator{OpEquals, OpContains, OpStartsWith, OpEndsWith, OpLike, OpGlob, OpRegex}

const matchTimeout = 250 * time.Millisecond

var (
	ErrEmptyFilter     = errors.New("filter has no groups")
	ErrEmptyGroup      = errors.New("filter group has no conditions")
	ErrMissingProperty = errors.New("condition has no property")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrInvalidPattern  = errors.New("invalid pattern")
)

// Condition compares one row property against a value.
type Condition struct {
	Property string   `json:"property"`
	Operator Operator `json:"operator,omitempty"`
	Value    string   `json:"value"`
}

// Group is a conjunction of conditions.
type Group []Condition

// Groups is a disjunction of groups: a row matches when any group matches.
type Groups []Group

type predicate struct {
	property string
	test     func(text string) bool
}

// Matcher is a compiled filter. It is safe for concurrent use.
type Matcher struct {
	groups [][]predicate
}

// Compile validates groups and prepares every pattern once.
func Compile(groups Groups) (*Matcher, error) {
	if len(groups) == 0 {
		return nil, ErrEmptyFilter
	}
	m := &Matcher{groups: make([][]predicate, 0, len(groups))}
	for gi, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("group %d: %w", gi, ErrEmptyGroup)
		}
		preds := make([]predicate, 0, len(group))
		for ci, cond := range group {
			pred, err := compileCondition(cond)
			if err != nil {
				return nil, fmt.Errorf("group %d condition %d: %w", gi, ci, err)
			}
			preds = append(preds, pred)
		}
		m.groups = append(m.groups, preds)
	}
	return m, nil
}

// Match evaluates the filter against a header-to-value map. A missing
// property compares as the empty string.
func (m *Matcher) Match(values map[string]string) bool {
	for _, group := range m.groups {
		if matchAll(group, values) {
			return true
		}
	}
	return false
}

func matchAll(group []predicate, values map[string]string) bool {
	for _, pred := range group {
		if !pred.test(lookup(values, pred.property)) {
			return false
		}
	}
	return true
}

func lookup(values map[string]string, property string) string {
	if v, ok := values[property]; ok {
		return v
	}
	want := fold(strings.TrimSpace(property))
	for key, v := range values {
		if fold(strings.TrimSpace(key)) == want {
			return v
		}
	}
	return ""
}

// NormalizeOperator lowercases and trims an operator name.
func NormalizeOperator(op Operator) Operator {
	return Operator(strings.ToLower(strings.TrimSpace(string(op))))
}

func compileCondition(cond Condition) (predicate, error) {
	property := strings.TrimSpace(cond.Property)
	if property == "" {
		return predicate{}, ErrMissingProperty
	}
	value := cond.Value
	folded := fold(value)
	pred := predicate{property: property}
	switch op := NormalizeOperator(cond.Operator); op {
	case OpEquals:
		pred.test = func(text string) bool { return fold(text) == folded }
	case OpContains:
		pred.test = func(text string) bool { return strings.Contains(fold(text), folded) }
	case OpStartsWith:
		pred.test = func(text string) bool { return strings.HasPrefix(fold(text), folded) }
	case OpEndsWith:
		pred.test = func(text string) bool { return strings.HasSuffix(fold(text), folded) }
	case OpLike:
		re, err := compileAnchored(likeToRegex(value))
		if err != nil {
			return predicate{}, err
		}
		pred.test = regexTest(re)
	case OpGlob:
		re, err := compileAnchored(globToRegex(value))
		if err != nil {
			return predicate{}, err
		}
		pred.test = regexTest(re)
	case OpRegex:
		re, err := compile(value)
		if err != nil {
			return predicate{}, err
		}
		pred.test = regexTest(re)
	case OpInfer:
		test, err := inferTest(value)
		if err != nil {
			return predicate{}, err
		}
		pred.test = test
	default:
		return predicate{}, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
	}
	return pred, nil
}

func inferTest(value string) (func(string) bool, error) {
	if !HasWildcard(value) && !HasEscape(value) {
		folded := fold(value)
		return func(text string) bool { return fold(text) == folded }, nil
	}
	re, err := compileAnchored(wildcardToRegex(value))
	if err != nil {
		return nil, err
	}
	return regexTest(re), nil
}

// MatchWildcard applies inferred matching: wildcard when pattern holds an
// unescaped *, % or _, exact case-insensitive equality otherwise. A
// backslash escapes a wildcard character or another backslash.
func MatchWildcard(pattern, text string) bool {
	test, err := inferTest(pattern)
	if err != nil {
		return false
	}
	return test(text)
}

func regexTest(re *regexp2.Regexp) func(string) bool {
	return func(text string) bool {
		ok, err := re.MatchString(text)
		return err == nil && ok
	}
}

func compileAnchored(pattern string) (*regexp2.Regexp, error) {
	return compile(`\A(?:` + pattern + `)\z`)
}

func compile(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase|regexp2.Singleline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

func fold(s string) string {
	return cases.Fold().String(s)
}
