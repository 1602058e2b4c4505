package flowcontrol

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
)

// Resolver looks up execution variables.
type Resolver interface {
	Lookup(name string) (string, bool)
}

// MapResolver is a Resolver over a plain map.
type MapResolver map[string]string

// Lookup implements Resolver.
func (m MapResolver) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

//nolint:gochecknoglobals // compiled once
var tokenPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// Substitute replaces ${name} tokens with their values. Undefined tokens are kept.
func Substitute(text string, r Resolver) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-1])
		if v, ok := r.Lookup(name); ok {
			return v
		}
		return token
	})
}

// Operator is a filter comparison.
type Operator string

// Filter operators.
const (
	OpEqual         Operator = "="
	OpNotEqual      Operator = "!="
	OpGreater       Operator = ">"
	OpGreaterEqual  Operator = ">="
	OpLess          Operator = "<"
	OpLessEqual     Operator = "<="
	OpContain       Operator = "contain"
	OpNotContain    Operator = "not contain"
	OpStartWith     Operator = "start with"
	OpNotStartWith  Operator = "not start with"
	OpEndWith       Operator = "end with"
	OpNotEndWith    Operator = "not end with"
	OpMatch         Operator = "match"
	OpIs            Operator = "is"
	OpIsNot         Operator = "is not"
	OpIn            Operator = "in"
	OpNotIn         Operator = "not in"
	OpIsDefined     Operator = "is defined"
	OpIsUndefined   Operator = "is undefined"
	OpIsEmpty       Operator = "is empty"
	OpIsNotEmpty    Operator = "is not empty"
	opLiteral       Operator = "literal"
)

const conditionJoiner = "&"

// word operators need surrounding spaces; symbols do not
//
//nolint:gochecknoglobals // lookup tables
var (
	wordOperators = []Operator{
		OpNotStartWith, OpNotEndWith, OpNotContain, OpNotIn, OpIsNot,
		OpStartWith, OpEndWith, OpContain, OpMatch, OpIn, OpIs,
	}
	symbolOperators = []Operator{OpNotEqual, OpGreaterEqual, OpLessEqual, OpEqual, OpGreater, OpLess}
	unaryOperators  = []Operator{OpIsNotEmpty, OpIsUndefined, OpIsDefined, OpIsEmpty}
)

// Condition is one comparison of a filter.
type Condition struct {
	Subject  string
	Operator Operator
	Value    string
}

// Filter is a conjunction of conditions. The zero Filter matches everything.
type Filter struct {
	raw        string
	conditions []Condition
}

// ParseFilter parses conditions joined by "&".
func ParseFilter(text string) (Filter, error) {
	f := Filter{raw: strings.TrimSpace(text)}
	if f.raw == "" {
		return f, nil
	}
	for _, part := range strings.Split(f.raw, conditionJoiner) {
		part = strings.TrimSpace(part)
		if part == "" {
			return Filter{}, fmt.Errorf("%q: empty condition: %w", text, tabulaerrors.ErrInvalidFilter)
		}
		c, err := parseCondition(part)
		if err != nil {
			return Filter{}, fmt.Errorf("%q: %w", text, err)
		}
		f.conditions = append(f.conditions, c)
	}
	return f, nil
}

func parseCondition(text string) (Condition, error) {
	lower := asciiLower(text)

	for _, op := range unaryOperators {
		suffix := " " + string(op)
		if strings.HasSuffix(lower, suffix) {
			subject := strings.TrimSpace(text[:len(text)-len(suffix)])
			if subject == "" {
				break
			}
			return Condition{Subject: subject, Operator: op}, nil
		}
	}

	if op, at, width, ok := findOperator(lower); ok {
		subject := strings.TrimSpace(text[:at])
		value := strings.TrimSpace(text[at+width:])
		if subject == "" {
			return Condition{}, fmt.Errorf("missing subject for %q: %w", op, tabulaerrors.ErrInvalidFilter)
		}
		return Condition{Subject: subject, Operator: op, Value: value}, nil
	}

	// a single token: true, false, or a variable holding one
	if strings.ContainsAny(strings.TrimSpace(text), " \t") {
		return Condition{}, fmt.Errorf("no operator in %q: %w", text, tabulaerrors.ErrInvalidFilter)
	}
	return Condition{Subject: strings.TrimSpace(text), Operator: opLiteral}, nil
}

// findOperator returns the leftmost operator in lower. Longer operators win ties.
func findOperator(lower string) (op Operator, at, width int, ok bool) {
	at = -1
	consider := func(candidate Operator, idx, w int) {
		if idx < 0 {
			return
		}
		if at < 0 || idx < at || (idx == at && w > width) {
			op, at, width = candidate, idx, w
		}
	}

	for _, candidate := range wordOperators {
		needle := " " + string(candidate) + " "
		if idx := strings.Index(lower, needle); idx >= 0 {
			consider(candidate, idx, len(needle))
		}
	}
	for _, candidate := range symbolOperators {
		consider(candidate, strings.Index(lower, string(candidate)), len(candidate))
	}
	return op, at, width, at >= 0
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Match reports whether every condition holds.
func (f Filter) Match(r Resolver) bool {
	for _, c := range f.conditions {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.conditions) == 0
}

// Conditions returns the parsed conditions.
func (f Filter) Conditions() []Condition {
	return append([]Condition(nil), f.conditions...)
}

// String returns the filter text.
func (f Filter) String() string {
	return f.raw
}

// Match evaluates the condition.
func (c Condition) Match(r Resolver) bool {
	switch c.Operator {
	case OpIsDefined:
		_, ok := r.Lookup(variableName(c.Subject))
		return ok
	case OpIsUndefined:
		_, ok := r.Lookup(variableName(c.Subject))
		return !ok
	}

	subject := unquote(Substitute(c.Subject, r))
	value := unquote(Substitute(c.Value, r))

	switch c.Operator {
	case opLiteral:
		b, err := strconv.ParseBool(strings.TrimSpace(subject))
		return err == nil && b
	case OpIsEmpty:
		return strings.TrimSpace(subject) == "" || isUnresolved(c.Subject, subject)
	case OpIsNotEmpty:
		return strings.TrimSpace(subject) != "" && !isUnresolved(c.Subject, subject)
	case OpEqual:
		return compare(subject, value) == 0
	case OpNotEqual:
		return compare(subject, value) != 0
	case OpGreater:
		return compare(subject, value) > 0
	case OpGreaterEqual:
		return compare(subject, value) >= 0
	case OpLess:
		return compare(subject, value) < 0
	case OpLessEqual:
		return compare(subject, value) <= 0
	case OpContain:
		return strings.Contains(subject, value)
	case OpNotContain:
		return !strings.Contains(subject, value)
	case OpStartWith:
		return strings.HasPrefix(subject, value)
	case OpNotStartWith:
		return !strings.HasPrefix(subject, value)
	case OpEndWith:
		return strings.HasSuffix(subject, value)
	case OpNotEndWith:
		return !strings.HasSuffix(subject, value)
	case OpMatch:
		re, err := regexp.Compile(value)
		return err == nil && re.MatchString(subject)
	case OpIs, OpIn:
		return inList(subject, value)
	case OpIsNot, OpNotIn:
		return !inList(subject, value)
	}
	return false
}

// compare orders numerically when both sides are numbers, lexically otherwise.
func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// inList matches against "[a|b|c]" or a single value.
func inList(subject, list string) bool {
	list = strings.TrimSpace(list)
	if strings.HasPrefix(list, "[") && strings.HasSuffix(list, "]") {
		list = list[1 : len(list)-1]
	}
	for _, item := range strings.Split(list, "|") {
		if unquote(strings.TrimSpace(item)) == subject {
			return true
		}
	}
	return false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func variableName(subject string) string {
	subject = strings.TrimSpace(subject)
	if strings.HasPrefix(subject, "${") && strings.HasSuffix(subject, "}") {
		return strings.TrimSpace(subject[2 : len(subject)-1])
	}
	return subject
}

// isUnresolved reports a lone ${token} that had no value.
func isUnresolved(raw, substituted string) bool {
	raw = strings.TrimSpace(raw)
	return strings.HasPrefix(raw, "${") && raw == strings.TrimSpace(substituted)
}
