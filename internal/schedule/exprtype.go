package schedule

import (
	"fmt"
	"strings"
)

// ExprType is the classified grammar form of a single raw field string.
type ExprType int

const (
	Wildcard ExprType = iota
	SingleValue
	List
	Range
	Increment
	Relative
)

func (t ExprType) String() string {
	switch t {
	case Wildcard:
		return "wildcard"
	case SingleValue:
		return "single value"
	case List:
		return "list"
	case Range:
		return "range"
	case Increment:
		return "increment"
	case Relative:
		return "relative"
	default:
		return fmt.Sprintf("exprtype(%d)", int(t))
	}
}

// classify inspects a raw field string and decides which grammar form it is.
// Rules are checked in order of specificity. Whether the unit actually
// accepts the form is the parser's concern, not the classifier's; relative
// tokens are recognized for every unit so that e.g. minute="last" can be
// rejected as unsupported rather than as plain bad syntax.
func classify(u Unit, raw string) (ExprType, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty field", ErrSyntax)
	}
	if s == "*" {
		return Wildcard, nil
	}
	if strings.Contains(s, ",") {
		return List, nil
	}
	// A leading minus on a bare number is "days before month end" for the
	// day units, not a malformed range.
	if u.allowsRelative() && isNegativeDigits(s) {
		return Relative, nil
	}
	if strings.Contains(s, "-") {
		return Range, nil
	}
	if strings.Contains(s, "/") {
		return Increment, nil
	}
	if isRelativeToken(s) {
		return Relative, nil
	}
	if isInteger(s) || isName(s) {
		return SingleValue, nil
	}
	return 0, fmt.Errorf("%w: unrecognized form %q", ErrSyntax, raw)
}

func isNegativeDigits(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	return isDigits(s[1:])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isInteger(s string) bool { return isDigits(s) }

// isName reports whether s is purely alphabetic, i.e. a candidate for a
// symbolic month or weekday name. Domain lookup happens at parse time.
func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

var ordinals = map[string]int{
	"1st":  1,
	"2nd":  2,
	"3rd":  3,
	"4th":  4,
	"5th":  5,
	"last": ordinalLast,
}

// isRelativeToken recognizes the symbolic relative day forms: "last",
// "3rd Fri", "last Sun", and bare ordinals (rejected later at parse time
// with a pointed message, but they are relative grammar, not noise).
func isRelativeToken(s string) bool {
	parts := strings.Fields(strings.ToLower(s))
	switch len(parts) {
	case 1:
		_, ok := ordinals[parts[0]]
		return ok
	case 2:
		if _, ok := ordinals[parts[0]]; !ok {
			return false
		}
		return isName(parts[1])
	default:
		return false
	}
}
