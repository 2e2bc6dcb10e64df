package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Unit identifies one of the seven schedule fields.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	DayOfMonth
	Month
	DayOfWeek
	Year

	numUnits = 7
)

func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case DayOfMonth:
		return "day-of-month"
	case Month:
		return "month"
	case DayOfWeek:
		return "day-of-week"
	case Year:
		return "year"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

func (u Unit) allowsRelative() bool { return u == DayOfMonth || u == DayOfWeek }

// descriptor declares a unit's value domain and symbolic-name table. The
// seven descriptors are the only per-unit variation; a single generic parser
// and matcher serve every field.
type descriptor struct {
	min, max int
	names    map[string]int
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

var descriptors = [numUnits]descriptor{
	Second:     {min: 0, max: 59},
	Minute:     {min: 0, max: 59},
	Hour:       {min: 0, max: 23},
	DayOfMonth: {min: 1, max: 31},
	Month:      {min: 1, max: 12, names: monthNames},
	DayOfWeek:  {min: 0, max: 6, names: weekdayNames},
	Year:       {min: 1970, max: 9999},
}

// fieldValue is the normalized form of one parsed field: either a wildcard,
// an ascending set of absolute candidate values, or (day units only) a set of
// relative day rules. The absolute and relative representations are mutually
// exclusive per field.
type fieldValue struct {
	unit Unit
	raw  string
	typ  ExprType

	wildcard bool
	set      []int     // ascending, distinct, within domain
	rules    []dayRule // relative day rules, evaluated disjunctively
}

func (f *fieldValue) relative() bool { return len(f.rules) > 0 }

func fieldErr(u Unit, raw string, err error) error {
	return fmt.Errorf("%s %q: %w", u, raw, err)
}

// parseField classifies and resolves one raw field string. Errors wrap
// ErrSyntax, ErrRange or ErrUnsupported and always name the field and the
// offending raw value.
func parseField(u Unit, raw string) (*fieldValue, error) {
	typ, err := classify(u, raw)
	if err != nil {
		return nil, fieldErr(u, raw, err)
	}
	if typ == Relative && !u.allowsRelative() {
		return nil, fieldErr(u, raw, fmt.Errorf("%w: relative day forms", ErrUnsupported))
	}

	f := &fieldValue{unit: u, raw: raw, typ: typ}
	switch typ {
	case Wildcard:
		f.wildcard = true
	case SingleValue:
		v, err := resolveValue(u, strings.TrimSpace(raw))
		if err != nil {
			return nil, fieldErr(u, raw, err)
		}
		f.set = []int{v}
	case Range:
		set, err := parseRange(u, strings.TrimSpace(raw))
		if err != nil {
			return nil, fieldErr(u, raw, err)
		}
		f.set = set
	case Increment:
		set, err := parseIncrement(u, strings.TrimSpace(raw))
		if err != nil {
			return nil, fieldErr(u, raw, err)
		}
		f.set = set
	case Relative:
		rule, err := parseDayRule(strings.TrimSpace(raw))
		if err != nil {
			return nil, fieldErr(u, raw, err)
		}
		f.rules = []dayRule{rule}
	case List:
		if err := parseList(f, u, raw); err != nil {
			return nil, fieldErr(u, raw, err)
		}
	}

	sort.Ints(f.set)
	f.set = dedupe(f.set)
	return f, nil
}

// resolveValue turns a single token into an in-domain integer, via direct
// parse or the unit's symbolic-name table.
func resolveValue(u Unit, tok string) (int, error) {
	d := descriptors[u]
	var v int
	if isDigits(tok) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrSyntax, tok)
		}
		v = n
	} else {
		n, ok := d.names[strings.ToLower(tok)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown name %q", ErrSyntax, tok)
		}
		v = n
	}
	if v < d.min || v > d.max {
		return 0, fmt.Errorf("%w: %d not in [%d,%d]", ErrRange, v, d.min, d.max)
	}
	return v, nil
}

func parseRange(u Unit, s string) ([]int, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: range needs exactly two endpoints", ErrSyntax)
	}
	lo, err := resolveValue(u, strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, err
	}
	hi, err := resolveValue(u, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	// Reversed ranges are rejected outright, never wrapped or swapped.
	if lo > hi {
		return nil, fmt.Errorf("%w: reversed range %d-%d", ErrRange, lo, hi)
	}
	set := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		set = append(set, v)
	}
	return set, nil
}

func parseIncrement(u Unit, s string) ([]int, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: increment needs start/step", ErrSyntax)
	}
	d := descriptors[u]
	start := d.min
	if left := strings.TrimSpace(parts[0]); left != "*" {
		v, err := resolveValue(u, left)
		if err != nil {
			return nil, err
		}
		start = v
	}
	stepTok := strings.TrimSpace(parts[1])
	if !isDigits(stepTok) {
		return nil, fmt.Errorf("%w: step %q", ErrSyntax, stepTok)
	}
	step, err := strconv.Atoi(stepTok)
	if err != nil {
		return nil, fmt.Errorf("%w: step %q", ErrSyntax, stepTok)
	}
	if step < 1 {
		return nil, fmt.Errorf("%w: step must be positive", ErrRange)
	}
	var set []int
	for v := start; v <= d.max; v += step {
		set = append(set, v)
	}
	return set, nil
}

// parseList resolves each comma-separated member. Members may be single
// values, ranges, increments or (day units) relative rules; nested lists
// cannot occur and a wildcard member is meaningless. Absolute and relative
// members may not be mixed in one field.
func parseList(f *fieldValue, u Unit, raw string) error {
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		typ, err := classify(u, tok)
		if err != nil {
			return err
		}
		switch typ {
		case Wildcard:
			return fmt.Errorf("%w: wildcard inside a list", ErrSyntax)
		case SingleValue:
			v, err := resolveValue(u, tok)
			if err != nil {
				return err
			}
			f.set = append(f.set, v)
		case Range:
			set, err := parseRange(u, tok)
			if err != nil {
				return err
			}
			f.set = append(f.set, set...)
		case Increment:
			set, err := parseIncrement(u, tok)
			if err != nil {
				return err
			}
			f.set = append(f.set, set...)
		case Relative:
			if !u.allowsRelative() {
				return fmt.Errorf("%w: relative day forms", ErrUnsupported)
			}
			rule, err := parseDayRule(tok)
			if err != nil {
				return err
			}
			f.rules = append(f.rules, rule)
		default:
			return fmt.Errorf("%w: %q inside a list", ErrSyntax, tok)
		}
	}
	if len(f.set) > 0 && len(f.rules) > 0 {
		return fmt.Errorf("%w: list mixes absolute and relative values", ErrSyntax)
	}
	return nil
}

func dedupe(set []int) []int {
	if len(set) < 2 {
		return set
	}
	out := set[:1]
	for _, v := range set[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// matches reports whether v is an eligible value for an absolute-valued
// field. Relative fields are resolved by the day logic instead.
func (f *fieldValue) matches(v int) bool {
	if f.wildcard {
		return true
	}
	for _, c := range f.set {
		if c == v {
			return true
		}
		if c > v {
			return false
		}
	}
	return false
}

// nextAfter returns the smallest eligible value at or after v. wrapped
// reports that no such value exists and next is the field's own smallest
// value: the caller owes a carry into the next coarser unit. ok is false
// only for an empty candidate set, which can never match.
func (f *fieldValue) nextAfter(v int) (next int, wrapped bool, ok bool) {
	if f.wildcard {
		return v, false, true
	}
	if len(f.set) == 0 {
		return 0, false, false
	}
	for _, c := range f.set {
		if c >= v {
			return c, false, true
		}
	}
	return f.set[0], true, true
}

// first returns the smallest eligible value: the reset target for this unit
// when a coarser unit advances.
func (f *fieldValue) first() int {
	if f.wildcard || len(f.set) == 0 {
		return descriptors[f.unit].min
	}
	return f.set[0]
}
