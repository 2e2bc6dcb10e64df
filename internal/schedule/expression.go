package schedule

import (
	"fmt"
	"time"
)

// Spec is the raw schedule expression as supplied by a registrant: seven
// field strings, an optional start/end window and an IANA timezone. Empty
// fields default to "*", except Second which defaults to "0".
type Spec struct {
	Second     string
	Minute     string
	Hour       string
	DayOfMonth string
	Month      string
	DayOfWeek  string
	Year       string

	Timezone string
	Start    time.Time // zero means unbounded
	End      time.Time // zero means unbounded
}

func (s Spec) field(u Unit) string {
	raw := ""
	switch u {
	case Second:
		raw = s.Second
	case Minute:
		raw = s.Minute
	case Hour:
		raw = s.Hour
	case DayOfMonth:
		raw = s.DayOfMonth
	case Month:
		raw = s.Month
	case DayOfWeek:
		raw = s.DayOfWeek
	case Year:
		raw = s.Year
	}
	if raw == "" {
		if u == Second {
			return "0"
		}
		return "*"
	}
	return raw
}

// Expression is a fully parsed schedule expression. It is immutable and safe
// for concurrent use.
type Expression struct {
	fields [numUnits]*fieldValue
	loc    *time.Location
	start  time.Time
	end    time.Time
}

// Parse validates and resolves every field eagerly, so a bad expression is
// rejected at registration time rather than at first fire. Errors wrap
// ErrSyntax, ErrRange or ErrUnsupported and name the offending field and
// raw value.
func Parse(spec Spec) (*Expression, error) {
	loc := time.UTC
	if spec.Timezone != "" {
		l, err := time.LoadLocation(spec.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", spec.Timezone, err)
		}
		loc = l
	}

	e := &Expression{loc: loc, start: spec.Start, end: spec.End}
	for u := Second; u < numUnits; u++ {
		f, err := parseField(u, spec.field(u))
		if err != nil {
			return nil, err
		}
		e.fields[u] = f
	}

	// Relative forms beyond the two day units are caught per field; the
	// only remaining structural check is the window itself.
	if !e.start.IsZero() && !e.end.IsZero() && e.end.Before(e.start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrRange,
			e.end.Format(time.RFC3339), e.start.Format(time.RFC3339))
	}
	return e, nil
}

// MustParse is Parse for static expressions; it panics on error.
func MustParse(spec Spec) *Expression {
	e, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return e
}

// Location returns the timezone the expression is evaluated in.
func (e *Expression) Location() *time.Location { return e.loc }
