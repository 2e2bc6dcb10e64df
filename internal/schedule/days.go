package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ordinalLast marks "last" in an ordinal position ("last Fri", or plain
// "last" meaning the last day of the month).
const ordinalLast = -1

type dayRuleKind int

const (
	lastDayOfMonth dayRuleKind = iota
	daysBeforeEnd
	nthWeekday
)

// dayRule is a symbolic day-of-month specification that can only be resolved
// against a concrete year and month.
type dayRule struct {
	kind    dayRuleKind
	before  int // daysBeforeEnd: K days before month end, K >= 1
	nth     int // nthWeekday: 1..5, or ordinalLast
	weekday int // nthWeekday: 0..6
}

// parseDayRule parses the relative forms: "last", "-K", "<ordinal> <weekday>".
func parseDayRule(s string) (dayRule, error) {
	low := strings.ToLower(s)
	if low == "last" {
		return dayRule{kind: lastDayOfMonth}, nil
	}
	if isNegativeDigits(low) {
		k, err := strconv.Atoi(low[1:])
		if err != nil {
			return dayRule{}, fmt.Errorf("%w: %q", ErrSyntax, s)
		}
		if k < 1 || k > 30 {
			return dayRule{}, fmt.Errorf("%w: %d days before month end", ErrRange, k)
		}
		return dayRule{kind: daysBeforeEnd, before: k}, nil
	}
	parts := strings.Fields(low)
	if len(parts) != 2 {
		return dayRule{}, fmt.Errorf("%w: ordinal %q requires a weekday", ErrSyntax, s)
	}
	nth, ok := ordinals[parts[0]]
	if !ok {
		return dayRule{}, fmt.Errorf("%w: ordinal %q", ErrSyntax, parts[0])
	}
	wd, ok := weekdayNames[parts[1]]
	if !ok {
		return dayRule{}, fmt.Errorf("%w: unknown weekday %q", ErrSyntax, parts[1])
	}
	return dayRule{kind: nthWeekday, nth: nth, weekday: wd}, nil
}

// daysInMonth returns the number of days in the given month, with the full
// Gregorian leap rule: divisible by 4, except centuries unless divisible
// by 400.
func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	default:
		return 0
	}
}

// weekdayOf returns the weekday (0=Sunday) of a calendar date.
func weekdayOf(year, month, day int) int {
	return int(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Weekday())
}

// resolve maps the rule to a concrete day of the given month, or reports
// that the month has no such day (e.g. a fifth Friday that doesn't exist).
func (r dayRule) resolve(year, month int) (int, bool) {
	dim := daysInMonth(year, month)
	switch r.kind {
	case lastDayOfMonth:
		return dim, true
	case daysBeforeEnd:
		d := dim - r.before
		if d < 1 {
			return 0, false
		}
		return d, true
	case nthWeekday:
		seen := 0
		match := 0
		for d := 1; d <= dim; d++ {
			if weekdayOf(year, month, d) != r.weekday {
				continue
			}
			seen++
			match = d
			if r.nth != ordinalLast && seen == r.nth {
				return d, true
			}
		}
		if r.nth == ordinalLast && seen > 0 {
			return match, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ruleHit reports whether any of the field's relative rules resolves to the
// given day of the given month.
func ruleHit(rules []dayRule, year, month, day int) bool {
	for _, r := range rules {
		if d, ok := r.resolve(year, month); ok && d == day {
			return true
		}
	}
	return false
}

// dayMatches reconciles the two day fields against a concrete date. When
// both are restricted a day matches if it satisfies either one; this
// disjunction is unique to the day fields, every other field combines
// conjunctively.
func dayMatches(dom, dow *fieldValue, year, month, day int) bool {
	domRestricted := !dom.wildcard
	dowRestricted := !dow.wildcard
	if !domRestricted && !dowRestricted {
		return true
	}

	domOK := false
	if domRestricted {
		if dom.relative() {
			domOK = ruleHit(dom.rules, year, month, day)
		} else {
			domOK = dom.matches(day)
		}
	}
	dowOK := false
	if dowRestricted {
		if dow.relative() {
			dowOK = ruleHit(dow.rules, year, month, day)
		} else {
			dowOK = dow.matches(weekdayOf(year, month, day))
		}
	}

	switch {
	case domRestricted && dowRestricted:
		return domOK || dowOK
	case domRestricted:
		return domOK
	default:
		return dowOK
	}
}
