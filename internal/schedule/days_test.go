package schedule

import "testing"

func TestDaysInMonth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{2000, 2, 29},
		{1900, 2, 28},
		{2026, 1, 31},
		{2026, 4, 30},
		{2026, 12, 31},
	}
	for _, tt := range tests {
		if got := daysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("daysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestDayRuleResolve(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		raw         string
		year, month int
		day         int
		ok          bool
	}{
		{"last of october", "last", 2025, 10, 31, true},
		{"last of february leap", "last", 2024, 2, 29, true},
		{"three before end", "-3", 2025, 10, 28, true},
		{"thirty before end of february", "-30", 2025, 2, 0, false},
		// October 2025: Fridays fall on 3, 10, 17, 24, 31.
		{"second friday", "2nd Fri", 2025, 10, 10, true},
		{"last friday", "last Fri", 2025, 10, 31, true},
		// October 2025 has only four Mondays (6, 13, 20, 27).
		{"fifth monday missing", "5th Mon", 2025, 10, 0, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rule, err := parseDayRule(tt.raw)
			if err != nil {
				t.Fatalf("parseDayRule(%q) error: %v", tt.raw, err)
			}
			day, ok := rule.resolve(tt.year, tt.month)
			if ok != tt.ok {
				t.Fatalf("resolve(%d, %d) ok = %v, want %v", tt.year, tt.month, ok, tt.ok)
			}
			if ok && day != tt.day {
				t.Fatalf("resolve(%d, %d) = %d, want %d", tt.year, tt.month, day, tt.day)
			}
		})
	}
}

func TestParseDayRuleErrors(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"-0", "-31", "6th Fri", "2nd Foo", "1st Fri extra"} {
		if _, err := parseDayRule(raw); err == nil {
			t.Errorf("parseDayRule(%q): expected error", raw)
		}
	}
}

func TestDayMatchesDisjunction(t *testing.T) {
	t.Parallel()
	dom := mustField(t, DayOfMonth, "1")
	dow := mustField(t, DayOfWeek, "Mon")
	wild := mustField(t, DayOfMonth, "*")

	// October 2025: the 1st is a Wednesday, Mondays are 6, 13, 20, 27.
	if !dayMatches(dom, dow, 2025, 10, 1) {
		t.Error("1st of the month should match via day-of-month")
	}
	if !dayMatches(dom, dow, 2025, 10, 6) {
		t.Error("a Monday should match via day-of-week")
	}
	if dayMatches(dom, dow, 2025, 10, 7) {
		t.Error("a plain Tuesday the 7th should not match")
	}

	// Only one side restricted: that side alone decides.
	if dayMatches(wild, dow, 2025, 10, 1) {
		t.Error("Wednesday the 1st must not match a Monday-only schedule")
	}
	if !dayMatches(dom, mustField(t, DayOfWeek, "*"), 2025, 10, 1) {
		t.Error("the 1st must match a day-of-month-only schedule")
	}

	// Both wildcards match everything.
	if !dayMatches(wild, mustField(t, DayOfWeek, "*"), 2025, 10, 17) {
		t.Error("double wildcard should match any day")
	}
}

func TestDayMatchesRelative(t *testing.T) {
	t.Parallel()
	last := mustField(t, DayOfMonth, "last")
	wildDow := mustField(t, DayOfWeek, "*")

	if !dayMatches(last, wildDow, 2025, 4, 30) {
		t.Error("April 30 should match dayOfMonth=last")
	}
	if dayMatches(last, wildDow, 2025, 4, 29) {
		t.Error("April 29 should not match dayOfMonth=last")
	}

	// A list of relative rules is disjunctive.
	f := mustField(t, DayOfMonth, "last, 1st Mon")
	if !dayMatches(f, wildDow, 2025, 10, 31) {
		t.Error("October 31 should match via last")
	}
	if !dayMatches(f, wildDow, 2025, 10, 6) {
		t.Error("October 6 should match via 1st Mon")
	}
	if dayMatches(f, wildDow, 2025, 10, 13) {
		t.Error("October 13 matches neither rule")
	}
}

func mustField(t *testing.T, u Unit, raw string) *fieldValue {
	t.Helper()
	f, err := parseField(u, raw)
	if err != nil {
		t.Fatalf("parseField(%s, %q): %v", u, raw, err)
	}
	return f
}
