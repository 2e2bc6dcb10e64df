package schedule

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, spec Spec) *Expression {
	t.Helper()
	e, err := Parse(spec)
	if err != nil {
		t.Fatalf("Parse(%+v): %v", spec, err)
	}
	return e
}

func utc(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

func TestNextBusinessHours(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:    "0",
		Minute:    "*/15",
		Hour:      "9-17",
		DayOfWeek: "Mon-Fri",
	})

	// 2026-08-29 is a Saturday; the following Monday is the 31st.
	got, ok := e.Next(utc(2026, time.August, 29, 10, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2026, time.August, 31, 9, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// Mid-morning on a weekday snaps to the next quarter hour.
	got, ok = e.Next(utc(2026, time.August, 31, 9, 7, 12))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2026, time.August, 31, 9, 15, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// 17:45 is the last slot of the day; 17:46 rolls to 9:00 next day.
	got, _ = e.Next(utc(2026, time.August, 31, 17, 46, 0))
	if want := utc(2026, time.September, 1, 9, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextLastDayOfMonth(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:     "0",
		Minute:     "0",
		Hour:       "0",
		DayOfMonth: "last",
	})

	got, ok := e.Next(utc(2025, time.April, 10, 12, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2025, time.April, 30, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// One second past April's fire rolls all the way to May 31.
	got, ok = e.Next(utc(2025, time.April, 30, 0, 0, 1))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2025, time.May, 31, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextAtOrAfterIsInclusive(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{Second: "0", Minute: "30", Hour: "12"})
	ref := utc(2026, time.March, 1, 12, 30, 0)
	got, ok := e.Next(ref)
	if !ok || !got.Equal(ref) {
		t.Fatalf("Next(%v) = (%v, %v), want the reference itself", ref, got, ok)
	}

	// Sub-second remainders round up to the next whole second.
	got, _ = e.Next(ref.Add(500 * time.Millisecond))
	if want := utc(2026, time.March, 2, 12, 30, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextSecondCarryCascades(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{Second: "0", Minute: "0", Hour: "0"})
	got, ok := e.Next(utc(2026, time.December, 31, 0, 0, 1))
	if !ok {
		t.Fatal("expected a next match")
	}
	// Second wraps into minute, minute into hour, hour into day, day into
	// month, month into year.
	if want := utc(2027, time.January, 1, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextDayDisjunction(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:     "0",
		Minute:     "0",
		Hour:       "0",
		DayOfMonth: "1",
		DayOfWeek:  "Mon",
	})

	// October 2025: the 1st is a Wednesday, the first Monday is the 6th.
	got, _ := e.Next(utc(2025, time.September, 30, 1, 0, 0))
	if want := utc(2025, time.October, 1, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
	got, _ = e.Next(utc(2025, time.October, 1, 0, 0, 1))
	if want := utc(2025, time.October, 6, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextLeapDay(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:     "0",
		Minute:     "0",
		Hour:       "0",
		DayOfMonth: "29",
		Month:      "2",
	})
	got, ok := e.Next(utc(2026, time.January, 1, 0, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2028, time.February, 29, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestNextNoTimeout(t *testing.T) {
	t.Parallel()
	// February never has 31 days: legitimately no next fire, for any
	// reference instant.
	e := mustParse(t, Spec{DayOfMonth: "31", Month: "2"})
	for _, ref := range []time.Time{
		utc(2025, time.January, 1, 0, 0, 0),
		utc(2026, time.February, 28, 23, 59, 59),
		utc(2099, time.December, 31, 0, 0, 0),
	} {
		if _, ok := e.Next(ref); ok {
			t.Fatalf("Next(%v): expected no next timeout", ref)
		}
	}
}

func TestNextYearField(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:     "0",
		Minute:     "0",
		Hour:       "0",
		DayOfMonth: "1",
		Month:      "1",
		Year:       "2030",
	})
	got, ok := e.Next(utc(2026, time.June, 15, 10, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2030, time.January, 1, 0, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// Past the only listed year there is nothing left.
	if _, ok := e.Next(utc(2030, time.January, 1, 0, 0, 1)); ok {
		t.Fatal("expected no next timeout after the year passes")
	}
}

func TestNextStartEndWindow(t *testing.T) {
	t.Parallel()
	start := utc(2026, time.January, 1, 0, 0, 0)
	end := utc(2026, time.January, 31, 23, 59, 59)
	e := mustParse(t, Spec{
		Second: "0",
		Minute: "0",
		Hour:   "12",
		Start:  start,
		End:    end,
	})

	// A reference before the window advances to the window start.
	got, ok := e.Next(utc(2025, time.June, 1, 0, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2026, time.January, 1, 12, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// A reference past the end bound yields nothing.
	if _, ok := e.Next(utc(2026, time.February, 1, 0, 0, 0)); ok {
		t.Fatal("expected no next timeout past the end bound")
	}
}

func TestNextTimezone(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{
		Second:   "0",
		Minute:   "0",
		Hour:     "9",
		Timezone: "America/New_York",
	})
	// Midnight UTC on March 3rd is 19:00 on March 2nd in New York; the
	// next 09:00 wall-clock fire is March 3rd 09:00 EST == 14:00 UTC.
	got, ok := e.Next(utc(2026, time.March, 3, 0, 0, 0))
	if !ok {
		t.Fatal("expected a next match")
	}
	if want := utc(2026, time.March, 3, 14, 0, 0); !got.Equal(want) {
		t.Fatalf("Next = %v (%v UTC), want %v", got, got.UTC(), want)
	}
}

func TestNextIdempotent(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{Second: "0", Minute: "*/15", Hour: "9-17", DayOfWeek: "Mon-Fri"})
	ref := utc(2026, time.August, 29, 10, 0, 0)
	a, aok := e.Next(ref)
	b, bok := e.Next(ref)
	if aok != bok || !a.Equal(b) {
		t.Fatalf("Next is not idempotent: (%v, %v) vs (%v, %v)", a, aok, b, bok)
	}
}

func TestParseRejectsBadSpecs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		spec Spec
	}{
		{"bad timezone", Spec{Timezone: "Not/AZone"}},
		{"reversed window", Spec{Start: utc(2026, 2, 1, 0, 0, 0), End: utc(2026, 1, 1, 0, 0, 0)}},
		{"bad field", Spec{Minute: "61"}},
		{"relative minute", Spec{Minute: "last"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.spec); err == nil {
				t.Fatalf("Parse(%+v): expected error", tt.spec)
			}
		})
	}
}

func TestDefaultsSecondZeroRestWildcard(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{Minute: "30"})
	got, ok := e.Next(utc(2026, time.May, 4, 10, 29, 59))
	if !ok {
		t.Fatal("expected a next match")
	}
	// Second defaults to "0", everything else to "*".
	if want := utc(2026, time.May, 4, 10, 30, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}

func TestCronScheduleAdapter(t *testing.T) {
	t.Parallel()
	e := mustParse(t, Spec{Second: "0", Minute: "*"})
	sched := e.Schedule()

	// Strictly-after semantics: standing exactly on a fire time yields the
	// following one.
	at := utc(2026, time.August, 31, 9, 0, 0)
	if got, want := sched.Next(at), utc(2026, time.August, 31, 9, 1, 0); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}

	// An unsatisfiable expression reports the zero time, which the cron
	// runner treats as "never schedule".
	never := mustParse(t, Spec{DayOfMonth: "31", Month: "2"}).Schedule()
	if got := never.Next(at); !got.IsZero() {
		t.Fatalf("Next = %v, want zero time", got)
	}
}
