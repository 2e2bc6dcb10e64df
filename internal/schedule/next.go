package schedule

import "time"

const (
	// wildcardYearHorizon caps the search when the year field is a
	// wildcard, so unsatisfiable day/month combinations terminate.
	wildcardYearHorizon = 100

	// maxComposeSteps bounds the total number of candidate mutations.
	// Day-at-a-time stepping over the full wildcard-year horizon stays
	// well under this.
	maxComposeSteps = 200000
)

// snapshot is a candidate instant broken into calendar components in the
// expression's timezone. The search never mutates a field without either
// restarting the scan or resetting every finer unit, so a snapshot always
// moves forward in time.
type snapshot struct {
	year, month, day int
	hour, min, sec   int
}

func snapshotOf(t time.Time) snapshot {
	return snapshot{
		year:  t.Year(),
		month: int(t.Month()),
		day:   t.Day(),
		hour:  t.Hour(),
		min:   t.Minute(),
		sec:   t.Second(),
	}
}

func (s snapshot) time(loc *time.Location) time.Time {
	return time.Date(s.year, time.Month(s.month), s.day, s.hour, s.min, s.sec, 0, loc)
}

// advanceDay moves to the next calendar day, carrying into month and year
// using the true days-in-month. Field matching for the new day happens on
// the next scan.
func (s *snapshot) advanceDay() {
	s.day++
	if s.day > daysInMonth(s.year, s.month) {
		s.day = 1
		s.month++
		if s.month > 12 {
			s.month = 1
			s.year++
		}
	}
}

// Next computes the smallest instant at or after ref (rounded up to a whole
// second) that satisfies every field and the start/end window. ok is false
// when no such instant exists: the end bound has passed, or the fields are
// jointly unsatisfiable within the search horizon.
//
// The search walks one candidate snapshot from the finest unit outward.
// Whenever a unit has to move, every finer unit resets to its smallest
// eligible value and the scan restarts from seconds, so each mutation
// strictly increases the candidate and the loop terminates.
func (e *Expression) Next(ref time.Time) (next time.Time, ok bool) {
	t := ref.In(e.loc)
	if !e.start.IsZero() && t.Before(e.start) {
		t = e.start.In(e.loc)
	}
	if ns := t.Nanosecond(); ns != 0 {
		t = t.Add(time.Second - time.Duration(ns))
	}

	sec := e.fields[Second]
	min := e.fields[Minute]
	hour := e.fields[Hour]
	dom := e.fields[DayOfMonth]
	month := e.fields[Month]
	dow := e.fields[DayOfWeek]
	year := e.fields[Year]

	s := snapshotOf(t)
	yearCeil := s.year + wildcardYearHorizon

	for step := 0; step < maxComposeSteps; step++ {
		if year.wildcard && s.year > yearCeil {
			return time.Time{}, false
		}
		if !e.end.IsZero() && s.time(e.loc).After(e.end) {
			return time.Time{}, false
		}

		// Seconds.
		v, wrapped, vok := sec.nextAfter(s.sec)
		if !vok {
			return time.Time{}, false
		}
		if wrapped {
			s.sec = sec.first()
			s.min++
			if s.min > 59 {
				s.min = 0
				s.hour++
				if s.hour > 23 {
					s.hour = 0
					s.advanceDay()
				}
			}
			continue
		}
		if v != s.sec {
			s.sec = v
			continue
		}

		// Minutes.
		v, wrapped, vok = min.nextAfter(s.min)
		if !vok {
			return time.Time{}, false
		}
		if wrapped {
			s.min = min.first()
			s.sec = sec.first()
			s.hour++
			if s.hour > 23 {
				s.hour = 0
				s.advanceDay()
			}
			continue
		}
		if v != s.min {
			s.min = v
			s.sec = sec.first()
			continue
		}

		// Hours.
		v, wrapped, vok = hour.nextAfter(s.hour)
		if !vok {
			return time.Time{}, false
		}
		if wrapped {
			s.hour = hour.first()
			s.min = min.first()
			s.sec = sec.first()
			s.advanceDay()
			continue
		}
		if v != s.hour {
			s.hour = v
			s.min = min.first()
			s.sec = sec.first()
			continue
		}

		// Days: the one disjunctive pair. A mismatch advances a whole day.
		if !dayMatches(dom, dow, s.year, s.month, s.day) {
			s.advanceDay()
			s.hour = hour.first()
			s.min = min.first()
			s.sec = sec.first()
			continue
		}

		// Months.
		v, wrapped, vok = month.nextAfter(s.month)
		if !vok {
			return time.Time{}, false
		}
		if wrapped {
			s.year++
			s.month = month.first()
			s.day = 1
			s.hour = hour.first()
			s.min = min.first()
			s.sec = sec.first()
			continue
		}
		if v != s.month {
			s.month = v
			s.day = 1
			s.hour = hour.first()
			s.min = min.first()
			s.sec = sec.first()
			continue
		}

		// Years. The year unit has nothing to carry into: a wrap or an
		// empty set means no next occurrence. The wildcard horizon is
		// enforced at the top of the loop.
		if !year.wildcard {
			v, wrapped, vok = year.nextAfter(s.year)
			if !vok || wrapped {
				return time.Time{}, false
			}
			if v != s.year {
				s.year = v
				s.month = month.first()
				s.day = 1
				s.hour = hour.first()
				s.min = min.first()
				s.sec = sec.first()
				continue
			}
		}

		res := s.time(e.loc)
		if !e.end.IsZero() && res.After(e.end) {
			return time.Time{}, false
		}
		return res, true
	}
	return time.Time{}, false
}
