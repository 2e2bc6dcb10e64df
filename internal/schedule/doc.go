// Package schedule evaluates calendar-based schedule expressions: per-field
// specifications for second, minute, hour, day-of-month, month, day-of-week
// and year, in the style of container-managed timer schedules.
//
// # Expressions
//
// Each of the seven fields accepts its own small grammar:
//
//   - Wildcard: "*"
//   - Single value: "8", "Mon", "Oct"
//   - List: "10, 30, 45" (members may be values, ranges or increments)
//   - Range: "9-17", "Mon-Fri" (reversed ranges are rejected, never swapped)
//   - Increment: "10/15" or "*/5" (start plus every step while in domain)
//   - Relative day forms, day fields only: "last", "-3" (days before month
//     end), "2nd Fri", "last Sun"
//
// Second and minute span 0-59, hour 0-23, day-of-month 1-31, month 1-12
// (Jan-Dec), day-of-week 0-6 (Sun-Sat), year 1970-9999. Symbolic names are
// case-insensitive three-letter abbreviations.
//
// # Evaluation
//
// Parse builds an immutable Expression from the raw fields plus an optional
// start/end window and an IANA timezone. Expression.Next answers "what is the
// next instant, at or after the reference, that satisfies every field". When
// both day-of-month and day-of-week are restricted a day matches if it
// satisfies either one; all other fields combine conjunctively.
//
// Next is a pure function: expressions carry no hidden state and may be
// shared freely across goroutines.
//
// # No next timeout
//
// Some expressions can never fire again (the end bound has passed, or the
// fields are jointly unsatisfiable, e.g. day-of-month 31 in February). That
// is a legitimate outcome, not an error: Next reports it with ok == false.
package schedule
