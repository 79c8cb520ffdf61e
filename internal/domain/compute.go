package domain

import (
	"fmt"
	"time"
)

// maxIntervalWalkIterations bounds the loop in ComputeNextExecution that
// advances a recurring schedule past `now`; a degenerate definition (e.g.
// an expression of zero) must never spin the scheduler loop forever.
const maxIntervalWalkIterations = 1_000_000

// ComputeNextExecution implements spec.md §4.2. It mutates e.Status and
// e.ExecuteAt in place and returns only an error. `now` is compared as
// given; it is not truncated to whole seconds.
func (e *EventRecord) ComputeNextExecution(now time.Time) error {
	if e.Status != StatusEnabled {
		e.ExecuteAt = nil
		return nil
	}

	if e.Schedule.IsOneShot() {
		return e.computeOneShot(now)
	}
	return e.computeRecurring(now)
}

func (e *EventRecord) computeOneShot(now time.Time) error {
	already := e.ExecutionCount > 0
	pastGrace := e.Schedule.ExecuteAt.Before(now)
	if already || pastGrace {
		e.Status = StatusDisabled
		e.ExecuteAt = nil
		return nil
	}
	at := e.Schedule.ExecuteAt
	e.ExecuteAt = &at
	return nil
}

func (e *EventRecord) computeRecurring(now time.Time) error {
	if containsMicrosecond(e.Schedule.Unit) {
		e.Status = StatusDisabled
		e.ExecuteAt = nil
		return ErrMicrosecondUnsupported
	}

	base := e.Schedule.Starts
	if base == nil {
		z := time.Unix(0, 0).UTC()
		base = &z
	}
	if e.LastExecuted != nil && e.LastExecuted.After(*base) {
		base = e.LastExecuted
	}

	next := *base
	iterations := 0
	for !next.After(now) {
		var err error
		next, err = addInterval(next, e.Schedule.Expression, e.Schedule.Unit)
		if err != nil {
			e.Status = StatusDisabled
			e.ExecuteAt = nil
			return err
		}
		iterations++
		if iterations > maxIntervalWalkIterations {
			e.Status = StatusDisabled
			e.ExecuteAt = nil
			return fmt.Errorf("%w: interval walk exceeded %d iterations for %s.%s",
				ErrIntervalOutOfRange, maxIntervalWalkIterations, e.Schema, e.Name)
		}
	}

	if e.Schedule.Ends != nil && next.After(*e.Schedule.Ends) {
		e.Status = StatusDisabled
		e.ExecuteAt = nil
		return nil
	}

	e.ExecuteAt = &next
	return nil
}

func containsMicrosecond(u IntervalUnit) bool {
	switch u {
	case IntervalMicrosecond:
		return true
	default:
		return false
	}
}

// addInterval advances t by one (expression, unit) step. Calendar-bearing
// units (YEAR, QUARTER, MONTH) use time.AddDate so "1 MONTH" lands on the
// same day next month rather than a fixed 30*24h approximation; everything
// else is exact duration arithmetic.
func addInterval(t time.Time, expression int64, unit IntervalUnit) (time.Time, error) {
	switch unit {
	case IntervalYear:
		return t.AddDate(int(expression), 0, 0), nil
	case IntervalQuarter:
		return t.AddDate(0, int(expression)*3, 0), nil
	case IntervalMonth:
		return t.AddDate(0, int(expression), 0), nil
	case IntervalWeek:
		return t.AddDate(0, 0, int(expression)*7), nil
	case IntervalDay:
		return t.AddDate(0, 0, int(expression)), nil
	case IntervalHour:
		return t.Add(time.Duration(expression) * time.Hour), nil
	case IntervalMinute:
		return t.Add(time.Duration(expression) * time.Minute), nil
	case IntervalSecond:
		return t.Add(time.Duration(expression) * time.Second), nil
	case IntervalYearMonth, IntervalDayHour, IntervalDayMinute, IntervalDaySecond,
		IntervalHourMinute, IntervalHourSecond, IntervalMinuteSecond:
		return t, fmt.Errorf("%w: composite unit %s as a recurrence step is not supported, only in literal rendering", ErrIntervalOutOfRange, unit)
	default:
		return t, fmt.Errorf("%w: unknown interval unit %q", ErrIntervalOutOfRange, unit)
	}
}

// IntervalToText renders the canonical `INTERVAL n UNIT` literal for
// (unit, count), per spec.md §4.2. Composite units render a quoted
// multi-field string; simple units render a bare integer. Any
// MICROSECOND-bearing unit is rejected.
func IntervalToText(unit IntervalUnit, count int64) (string, error) {
	switch unit {
	case IntervalYear, IntervalQuarter, IntervalMonth, IntervalWeek,
		IntervalDay, IntervalHour, IntervalMinute, IntervalSecond:
		return fmt.Sprintf("%d", count), nil

	case IntervalYearMonth:
		years, months := count/12, count%12
		return fmt.Sprintf("'%d-%d'", years, months), nil
	case IntervalDayHour:
		days, hours := count/24, count%24
		return fmt.Sprintf("'%d %d'", days, hours), nil
	case IntervalHourMinute:
		hours, minutes := count/60, count%60
		return fmt.Sprintf("'%d:%d'", hours, minutes), nil
	case IntervalMinuteSecond:
		minutes, seconds := count/60, count%60
		return fmt.Sprintf("'%d:%d'", minutes, seconds), nil
	case IntervalDayMinute:
		totalMinutes := count
		days := totalMinutes / (24 * 60)
		rem := totalMinutes % (24 * 60)
		hours := rem / 60
		minutes := rem % 60
		return fmt.Sprintf("'%d %d:%d'", days, hours, minutes), nil
	case IntervalHourSecond:
		totalSeconds := count
		hours := totalSeconds / 3600
		rem := totalSeconds % 3600
		minutes := rem / 60
		seconds := rem % 60
		return fmt.Sprintf("'%d:%d:%d'", hours, minutes, seconds), nil
	case IntervalDaySecond:
		totalSeconds := count
		days := totalSeconds / 86400
		rem := totalSeconds % 86400
		hours := rem / 3600
		rem %= 3600
		minutes := rem / 60
		seconds := rem % 60
		return fmt.Sprintf("'%d %d:%d:%d'", days, hours, minutes, seconds), nil

	case IntervalMicrosecond:
		return "", fmt.Errorf("%w: MICROSECOND", ErrMicrosecondUnsupported)
	default:
		return "", fmt.Errorf("%w: unknown interval unit %q", ErrIntervalOutOfRange, unit)
	}
}

// TextToInterval parses back an IntervalToText literal for a known unit.
// It is the inverse used by the round-trip property in spec.md §8; it is
// intentionally lenient about surrounding quotes.
func TextToInterval(unit IntervalUnit, text string) (int64, error) {
	text = trimQuotes(text)
	switch unit {
	case IntervalYear, IntervalQuarter, IntervalMonth, IntervalWeek,
		IntervalDay, IntervalHour, IntervalMinute, IntervalSecond:
		var n int64
		if _, err := fmt.Sscanf(text, "%d", &n); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return n, nil

	case IntervalYearMonth:
		var a, b int64
		if _, err := fmt.Sscanf(text, "%d-%d", &a, &b); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return a*12 + b, nil
	case IntervalDayHour:
		var a, b int64
		if _, err := fmt.Sscanf(text, "%d %d", &a, &b); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return a*24 + b, nil
	case IntervalHourMinute:
		var a, b int64
		if _, err := fmt.Sscanf(text, "%d:%d", &a, &b); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return a*60 + b, nil
	case IntervalMinuteSecond:
		var a, b int64
		if _, err := fmt.Sscanf(text, "%d:%d", &a, &b); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return a*60 + b, nil
	case IntervalDayMinute:
		var d, h, m int64
		if _, err := fmt.Sscanf(text, "%d %d:%d", &d, &h, &m); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return d*24*60 + h*60 + m, nil
	case IntervalHourSecond:
		var h, m, s int64
		if _, err := fmt.Sscanf(text, "%d:%d:%d", &h, &m, &s); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return h*3600 + m*60 + s, nil
	case IntervalDaySecond:
		var d, h, m, s int64
		if _, err := fmt.Sscanf(text, "%d %d:%d:%d", &d, &h, &m, &s); err != nil {
			return 0, fmt.Errorf("parse %s literal %q: %w", unit, text, err)
		}
		return d*86400 + h*3600 + m*60 + s, nil

	case IntervalMicrosecond:
		return 0, fmt.Errorf("%w: MICROSECOND", ErrMicrosecondUnsupported)
	default:
		return 0, fmt.Errorf("%w: unknown interval unit %q", ErrIntervalOutOfRange, unit)
	}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
