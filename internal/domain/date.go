package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical textual form of a Date.
const DateLayout = "2006-01-02"

// Date is a UTC calendar day. The zero value is the zero time's day.
// Comparable, usable as a map key.
type Date struct {
	t time.Time
}

// NewDate constructs a Date from year/month/day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t.UTC()}, nil
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Today returns the current UTC day.
func Today() Date {
	return DateOf(time.Now())
}

func (d Date) String() string { return d.t.Format(DateLayout) }

// Time returns UTC midnight at the start of the day.
func (d Date) Time() time.Time { return d.t }

// End returns the exclusive upper bound of the day, i.e. the next midnight.
// Hourly observations stamped within the day satisfy ts < d.End().
func (d Date) End() time.Time { return d.t.AddDate(0, 0, 1) }

// AddDays returns the day n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Next returns the following day.
func (d Date) Next() Date { return d.AddDays(1) }

// DaysSince returns the number of whole days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t) / (24 * time.Hour))
}

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// MarshalText implements encoding.TextMarshaler (YAML/JSON keys).
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange enumerates days [from, to] inclusive, in ascending order.
func DateRange(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	days := make([]Date, 0, to.DaysSince(from)+1)
	for d := from; !d.After(to); d = d.Next() {
		days = append(days, d)
	}
	return days
}
