// Package dctime implements the datetime contract every device and
// parser family uses: a DateTime struct that round-trips through
// localtime/gmtime/mktime while preserving an optional timezone
// offset, and 64-bit Unix-epoch ticks.
package dctime

import (
	"math"
	"time"
)

// TZNone marks a DateTime with no timezone information, matching
// libdivecomputer's `NONE = INT_MIN` sentinel.
const TZNone = math.MinInt32

// DateTime mirrors libdivecomputer's dc_datetime_t.
type DateTime struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int
	Second    int
	TZMinutes int // TZNone if not set
}

// Ticks is whole seconds since the Unix epoch.
type Ticks int64

// FromTicks converts ticks to a DateTime. If tz is TZNone, the result is
// expressed in UTC (gmtime); otherwise it is shifted by tz minutes
// (localtime) and TZMinutes is preserved on the result.
func FromTicks(t Ticks, tz int) DateTime {
	var tm time.Time
	if tz == TZNone {
		tm = time.Unix(int64(t), 0).UTC()
	} else {
		loc := time.FixedZone("", tz*60)
		tm = time.Unix(int64(t), 0).In(loc)
	}
	return DateTime{
		Year:      tm.Year(),
		Month:     int(tm.Month()),
		Day:       tm.Day(),
		Hour:      tm.Hour(),
		Minute:    tm.Minute(),
		Second:    tm.Second(),
		TZMinutes: tz,
	}
}

// ToTicks converts a DateTime back to ticks (mktime). When TZMinutes is
// TZNone the fields are interpreted as UTC.
func (d DateTime) ToTicks() Ticks {
	tz := d.TZMinutes
	var loc *time.Location
	if tz == TZNone {
		loc = time.UTC
	} else {
		loc = time.FixedZone("", tz*60)
	}
	tm := time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, loc)
	return Ticks(tm.Unix())
}

// Now returns the current instant as DateTime in UTC, the reference
// clock used for Clock-event host timestamps.
func Now() DateTime {
	return FromTicks(Ticks(time.Now().Unix()), TZNone)
}
