// Package calendar maps instants onto local calendar days. Queue positions, service-time
// averages and analytics buckets all share these day boundaries.
package calendar

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Day returns the half-open window [midnight, next midnight) containing t.
func Day(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := DayStart(t, loc)
	return start, start.AddDate(0, 0, 1)
}

func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return parsed, nil
}

// Days lists the midnights of every day from start to end inclusive.
func Days(start, end time.Time, loc *time.Location) []time.Time {
	first := DayStart(start, loc)
	last := DayStart(end, loc)
	var days []time.Time
	for cursor := first; !cursor.After(last); cursor = cursor.AddDate(0, 0, 1) {
		days = append(days, cursor)
	}
	return days
}
