// Package calendar holds the ISO-8601 week math and local date keys used to
// bucket recordings and check-ins into calendar days.
//
// Every function works on the calendar fields of the time value it is given.
// Callers convert to the viewer's zone with t.In(loc) first; nothing here
// reads UTC fields of a zoned time.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the YYYY-MM-DD key format.
const DateLayout = "2006-01-02"

// LocalDateKey formats the local year, month and day of t as YYYY-MM-DD.
func LocalDateKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ParseDateKey parses a YYYY-MM-DD key as local midnight in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// ValidDateKey reports whether key is a real YYYY-MM-DD date.
func ValidDateKey(key string) bool {
	_, err := time.Parse(DateLayout, key)
	return err == nil && len(key) == len(DateLayout)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ISOWeek returns the ISO-8601 year and week number t falls in. Week 1 is the
// week holding January 4th. Dates before week 1 belong to the last week of
// the previous year, found by applying the same rule to December 31st.
// Dates on or after the next year's week 1 Monday belong to that year.
func ISOWeek(t time.Time) (year, week int) {
	d := civil(t)
	year = d.Year()

	if next := weekOneMonday(year + 1); !d.Before(next) {
		return year + 1, 1
	}
	diff := daysBetween(weekOneMonday(year), d)
	if diff < 0 {
		return ISOWeek(time.Date(year-1, time.December, 31, 0, 0, 0, 0, time.UTC))
	}
	return year, diff/7 + 1
}

// WeeksInYear returns 52 or 53, the number of ISO weeks in year.
func WeeksInYear(year int) int {
	_, w := ISOWeek(time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC))
	return w
}

// WeekDateRange returns Monday through Sunday of ISO week (year, week) as
// local midnights in loc.
func WeekDateRange(year, week int, loc *time.Location) [7]time.Time {
	if loc == nil {
		loc = time.Local
	}
	monday := weekOneMonday(year).AddDate(0, 0, (week-1)*7)

	var out [7]time.Time
	for i := range out {
		d := monday.AddDate(0, 0, i)
		out[i] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	}
	return out
}

// WeekDateKeys is WeekDateRange formatted with LocalDateKey.
func WeekDateKeys(year, week int, loc *time.Location) [7]string {
	var keys [7]string
	for i, d := range WeekDateRange(year, week, loc) {
		keys[i] = LocalDateKey(d)
	}
	return keys
}

// weekOneMonday locates the Monday of ISO week 1 via January 4th's weekday.
func weekOneMonday(year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -(ISOWeekday(jan4) - 1))
}

// civil drops the clock and zone of t, keeping its local calendar fields.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
