package calendar

import (
	"fmt"
	"strings"
	"time"
)

// DaysPerWeek is the length of every Week row.
const DaysPerWeek = 7

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday parses an English weekday name, ignoring case and
// surrounding whitespace.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdaysByName[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return time.Sunday, fmt.Errorf("calendar: unknown weekday %q", s)
	}
	return wd, nil
}

// WeekDayNames is the ordered set of weekday names for one week-start
// convention. Position 0 is the week start; the last two positions form the
// weekend pair.
type WeekDayNames struct {
	start time.Weekday
}

// NewWeekDayNames returns the ordering that begins on start.
func NewWeekDayNames(start time.Weekday) WeekDayNames {
	return WeekDayNames{start: start % DaysPerWeek}
}

// Start returns the weekday at position 0.
func (w WeekDayNames) Start() time.Weekday {
	return w.start
}

// Names returns the seven weekday names in display order.
func (w WeekDayNames) Names() []string {
	names := make([]string, DaysPerWeek)
	for i := range names {
		names[i] = w.At(i).String()
	}
	return names
}

// At returns the weekday at position i (0-6).
func (w WeekDayNames) At(i int) time.Weekday {
	return time.Weekday((int(w.start) + i) % DaysPerWeek)
}

// Position returns the column of wd in a week row.
func (w WeekDayNames) Position(wd time.Weekday) int {
	return (int(wd) - int(w.start) + DaysPerWeek) % DaysPerWeek
}

// IsWeekend reports whether wd is one of the last two names of the set.
func (w WeekDayNames) IsWeekend(wd time.Weekday) bool {
	return w.Position(wd) >= DaysPerWeek-2
}
