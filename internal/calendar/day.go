package calendar

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DayKind classifies a Day. Exactly one kind applies to every date.
type DayKind int

const (
	Regular DayKind = iota
	Weekend
	Today
	FirstOfMonth
)

var dayKindNames = [...]string{
	Regular:      "regular",
	Weekend:      "weekend",
	Today:        "today",
	FirstOfMonth: "first_of_month",
}

func (k DayKind) String() string {
	if k < 0 || int(k) >= len(dayKindNames) {
		return fmt.Sprintf("DayKind(%d)", int(k))
	}
	return dayKindNames[k]
}

// MarshalText encodes k by name so JSON payloads stay readable.
func (k DayKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(dayKindNames) {
		return nil, fmt.Errorf("calendar: unknown day kind %d", int(k))
	}
	return []byte(dayKindNames[k]), nil
}

// StyleBundle holds the style tags a renderer applies verbatim to one day
// cell. The slot set is fixed; only the values differ per kind.
type StyleBundle struct {
	Container  string `json:"container"`
	DateLabel  string `json:"dateLabel"`
	EventFront string `json:"eventFront"`
	EventBack  string `json:"eventBack"`
}

var styleBundles = [...]StyleBundle{
	Regular: {
		Container:  "day",
		DateLabel:  "day-label",
		EventFront: "event",
		EventBack:  "event-back",
	},
	Weekend: {
		Container:  "day day--weekend",
		DateLabel:  "day-label day-label--muted",
		EventFront: "event event--weekend",
		EventBack:  "event-back event-back--weekend",
	},
	Today: {
		Container:  "day day--today",
		DateLabel:  "day-label day-label--today",
		EventFront: "event event--today",
		EventBack:  "event-back event-back--today",
	},
	FirstOfMonth: {
		Container:  "day day--month-start",
		DateLabel:  "day-label day-label--month",
		EventFront: "event event--month-start",
		EventBack:  "event-back event-back--month-start",
	},
}

// StyleFor returns the style bundle of kind k. Unknown kinds get the
// Regular bundle.
func StyleFor(k DayKind) StyleBundle {
	if k < 0 || int(k) >= len(styleBundles) {
		return styleBundles[Regular]
	}
	return styleBundles[k]
}

// Day is one rendered grid cell. Days are built fresh for every render and
// never mutated afterwards.
type Day struct {
	Date       Date        `json:"date"`
	Kind       DayKind     `json:"kind"`
	Weekday    string      `json:"weekday"`
	ShortLabel string      `json:"shortLabel"`
	FullLabel  string      `json:"fullLabel"`
	Style      StyleBundle `json:"style"`
}

// Classify returns the kind of date relative to today.
// Precedence is Today > Weekend > FirstOfMonth > Regular, so a weekend 1st
// is a Weekend.
func (g *Grid) Classify(date, today Date) DayKind {
	switch {
	case date == today:
		return Today
	case g.weekdays.IsWeekend(date.Weekday()):
		return Weekend
	case date.Day == 1:
		return FirstOfMonth
	default:
		return Regular
	}
}

// BuildDay wraps date into a Day classified against today.
func (g *Grid) BuildDay(date, today Date) Day {
	kind := g.Classify(date, today)
	return Day{
		Date:       date,
		Kind:       kind,
		Weekday:    date.Weekday().String(),
		ShortLabel: shortLabel(date),
		FullLabel:  fullLabel(date, kind),
		Style:      StyleFor(kind),
	}
}

func strictMonthAbbr(m time.Month) string {
	return m.String()[:3]
}

func shortLabel(d Date) string {
	return fmt.Sprintf("%02d", d.Day)
}

// fullLabel renders "03 MAY 88" with the full month name. Month starts use
// the three-letter form, so June 1st reads "01 JUN 88" while June 2nd reads
// "02 JUNE 88".
func fullLabel(d Date, kind DayKind) string {
	month := d.Month.String()
	if kind == FirstOfMonth {
		month = strictMonthAbbr(d.Month)
	}
	yy := ((d.Year % 100) + 100) % 100
	// A Caser is stateful, so one is made per call rather than shared.
	return cases.Upper(language.English).String(fmt.Sprintf("%02d %s %02d", d.Day, month, yy))
}
