package calendar

import (
	"slices"
	"time"
)

// DefaultWeeks is the number of week rows in an initial month block.
const DefaultWeeks = 10

// Week is one grid row of DaysPerWeek days, starting on the week start.
type Week []Day

// MonthBlock is the grid rendered for a full calendar page.
type MonthBlock struct {
	Reference Date   `json:"reference"`
	Start     Date   `json:"start"`
	Weeks     []Week `json:"weeks"`
}

// Days returns the days of every week in order.
func (b MonthBlock) Days() []Day {
	days := make([]Day, 0, len(b.Weeks)*DaysPerWeek)
	for _, w := range b.Weeks {
		days = append(days, w...)
	}
	return days
}

// Last returns the last rendered date, which is where ExtendWeeks resumes.
func (b MonthBlock) Last() Date {
	if len(b.Weeks) == 0 {
		return DaysBefore(b.Start, 1)
	}
	w := b.Weeks[len(b.Weeks)-1]
	return w[len(w)-1].Date
}

// Grid assembles classified days into week rows for one week-start
// convention. A Grid holds no mutable state and is safe for concurrent use.
type Grid struct {
	weekdays WeekDayNames
}

// NewGrid returns a Grid whose weeks begin on weekStart.
func NewGrid(weekStart time.Weekday) *Grid {
	return &Grid{weekdays: NewWeekDayNames(weekStart)}
}

// WeekDayNames returns the header names of g's weeks.
func (g *Grid) WeekDayNames() WeekDayNames {
	return g.weekdays
}

// BuildMonthBlock returns weeks rows starting at the first visible day of
// ref's month.
func (g *Grid) BuildMonthBlock(ref, today Date, weeks int) (MonthBlock, error) {
	if weeks <= 0 {
		return MonthBlock{}, &InvalidCountError{Op: "build month block", Count: weeks}
	}

	start := g.FirstDayOfMonthBlock(ref)
	// The sequencer yields days after its cursor, so start one day early.
	cursor := DaysBefore(start, 1)

	block := MonthBlock{
		Reference: ref,
		Start:     start,
		Weeks:     make([]Week, 0, weeks),
	}
	for range weeks {
		week, err := g.nextWeek(cursor, today)
		if err != nil {
			return MonthBlock{}, err
		}
		block.Weeks = append(block.Weeks, week)
		cursor = week[len(week)-1].Date
	}
	return block, nil
}

// ExtendWeeks returns the weeks covering the countDays days after last.
// countDays must be a positive multiple of DaysPerWeek.
func (g *Grid) ExtendWeeks(last, today Date, countDays int) ([]Week, error) {
	if countDays <= 0 {
		return nil, &InvalidCountError{Op: "extend weeks", Count: countDays}
	}
	if countDays%DaysPerWeek != 0 {
		return nil, &MisalignedChunkError{Count: countDays, Size: DaysPerWeek}
	}

	dates, err := Take(last, countDays)
	if err != nil {
		return nil, err
	}
	days := make([]Day, 0, countDays)
	for d := range dates {
		days = append(days, g.BuildDay(d, today))
	}

	rows, err := Chunk(days, DaysPerWeek)
	if err != nil {
		return nil, err
	}
	weeks := make([]Week, len(rows))
	for i, row := range rows {
		weeks[i] = Week(row)
	}
	return weeks, nil
}

func (g *Grid) nextWeek(cursor, today Date) (Week, error) {
	dates, err := Take(cursor, DaysPerWeek)
	if err != nil {
		return nil, err
	}
	week := make(Week, 0, DaysPerWeek)
	for d := range dates {
		week = append(week, g.BuildDay(d, today))
	}
	return week, nil
}

// Chunk splits items into consecutive groups of size. When len(items) is
// not a multiple of size the final group is short. The groups share
// items' backing array.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, &InvalidCountError{Op: "chunk", Count: size}
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for group := range slices.Chunk(items, size) {
		groups = append(groups, group)
	}
	return groups, nil
}
