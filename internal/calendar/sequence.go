package calendar

import "iter"

// NextDates returns the infinite sequence of dates following start:
// element i is start+(i+1) days. Only the cursor is kept between
// elements. Ranging over the result again starts over from start.
func NextDates(start Date) iter.Seq[Date] {
	return func(yield func(Date) bool) {
		cursor := start
		for {
			cursor = cursor.AddDays(1)
			if !yield(cursor) {
				return
			}
		}
	}
}

// Take returns the first n dates of NextDates(start). Take with n == 0
// yields nothing; a negative n is an *InvalidCountError.
func Take(start Date, n int) (iter.Seq[Date], error) {
	if n < 0 {
		return nil, &InvalidCountError{Op: "take", Count: n}
	}
	return func(yield func(Date) bool) {
		if n == 0 {
			return
		}
		taken := 0
		for d := range NextDates(start) {
			if !yield(d) {
				return
			}
			taken++
			if taken == n {
				return
			}
		}
	}, nil
}

// DaysBefore returns d minus n days.
func DaysBefore(d Date, n int) Date {
	return d.AddDays(-n)
}

// FirstDayOfMonthBlock returns the first visible date of the month grid that
// contains d: the 1st of d's month, or the closest earlier day that falls on
// the week start.
func (g *Grid) FirstDayOfMonthBlock(d Date) Date {
	first := d.FirstOfMonth()
	return DaysBefore(first, g.weekdays.Position(first.Weekday()))
}
