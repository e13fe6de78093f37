package agenda

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// Window is the inclusive range of dates for which occurrences are expanded.
type Window struct {
	From calendar.Date
	To   calendar.Date

	// Location is the display timezone. Nil means UTC.
	Location *time.Location

	// MaxPerEvent caps the expansion of a single recurring event. Zero
	// means defaultMaxOccurrencesPerEvent.
	MaxPerEvent int
}

// Contains reports whether d lies inside w.
func (w Window) Contains(d calendar.Date) bool {
	return !d.Before(w.From) && !d.After(w.To)
}

func (w Window) bounds() (time.Time, time.Time) {
	return w.From.Time(w.Location), w.To.AddDays(1).Time(w.Location)
}

// Expansion is the outcome of Expand.
type Expansion struct {
	Occurrences []model.Occurrence
	// Truncated lists the UIDs whose recurrence hit MaxPerEvent.
	Truncated []string
}

// Expand turns events into the concrete occurrences that overlap w,
// applying RRULE, EXDATE and RECURRENCE-ID overrides.
func Expand(events []Event, w Window) (Expansion, error) {
	var out Expansion
	if w.To.Before(w.From) {
		return out, fmt.Errorf("agenda: window ends %s before it starts %s", w.To, w.From)
	}
	if w.Location == nil {
		w.Location = time.UTC
	}
	if w.MaxPerEvent <= 0 {
		w.MaxPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]Event)
	overrides := make(map[string][]Event)
	var order []string
	for _, ev := range events {
		key := ev.Source.ID + "\x00" + ev.UID
		if ev.IsOverride() {
			overrides[key] = append(overrides[key], ev)
			continue
		}
		if _, seen := bases[key]; !seen {
			order = append(order, key)
		}
		bases[key] = append(bases[key], ev)
	}

	for _, key := range order {
		for _, ev := range bases[key] {
			occ, truncated := expandEvent(ev, overrides[key], w)
			out.Occurrences = append(out.Occurrences, occ...)
			if truncated {
				out.Truncated = append(out.Truncated, ev.UID)
				appLog.Error("occurrence cap reached", errors.New("recurrence truncated"),
					"uid", ev.UID, "source", ev.Source.ID, "cap", w.MaxPerEvent)
			}
		}
	}
	return out, nil
}

func expandEvent(ev Event, overrides []Event, w Window) ([]model.Occurrence, bool) {
	if ev.RawRRule == "" {
		start, end := ev.Start, ev.End
		if o, ok := findOverride(overrides, start); ok {
			ev, start, end = o, o.Start, o.End
		}
		if !overlaps(ev, start, end, w) {
			return nil, false
		}
		return []model.Occurrence{makeOccurrence(ev, start, end, w.Location)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("invalid RRULE; event skipped", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event duration so occurrences that start
	// before the window but run into it are kept.
	dur := ev.End.Sub(ev.Start)
	from, to := w.bounds()
	if ev.AllDay {
		from = w.From.Time(time.UTC)
		to = w.To.AddDays(1).Time(time.UTC)
	}
	starts := set.Between(from.Add(-dur).In(ev.Start.Location()), to.In(ev.Start.Location()), true)

	truncated := false
	if len(starts) > w.MaxPerEvent {
		starts = starts[:w.MaxPerEvent]
		truncated = true
	}

	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		inst, start, end := ev, s, s.Add(dur)
		if o, ok := findOverride(overrides, s); ok {
			inst, start, end = o, o.Start, o.End
		}
		if !overlaps(inst, start, end, w) {
			continue
		}
		out = append(out, makeOccurrence(inst, start, end, w.Location))
	}
	return out, truncated
}

// findOverride returns the override whose RECURRENCE-ID is the instant start.
func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.RecurrenceID != nil && o.RecurrenceID.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func overlaps(ev Event, start, end time.Time, w Window) bool {
	first, last := spanDates(ev.AllDay, start, end, w.Location)
	return !last.Before(w.From) && !first.After(w.To)
}

// spanDates returns the first and last calendar dates an occurrence covers
// in loc. End is exclusive.
func spanDates(allDay bool, start, end time.Time, loc *time.Location) (calendar.Date, calendar.Date) {
	if allDay {
		first := calendar.DateOf(start)
		last := calendar.DateOf(end).AddDays(-1)
		if last.Before(first) {
			last = first
		}
		return first, last
	}
	first := calendar.DateOf(start.In(loc))
	if !end.After(start) {
		return first, first
	}
	return first, calendar.DateOf(end.Add(-time.Nanosecond).In(loc))
}

func makeOccurrence(ev Event, start, end time.Time, loc *time.Location) model.Occurrence {
	occ := model.Occurrence{
		SourceID: ev.Source.ID,
		UID:      ev.UID,
		Summary:  ev.Summary,
		Location: ev.Location,
		AllDay:   ev.AllDay,
	}
	if ev.AllDay {
		// All-day dates are floating: keep the wall date in the display zone.
		occ.Start = calendar.DateOf(start).Time(loc)
		occ.End = calendar.DateOf(end).Time(loc)
	} else {
		occ.Start = start.In(loc)
		occ.End = end.In(loc)
	}
	occ.InstanceKey = occ.Start.Format(time.RFC3339)
	return occ
}
