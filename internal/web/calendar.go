package web

import (
	"errors"
	"fmt"
	"net/http"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// dayDTO is a grid day plus the events the agenda has for it.
type dayDTO struct {
	calendar.Day
	Events []model.Occurrence `json:"events"`
}

type weekdaysResponse struct {
	WeekStart string   `json:"week_start"`
	Names     []string `json:"names"`
	Weekend   []string `json:"weekend"`
}

// calendarResponse is the JSON shape for /api/calendar.
type calendarResponse struct {
	Reference calendar.Date `json:"reference"`
	Today     calendar.Date `json:"today"`
	Start     calendar.Date `json:"start"`
	Last      calendar.Date `json:"last"`
	WeekDays  []string      `json:"weekdays"`
	Weeks     [][]dayDTO    `json:"weeks"`
}

// nextResponse is the JSON shape for /api/calendar/next. Last is the value
// to pass as ?last= on the following request.
type nextResponse struct {
	Today calendar.Date `json:"today"`
	Last  calendar.Date `json:"last"`
	Weeks [][]dayDTO    `json:"weeks"`
}

func (s *Server) handleWeekdays(w http.ResponseWriter, _ *http.Request) {
	v := s.snapshot()
	names := v.grid.WeekDayNames()
	all := names.Names()
	writeJSON(w, http.StatusOK, weekdaysResponse{
		WeekStart: names.Start().String(),
		Names:     all,
		Weekend:   all[calendar.DaysPerWeek-2:],
	})
}

// handleCalendar returns the month block around ?date (default today).
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v := s.snapshot()
	q := r.URL.Query()

	ref, err := dateParam(q, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weeks, err := intParam(q, "weeks")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := weeks.OrElse(v.initialWeeks)
	if n > maxWeeks {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("weeks must be at most %d", maxWeeks))
		return
	}

	block, err := v.grid.BuildMonthBlock(ref.OrElse(v.today), v.today, n)
	if err != nil {
		s.writeCalendarError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, calendarResponse{
		Reference: block.Reference,
		Today:     v.today,
		Start:     block.Start,
		Last:      block.Last(),
		WeekDays:  v.grid.WeekDayNames().Names(),
		Weeks:     s.withEvents(block.Weeks),
	})
}

// handleNext returns the weeks following ?last for infinite scrolling.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	v := s.snapshot()
	q := r.URL.Query()

	last, err := dateParam(q, "last")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lastDate, ok := last.Get()
	if !ok {
		writeError(w, http.StatusBadRequest, "missing last date")
		return
	}
	days, err := intParam(q, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n := days.OrElse(v.extendDays)
	if n > maxExtendDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be at most %d", maxExtendDays))
		return
	}

	weeks, err := v.grid.ExtendWeeks(lastDate, v.today, n)
	if err != nil {
		s.writeCalendarError(w, r, err)
		return
	}

	tail := weeks[len(weeks)-1]
	writeJSON(w, http.StatusOK, nextResponse{
		Today: v.today,
		Last:  tail[len(tail)-1].Date,
		Weeks: s.withEvents(weeks),
	})
}

func (s *Server) withEvents(weeks []calendar.Week) [][]dayDTO {
	out := make([][]dayDTO, len(weeks))
	for i, week := range weeks {
		row := make([]dayDTO, len(week))
		for j, day := range week {
			row[j] = dayDTO{Day: day, Events: s.eventsOn(day.Date)}
		}
		out[i] = row
	}
	return out
}

func (s *Server) eventsOn(d calendar.Date) []model.Occurrence {
	if s.agenda == nil {
		return []model.Occurrence{}
	}
	if occ := s.agenda.On(d); occ != nil {
		return occ
	}
	return []model.Occurrence{}
}

// writeCalendarError maps grid contract violations to 400; anything else is
// unexpected and logged.
func (s *Server) writeCalendarError(w http.ResponseWriter, r *http.Request, err error) {
	var countErr *calendar.InvalidCountError
	var chunkErr *calendar.MisalignedChunkError
	switch {
	case errors.As(err, &countErr), errors.As(err, &chunkErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("calendar request failed", err, "path", r.URL.Path, "request_id", requestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
