package agenda

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/model"
)

const teamCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20250101T000000Z
DTSTART:20250106T090000Z
DTEND:20250106T093000Z
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20250108T090000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:standup@test
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250109T090000Z
DTSTART:20250109T150000Z
DTEND:20250109T153000Z
SUMMARY:Standup (moved)
END:VEVENT
BEGIN:VEVENT
UID:trip@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250110
DTEND;VALUE=DATE:20250113
SUMMARY:Trip
LOCATION:Lisbon
END:VEVENT
BEGIN:VEVENT
DTSTAMP:20250101T000000Z
DTSTART:20250106T100000Z
SUMMARY:No uid
END:VEVENT
END:VCALENDAR
`

const endlessCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:daily@test
DTSTAMP:20250101T000000Z
DTSTART:20250101T070000Z
DTEND:20250101T071500Z
RRULE:FREQ=DAILY
SUMMARY:Coffee
END:VEVENT
END:VCALENDAR
`

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func january(w *Window) {
	w.From = calendar.NewDate(2025, time.January, 1)
	w.To = calendar.NewDate(2025, time.January, 31)
}

func TestParseICS(t *testing.T) {
	src := Source{ID: "team", Path: "team.ics"}

	events, err := ParseICS(src, crlf(teamCalendar))
	require.NoError(t, err)
	require.Len(t, events, 3, "the VEVENT without UID is skipped")

	standup := events[0]
	assert.Equal(t, "standup@test", standup.UID)
	assert.Equal(t, "FREQ=DAILY;COUNT=5", standup.RawRRule)
	assert.False(t, standup.AllDay)
	assert.Equal(t, 30*time.Minute, standup.End.Sub(standup.Start))
	require.Len(t, standup.ExDates, 1)
	assert.True(t, standup.ExDates[0].Equal(time.Date(2025, time.January, 8, 9, 0, 0, 0, time.UTC)))

	override := events[1]
	assert.True(t, override.IsOverride())

	trip := events[2]
	assert.True(t, trip.AllDay)
	assert.Equal(t, "Lisbon", trip.Location)
	assert.Equal(t, time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), trip.Start)
	assert.Equal(t, time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC), trip.End)
}

func TestParseICSEmpty(t *testing.T) {
	_, err := ParseICS(Source{ID: "empty"}, []byte("  \r\n"))
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	events, err := ParseICS(Source{ID: "team"}, crlf(teamCalendar))
	require.NoError(t, err)

	var w Window
	january(&w)
	exp, err := Expand(events, w)
	require.NoError(t, err)
	assert.Empty(t, exp.Truncated)

	var summaries []string
	for _, o := range exp.Occurrences {
		summaries = append(summaries, o.Start.Format("01-02T15:04")+" "+o.Summary)
	}
	assert.ElementsMatch(t, []string{
		"01-06T09:00 Standup",
		"01-07T09:00 Standup",
		"01-09T15:00 Standup (moved)",
		"01-10T09:00 Standup",
		"01-10T00:00 Trip",
	}, summaries)
}

func TestExpandWindowClipsRecurrence(t *testing.T) {
	events, err := ParseICS(Source{ID: "team"}, crlf(teamCalendar))
	require.NoError(t, err)

	exp, err := Expand(events, Window{
		From: calendar.NewDate(2025, time.January, 7),
		To:   calendar.NewDate(2025, time.January, 7),
	})
	require.NoError(t, err)
	require.Len(t, exp.Occurrences, 1)
	assert.Equal(t, "Standup", exp.Occurrences[0].Summary)
}

func TestExpandTruncatesEndlessRule(t *testing.T) {
	events, err := ParseICS(Source{ID: "coffee"}, crlf(endlessCalendar))
	require.NoError(t, err)

	var w Window
	january(&w)
	w.MaxPerEvent = 3
	exp, err := Expand(events, w)
	require.NoError(t, err)
	assert.Len(t, exp.Occurrences, 3)
	assert.Equal(t, []string{"daily@test"}, exp.Truncated)
}

func TestExpandRejectsInvertedWindow(t *testing.T) {
	_, err := Expand(nil, Window{
		From: calendar.NewDate(2025, time.February, 1),
		To:   calendar.NewDate(2025, time.January, 1),
	})
	assert.Error(t, err)
}

const floatingCalendar = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//calgrid//test//EN
BEGIN:VEVENT
UID:review@test
DTSTAMP:20240101T000000Z
DTSTART:20240101T090000
DTEND:20240101T100000
RRULE:FREQ=DAILY;COUNT=3
EXDATE:20240102T090000
SUMMARY:Review
END:VEVENT
BEGIN:VEVENT
UID:review@test
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240103T090000
DTSTART:20240103T120000
DTEND:20240103T130000
SUMMARY:Review (late)
END:VEVENT
END:VCALENDAR
`

func TestExpandFloatingTimesOutsideUTC(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	prev := time.Local
	time.Local = ny
	t.Cleanup(func() { time.Local = prev })

	events, err := ParseICS(Source{ID: "floating"}, crlf(floatingCalendar))
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, events[0].ExDates, 1)
	assert.True(t, events[0].ExDates[0].Equal(time.Date(2024, time.January, 2, 9, 0, 0, 0, ny)))

	exp, err := Expand(events, Window{
		From:     calendar.NewDate(2024, time.January, 1),
		To:       calendar.NewDate(2024, time.January, 5),
		Location: ny,
	})
	require.NoError(t, err)

	var got []string
	for _, o := range exp.Occurrences {
		got = append(got, o.Start.Format("01-02T15:04")+" "+o.Summary)
	}
	assert.ElementsMatch(t, []string{
		"01-01T09:00 Review",
		"01-03T12:00 Review (late)",
	}, got)
}

func TestExpandDisplayLocation(t *testing.T) {
	events, err := ParseICS(Source{ID: "team"}, crlf(teamCalendar))
	require.NoError(t, err)

	loc := time.FixedZone("UTC-10", -10*60*60)
	exp, err := Expand(events, Window{
		From:     calendar.NewDate(2025, time.January, 5),
		To:       calendar.NewDate(2025, time.January, 5),
		Location: loc,
	})
	require.NoError(t, err)

	// 09:00Z on the 6th is still the 5th ten hours west of UTC.
	require.Len(t, exp.Occurrences, 1)
	assert.Equal(t, "Standup", exp.Occurrences[0].Summary)
	assert.Equal(t, 23, exp.Occurrences[0].Start.Hour())
}

func writeICS(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, crlf(body), 0o600))
	return path
}

func summariesOf(occs []model.Occurrence) []string {
	out := make([]string, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Summary)
	}
	return out
}

func TestStoreRefresh(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{
		Sources: []Source{
			{ID: "team", Path: writeICS(t, dir, "team.ics", teamCalendar)},
		},
		BackfillDays: 5,
		HorizonDays:  30,
		Now:          func() time.Time { return time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC) },
	})

	assert.Nil(t, store.Snapshot())
	assert.Empty(t, store.On(calendar.NewDate(2025, time.January, 6)))

	require.NoError(t, store.Refresh(context.Background()))

	snap := store.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, calendar.NewDate(2024, time.December, 31), snap.Window.From)
	assert.Equal(t, calendar.NewDate(2025, time.February, 4), snap.Window.To)

	assert.Equal(t, []string{"Standup"}, summariesOf(store.On(calendar.NewDate(2025, time.January, 6))))
	assert.Empty(t, store.On(calendar.NewDate(2025, time.January, 8)))
	assert.Equal(t, []string{"Standup (moved)"}, summariesOf(store.On(calendar.NewDate(2025, time.January, 9))))
	assert.Equal(t, []string{"Trip", "Standup"}, summariesOf(store.On(calendar.NewDate(2025, time.January, 10))))
	assert.Equal(t, []string{"Trip"}, summariesOf(store.On(calendar.NewDate(2025, time.January, 12))))
	assert.Empty(t, store.On(calendar.NewDate(2025, time.January, 13)))
}

func TestStoreRefreshKeepsGoodSources(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{
		Sources: []Source{
			{ID: "missing", Path: filepath.Join(dir, "missing.ics")},
			{ID: "team", Path: writeICS(t, dir, "team.ics", teamCalendar)},
		},
		HorizonDays: 30,
		Now:         func() time.Time { return time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC) },
	})

	err := store.Refresh(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.NotEmpty(t, store.On(calendar.NewDate(2025, time.January, 6)))
}

func TestStoreReconfigure(t *testing.T) {
	dir := t.TempDir()
	now := func() time.Time { return time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC) }
	store := NewStore(Options{HorizonDays: 30, Now: now})
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, 0, store.Snapshot().Len())

	store.Reconfigure(Options{
		Sources:     []Source{{ID: "coffee", Path: writeICS(t, dir, "coffee.ics", endlessCalendar)}},
		HorizonDays: 30,
		Now:         now,
	})
	require.NoError(t, store.Refresh(context.Background()))
	assert.Equal(t, []string{"Coffee"}, summariesOf(store.On(calendar.NewDate(2025, time.January, 20))))
}

func TestStoreNegativeWindowClamped(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{
		Sources:      []Source{{ID: "team", Path: writeICS(t, dir, "team.ics", teamCalendar)}},
		BackfillDays: -3,
		HorizonDays:  -5,
		Now:          func() time.Time { return time.Date(2025, time.January, 6, 12, 0, 0, 0, time.UTC) },
	})

	require.NoError(t, store.Refresh(context.Background()))

	snap := store.Snapshot()
	require.NotNil(t, snap)
	today := calendar.NewDate(2025, time.January, 6)
	assert.Equal(t, today, snap.Window.From)
	assert.Equal(t, today, snap.Window.To)
	assert.Equal(t, []string{"Standup"}, summariesOf(store.On(today)))
}

func TestStoreRefreshCanceled(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(Options{
		Sources: []Source{{ID: "team", Path: writeICS(t, dir, "team.ics", teamCalendar)}},
		Now:     time.Now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Refresh(ctx), context.Canceled)
	assert.Nil(t, store.Snapshot())
}
