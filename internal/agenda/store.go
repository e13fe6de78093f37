package agenda

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// maxParallelLoads bounds how many ICS files are read and parsed at once.
const maxParallelLoads = 4

// Options configures a Store.
type Options struct {
	Sources  []Source
	Location *time.Location

	// BackfillDays and HorizonDays size the expansion window around today.
	BackfillDays int
	HorizonDays  int

	// Now is the clock used to center the window. Nil means time.Now.
	Now func() time.Time
}

// Snapshot is an immutable, date-indexed view of all occurrences loaded by
// one Refresh.
type Snapshot struct {
	Window    Window
	LoadedAt  time.Time
	Truncated []string
	byDate    map[calendar.Date][]model.Occurrence
}

// On returns the occurrences touching d, all-day first then by start.
func (s *Snapshot) On(d calendar.Date) []model.Occurrence {
	if s == nil {
		return nil
	}
	return s.byDate[d]
}

// Len returns the number of dates with at least one occurrence.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byDate)
}

// Store holds the latest Snapshot. Refresh builds a new snapshot off to the
// side and swaps it in, so readers never see a partial load.
type Store struct {
	mu   sync.RWMutex
	opts Options
	snap *Snapshot

	refreshMu sync.Mutex
}

// NewStore returns an empty Store. Call Refresh to load it.
func NewStore(opts Options) *Store {
	return &Store{opts: withDefaults(opts)}
}

func withDefaults(opts Options) Options {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackfillDays < 0 {
		opts.BackfillDays = 0
	}
	if opts.HorizonDays < 0 {
		opts.HorizonDays = 0
	}
	return opts
}

// Reconfigure replaces the options used by subsequent refreshes. The
// current snapshot stays in place until the next Refresh.
func (s *Store) Reconfigure(opts Options) {
	s.mu.Lock()
	s.opts = withDefaults(opts)
	s.mu.Unlock()
}

// Snapshot returns the current snapshot, or nil before the first Refresh.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// On returns the occurrences of the current snapshot touching d.
func (s *Store) On(d calendar.Date) []model.Occurrence {
	return s.Snapshot().On(d)
}

// Refresh reloads every source and installs a new snapshot. Sources that
// fail to load are left out of the snapshot and reported in the returned
// error; the snapshot is still installed.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	opts := s.opts
	s.mu.RUnlock()

	today := calendar.DateOf(opts.Now().In(opts.Location))
	w := Window{
		From:     calendar.DaysBefore(today, opts.BackfillDays),
		To:       today.AddDays(opts.HorizonDays),
		Location: opts.Location,
	}

	parsed := make([][]Event, len(opts.Sources))
	loadErrs := make([]error, len(opts.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, src := range opts.Sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			events, err := loadSource(src)
			if err != nil {
				loadErrs[i] = err
				appLog.Error("ics load failed", err, "source", src.ID, "path", src.Path)
				return nil
			}
			parsed[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("agenda: refresh: %w", err)
	}

	var events []Event
	for _, evs := range parsed {
		events = append(events, evs...)
	}
	exp, err := Expand(events, w)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Window:    w,
		LoadedAt:  opts.Now(),
		Truncated: exp.Truncated,
		byDate:    indexByDate(exp.Occurrences, w),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	appLog.Info("agenda refreshed",
		"sources", len(opts.Sources),
		"occurrences", len(exp.Occurrences),
		"days", snap.Len(),
		"from", w.From,
		"to", w.To,
	)
	return errors.Join(loadErrs...)
}

func loadSource(src Source) ([]Event, error) {
	body, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("agenda: read %s: %w", src.ID, err)
	}
	return ParseICS(src, body)
}

func indexByDate(occs []model.Occurrence, w Window) map[calendar.Date][]model.Occurrence {
	idx := make(map[calendar.Date][]model.Occurrence)
	for _, o := range occs {
		first, last := spanDates(o.AllDay, o.Start, o.End, w.Location)
		if first.Before(w.From) {
			first = w.From
		}
		if last.After(w.To) {
			last = w.To
		}
		for d := first; !d.After(last); d = d.AddDays(1) {
			idx[d] = append(idx[d], o)
		}
	}
	for _, list := range idx {
		slices.SortFunc(list, compareOccurrences)
	}
	return idx
}

func compareOccurrences(a, b model.Occurrence) int {
	if a.AllDay != b.AllDay {
		if a.AllDay {
			return -1
		}
		return 1
	}
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return cmp.Compare(a.Summary, b.Summary)
}
