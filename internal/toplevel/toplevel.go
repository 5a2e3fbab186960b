// Package toplevel implements the top-level tick store: a routing table
// over date-disjoint child tick libraries, so reads and writes addressed
// to a single logical symbol fan out to whichever child library owns the
// relevant period (e.g. one tickstore.Library per year).
package toplevel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/logging"
	"chronovault/internal/table"
	"chronovault/internal/tickstore"
)

// Route maps a date range to the child library that owns it. Ranges are
// half-open [Start, End) and must not overlap any other route in a Store.
type Route struct {
	LibraryName string
	Start       time.Time
	End         time.Time
}

func (r Route) contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Route) overlaps(other Route) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Options configures a Store's handling of rows that fall outside every
// registered route.
type Options struct {
	// DropUnrouted restores the legacy silent-drop behavior. Default is
	// fail-fast: Write returns chronoerr.ErrUnrouted when any row is
	// unrouted.
	DropUnrouted bool

	Logger *slog.Logger
}

// Store is the top-level tick store: a routing table plus a resolver that
// looks up each route's child tickstore.Library by name.
type Store struct {
	mu           sync.RWMutex
	routes       []Route
	resolve      func(libraryName string) (*tickstore.Library, bool)
	dropUnrouted bool
	logger       *slog.Logger
}

// New builds a Store that resolves route targets through resolve, called by
// name on every access rather than snapshotted once. This lets a child
// tick-store library registered after the top-level store still be routed
// to once a route naming it is added. Routes are added afterward via Add.
func New(resolve func(libraryName string) (*tickstore.Library, bool), opts Options) *Store {
	return &Store{
		resolve:      resolve,
		dropUnrouted: opts.DropUnrouted,
		logger:       logging.Default(opts.Logger).With("component", "toplevel"),
	}
}

// Add registers a new route. It fails with chronoerr.ErrLibraryNotFound if
// libraryName isn't a known child, and chronoerr.ErrOverlappingData if the
// new range overlaps an existing route.
func (s *Store) Add(ctx context.Context, libraryName string, start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("toplevel: add route %s: end %s is not after start %s", libraryName, end, start)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.resolve(libraryName); !ok {
		return fmt.Errorf("toplevel: add route: %w: %s", chronoerr.ErrLibraryNotFound, libraryName)
	}

	candidate := Route{LibraryName: libraryName, Start: start, End: end}
	for _, r := range s.routes {
		if r.overlaps(candidate) {
			return fmt.Errorf("toplevel: add route %s [%s,%s): overlaps %s [%s,%s): %w",
				libraryName, start, end, r.LibraryName, r.Start, r.End, chronoerr.ErrOverlappingData)
		}
	}

	s.routes = append(s.routes, candidate)
	sort.Slice(s.routes, func(i, j int) bool { return s.routes[i].Start.Before(s.routes[j].Start) })
	s.logger.Info("added route", "library", libraryName, "start", start, "end", end)
	return nil
}

// Routes returns the current routing table, ascending by Start.
func (s *Store) Routes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Route, len(s.routes))
	copy(out, s.routes)
	return out
}

func routeFor(routes []Route, t time.Time) (Route, bool) {
	for _, r := range routes {
		if r.contains(t) {
			return r, true
		}
	}
	return Route{}, false
}

// Write partitions tbl's rows by routing interval and writes each partition
// to its owning child library. It returns the number of rows that fell
// outside every route. That is an error by default (chronoerr.ErrUnrouted)
// unless Options.DropUnrouted is set, in which case the rows are silently
// dropped and only logged.
func (s *Store) Write(ctx context.Context, symbol string, tbl table.Table) (int, error) {
	s.mu.RLock()
	routes := make([]Route, len(s.routes))
	copy(routes, s.routes)
	resolve := s.resolve
	dropUnrouted := s.dropUnrouted
	s.mu.RUnlock()

	index := tbl.Index()
	if len(index) == 0 {
		return 0, nil
	}

	type partition struct {
		route Route
		start int
		end   int
	}
	var partitions []partition
	dropped := 0

	i := 0
	for i < len(index) {
		route, ok := routeFor(routes, index[i])
		if !ok {
			dropped++
			i++
			continue
		}
		start := i
		for i < len(index) && route.contains(index[i]) {
			i++
		}
		partitions = append(partitions, partition{route: route, start: start, end: i})
	}

	for _, p := range partitions {
		child, ok := resolve(p.route.LibraryName)
		if !ok {
			return dropped, fmt.Errorf("toplevel: write %s: %w: %s", symbol, chronoerr.ErrLibraryNotFound, p.route.LibraryName)
		}
		part := slicePartition(tbl, p.start, p.end)
		if err := child.Write(ctx, symbol, part); err != nil {
			return dropped, fmt.Errorf("toplevel: write %s: library %s: %w", symbol, p.route.LibraryName, err)
		}
	}

	if dropped > 0 {
		s.logger.Warn("rows fell outside every route", "symbol", symbol, "dropped", dropped)
		if !dropUnrouted {
			return dropped, fmt.Errorf("toplevel: write %s: %d rows unrouted: %w", symbol, dropped, chronoerr.ErrUnrouted)
		}
	}
	return dropped, nil
}

func slicePartition(tbl table.Table, start, end int) *table.Frame {
	index := tbl.Index()[start:end]
	cols := tbl.Columns()
	sliced := make([]table.Column, len(cols))
	for i, c := range cols {
		sliced[i] = c.Slice(start, end)
	}
	return table.NewFrame(index, tbl.Timezone(), sliced...)
}

// Read concatenates rows in [from,to] across every child library whose
// route intersects the range, in ascending time order. A zero from/to is
// unbounded on that side.
func (s *Store) Read(ctx context.Context, symbol string, from, to time.Time) (*table.Frame, error) {
	s.mu.RLock()
	routes := make([]Route, len(s.routes))
	copy(routes, s.routes)
	resolve := s.resolve
	s.mu.RUnlock()

	var index []time.Time
	var colOrder []string
	cols := make(map[string]table.Column)
	tz := ""

	for _, r := range routes {
		if !from.IsZero() && !r.End.After(from) {
			continue
		}
		if !to.IsZero() && r.Start.After(to) {
			continue
		}

		child, ok := resolve(r.LibraryName)
		if !ok {
			return nil, fmt.Errorf("toplevel: read %s: %w: %s", symbol, chronoerr.ErrLibraryNotFound, r.LibraryName)
		}
		rangeFrom, rangeTo := from, to
		if rangeFrom.Before(r.Start) {
			rangeFrom = r.Start
		}
		// r.End is the route's exclusive upper bound; child.Read treats its
		// to argument as inclusive, so clamp one millisecond short of it.
		routeEnd := r.End.Add(-time.Millisecond)
		if rangeTo.IsZero() || rangeTo.After(routeEnd) {
			rangeTo = routeEnd
		}

		part, err := child.Read(ctx, symbol, rangeFrom, rangeTo)
		if chronoerr.KindOf(err) == chronoerr.KindNoDataFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("toplevel: read %s: library %s: %w", symbol, r.LibraryName, err)
		}

		if tz == "" {
			tz = part.Timezone()
		}
		if len(colOrder) == 0 {
			for _, c := range part.Columns() {
				colOrder = append(colOrder, c.Name())
			}
		}
		index = append(index, part.Index()...)
		for _, c := range part.Columns() {
			if existing, ok := cols[c.Name()]; ok {
				cols[c.Name()] = concatColumns(existing, c)
			} else {
				cols[c.Name()] = c
			}
		}
	}

	if len(index) == 0 {
		return nil, fmt.Errorf("toplevel: read %s: %w", symbol, chronoerr.ErrNoDataFound)
	}

	finalCols := make([]table.Column, 0, len(colOrder))
	for _, name := range colOrder {
		finalCols = append(finalCols, cols[name])
	}
	return table.NewFrame(index, tz, finalCols...), nil
}

func concatColumns(a, b table.Column) table.Column {
	raw := a.Encode(nil)
	raw = b.Encode(raw)
	col, err := chunking.DecodeColumn(a.Name(), a.Dtype(), a.Len()+b.Len(), raw)
	if err != nil {
		panic(fmt.Sprintf("toplevel: concat column %q: %v", a.Name(), err))
	}
	return col
}

// ListSymbols returns the union of every symbol across the child libraries
// whose routing interval intersects [from,to]. A zero from/to is unbounded
// on that side, matching the children selected by Read.
func (s *Store) ListSymbols(ctx context.Context, from, to time.Time) ([]string, error) {
	s.mu.RLock()
	routes := make([]Route, len(s.routes))
	copy(routes, s.routes)
	resolve := s.resolve
	s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, r := range routes {
		if !from.IsZero() && !r.End.After(from) {
			continue
		}
		if !to.IsZero() && r.Start.After(to) {
			continue
		}

		child, ok := resolve(r.LibraryName)
		if !ok {
			return nil, fmt.Errorf("toplevel: list symbols: %w: %s", chronoerr.ErrLibraryNotFound, r.LibraryName)
		}
		symbols, err := child.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("toplevel: list symbols: library %s: %w", r.LibraryName, err)
		}
		for _, sym := range symbols {
			seen[sym] = true
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}
