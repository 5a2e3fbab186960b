package tickstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chronovault/internal/chronoerr"
	"chronovault/internal/chunking"
	"chronovault/internal/logging"
	"chronovault/internal/quota"
	"chronovault/internal/table"
)

// Options configures a Library's chunk grouping and quota behavior.
type Options struct {
	// GroupMode selects how Write partitions a batch into chunks.
	// Zero value is GroupByRowCount.
	GroupMode GroupMode

	// TargetRowCount is used when GroupMode is GroupByRowCount. <= 0
	// falls back to DefaultTargetRowCount.
	TargetRowCount int

	// Quota enforces a storage limit before writes. Nil means unlimited.
	Quota *quota.Accountant

	Logger *slog.Logger
}

// Library is the tick-store facade: append-only, irregular-interval
// ingestion grouped into independently-compressed chunks, distinct from
// the version-store's snapshot-and-rewrite model.
type Library struct {
	store          Store
	groupMode      GroupMode
	targetRowCount int
	quota          *quota.Accountant
	logger         *slog.Logger
}

// New builds a Library over the given Store.
func New(store Store, opts Options) *Library {
	targetRowCount := opts.TargetRowCount
	if targetRowCount <= 0 {
		targetRowCount = DefaultTargetRowCount
	}
	return &Library{
		store:          store,
		groupMode:      opts.GroupMode,
		targetRowCount: targetRowCount,
		quota:          opts.Quota,
		logger:         logging.Default(opts.Logger).With("component", "tickstore"),
	}
}

// Write appends tbl's rows to symbol's tick history. Rows must be
// strictly after the symbol's current MaxDate; Write never rewrites or
// reorders existing chunks.
func (l *Library) Write(ctx context.Context, symbol string, tbl table.Table) error {
	if tbl.Len() == 0 {
		return nil
	}
	if l.quota != nil {
		if err := l.quota.Check(ctx); err != nil {
			return err
		}
	}

	index := tbl.Index()
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return fmt.Errorf("tickstore: write %s: row %d timestamp %s is not after row %d timestamp %s: %w",
				symbol, i, index[i], i-1, index[i-1], chronoerr.ErrUnorderedData)
		}
	}

	existingMax, err := l.store.MaxDate(ctx, symbol)
	if err != nil && chronoerr.KindOf(err) != chronoerr.KindNoDataFound {
		return fmt.Errorf("tickstore: write %s: max date: %w", symbol, err)
	}
	if err == nil && !index[0].After(existingMax) {
		return fmt.Errorf("tickstore: write %s: first row %s is not after existing max date %s: %w",
			symbol, index[0], existingMax, chronoerr.ErrUnorderedData)
	}

	msIndex := make([]int64, len(index))
	for i, t := range index {
		msIndex[i] = t.UnixMilli()
	}

	bounds := groupBounds(index, l.groupMode, l.targetRowCount)
	for _, b := range bounds {
		chunk, err := buildChunk(symbol, tbl, b[0], b[1], msIndex)
		if err != nil {
			return fmt.Errorf("tickstore: write %s: build chunk: %w", symbol, err)
		}
		if err := l.store.PutChunk(ctx, chunk); err != nil {
			return fmt.Errorf("tickstore: write %s: put chunk: %w", symbol, err)
		}
	}
	l.logger.Info("wrote ticks", "symbol", symbol, "rows", tbl.Len(), "chunks", len(bounds))
	return nil
}

// Read returns symbol's rows whose timestamps fall in [from,to], trimmed
// to that range and concatenated across chunks in ascending order. A zero
// from/to is unbounded on that side.
func (l *Library) Read(ctx context.Context, symbol string, from, to time.Time) (*table.Frame, error) {
	chunks, err := l.store.ListChunks(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("tickstore: read %s: %w", symbol, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("tickstore: read %s: %w", symbol, chronoerr.ErrNoDataFound)
	}

	var outIndex []time.Time
	var outCols map[string]table.Column
	var colOrder []string
	tz := chunks[0].Timezone

	for _, c := range chunks {
		msIndex, cols, err := decodeChunk(c)
		if err != nil {
			return nil, fmt.Errorf("tickstore: read %s: decode chunk: %w", symbol, err)
		}
		if outCols == nil {
			outCols = make(map[string]table.Column, len(cols))
			for _, col := range cols {
				colOrder = append(colOrder, col.Name())
			}
		}

		start, end := 0, len(msIndex)
		for start < end && !withinRange(decodeMS(msIndex[start]), from, to) {
			start++
		}
		for end > start && !withinRange(decodeMS(msIndex[end-1]), from, to) {
			end--
		}
		if start >= end {
			continue
		}

		for _, t := range msIndex[start:end] {
			outIndex = append(outIndex, decodeMS(t))
		}
		for _, col := range cols {
			trimmed := col.Slice(start, end)
			if existing, ok := outCols[col.Name()]; ok {
				outCols[col.Name()] = concatColumns(existing, trimmed)
			} else {
				outCols[col.Name()] = trimmed
			}
		}
	}

	if len(outIndex) == 0 {
		return nil, fmt.Errorf("tickstore: read %s: %w", symbol, chronoerr.ErrNoDataFound)
	}

	finalCols := make([]table.Column, 0, len(colOrder))
	for _, name := range colOrder {
		finalCols = append(finalCols, outCols[name])
	}
	return table.NewFrame(outIndex, tz, finalCols...), nil
}

func withinRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// concatColumns joins two same-name, same-dtype columns. Column doesn't
// expose a generic append, so this round-trips through Encode+DecodeColumn,
// which works for any Column implementation regardless of its concrete type.
func concatColumns(a, b table.Column) table.Column {
	raw := a.Encode(nil)
	raw = b.Encode(raw)
	col, err := chunking.DecodeColumn(a.Name(), a.Dtype(), a.Len()+b.Len(), raw)
	if err != nil {
		// Both a and b were themselves successfully decoded moments ago,
		// so re-encoding and decoding them cannot fail.
		panic(fmt.Sprintf("tickstore: concat column %q: %v", a.Name(), err))
	}
	return col
}

// MinDate returns the earliest timestamp stored for symbol.
func (l *Library) MinDate(ctx context.Context, symbol string) (time.Time, error) {
	return l.store.MinDate(ctx, symbol)
}

// MaxDate returns the latest timestamp stored for symbol.
func (l *Library) MaxDate(ctx context.Context, symbol string) (time.Time, error) {
	return l.store.MaxDate(ctx, symbol)
}

// ListSymbols returns every symbol with at least one chunk.
func (l *Library) ListSymbols(ctx context.Context) ([]string, error) {
	return l.store.ListSymbols(ctx)
}

// Delete removes symbol's entire tick history.
func (l *Library) Delete(ctx context.Context, symbol string) error {
	return l.store.DeleteSymbol(ctx, symbol)
}

// SetQuota installs or replaces the enforced quota.
func (l *Library) SetQuota(q quota.Quota) {
	if l.quota != nil {
		l.quota.SetQuota(q)
	}
}

// GetQuota returns the currently enforced quota, or a zero (unlimited)
// Quota if no accountant is configured.
func (l *Library) GetQuota() quota.Quota {
	if l.quota == nil {
		return quota.Quota{}
	}
	return l.quota.Quota()
}

// CheckQuota reports chronoerr.ErrQuotaExceeded if the library is
// currently over its quota.
func (l *Library) CheckQuota(ctx context.Context) error {
	if l.quota == nil {
		return nil
	}
	return l.quota.Check(ctx)
}
