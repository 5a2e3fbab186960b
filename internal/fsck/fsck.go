// Package fsck implements a consistency checker: it detects the three
// ways a library's version, segment, and counter state can drift apart,
// and repairs the ones that are safe to repair automatically.
package fsck

import (
	"context"
	"fmt"

	"chronovault/internal/chunking"
	"chronovault/internal/segment"
	"chronovault/internal/version"
)

// ProblemKind classifies one finding.
type ProblemKind int

const (
	// OrphanSegment is a stored segment whose ParentVersions is empty. A
	// segment whose parents name only versions that no longer exist is not
	// reported. Safe to repair: delete it.
	OrphanSegment ProblemKind = iota
	// MissingSegment is a version whose descriptor references a sha that
	// is absent from the segment store. Not safely repairable; the
	// version is corrupt and must be flagged for operator attention.
	MissingSegment
	// CounterDrift is a version-number counter that has fallen behind the
	// highest version number actually present. Safe to repair: reserve
	// numbers up to the max before resuming writes.
	CounterDrift
)

func (k ProblemKind) String() string {
	switch k {
	case OrphanSegment:
		return "OrphanSegment"
	case MissingSegment:
		return "MissingSegment"
	case CounterDrift:
		return "CounterDrift"
	default:
		return "Unknown"
	}
}

// Problem is one finding for one symbol.
type Problem struct {
	Kind       ProblemKind
	Symbol     string
	Sha        chunking.Sha // set for OrphanSegment, MissingSegment
	VersionNum int64        // set for MissingSegment
	Observed   int64        // CounterDrift: the counter's value before repair
	Expected   int64        // CounterDrift: MaxVersionNumber
}

// Report is the result of checking one symbol.
type Report struct {
	Symbol   string
	Problems []Problem
}

// Checker cross-references a version.Index and segment.Store for a single
// library's symbols.
type Checker struct {
	versions version.Index
	segments segment.Store
}

// New creates a Checker over the given version and segment stores.
func New(versions version.Index, segments segment.Store) *Checker {
	return &Checker{versions: versions, segments: segments}
}

// CheckSymbol inspects one symbol's versions and segments. It does not
// repair anything; call Repair with the returned Report to apply fixes.
func (c *Checker) CheckSymbol(ctx context.Context, symbol string) (Report, error) {
	report := Report{Symbol: symbol}

	versions, err := c.versions.ListVersions(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("fsck: list versions for %s: %w", symbol, err)
	}

	referenced := make(map[chunking.Sha]bool)
	for _, v := range versions {
		for _, sha := range v.SegmentShas {
			referenced[sha] = true
		}
	}

	stored, err := c.segments.ListShas(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("fsck: list segments for %s: %w", symbol, err)
	}
	present := make(map[chunking.Sha]bool, len(stored))
	for _, st := range stored {
		present[st.Sha] = true
		if len(st.ParentVersions) == 0 {
			report.Problems = append(report.Problems, Problem{Kind: OrphanSegment, Symbol: symbol, Sha: st.Sha})
		}
	}

	for _, v := range versions {
		for _, sha := range v.SegmentShas {
			if !present[sha] {
				report.Problems = append(report.Problems, Problem{
					Kind:       MissingSegment,
					Symbol:     symbol,
					Sha:        sha,
					VersionNum: v.Number,
				})
			}
		}
	}

	maxNum, err := c.versions.MaxVersionNumber(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("fsck: max version number for %s: %w", symbol, err)
	}
	counter, err := c.versions.CurrentCounter(ctx, symbol)
	if err != nil {
		return report, fmt.Errorf("fsck: current counter for %s: %w", symbol, err)
	}
	if counter < maxNum {
		report.Problems = append(report.Problems, Problem{
			Kind:     CounterDrift,
			Symbol:   symbol,
			Observed: counter,
			Expected: maxNum,
		})
	}

	return report, nil
}

// CheckAll runs CheckSymbol over every symbol known to the version index.
func (c *Checker) CheckAll(ctx context.Context) ([]Report, error) {
	symbols, err := c.versions.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("fsck: list symbols: %w", err)
	}
	reports := make([]Report, 0, len(symbols))
	for _, sym := range symbols {
		r, err := c.CheckSymbol(ctx, sym)
		if err != nil {
			return reports, err
		}
		if len(r.Problems) > 0 {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// Repair applies automatic fixes for the problems in report that are safe
// to repair (OrphanSegment, CounterDrift). MissingSegment problems are
// returned unchanged in the result for operator attention, since deleting
// or regenerating the affected version is a data-loss decision fsck does
// not make on its own.
func (c *Checker) Repair(ctx context.Context, report Report) ([]Problem, error) {
	var unresolved []Problem
	var orphans []chunking.Sha

	for _, p := range report.Problems {
		switch p.Kind {
		case OrphanSegment:
			orphans = append(orphans, p.Sha)
		case MissingSegment:
			unresolved = append(unresolved, p)
		case CounterDrift:
			if err := c.versions.AdvanceCounterTo(ctx, report.Symbol, p.Expected); err != nil {
				return unresolved, fmt.Errorf("fsck: repair counter drift for %s: %w", report.Symbol, err)
			}
		}
	}

	if len(orphans) > 0 {
		if err := c.segments.DeleteOrphans(ctx, report.Symbol, orphans); err != nil {
			return unresolved, fmt.Errorf("fsck: repair orphans for %s: %w", report.Symbol, err)
		}
	}

	return unresolved, nil
}
