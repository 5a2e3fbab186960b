// Package chronoerr defines the closed set of error kinds surfaced by the
// store. Every operation either returns a value or one of these kinds,
// wrapped with context via fmt.Errorf("...: %w", ...). Callers use
// errors.Is against the sentinel values, or Kind(err) to classify an error
// for logging/metrics without string matching.
package chronoerr

import "errors"

// Sentinel errors. These are the leaves of every Kind; wrap them, never
// replace them, so errors.Is keeps working through layers.
var (
	ErrLibraryNotFound  = errors.New("library not found")
	ErrDuplicateLibrary = errors.New("library already exists")
	ErrInvalidRename    = errors.New("rename across namespaces is not allowed")
	ErrNoDataFound      = errors.New("no data found")
	ErrUnorderedData    = errors.New("data is not strictly ordered")
	ErrOverlappingData  = errors.New("interval overlaps an existing entry")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrCorruptedData    = errors.New("corrupted data")
	ErrDuplicateSnapshot = errors.New("snapshot already exists")
	ErrTimeout          = errors.New("operation timed out")
	ErrAuthFailure      = errors.New("authentication failed")
	ErrUnrouted         = errors.New("data falls outside every routing interval")
)

// Kind identifies which of the closed set of error categories an error
// belongs to. It is the classification a CLI collaborator would map to an
// exit code; this module only exposes the classification, not the mapping.
type Kind int

const (
	KindUnknown Kind = iota
	KindLibraryNotFound
	KindDuplicateLibrary
	KindInvalidRename
	KindNoDataFound
	KindUnorderedData
	KindOverlappingData
	KindQuotaExceeded
	KindCorruptedData
	KindDuplicateSnapshot
	KindTimeout
	KindAuthFailure
	KindUnrouted
)

func (k Kind) String() string {
	switch k {
	case KindLibraryNotFound:
		return "LibraryNotFound"
	case KindDuplicateLibrary:
		return "DuplicateLibrary"
	case KindInvalidRename:
		return "InvalidRename"
	case KindNoDataFound:
		return "NoDataFound"
	case KindUnorderedData:
		return "UnorderedData"
	case KindOverlappingData:
		return "OverlappingData"
	case KindQuotaExceeded:
		return "QuotaExceeded"
	case KindCorruptedData:
		return "CorruptedData"
	case KindDuplicateSnapshot:
		return "DuplicateSnapshot"
	case KindTimeout:
		return "Timeout"
	case KindAuthFailure:
		return "AuthFailure"
	case KindUnrouted:
		return "Unrouted"
	default:
		return "Unknown"
	}
}

// classify pairs each sentinel with its Kind. Order doesn't matter;
// errors.Is walks the chain for each candidate.
var classify = []struct {
	err  error
	kind Kind
}{
	{ErrLibraryNotFound, KindLibraryNotFound},
	{ErrDuplicateLibrary, KindDuplicateLibrary},
	{ErrInvalidRename, KindInvalidRename},
	{ErrNoDataFound, KindNoDataFound},
	{ErrUnorderedData, KindUnorderedData},
	{ErrOverlappingData, KindOverlappingData},
	{ErrQuotaExceeded, KindQuotaExceeded},
	{ErrCorruptedData, KindCorruptedData},
	{ErrDuplicateSnapshot, KindDuplicateSnapshot},
	{ErrTimeout, KindTimeout},
	{ErrAuthFailure, KindAuthFailure},
	{ErrUnrouted, KindUnrouted},
}

// KindOf classifies err against the closed set of sentinels. Returns
// KindUnknown if neither err nor anything in its chain matches a known
// sentinel.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, c := range classify {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}
	return KindUnknown
}

// Retryable reports whether err represents a transient condition that
// should be retried internally with backoff, as opposed to a logical
// error that must surface immediately.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindAuthFailure:
		return true
	default:
		return false
	}
}
