package tickstore

import "time"

// GroupMode selects how Write partitions a batch of rows into chunks.
type GroupMode int

const (
	// GroupByRowCount groups rows into fixed-size chunks of TargetRowCount
	// rows each. This is the default grouping strategy.
	GroupByRowCount GroupMode = iota
	// GroupByDay groups rows sharing a UTC calendar day, matching a
	// `segment: "day"` initialize_library option.
	GroupByDay
	// GroupByMonth groups rows sharing a UTC calendar month.
	GroupByMonth
)

// DefaultTargetRowCount is used when GroupMode is GroupByRowCount and no
// explicit target is configured.
const DefaultTargetRowCount = 100_000

// groupBounds returns the [start,end) row ranges index should be split
// into under the given mode. index must be strictly ascending; callers
// validate ordering before calling this.
func groupBounds(index []time.Time, mode GroupMode, targetRowCount int) [][2]int {
	if len(index) == 0 {
		return nil
	}

	switch mode {
	case GroupByDay:
		return groupByPeriod(index, func(t time.Time) (int, int, int) {
			y, m, d := t.UTC().Date()
			return y, int(m), d
		})
	case GroupByMonth:
		return groupByPeriod(index, func(t time.Time) (int, int, int) {
			y, m, _ := t.UTC().Date()
			return y, int(m), 0
		})
	default:
		if targetRowCount <= 0 {
			targetRowCount = DefaultTargetRowCount
		}
		var bounds [][2]int
		for start := 0; start < len(index); start += targetRowCount {
			end := min(start+targetRowCount, len(index))
			bounds = append(bounds, [2]int{start, end})
		}
		return bounds
	}
}

func groupByPeriod(index []time.Time, key func(time.Time) (int, int, int)) [][2]int {
	var bounds [][2]int
	start := 0
	curY, curM, curD := key(index[0])
	for i := 1; i < len(index); i++ {
		y, m, d := key(index[i])
		if y != curY || m != curM || d != curD {
			bounds = append(bounds, [2]int{start, i})
			start = i
			curY, curM, curD = y, m, d
		}
	}
	bounds = append(bounds, [2]int{start, len(index)})
	return bounds
}
