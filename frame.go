// Frame: an in-memory columnar slice conforming to a schema. Invariants
// (spec.md §3): sorted ascending by index tuple, every column the same
// length. Slicing by index tuple honors closed/open boundary semantics.
package lakota

import (
	"fmt"
	"sort"
	"time"
)

// Closure selects which endpoints of an index range are included.
type Closure int

const (
	ClosureBoth Closure = iota
	ClosureLeft
	ClosureRight
	ClosureNeither
)

func (c Closure) String() string {
	switch c {
	case ClosureBoth:
		return "both"
	case ClosureLeft:
		return "left"
	case ClosureRight:
		return "right"
	case ClosureNeither:
		return "neither"
	default:
		return "unknown"
	}
}

// Frame is an equal-length set of named columns conforming to a schema.
type Frame struct {
	Schema  *Schema
	Columns map[string]Column
}

// NewFrame validates that every column is present and equal-length.
func NewFrame(schema *Schema, columns map[string]Column) (Frame, error) {
	f := Frame{Schema: schema, Columns: columns}
	n := -1
	for _, c := range schema.Columns {
		col, ok := columns[c.Name]
		if !ok {
			return Frame{}, fmt.Errorf("%w: frame missing column %q", ErrSchemaMismatch, c.Name)
		}
		if col.DType != c.DType {
			return Frame{}, fmt.Errorf("%w: column %q has dtype %s, schema wants %s", ErrSchemaMismatch, c.Name, col.DType, c.DType)
		}
		if n == -1 {
			n = col.Len()
		} else if col.Len() != n {
			return Frame{}, fmt.Errorf("%w: column %q has length %d, want %d", ErrSchemaMismatch, c.Name, col.Len(), n)
		}
	}
	return f, nil
}

// Len returns the number of rows, or 0 for an empty frame.
func (f Frame) Len() int {
	idx := f.Schema.IndexNames()
	if len(idx) == 0 {
		return 0
	}
	if c, ok := f.Columns[idx[0]]; ok {
		return c.Len()
	}
	return 0
}

// Empty reports whether the frame has zero rows.
func (f Frame) Empty() bool {
	return f.Len() == 0
}

// IndexAt returns the index tuple for row i.
func (f Frame) IndexAt(i int) []any {
	idx := f.Schema.IndexNames()
	out := make([]any, len(idx))
	for j, name := range idx {
		out[j] = f.Columns[name].At(i)
	}
	return out
}

// Start returns the index tuple of the first row.
func (f Frame) Start() []any {
	if f.Empty() {
		return nil
	}
	return f.IndexAt(0)
}

// Stop returns the index tuple of the last row.
func (f Frame) Stop() []any {
	if f.Empty() {
		return nil
	}
	return f.IndexAt(f.Len() - 1)
}

// Sorted reports whether rows are in non-decreasing order by index
// tuple (equal neighbouring tuples are allowed).
func (f Frame) Sorted() bool {
	n := f.Len()
	for i := 1; i < n; i++ {
		if compareTuple(f.IndexAt(i-1), f.IndexAt(i)) > 0 {
			return false
		}
	}
	return true
}

// Sort returns a copy of f with rows reordered ascending by index tuple.
func (f Frame) Sort() Frame {
	n := f.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareTuple(f.IndexAt(order[a]), f.IndexAt(order[b])) < 0
	})
	out := make(map[string]Column, len(f.Columns))
	for name, col := range f.Columns {
		out[name] = reorderColumn(col, order)
	}
	return Frame{Schema: f.Schema, Columns: out}
}

func reorderColumn(c Column, order []int) Column {
	out := NewColumn(c.DType, len(order))
	for i, pos := range order {
		setColumnValue(&out, i, c.At(pos))
	}
	return out
}

func setColumnValue(c *Column, i int, v any) {
	switch c.DType {
	case DTypeInt64:
		c.Int64[i] = v.(int64)
	case DTypeFloat64:
		c.Float64[i] = v.(float64)
	case DTypeString:
		c.String[i] = v.(string)
	case DTypeTimestamp:
		c.Timestamp[i] = v.(time.Time)
	case DTypeBytes:
		c.Bytes[i] = v.([]byte)
	}
}

// bisectLeft returns the first position whose index tuple is >= target.
func (f Frame) bisectLeft(target []any) int {
	n := f.Len()
	return sort.Search(n, func(i int) bool {
		return compareTuple(f.IndexAt(i), target) >= 0
	})
}

// bisectRight returns the first position whose index tuple is > target.
func (f Frame) bisectRight(target []any) int {
	n := f.Len()
	return sort.Search(n, func(i int) bool {
		return compareTuple(f.IndexAt(i), target) > 0
	})
}

// Slice returns the sub-frame over [start, stop] honoring closed.
// A nil start/stop means unbounded on that side.
func (f Frame) Slice(start, stop []any, closed Closure) Frame {
	n := f.Len()
	lo := 0
	hi := n
	if start != nil {
		switch closed {
		case ClosureBoth, ClosureLeft:
			lo = f.bisectLeft(start)
		default:
			lo = f.bisectRight(start)
		}
	}
	if stop != nil {
		switch closed {
		case ClosureBoth, ClosureRight:
			hi = f.bisectRight(stop)
		default:
			hi = f.bisectLeft(stop)
		}
	}
	if lo > hi {
		lo = hi
	}
	out := make(map[string]Column, len(f.Columns))
	for name, col := range f.Columns {
		out[name] = col.Slice(lo, hi)
	}
	return Frame{Schema: f.Schema, Columns: out}
}

// ConcatFrames concatenates frames of the same schema in order.
func ConcatFrames(frames ...Frame) Frame {
	frames = nonEmptyFrames(frames)
	if len(frames) == 0 {
		return Frame{}
	}
	schema := frames[0].Schema
	out := make(map[string]Column, len(schema.Columns))
	for _, c := range schema.Columns {
		cols := make([]Column, len(frames))
		for i, fr := range frames {
			cols[i] = fr.Columns[c.Name]
		}
		out[c.Name] = Concat(cols...)
	}
	return Frame{Schema: schema, Columns: out}
}

func nonEmptyFrames(frames []Frame) []Frame {
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.Schema != nil {
			out = append(out, f)
		}
	}
	return out
}
