// Typed column storage: a tagged union in place of duck-typed rows and
// columns. Every Frame and Commit index column is one of these five
// kinds; all row access goes through the typed view instead of
// interface{} juggling at call sites.
package lakota

import (
	"fmt"
	"time"
)

// DType identifies which field of a Column is populated.
type DType int

const (
	DTypeInt64 DType = iota
	DTypeFloat64
	DTypeString
	DTypeTimestamp
	DTypeBytes
)

func (d DType) String() string {
	switch d {
	case DTypeInt64:
		return "int64"
	case DTypeFloat64:
		return "float64"
	case DTypeString:
		return "string"
	case DTypeTimestamp:
		return "timestamp"
	case DTypeBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Column is a tagged union over the five column kinds lakota supports.
// Only the slice matching DType is populated; the others are nil.
type Column struct {
	DType     DType
	Int64     []int64
	Float64   []float64
	String    []string
	Timestamp []time.Time
	Bytes     [][]byte
}

func NewColumn(dtype DType, n int) Column {
	c := Column{DType: dtype}
	switch dtype {
	case DTypeInt64:
		c.Int64 = make([]int64, n)
	case DTypeFloat64:
		c.Float64 = make([]float64, n)
	case DTypeString:
		c.String = make([]string, n)
	case DTypeTimestamp:
		c.Timestamp = make([]time.Time, n)
	case DTypeBytes:
		c.Bytes = make([][]byte, n)
	}
	return c
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	switch c.DType {
	case DTypeInt64:
		return len(c.Int64)
	case DTypeFloat64:
		return len(c.Float64)
	case DTypeString:
		return len(c.String)
	case DTypeTimestamp:
		return len(c.Timestamp)
	case DTypeBytes:
		return len(c.Bytes)
	default:
		return 0
	}
}

// At returns the value at position i as an interface{} of the concrete
// underlying type (int64, float64, string, time.Time, or []byte).
func (c Column) At(i int) any {
	switch c.DType {
	case DTypeInt64:
		return c.Int64[i]
	case DTypeFloat64:
		return c.Float64[i]
	case DTypeString:
		return c.String[i]
	case DTypeTimestamp:
		return c.Timestamp[i]
	case DTypeBytes:
		return c.Bytes[i]
	default:
		return nil
	}
}

// Slice returns a new Column holding values in [start, stop).
func (c Column) Slice(start, stop int) Column {
	out := Column{DType: c.DType}
	switch c.DType {
	case DTypeInt64:
		out.Int64 = c.Int64[start:stop]
	case DTypeFloat64:
		out.Float64 = c.Float64[start:stop]
	case DTypeString:
		out.String = c.String[start:stop]
	case DTypeTimestamp:
		out.Timestamp = c.Timestamp[start:stop]
	case DTypeBytes:
		out.Bytes = c.Bytes[start:stop]
	}
	return out
}

// Concat joins the values of cols in order, returning a new Column.
func Concat(cols ...Column) Column {
	if len(cols) == 0 {
		return Column{}
	}
	dtype := cols[0].DType
	n := 0
	for _, c := range cols {
		n += c.Len()
	}
	out := NewColumn(dtype, 0)
	switch dtype {
	case DTypeInt64:
		vals := make([]int64, 0, n)
		for _, c := range cols {
			vals = append(vals, c.Int64...)
		}
		out.Int64 = vals
	case DTypeFloat64:
		vals := make([]float64, 0, n)
		for _, c := range cols {
			vals = append(vals, c.Float64...)
		}
		out.Float64 = vals
	case DTypeString:
		vals := make([]string, 0, n)
		for _, c := range cols {
			vals = append(vals, c.String...)
		}
		out.String = vals
	case DTypeTimestamp:
		vals := make([]time.Time, 0, n)
		for _, c := range cols {
			vals = append(vals, c.Timestamp...)
		}
		out.Timestamp = vals
	case DTypeBytes:
		vals := make([][]byte, 0, n)
		for _, c := range cols {
			vals = append(vals, c.Bytes...)
		}
		out.Bytes = vals
	}
	return out
}

// compareValue orders two values of the same underlying type, returning
// -1, 0, or 1. Used to build the lexicographic index-tuple ordering.
func compareValue(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		default:
			return 0
		}
	case []byte:
		bv := b.([]byte)
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if av[i] != bv[i] {
				if av[i] < bv[i] {
					return -1
				}
				return 1
			}
		}
		switch {
		case len(av) < len(bv):
			return -1
		case len(av) > len(bv):
			return 1
		default:
			return 0
		}
	default:
		panic(fmt.Sprintf("lakota: unsupported index value type %T", a))
	}
}

// compareTuple lexicographically compares two index tuples; when one is a
// prefix of the other, the shorter tuple sorts first.
func compareTuple(a, b []any) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
