// Commit: the columnar index mapping (label, [start,stop], closed) to
// (length, per-column digests) for one revision of a collection, and
// its overlay-update algebra. Grounded directly on
// original_source/lakota/commit.py's Commit.update/split/concat/at/
// encode/decode; the closure-weakening table below matches that
// file's start_row["closed"]/stop_row["closed"] lines (spec.md §4.2,
// §9 Open Questions). Wire format via github.com/vmihailenco/msgpack/v5
// (spec.md §4.2/§6).
package lakota

import (
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Commit is a sorted, within-label non-overlapping set of rows
// describing every segment that makes up a collection at one revision.
type Commit struct {
	Schema *Schema
	Label  []string
	Start  map[string]Column   // index column name -> per-row start values
	Stop   map[string]Column   // index column name -> per-row stop values
	Digest map[string][]string // column name (incl. non-index) -> per-row digest
	Length []int64
	Closed []Closure
}

// Len returns the number of rows.
func (c *Commit) Len() int {
	return len(c.Label)
}

// EmptyCommit returns a zero-row commit conforming to schema.
func EmptyCommit(schema *Schema) *Commit {
	start := make(map[string]Column, len(schema.IndexColumns()))
	stop := make(map[string]Column, len(schema.IndexColumns()))
	for _, c := range schema.IndexColumns() {
		start[c.Name] = NewColumn(c.DType, 0)
		stop[c.Name] = NewColumn(c.DType, 0)
	}
	digest := make(map[string][]string, len(schema.Columns))
	for _, c := range schema.Columns {
		digest[c.Name] = nil
	}
	return &Commit{
		Schema: schema,
		Label:  nil,
		Start:  start,
		Stop:   stop,
		Digest: digest,
		Length: nil,
		Closed: nil,
	}
}

// CommitOne builds a length-1 commit for one segment row.
func CommitOne(schema *Schema, label string, start, stop []any, digests map[string]string, length int64, closed Closure) *Commit {
	startCols := make(map[string]Column, len(schema.IndexColumns()))
	stopCols := make(map[string]Column, len(schema.IndexColumns()))
	for i, c := range schema.IndexColumns() {
		startCols[c.Name] = columnFromValues(c.DType, []any{start[i]})
		stopCols[c.Name] = columnFromValues(c.DType, []any{stop[i]})
	}
	digestMap := make(map[string][]string, len(schema.Columns))
	for _, c := range schema.Columns {
		digestMap[c.Name] = []string{digests[c.Name]}
	}
	return &Commit{
		Schema: schema,
		Label:  []string{label},
		Start:  startCols,
		Stop:   stopCols,
		Digest: digestMap,
		Length: []int64{length},
		Closed: []Closure{closed},
	}
}

func columnFromValues(dtype DType, vals []any) Column {
	out := NewColumn(dtype, len(vals))
	for i, v := range vals {
		setColumnValue(&out, i, v)
	}
	return out
}

func (c *Commit) startTuple(pos int) []any {
	idx := c.Schema.IndexNames()
	out := make([]any, len(idx))
	for i, name := range idx {
		out[i] = c.Start[name].At(pos)
	}
	return out
}

func (c *Commit) stopTuple(pos int) []any {
	idx := c.Schema.IndexNames()
	out := make([]any, len(idx))
	for i, name := range idx {
		out[i] = c.Stop[name].At(pos)
	}
	return out
}

func (c *Commit) digestsAt(pos int) map[string]string {
	out := make(map[string]string, len(c.Schema.Columns))
	for _, col := range c.Schema.Columns {
		out[col.Name] = c.Digest[col.Name][pos]
	}
	return out
}

// CommitRow is the materialised form of one commit row, returned by At.
type CommitRow struct {
	Label  string
	Start  []any
	Stop   []any
	Digest map[string]string
	Length int64
	Closed Closure
}

// At returns row pos as a CommitRow. Negative pos counts from the end.
func (c *Commit) At(pos int) CommitRow {
	if pos < 0 {
		pos += c.Len()
	}
	return CommitRow{
		Label:  c.Label[pos],
		Start:  c.startTuple(pos),
		Stop:   c.stopTuple(pos),
		Digest: c.digestsAt(pos),
		Length: c.Length[pos],
		Closed: c.Closed[pos],
	}
}

// Slice returns rows [lo, hi).
func (c *Commit) Slice(lo, hi int) *Commit {
	if lo < 0 {
		lo = 0
	}
	if hi > c.Len() {
		hi = c.Len()
	}
	if lo > hi {
		lo = hi
	}
	start := make(map[string]Column, len(c.Start))
	for name, col := range c.Start {
		start[name] = col.Slice(lo, hi)
	}
	stop := make(map[string]Column, len(c.Stop))
	for name, col := range c.Stop {
		stop[name] = col.Slice(lo, hi)
	}
	digest := make(map[string][]string, len(c.Digest))
	for name, vals := range c.Digest {
		digest[name] = append([]string(nil), vals[lo:hi]...)
	}
	return &Commit{
		Schema: c.Schema,
		Label:  append([]string(nil), c.Label[lo:hi]...),
		Start:  start,
		Stop:   stop,
		Digest: digest,
		Length: append([]int64(nil), c.Length[lo:hi]...),
		Closed: append([]Closure(nil), c.Closed[lo:hi]...),
	}
}

// Head returns rows [0, pos).
func (c *Commit) Head(pos int) *Commit { return c.Slice(0, pos) }

// Tail returns rows [pos, len).
func (c *Commit) Tail(pos int) *Commit { return c.Slice(pos, c.Len()) }

// ConcatCommits concatenates commits of the same schema in order.
func ConcatCommits(commits ...*Commit) *Commit {
	nonEmpty := make([]*Commit, 0, len(commits))
	var schema *Schema
	for _, ci := range commits {
		if ci == nil {
			continue
		}
		if schema == nil {
			schema = ci.Schema
		}
		if ci.Len() > 0 {
			nonEmpty = append(nonEmpty, ci)
		}
	}
	if schema == nil {
		return nil
	}
	if len(nonEmpty) == 0 {
		return EmptyCommit(schema)
	}

	start := make(map[string]Column, len(schema.IndexColumns()))
	stop := make(map[string]Column, len(schema.IndexColumns()))
	for _, c := range schema.IndexColumns() {
		cols := make([]Column, len(nonEmpty))
		for i, ci := range nonEmpty {
			cols[i] = ci.Start[c.Name]
		}
		start[c.Name] = Concat(cols...)
		cols2 := make([]Column, len(nonEmpty))
		for i, ci := range nonEmpty {
			cols2[i] = ci.Stop[c.Name]
		}
		stop[c.Name] = Concat(cols2...)
	}

	digest := make(map[string][]string, len(schema.Columns))
	for _, c := range schema.Columns {
		var vals []string
		for _, ci := range nonEmpty {
			vals = append(vals, ci.Digest[c.Name]...)
		}
		digest[c.Name] = vals
	}

	var label []string
	var length []int64
	var closed []Closure
	for _, ci := range nonEmpty {
		label = append(label, ci.Label...)
		length = append(length, ci.Length...)
		closed = append(closed, ci.Closed...)
	}

	return &Commit{Schema: schema, Label: label, Start: start, Stop: stop, Digest: digest, Length: length, Closed: closed}
}

func compareLabelIndex(l1 string, i1 []any, l2 string, i2 []any) int {
	if l1 != l2 {
		if l1 < l2 {
			return -1
		}
		return 1
	}
	return compareTuple(i1, i2)
}

// split locates the half-open position range that Update must rewrite:
// startPos is the first row whose (label,stop) >= (label,start); stopPos
// is the first row whose (label,start) > (label,stop).
func (c *Commit) split(label string, start, stop []any) (startPos, stopPos int) {
	n := c.Len()
	startPos = sort.Search(n, func(i int) bool {
		return compareLabelIndex(c.Label[i], c.stopTuple(i), label, start) >= 0
	})
	stopPos = sort.Search(n, func(i int) bool {
		return compareLabelIndex(c.Label[i], c.startTuple(i), label, stop) > 0
	})
	return startPos, stopPos
}

// clipLeftClosure derives the weakened closure of a row whose stop is
// truncated by an overlapping newer write on its right side. Per
// spec.md §9 Open Questions, the result depends only on the row's own
// prior closure, never on the incoming row's closure.
func clipLeftClosure(c Closure) Closure {
	switch c {
	case ClosureBoth, ClosureLeft:
		return ClosureLeft
	default:
		return ClosureNeither
	}
}

// clipRightClosure is the symmetric weakening for a row whose start is
// truncated by an overlapping newer write on its left side.
func clipRightClosure(c Closure) Closure {
	switch c {
	case ClosureBoth, ClosureRight:
		return ClosureRight
	default:
		return ClosureNeither
	}
}

// Update returns a new commit with [start, stop] for label overlaid by
// one new row, clipping (never mutating the blobs of) any neighbouring
// rows the new range partially covers (spec.md §4.2).
func (c *Commit) Update(label string, start, stop []any, digests map[string]string, length int64, closed Closure) (*Commit, error) {
	if compareTuple(start, stop) > 0 {
		return nil, fmt.Errorf("%w: start %v > stop %v", ErrInvalidRange, start, stop)
	}
	inner := CommitOne(c.Schema, label, start, stop, digests, length, closed)
	if c.Len() == 0 {
		return inner, nil
	}

	firstLabel, firstStart := c.Label[0], c.startTuple(0)
	lastLabel, lastStop := c.Label[c.Len()-1], c.stopTuple(c.Len()-1)
	if compareLabelIndex(label, start, firstLabel, firstStart) <= 0 &&
		compareLabelIndex(label, stop, lastLabel, lastStop) >= 0 {
		return inner, nil
	}

	startPos, stopPosRaw := c.split(label, start, stop)
	stopPos := stopPosRaw - 1

	// Truncate the row straddling start from the left. Rows belong to
	// different labels are never clipped: within a label rows are
	// non-overlapping (spec.md §4.2 invariant), so clipping across a
	// label boundary would corrupt an unrelated series.
	head := c.Head(startPos)
	if startPos < c.Len() && c.Label[startPos] == label {
		rowStart := c.startTuple(startPos)
		if compareTuple(rowStart, start) < 0 {
			clipped := CommitOne(c.Schema, label, rowStart, start, c.digestsAt(startPos), c.Length[startPos], clipLeftClosure(c.Closed[startPos]))
			head = ConcatCommits(c.Head(startPos), clipped)
		}
		// rowStart >= start: nothing of the row lies before the new range;
		// any part past stop is kept by the right-hand clip below.
	}

	// Truncate the row straddling stop from the right.
	tail := c.Tail(stopPos + 1)
	if stopPos >= 0 && stopPos < c.Len() && c.Label[stopPos] == label {
		rowStop := c.stopTuple(stopPos)
		if compareTuple(stop, rowStop) < 0 {
			clipped := CommitOne(c.Schema, label, stop, rowStop, c.digestsAt(stopPos), c.Length[stopPos], clipRightClosure(c.Closed[stopPos]))
			tail = ConcatCommits(clipped, c.Tail(stopPos+1))
		}
		// rowStop <= stop: the row ends inside the new range, drop it.
	}

	return ConcatCommits(head, inner, tail), nil
}

// DeleteLabels returns a copy of c with every row for the given labels removed.
func (c *Commit) DeleteLabels(labels ...string) *Commit {
	drop := make(map[string]bool, len(labels))
	for _, l := range labels {
		drop[l] = true
	}
	keep := make([]int, 0, c.Len())
	for i, l := range c.Label {
		if !drop[l] {
			keep = append(keep, i)
		}
	}
	return c.selectRows(keep)
}

// RenameLabel returns a copy of c with every row labelled from renamed to.
func (c *Commit) RenameLabel(from, to string) *Commit {
	label := append([]string(nil), c.Label...)
	for i, l := range label {
		if l == from {
			label[i] = to
		}
	}
	out := *c
	out.Label = label
	return &out
}

func (c *Commit) selectRows(positions []int) *Commit {
	start := make(map[string]Column, len(c.Start))
	for name, col := range c.Start {
		start[name] = selectColumn(col, positions)
	}
	stop := make(map[string]Column, len(c.Stop))
	for name, col := range c.Stop {
		stop[name] = selectColumn(col, positions)
	}
	digest := make(map[string][]string, len(c.Digest))
	for name, vals := range c.Digest {
		out := make([]string, len(positions))
		for i, p := range positions {
			out[i] = vals[p]
		}
		digest[name] = out
	}
	label := make([]string, len(positions))
	length := make([]int64, len(positions))
	closed := make([]Closure, len(positions))
	for i, p := range positions {
		label[i] = c.Label[p]
		length[i] = c.Length[p]
		closed[i] = c.Closed[p]
	}
	return &Commit{Schema: c.Schema, Label: label, Start: start, Stop: stop, Digest: digest, Length: length, Closed: closed}
}

func selectColumn(c Column, positions []int) Column {
	out := NewColumn(c.DType, len(positions))
	for i, p := range positions {
		setColumnValue(&out, i, c.At(p))
	}
	return out
}

// Segments returns one Segment per row labelled label, clipped to
// [start, stop] (nil bounds are unbounded on that side).
func (c *Commit) Segments(label string, pod Pod, start, stop []any) []*Segment {
	var out []*Segment
	for pos := 0; pos < c.Len(); pos++ {
		if c.Label[pos] != label {
			continue
		}
		rowStart := c.startTuple(pos)
		rowStop := c.stopTuple(pos)
		segStart := rowStart
		if start != nil && compareTuple(start, rowStart) > 0 {
			segStart = start
		}
		segStop := rowStop
		if stop != nil && compareTuple(stop, rowStop) < 0 {
			segStop = stop
		}
		out = append(out, NewSegment(c.Schema, pod, c.digestsAt(pos), segStart, segStop, c.Closed[pos]))
	}
	return out
}

// --- wire format ---

type wireCommit struct {
	Start  map[string][]byte `msgpack:"start"`
	Stop   map[string][]byte `msgpack:"stop"`
	Digest map[string][]byte `msgpack:"digest"`
	Length []byte            `msgpack:"length"`
	Closed []byte            `msgpack:"closed"`
	Label  []byte            `msgpack:"label"`
}

// Encode serializes c as the msgpack-family array-of-one-map wire
// format spec.md §6 specifies.
func (c *Commit) Encode() ([]byte, error) {
	wc := wireCommit{
		Start:  make(map[string][]byte, len(c.Schema.IndexColumns())),
		Stop:   make(map[string][]byte, len(c.Schema.IndexColumns())),
		Digest: make(map[string][]byte, len(c.Schema.Columns)),
	}
	for _, col := range c.Schema.IndexColumns() {
		b, err := encodeColumn(col.Codec, c.Start[col.Name])
		if err != nil {
			return nil, fmt.Errorf("lakota: encode commit start[%s]: %w", col.Name, err)
		}
		wc.Start[col.Name] = b
		b, err = encodeColumn(col.Codec, c.Stop[col.Name])
		if err != nil {
			return nil, fmt.Errorf("lakota: encode commit stop[%s]: %w", col.Name, err)
		}
		wc.Stop[col.Name] = b
	}
	for _, col := range c.Schema.Columns {
		digCol := Column{DType: DTypeString, String: c.Digest[col.Name]}
		b, err := encodeVlenUTF8(digCol)
		if err != nil {
			return nil, fmt.Errorf("lakota: encode commit digest[%s]: %w", col.Name, err)
		}
		wc.Digest[col.Name] = b
	}
	lengthBytes, err := encodeFixedBinary(Column{DType: DTypeInt64, Int64: c.Length})
	if err != nil {
		return nil, fmt.Errorf("lakota: encode commit length: %w", err)
	}
	wc.Length = lengthBytes

	closedBytes := make([]byte, len(c.Closed))
	for i, cl := range c.Closed {
		closedBytes[i] = byte(cl)
	}
	wc.Closed = closedBytes

	labelBytes, err := encodeVlenUTF8(Column{DType: DTypeString, String: c.Label})
	if err != nil {
		return nil, fmt.Errorf("lakota: encode commit label: %w", err)
	}
	wc.Label = labelBytes

	return msgpack.Marshal([]wireCommit{wc})
}

// DecodeCommit parses a payload previously produced by Encode.
func DecodeCommit(schema *Schema, payload []byte) (*Commit, error) {
	var arr []wireCommit
	if err := msgpack.Unmarshal(payload, &arr); err != nil {
		return nil, fmt.Errorf("%w: commit decode: %v", ErrCorruptPayload, err)
	}
	if len(arr) != 1 {
		return nil, fmt.Errorf("%w: commit payload must contain exactly one map, got %d", ErrCorruptPayload, len(arr))
	}
	wc := arr[0]

	start := make(map[string]Column, len(schema.IndexColumns()))
	stop := make(map[string]Column, len(schema.IndexColumns()))
	for _, col := range schema.IndexColumns() {
		c, err := decodeColumn(col.Codec, col.DType, wc.Start[col.Name])
		if err != nil {
			return nil, fmt.Errorf("lakota: decode commit start[%s]: %w", col.Name, err)
		}
		start[col.Name] = c
		c, err = decodeColumn(col.Codec, col.DType, wc.Stop[col.Name])
		if err != nil {
			return nil, fmt.Errorf("lakota: decode commit stop[%s]: %w", col.Name, err)
		}
		stop[col.Name] = c
	}

	digest := make(map[string][]string, len(schema.Columns))
	for _, col := range schema.Columns {
		c, err := decodeVlenUTF8(wc.Digest[col.Name], DTypeString)
		if err != nil {
			return nil, fmt.Errorf("lakota: decode commit digest[%s]: %w", col.Name, err)
		}
		digest[col.Name] = c.String
	}

	lengthCol, err := decodeFixedBinary(wc.Length, DTypeInt64)
	if err != nil {
		return nil, fmt.Errorf("lakota: decode commit length: %w", err)
	}

	closed := make([]Closure, len(wc.Closed))
	for i, b := range wc.Closed {
		closed[i] = Closure(b)
	}

	labelCol, err := decodeVlenUTF8(wc.Label, DTypeString)
	if err != nil {
		return nil, fmt.Errorf("lakota: decode commit label: %w", err)
	}

	return &Commit{
		Schema: schema,
		Label:  labelCol.String,
		Start:  start,
		Stop:   stop,
		Digest: digest,
		Length: lengthCol.Int64,
		Closed: closed,
	}, nil
}
