// Segment: a lazily materialised frame whose column payloads are
// resolved from the pod via per-column content digests. Grounded on
// original_source/lakota/commit.py's Segment class (frame property,
// _frm memoization), same structure, using sync.Once in place of a
// lazily-set Python attribute.
package lakota

import (
	"fmt"
	"sync"
)

// Segment is one commit row materialised into a frame on demand.
type Segment struct {
	schema  *Schema
	pod     Pod
	digests map[string]string // column name -> content digest
	start   []any
	stop    []any
	closed  Closure

	once  sync.Once
	frame Frame
	err   error
}

// NewSegment builds a Segment; the frame is not read until Frame is called.
func NewSegment(schema *Schema, pod Pod, digests map[string]string, start, stop []any, closed Closure) *Segment {
	return &Segment{schema: schema, pod: pod, digests: digests, start: start, stop: stop, closed: closed}
}

// Frame materialises (and memoizes) the segment's data, sliced to
// [start, stop] with the segment's closure.
func (s *Segment) Frame() (Frame, error) {
	s.once.Do(func() {
		cols := make(map[string]Column, len(s.schema.Columns))
		for _, c := range s.schema.Columns {
			digest, ok := s.digests[c.Name]
			if !ok {
				s.err = fmt.Errorf("%w: segment missing digest for column %q", ErrCorruptPayload, c.Name)
				return
			}
			raw, err := s.pod.Read(hashedPathJoin(digest))
			if err != nil {
				s.err = fmt.Errorf("lakota: read column %q blob: %w", c.Name, err)
				return
			}
			col, err := decodeColumn(c.Codec, c.DType, raw)
			if err != nil {
				s.err = fmt.Errorf("lakota: decode column %q: %w", c.Name, err)
				return
			}
			cols[c.Name] = col
		}
		full, err := NewFrame(s.schema, cols)
		if err != nil {
			s.err = err
			return
		}
		s.frame = full.Slice(s.start, s.stop, s.closed)
	})
	return s.frame, s.err
}

// Len returns the row count, forcing materialisation if needed.
func (s *Segment) Len() (int, error) {
	f, err := s.Frame()
	if err != nil {
		return 0, err
	}
	return f.Len(), nil
}

// writeColumns encodes every column of f via the schema's declared
// codecs, writes each blob to pod (no-op if the digest already exists),
// and returns the per-column digest map. Shared by Series.Write and
// the registry's kv writes.
func writeColumns(pod Pod, schema *Schema, f Frame) (map[string]string, error) {
	digests := make(map[string]string, len(schema.Columns))
	for _, c := range schema.Columns {
		col, ok := f.Columns[c.Name]
		if !ok {
			return nil, fmt.Errorf("%w: frame missing column %q", ErrSchemaMismatch, c.Name)
		}
		raw, err := encodeColumn(c.Codec, col)
		if err != nil {
			return nil, fmt.Errorf("lakota: encode column %q: %w", c.Name, err)
		}
		dig := digest(raw)
		if err := pod.Write(hashedPathJoin(dig), raw); err != nil {
			return nil, fmt.Errorf("lakota: write column %q blob: %w", c.Name, err)
		}
		digests[c.Name] = dig
	}
	return digests, nil
}
