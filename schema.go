// Schema: an ordered, typed column list with a non-empty index prefix.
// Grounded on original_source/lakota/commit.py's per-column
// dict-of-arrays shape, which assumes exactly this column model.
package lakota

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Kind distinguishes an ordinary tabular collection from the registry's
// last-write-wins key/value collection.
type Kind int

const (
	KindTabular Kind = iota
	KindKV
)

// ColumnDef describes one column of a schema.
type ColumnDef struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
	Codec string `json:"codec"`
	Index bool   `json:"index"`
}

// Schema is an ordered column list; the index columns form a contiguous
// prefix and their concatenation is the sort key. Immutable once built.
type Schema struct {
	Kind    Kind        `json:"kind"`
	Columns []ColumnDef `json:"columns"`
}

// NewSchema validates that index columns form a contiguous prefix and
// returns a Schema. At least one index column is required.
func NewSchema(kind Kind, columns ...ColumnDef) (*Schema, error) {
	seenNonIndex := false
	nIndex := 0
	for _, c := range columns {
		if c.Index {
			if seenNonIndex {
				return nil, fmt.Errorf("%w: index columns must form a contiguous prefix", ErrSchemaMismatch)
			}
			nIndex++
		} else {
			seenNonIndex = true
		}
	}
	if nIndex == 0 {
		return nil, fmt.Errorf("%w: schema requires at least one index column", ErrSchemaMismatch)
	}
	return &Schema{Kind: kind, Columns: columns}, nil
}

// IndexColumns returns the contiguous index-column prefix, in order.
func (s *Schema) IndexColumns() []ColumnDef {
	out := make([]ColumnDef, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Index {
			break
		}
		out = append(out, c)
	}
	return out
}

// Column looks up a column definition by name.
func (s *Schema) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns every column name in declared order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// IndexNames returns the index-column names in declared order.
func (s *Schema) IndexNames() []string {
	out := make([]string, 0, len(s.Columns))
	for _, c := range s.IndexColumns() {
		out = append(out, c.Name)
	}
	return out
}

// Equal reports whether two schemas declare the same columns, in the
// same order, with the same kind. Used when pulling/merging collections
// to reject incompatible schemas (ErrSchemaMismatch).
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || s.Kind != other.Kind || len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		o := other.Columns[i]
		if c.Name != o.Name || c.DType != o.DType || c.Codec != o.Codec || c.Index != o.Index {
			return false
		}
	}
	return true
}

// Dumps serializes the schema to its human-diffable registry form, using
// goccy/go-json, the same library that encodes the registry's meta
// entries.
func (s *Schema) Dumps() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("lakota: schema dump: %w", err)
	}
	return string(b), nil
}

// LoadsSchema parses a schema previously produced by Dumps.
func LoadsSchema(data string) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &s); err != nil {
		return nil, fmt.Errorf("%w: schema load: %v", ErrCorruptPayload, err)
	}
	return &s, nil
}

// KVSchema returns the registry's fixed schema: label:str index, meta:bytes.
func KVSchema() *Schema {
	s, err := NewSchema(KindKV,
		ColumnDef{Name: "label", DType: DTypeString, Codec: "vlen-utf8", Index: true},
		ColumnDef{Name: "meta", DType: DTypeBytes, Codec: "blosc", Index: false},
	)
	if err != nil {
		panic(err)
	}
	return s
}
