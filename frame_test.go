package lakota

import "testing"

func intSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(KindTabular,
		ColumnDef{Name: "ts", DType: DTypeInt64, Index: true},
		ColumnDef{Name: "value", DType: DTypeFloat64},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	return s
}

func buildFrame(t *testing.T, schema *Schema, ts []int64, values []float64) Frame {
	t.Helper()
	f, err := NewFrame(schema, map[string]Column{
		"ts":    {DType: DTypeInt64, Int64: ts},
		"value": {DType: DTypeFloat64, Float64: values},
	})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func TestNewFrameRejectsMissingColumn(t *testing.T) {
	schema := intSchema(t)
	_, err := NewFrame(schema, map[string]Column{
		"ts": {DType: DTypeInt64, Int64: []int64{1}},
	})
	if err == nil {
		t.Fatal("expected error for missing column")
	}
}

func TestNewFrameRejectsMismatchedLength(t *testing.T) {
	schema := intSchema(t)
	_, err := NewFrame(schema, map[string]Column{
		"ts":    {DType: DTypeInt64, Int64: []int64{1, 2}},
		"value": {DType: DTypeFloat64, Float64: []float64{1}},
	})
	if err == nil {
		t.Fatal("expected error for mismatched column length")
	}
}

func TestNewFrameRejectsWrongDType(t *testing.T) {
	schema := intSchema(t)
	_, err := NewFrame(schema, map[string]Column{
		"ts":    {DType: DTypeString, String: []string{"x"}},
		"value": {DType: DTypeFloat64, Float64: []float64{1}},
	})
	if err == nil {
		t.Fatal("expected error for dtype mismatch")
	}
}

func TestFrameLenEmptyStartStop(t *testing.T) {
	schema := intSchema(t)
	f := buildFrame(t, schema, []int64{10, 20, 30}, []float64{1, 2, 3})
	if f.Len() != 3 {
		t.Fatalf("Len = %d, want 3", f.Len())
	}
	if f.Empty() {
		t.Error("frame with rows should not be Empty")
	}
	if got := f.Start(); got[0] != int64(10) {
		t.Errorf("Start = %v, want [10]", got)
	}
	if got := f.Stop(); got[0] != int64(30) {
		t.Errorf("Stop = %v, want [30]", got)
	}

	empty := buildFrame(t, schema, nil, nil)
	if !empty.Empty() {
		t.Error("zero-row frame should be Empty")
	}
	if empty.Start() != nil || empty.Stop() != nil {
		t.Error("empty frame Start/Stop should be nil")
	}
}

func TestFrameSortedAndSort(t *testing.T) {
	schema := intSchema(t)
	sorted := buildFrame(t, schema, []int64{1, 2, 3}, []float64{1, 2, 3})
	if !sorted.Sorted() {
		t.Error("ascending frame should report Sorted")
	}
	unsorted := buildFrame(t, schema, []int64{3, 1, 2}, []float64{30, 10, 20})
	if unsorted.Sorted() {
		t.Error("shuffled frame should not report Sorted")
	}
	fixed := unsorted.Sort()
	if !fixed.Sorted() {
		t.Error("Sort() result should be Sorted")
	}
	wantTS := []int64{1, 2, 3}
	for i, want := range wantTS {
		if fixed.Columns["ts"].Int64[i] != want {
			t.Errorf("sorted ts[%d] = %d, want %d", i, fixed.Columns["ts"].Int64[i], want)
		}
	}
	// values must travel with their row, not just ts
	wantValue := []float64{10, 20, 30}
	for i, want := range wantValue {
		if fixed.Columns["value"].Float64[i] != want {
			t.Errorf("sorted value[%d] = %v, want %v", i, fixed.Columns["value"].Float64[i], want)
		}
	}
}

func TestFrameSliceClosures(t *testing.T) {
	schema := intSchema(t)
	f := buildFrame(t, schema, []int64{10, 20, 30, 40}, []float64{1, 2, 3, 4})

	both := f.Slice([]any{int64(20)}, []any{int64(30)}, ClosureBoth)
	if got := both.Columns["ts"].Int64; len(got) != 2 || got[0] != 20 || got[1] != 30 {
		t.Errorf("ClosureBoth slice = %v, want [20 30]", got)
	}

	left := f.Slice([]any{int64(20)}, []any{int64(30)}, ClosureLeft)
	if got := left.Columns["ts"].Int64; len(got) != 1 || got[0] != 20 {
		t.Errorf("ClosureLeft slice = %v, want [20]", got)
	}

	right := f.Slice([]any{int64(20)}, []any{int64(30)}, ClosureRight)
	if got := right.Columns["ts"].Int64; len(got) != 1 || got[0] != 30 {
		t.Errorf("ClosureRight slice = %v, want [30]", got)
	}

	neither := f.Slice([]any{int64(20)}, []any{int64(30)}, ClosureNeither)
	if got := neither.Columns["ts"].Int64; len(got) != 0 {
		t.Errorf("ClosureNeither slice = %v, want []", got)
	}
}

func TestFrameSliceUnboundedSides(t *testing.T) {
	schema := intSchema(t)
	f := buildFrame(t, schema, []int64{10, 20, 30}, []float64{1, 2, 3})
	all := f.Slice(nil, nil, ClosureBoth)
	if all.Len() != 3 {
		t.Errorf("unbounded slice Len = %d, want 3", all.Len())
	}
	fromMid := f.Slice([]any{int64(20)}, nil, ClosureBoth)
	if fromMid.Len() != 2 {
		t.Errorf("from-20 slice Len = %d, want 2", fromMid.Len())
	}
}

func TestConcatFrames(t *testing.T) {
	schema := intSchema(t)
	a := buildFrame(t, schema, []int64{1, 2}, []float64{1, 2})
	b := buildFrame(t, schema, []int64{3, 4}, []float64{3, 4})
	got := ConcatFrames(a, b)
	if got.Len() != 4 {
		t.Fatalf("ConcatFrames Len = %d, want 4", got.Len())
	}
	if !got.Sorted() {
		t.Error("concatenation of two ascending frames should stay sorted")
	}
}

func TestConcatFramesAllEmpty(t *testing.T) {
	got := ConcatFrames(Frame{}, Frame{})
	if got.Schema != nil {
		t.Errorf("ConcatFrames of frames with nil schema should yield zero Frame, got %+v", got)
	}
}

func TestClosureString(t *testing.T) {
	cases := map[Closure]string{
		ClosureBoth:    "both",
		ClosureLeft:    "left",
		ClosureRight:   "right",
		ClosureNeither: "neither",
		Closure(99):    "unknown",
	}
	for c, want := range cases {
		if got := c.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", c, got, want)
		}
	}
}
