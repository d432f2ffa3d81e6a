package lakota

import "testing"

func newTestSeries(t *testing.T, pod Pod) *Series {
	t.Helper()
	schema := tsValueSchema(t)
	changelog := NewChangelog(pod.Cd("log"))
	return newSeries("metric", schema, changelog, pod)
}

func TestSeriesWriteThenRead(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	f := buildFrame(t, s.schema, []int64{1, 2, 3}, []float64{10, 20, 30})
	if err := s.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(nil, nil, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Read Len = %d, want 3", got.Len())
	}
	for i, want := range []float64{10, 20, 30} {
		if got.Columns["value"].Float64[i] != want {
			t.Errorf("value[%d] = %v, want %v", i, got.Columns["value"].Float64[i], want)
		}
	}
}

func TestSeriesWriteEmptyFrameIsNoOp(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	empty := buildFrame(t, s.schema, nil, nil)
	if err := s.Write(empty); err != nil {
		t.Fatalf("Write empty: %v", err)
	}
	if _, ok, err := s.changelog.Leaf(); err != nil || ok {
		t.Errorf("writing an empty frame should not create a revision: ok=%v err=%v", ok, err)
	}
}

func TestSeriesSecondWriteOverlaysFirst(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	first := buildFrame(t, s.schema, []int64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5})
	if err := s.Write(first); err != nil {
		t.Fatalf("Write first: %v", err)
	}
	second := buildFrame(t, s.schema, []int64{3, 4}, []float64{300, 400})
	if err := s.Write(second); err != nil {
		t.Fatalf("Write second: %v", err)
	}
	got, err := s.Read(nil, nil, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := map[int64]float64{1: 1, 2: 2, 3: 300, 4: 400, 5: 5}
	if got.Len() != 5 {
		t.Fatalf("Read Len = %d, want 5", got.Len())
	}
	for i := 0; i < got.Len(); i++ {
		ts := got.Columns["ts"].Int64[i]
		if got.Columns["value"].Float64[i] != want[ts] {
			t.Errorf("ts=%d value=%v, want %v", ts, got.Columns["value"].Float64[i], want[ts])
		}
	}
}

func TestSeriesReadRangeBounds(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	f := buildFrame(t, s.schema, []int64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5})
	if err := s.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read([]any{int64(2)}, []any{int64(4)}, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Read(2,4) Len = %d, want 3", got.Len())
	}
	for i, want := range []int64{2, 3, 4} {
		if got.Columns["ts"].Int64[i] != want {
			t.Errorf("ts[%d] = %d, want %d", i, got.Columns["ts"].Int64[i], want)
		}
	}
}

func TestSeriesReadEmptyOnNoWrites(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	got, err := s.Read(nil, nil, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Empty() {
		t.Errorf("Read on a never-written series should be empty, got Len %d", got.Len())
	}
}

func TestSeriesDeleteRemovesAllRows(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	f := buildFrame(t, s.schema, []int64{1, 2, 3}, []float64{1, 2, 3})
	if err := s.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.Read(nil, nil, 0)
	if err != nil {
		t.Fatalf("Read after Delete: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected empty read after Delete, got Len %d", got.Len())
	}
}

func TestSeriesDeleteOnUnwrittenSeriesIsNoOp(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete on unwritten series: %v", err)
	}
}

func TestSeriesPaginateCoversAllRows(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	ts := make([]int64, 20)
	vals := make([]float64, 20)
	for i := range ts {
		ts[i] = int64(i)
		vals[i] = float64(i)
	}
	f := buildFrame(t, s.schema, ts, vals)
	if err := s.Write(f); err != nil {
		t.Fatalf("Write: %v", err)
	}

	seen := make(map[int64]bool)
	pages := 0
	for page, err := range s.Paginate(7) {
		if err != nil {
			t.Fatalf("Paginate: %v", err)
		}
		pages++
		if pages > 20 {
			t.Fatal("Paginate did not terminate")
		}
		for i := 0; i < page.Len(); i++ {
			seen[page.Columns["ts"].Int64[i]] = true
		}
	}
	if len(seen) != 20 {
		t.Errorf("Paginate visited %d distinct rows, want 20", len(seen))
	}
}

func TestSeriesPaginateOnEmptySeriesYieldsNothing(t *testing.T) {
	pod := NewMemPod()
	s := newTestSeries(t, pod)
	count := 0
	for range s.Paginate(10) {
		count++
	}
	if count != 0 {
		t.Errorf("Paginate on empty series yielded %d pages, want 0", count)
	}
}

func TestIntersectRangeDisjoint(t *testing.T) {
	_, _, ok := intersectRange([]any{int64(1)}, []any{int64(2)}, []any{int64(10)}, []any{int64(20)})
	if ok {
		t.Error("disjoint ranges should not intersect")
	}
}

func TestIntersectRangeUnboundedSides(t *testing.T) {
	mStart, mStop, ok := intersectRange([]any{int64(5)}, []any{int64(10)}, nil, nil)
	if !ok {
		t.Fatal("unbounded query should intersect any row")
	}
	if mStart[0] != int64(5) || mStop[0] != int64(10) {
		t.Errorf("intersect with unbounded query = [%v,%v], want row bounds unchanged", mStart, mStop)
	}
}
