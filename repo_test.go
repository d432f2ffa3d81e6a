package lakota

import "testing"

func TestRepositoryLsEmpty(t *testing.T) {
	r := OpenRepository(NewMemPod())
	labels, err := r.Ls()
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("Ls on fresh repository = %v, want empty", labels)
	}
}

func TestRepositoryCreateCollectionAndLs(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "b", "a"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	labels, err := r.Ls()
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(labels) != 2 || labels[0] != "a" || labels[1] != "b" {
		t.Errorf("Ls = %v, want sorted [a b]", labels)
	}
}

func TestRepositoryCreateCollectionRejectsDuplicate(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := r.CreateCollection(schema, true, "metrics"); err == nil {
		t.Fatal("expected ErrDuplicateLabel when re-creating an existing collection")
	}
}

func TestRepositoryCreateCollectionAllowsDuplicateWhenNotRaising(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := r.CreateCollection(schema, false, "metrics"); err != nil {
		t.Errorf("CreateCollection with raiseIfExists=false should not error, got %v", err)
	}
}

func TestRepositoryCollectionLookup(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	c, err := r.Collection("metrics")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if c.Label() != "metrics" {
		t.Errorf("Label = %q, want metrics", c.Label())
	}
	if !c.Schema().Equal(schema) {
		t.Error("looked-up collection schema does not match the one it was created with")
	}
}

func TestRepositoryCollectionLookupMissing(t *testing.T) {
	r := OpenRepository(NewMemPod())
	if _, err := r.Collection("nope"); !isNotFound(err) {
		t.Errorf("Collection(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryDeleteUnregistersCollection(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "a", "b"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := r.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	labels, err := r.Ls()
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(labels) != 1 || labels[0] != "b" {
		t.Errorf("Ls after Delete(a) = %v, want [b]", labels)
	}
	if _, err := r.Collection("a"); !isNotFound(err) {
		t.Errorf("Collection(a) after Delete = %v, want ErrNotFound", err)
	}
}

func TestRepositoryDeleteUnregisteredLabelIsNoOp(t *testing.T) {
	r := OpenRepository(NewMemPod())
	if err := r.Delete("nonexistent"); err != nil {
		t.Errorf("Delete on an unregistered label should be a no-op, got %v", err)
	}
}

func TestRepositoryRenameCollection(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "old"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := r.Rename("old", "new"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	labels, err := r.Ls()
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(labels) != 1 || labels[0] != "new" {
		t.Errorf("Ls after Rename = %v, want [new]", labels)
	}
	if _, err := r.Collection("new"); err != nil {
		t.Errorf("Collection(new) after Rename: %v", err)
	}
}

func TestRepositoryRenameRejectsDuplicateTarget(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "a", "b"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := r.Rename("a", "b"); err == nil {
		t.Fatal("expected error renaming onto an already-registered label")
	}
}

func TestRepositoryPullCreatesMissingCollections(t *testing.T) {
	remote := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	cols, err := remote.CreateCollection(schema, true, "metrics")
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	s, err := cols[0].Series("a")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if err := s.Write(buildFrame(t, schema, []int64{1, 2}, []float64{1, 2})); err != nil {
		t.Fatalf("Write: %v", err)
	}

	local := OpenRepository(NewMemPod())
	if err := local.Pull(remote); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	c, err := local.Collection("metrics")
	if err != nil {
		t.Fatalf("Collection after Pull: %v", err)
	}
	localSeries, err := c.Series("a")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	got, err := localSeries.Read(nil, nil, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Len() != 2 {
		t.Errorf("pulled series Len = %d, want 2", got.Len())
	}
}

func TestRepositoryPullRejectsSchemaMismatch(t *testing.T) {
	remote := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := remote.CreateCollection(schema, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	local := OpenRepository(NewMemPod())
	other, err := NewSchema(KindTabular, ColumnDef{Name: "label", DType: DTypeString, Index: true})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	if _, err := local.CreateCollection(other, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	if err := local.Pull(remote); err == nil {
		t.Fatal("expected schema mismatch error pulling into an incompatibly-registered collection")
	}
}

func TestRepositoryMergeDelegatesToRegistry(t *testing.T) {
	r := OpenRepository(NewMemPod())
	schema := tsValueSchema(t)
	if _, err := r.CreateCollection(schema, true, "metrics"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	revs, err := r.Merge()
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if revs != nil {
		t.Errorf("Merge with a single registry head should be a no-op, got %+v", revs)
	}
}
