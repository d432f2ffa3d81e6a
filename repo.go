// Repository: the top-level registry naming collections by label and
// owning global GC. Grounded on original_source/lakota/repo.py's Repo
// class; CSV/Parquet import/export, S3 URIs and the sexpr-backed
// search/archive namespace are dropped as out of scope (spec.md §1).
// The registry is itself a kv-kind Collection (SPEC_FULL.md §9), with
// every collection entry stored as one indexed row of its "collection"
// series rather than as a bolt-on special case.
package lakota

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

const registryNamespace = "collection"

// registryMeta is the JSON payload stored in the registry's meta column.
type registryMeta struct {
	Path   string `json:"path"`
	Schema string `json:"schema"`
}

// Repository is the top-level entry point: a named set of collections
// sharing one pod, with a kv registry collection describing them.
type Repository struct {
	pod      Pod
	registry *Collection
}

// OpenRepository returns a Repository backed by pod. The registry
// collection is created lazily on first write; reads against an empty
// pod simply see no collections.
func OpenRepository(pod Pod) *Repository {
	changelogPod := pod.Cd(hashedPathJoin(zeroHash))
	registry := newCollection("registry", KVSchema(), pod, changelogPod)
	return &Repository{pod: pod, registry: registry}
}

func collectionPath(label string) string {
	return hashedPathJoin(digest([]byte(label)))
}

func (r *Repository) registrySeries() (*Series, error) {
	return r.registry.Series(registryNamespace)
}

// Ls returns every registered collection label, ascending.
func (r *Repository) Ls() ([]string, error) {
	series, err := r.registrySeries()
	if err != nil {
		return nil, err
	}
	frame, err := series.Read(nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, nil
	}
	out := append([]string(nil), frame.Columns["label"].String...)
	sort.Strings(out)
	return out, nil
}

// CreateCollection registers one or more labels against schema. When
// raiseIfExists is true, an already-registered label returns
// ErrDuplicateLabel and no collections are created.
func (r *Repository) CreateCollection(schema *Schema, raiseIfExists bool, labels ...string) ([]*Collection, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	cleaned := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, ErrInvalidLabel
		}
		cleaned = append(cleaned, l)
	}
	sort.Strings(cleaned)

	series, err := r.registrySeries()
	if err != nil {
		return nil, err
	}

	if raiseIfExists {
		existing, err := r.Ls()
		if err != nil {
			return nil, err
		}
		have := make(map[string]bool, len(existing))
		for _, l := range existing {
			have[l] = true
		}
		for _, l := range cleaned {
			if have[l] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, l)
			}
		}
	}

	schemaDump, err := schema.Dumps()
	if err != nil {
		return nil, err
	}
	metaCol := make([][]byte, len(cleaned))
	paths := make([]string, len(cleaned))
	for i, l := range cleaned {
		paths[i] = collectionPath(l)
		b, err := json.Marshal(registryMeta{Path: paths[i], Schema: schemaDump})
		if err != nil {
			return nil, err
		}
		metaCol[i] = b
	}

	frame, err := NewFrame(KVSchema(), map[string]Column{
		"label": {DType: DTypeString, String: cleaned},
		"meta":  {DType: DTypeBytes, Bytes: metaCol},
	})
	if err != nil {
		return nil, err
	}
	if err := series.Write(frame); err != nil {
		return nil, err
	}

	out := make([]*Collection, len(cleaned))
	for i, l := range cleaned {
		out[i] = newCollection(l, schema, r.pod, r.pod.Cd(paths[i]))
	}
	return out, nil
}

// Collection returns the registered collection named label, or ErrNotFound.
func (r *Repository) Collection(label string) (*Collection, error) {
	series, err := r.registrySeries()
	if err != nil {
		return nil, err
	}
	key := []any{label}
	frame, err := series.Read(key, key, 0)
	if err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, fmt.Errorf("%w: collection %q", ErrNotFound, label)
	}
	last := frame.Len() - 1
	var meta registryMeta
	if err := json.Unmarshal(frame.Columns["meta"].Bytes[last], &meta); err != nil {
		return nil, fmt.Errorf("%w: registry entry for %q: %v", ErrCorruptPayload, label, err)
	}
	schema, err := LoadsSchema(meta.Schema)
	if err != nil {
		return nil, err
	}
	return newCollection(label, schema, r.pod, r.pod.Cd(meta.Path)), nil
}

func filterFrameByLabel(f Frame, drop map[string]bool) Frame {
	col := f.Columns["label"]
	keep := make([]int, 0, col.Len())
	for i, v := range col.String {
		if !drop[v] {
			keep = append(keep, i)
		}
	}
	out := make(map[string]Column, len(f.Columns))
	for name, c := range f.Columns {
		out[name] = selectColumn(c, keep)
	}
	fr, _ := NewFrame(f.Schema, out)
	return fr
}

// Delete unregisters labels (their registry entries are removed, the
// collections' own changelog directories are removed recursively; their
// column blobs are left for GC) and is a no-op for any label that is
// not registered.
func (r *Repository) Delete(labels ...string) error {
	drop := make(map[string]bool, len(labels))
	var paths []string
	for _, l := range labels {
		if _, err := r.Collection(l); err != nil {
			if isNotFound(err) {
				continue
			}
			return err
		}
		drop[l] = true
	}
	if len(drop) == 0 {
		return nil
	}

	series, err := r.registrySeries()
	if err != nil {
		return err
	}
	frame, err := series.Read(nil, nil, 0)
	if err != nil {
		return err
	}
	for i, l := range frame.Columns["label"].String {
		if !drop[l] {
			continue
		}
		var meta registryMeta
		if err := json.Unmarshal(frame.Columns["meta"].Bytes[i], &meta); err != nil {
			return fmt.Errorf("%w: registry entry for %q: %v", ErrCorruptPayload, l, err)
		}
		paths = append(paths, meta.Path)
	}
	remaining := filterFrameByLabel(frame, drop)
	if err := series.Delete(); err != nil {
		return err
	}
	if !remaining.Empty() {
		if err := series.Write(remaining); err != nil {
			return err
		}
	}

	for _, p := range paths {
		if err := r.pod.Rm(p, true); err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

// Rename changes a collection's registered label, leaving its backing
// path and schema untouched.
func (r *Repository) Rename(from, to string) error {
	existing, err := r.Ls()
	if err != nil {
		return err
	}
	for _, l := range existing {
		if l == to {
			return fmt.Errorf("%w: %q", ErrDuplicateLabel, to)
		}
	}

	series, err := r.registrySeries()
	if err != nil {
		return err
	}
	frame, err := series.Read(nil, nil, 0)
	if err != nil {
		return err
	}
	labels := append([]string(nil), frame.Columns["label"].String...)
	changed := false
	for i, v := range labels {
		if v == from {
			labels[i] = to
			changed = true
		}
	}
	if !changed {
		return nil
	}

	newFrame, err := NewFrame(KVSchema(), map[string]Column{
		"label": {DType: DTypeString, String: labels},
		"meta":  frame.Columns["meta"],
	})
	if err != nil {
		return err
	}
	newFrame = newFrame.Sort()
	if err := series.Delete(); err != nil {
		return err
	}
	return series.Write(newFrame)
}

// Refresh invalidates the registry's changelog cache.
func (r *Repository) Refresh() { r.registry.Refresh() }

// Merge reconciles a diverged registry, needed when collections were
// created or deleted concurrently by different actors.
func (r *Repository) Merge() ([]Revision, error) {
	return r.registry.Merge()
}

// Push copies this repository's registered collections (and blobs) to remote.
func (r *Repository) Push(remote *Repository, labels ...string) error {
	return remote.Pull(r, labels...)
}

// Pull copies every named collection (all of them, if labels is empty)
// from remote into this repository, creating any collection missing
// locally with the remote's schema.
func (r *Repository) Pull(remote *Repository, labels ...string) error {
	if err := r.registry.Pull(remote.registry); err != nil {
		return err
	}
	wanted := labels
	if len(wanted) == 0 {
		var err error
		wanted, err = remote.Ls()
		if err != nil {
			return err
		}
	}
	local, err := r.Ls()
	if err != nil {
		return err
	}
	haveLocal := make(map[string]bool, len(local))
	for _, l := range local {
		haveLocal[l] = true
	}

	for _, label := range wanted {
		remoteCollection, err := remote.Collection(label)
		if err != nil {
			return err
		}
		var localCollection *Collection
		if !haveLocal[label] {
			created, err := r.CreateCollection(remoteCollection.schema, true, label)
			if err != nil {
				return err
			}
			localCollection = created[0]
		} else {
			localCollection, err = r.Collection(label)
			if err != nil {
				return err
			}
			if !localCollection.schema.Equal(remoteCollection.schema) {
				return fmt.Errorf("%w: collection %q", ErrSchemaMismatch, label)
			}
		}
		if err := localCollection.Pull(remoteCollection); err != nil {
			return err
		}
	}
	return nil
}
