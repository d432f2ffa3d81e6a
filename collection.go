// Collection: bundles a schema, a changelog, and the set of series
// sharing both under one label space. Grounded on
// original_source/lakota/collection.py's Collection class (ls/delete
// /rename/pull/push/merge/squash/digests/multi).
package lakota

import (
	"sort"
	"strings"
)

// Collection is a named bundle of series. Column blobs are stored in
// pod (shared across a repository); revisions are stored in a
// changelog scoped to this collection's own sub-path.
type Collection struct {
	label     string
	schema    *Schema
	pod       Pod
	changelog *Changelog
}

// newCollection builds a Collection; pod is the shared blob store,
// changelogPod is already rooted at this collection's own path.
func newCollection(label string, schema *Schema, pod Pod, changelogPod Pod) *Collection {
	return &Collection{label: label, schema: schema, pod: pod, changelog: NewChangelog(changelogPod)}
}

// Label returns the collection's name in its repository.
func (c *Collection) Label() string { return c.label }

// Schema returns the collection's immutable schema.
func (c *Collection) Schema() *Schema { return c.schema }

// Series returns a label-scoped view for reading and writing.
func (c *Collection) Series(label string) (*Series, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrInvalidLabel
	}
	return newSeries(label, c.schema, c.changelog, c.pod), nil
}

func (c *Collection) leafCommit() (*Commit, Revision, bool, error) {
	leaf, ok, err := c.changelog.Leaf()
	if err != nil || !ok {
		return nil, Revision{}, ok, err
	}
	payload, err := c.changelog.pod.Read(leaf.Filename())
	if err != nil {
		return nil, Revision{}, false, err
	}
	ci, err := DecodeCommit(c.schema, payload)
	if err != nil {
		return nil, Revision{}, false, err
	}
	return ci, leaf, true, nil
}

// Ls returns every distinct label written in the collection's leaf commit.
func (c *Collection) Ls() ([]string, error) {
	ci, _, ok, err := c.leafCommit()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	seen := make(map[string]bool, ci.Len())
	for _, l := range ci.Label {
		seen[l] = true
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes every row for labels, writing a new revision without
// touching any column blob.
func (c *Collection) Delete(labels ...string) ([]Revision, error) {
	ci, leaf, ok, err := c.leafCommit()
	if err != nil || !ok {
		return nil, err
	}
	ci = ci.DeleteLabels(labels...)
	payload, err := ci.Encode()
	if err != nil {
		return nil, err
	}
	return c.changelog.Commit(payload, []string{leaf.Child})
}

// RenameLabel rewrites every row labelled from to label to.
func (c *Collection) RenameLabel(from, to string) ([]Revision, error) {
	ci, leaf, ok, err := c.leafCommit()
	if err != nil || !ok {
		return nil, err
	}
	ci = ci.RenameLabel(from, to)
	payload, err := ci.Encode()
	if err != nil {
		return nil, err
	}
	return c.changelog.Commit(payload, []string{leaf.Child})
}

// Refresh invalidates the collection's changelog cache.
func (c *Collection) Refresh() { c.changelog.Refresh() }

// Digests returns every column-blob digest referenced by any reachable
// revision, deduplicated.
func (c *Collection) Digests() ([]string, error) {
	revs, err := c.changelog.Log("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range revs {
		payload, err := c.changelog.pod.Read(r.Filename())
		if err != nil {
			return nil, err
		}
		ci, err := DecodeCommit(c.schema, payload)
		if err != nil {
			continue
		}
		for _, vals := range ci.Digest {
			for _, d := range vals {
				if d == "" || seen[d] {
					continue
				}
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out, nil
}

// Push copies this collection's revisions and blobs into remote.
func (c *Collection) Push(remote *Collection) error {
	return remote.Pull(c)
}

// Pull copies every blob and revision present in remote but absent
// locally into this collection.
func (c *Collection) Pull(remote *Collection) error {
	localDigs, err := c.Digests()
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(localDigs))
	for _, d := range localDigs {
		have[d] = true
	}
	remoteDigs, err := remote.Digests()
	if err != nil {
		return err
	}
	for _, d := range remoteDigs {
		if have[d] {
			continue
		}
		path := hashedPathJoin(d)
		data, err := remote.pod.Read(path)
		if err != nil {
			return err
		}
		if err := c.pod.Write(path, data); err != nil {
			return err
		}
	}
	return c.changelog.Pull(remote.changelog)
}

func ancestorClosure(revisions []Revision, startChild string) map[string]bool {
	byChild := make(map[string][]Revision, len(revisions))
	for _, r := range revisions {
		byChild[r.Child] = append(byChild[r.Child], r)
	}
	visited := map[string]bool{startChild: true}
	queue := []string{startChild}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range byChild[cur] {
			if r.Parent == zeroHash || visited[r.Parent] {
				continue
			}
			visited[r.Parent] = true
			queue = append(queue, r.Parent)
		}
	}
	return visited
}

// findCommonAncestorCommit returns the youngest commit reachable from
// every head, scanning the depth-first log backward (newest last) for
// the first child digest common to all heads' ancestor closures.
func (c *Collection) findCommonAncestorCommit(heads []Revision, revisions []Revision) (*Commit, error) {
	closures := make([]map[string]bool, len(heads))
	for i, h := range heads {
		closures[i] = ancestorClosure(revisions, h.Child)
	}
	var common string
	for i := len(revisions) - 1; i >= 0; i-- {
		cand := revisions[i].Child
		inAll := true
		for _, cl := range closures {
			if !cl[cand] {
				inAll = false
				break
			}
		}
		if inAll {
			common = cand
			break
		}
	}
	if common == "" {
		return EmptyCommit(c.schema), nil
	}
	for _, r := range revisions {
		if r.Child == common {
			payload, err := c.changelog.pod.Read(r.Filename())
			if err != nil {
				return nil, err
			}
			return DecodeCommit(c.schema, payload)
		}
	}
	return EmptyCommit(c.schema), nil
}

func commitHasRow(ci *Commit, row CommitRow) bool {
	for pos := 0; pos < ci.Len(); pos++ {
		if ci.Label[pos] != row.Label {
			continue
		}
		if compareTuple(ci.startTuple(pos), row.Start) != 0 {
			continue
		}
		if compareTuple(ci.stopTuple(pos), row.Stop) != 0 {
			continue
		}
		if ci.Closed[pos] != row.Closed || ci.Length[pos] != row.Length {
			continue
		}
		if digestsEqual(ci.digestsAt(pos), row.Digest) {
			return true
		}
	}
	return false
}

func digestsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Merge reconciles diverged history. With no explicit heads, every
// current leaf is merged. If the leaves already share one child digest
// there is nothing to do. Otherwise rows present in any head but
// absent from both the first head and their common ancestor are piled
// onto the first head's commit, and one new multi-parent revision is
// written.
func (c *Collection) Merge(heads ...Revision) ([]Revision, error) {
	revisions, err := c.changelog.Log("")
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, nil
	}
	if len(heads) == 0 {
		heads, err = c.changelog.Leaves()
		if err != nil {
			return nil, err
		}
	}
	if len(heads) < 2 {
		return nil, nil
	}
	distinct := make(map[string]bool, len(heads))
	for _, h := range heads {
		distinct[h.Child] = true
	}
	if len(distinct) < 2 {
		return nil, nil
	}

	root, err := c.findCommonAncestorCommit(heads, revisions)
	if err != nil {
		return nil, err
	}

	firstPayload, err := c.changelog.pod.Read(heads[0].Filename())
	if err != nil {
		return nil, err
	}
	merged, err := DecodeCommit(c.schema, firstPayload)
	if err != nil {
		return nil, err
	}

	for _, h := range heads[1:] {
		payload, err := c.changelog.pod.Read(h.Filename())
		if err != nil {
			return nil, err
		}
		ci, err := DecodeCommit(c.schema, payload)
		if err != nil {
			return nil, err
		}
		for pos := 0; pos < ci.Len(); pos++ {
			row := ci.At(pos)
			if commitHasRow(merged, row) || commitHasRow(root, row) {
				continue
			}
			merged, err = merged.Update(row.Label, row.Start, row.Stop, row.Digest, row.Length, row.Closed)
			if err != nil {
				return nil, err
			}
		}
	}

	payload, err := merged.Encode()
	if err != nil {
		return nil, err
	}
	parents := make([]string, len(heads))
	for i, h := range heads {
		parents[i] = h.Child
	}
	return c.changelog.Commit(payload, parents)
}

// Multi runs fn with a fresh Batch bound to c, flushing it exactly
// once after fn returns (even buffering writes to several different
// series into one revision), mirroring the Python context manager's
// with-block/flush-on-exit behavior. When fn returns an error the
// buffered writes are discarded without a flush and that error is
// returned.
func (c *Collection) Multi(fn func(*Batch) error) error {
	b := NewBatch(c, false)
	if err := fn(b); err != nil {
		return err
	}
	_, err := b.Flush()
	return err
}

// Squash rewrites the collection's entire history into as few
// revisions as possible, paginating every series in groups of step
// rows (step <= 0 uses the documented default of 500000) and removing
// every revision file that existed before the rewrite. When the rewrite
// produces no revision (no series holds any rows), the old leaf
// revision is kept.
func (c *Collection) Squash(step int) ([]Revision, error) {
	if step <= 0 {
		step = 500000
	}
	oldRevs, err := c.changelog.Log("")
	if err != nil {
		return nil, err
	}
	if len(oldRevs) == 0 {
		return nil, nil
	}
	oldFiles, err := c.changelog.loadAll()
	if err != nil {
		return nil, err
	}
	labels, err := c.Ls()
	if err != nil {
		return nil, err
	}

	batch := NewBatch(c, true)
	for _, label := range labels {
		series, err := c.Series(label)
		if err != nil {
			return nil, err
		}
		for frame, err := range series.Paginate(step) {
			if err != nil {
				return nil, err
			}
			if err := batch.Append(label, frame); err != nil {
				return nil, err
			}
		}
	}
	newRevs, err := batch.Flush()
	if err != nil {
		return nil, err
	}

	keep := ""
	if len(newRevs) == 0 {
		keep = oldRevs[len(oldRevs)-1].Filename()
	}
	for _, r := range oldFiles {
		if r.Filename() == keep {
			continue
		}
		if err := c.changelog.pod.Rm(r.Filename(), false); err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	c.changelog.Refresh()
	return newRevs, nil
}
