// Changelog: the content-addressed, append-only revision graph over a
// dedicated sub-pod. Grounded on original_source/baltic/changelog.py's
// Changelog.commit/log/leaf/walk/pull/pack, generalized from that
// file's single-parent sha1 model to spec.md §4.1's multi-parent,
// hextime-ordered edge filenames.
package lakota

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Revision is one changelog DAG edge: a file named
// "{parent}-{child}-{hextime}" whose body is an encoded commit.
type Revision struct {
	Parent  string
	Child   string
	Hextime string
}

// Filename returns the revision's storage key under the changelog sub-pod.
func (r Revision) Filename() string {
	return r.Parent + "-" + r.Child + "-" + r.Hextime
}

// parseRevision parses a changelog entry name produced by Filename.
func parseRevision(name string) (Revision, error) {
	parts := strings.Split(name, "-")
	if len(parts) != 3 || len(parts[0]) != 40 || len(parts[1]) != 40 || len(parts[2]) == 0 {
		return Revision{}, fmt.Errorf("%w: malformed revision filename %q", ErrCorruptPayload, name)
	}
	return Revision{Parent: parts[0], Child: parts[1], Hextime: parts[2]}, nil
}

// Changelog is the revision graph for one collection, stored as flat
// files under pod. Safe for concurrent use by multiple goroutines and,
// via the shared pod, multiple actors.
type Changelog struct {
	pod Pod

	mu     sync.Mutex
	cached bool
	cache  []Revision
}

// NewChangelog returns a Changelog persisting revisions through pod.
func NewChangelog(pod Pod) *Changelog {
	return &Changelog{pod: pod}
}

// Refresh invalidates any in-memory cache of the revision list, so the
// next Log call re-lists the pod.
func (c *Changelog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = false
	c.cache = nil
}

func (c *Changelog) loadAll() ([]Revision, error) {
	c.mu.Lock()
	if c.cached {
		out := append([]Revision(nil), c.cache...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	names, err := c.pod.Ls("")
	if err != nil {
		return nil, fmt.Errorf("lakota: changelog list: %w", err)
	}
	revs := make([]Revision, 0, len(names))
	for _, name := range names {
		if name == ".rollup.lock" {
			continue
		}
		r, err := parseRevision(name)
		if err != nil {
			// A decode/parse error is fatal to the offending entry, not
			// the repository: skip it and keep loading the rest.
			continue
		}
		revs = append(revs, r)
	}

	c.mu.Lock()
	c.cache = revs
	c.cached = true
	c.mu.Unlock()
	return append([]Revision(nil), revs...), nil
}

// Commit writes a new revision for payload, one file per parent (a
// multi-parent edge is a set of files sharing the same child digest).
// No parents means this is a root write (parent = zero-hash).
func (c *Changelog) Commit(payload []byte, parents []string) ([]Revision, error) {
	child := digest(payload)
	if len(parents) == 0 {
		parents = []string{zeroHash}
	}
	revs := make([]Revision, 0, len(parents))
	for _, p := range parents {
		if p == "" {
			p = zeroHash
		}
		rev := Revision{Parent: p, Child: child, Hextime: hextime()}
		if err := c.pod.Write(rev.Filename(), payload); err != nil {
			return nil, fmt.Errorf("lakota: changelog commit: %w", err)
		}
		revs = append(revs, rev)
	}
	c.Refresh()
	return revs, nil
}

// Log returns every revision reachable from the zero-hash root,
// depth-first, each node's children visited oldest-hextime-first
// (digest as tiebreak). If before is non-empty, revisions with
// Hextime >= before are excluded. An edge written more than once (same
// parent and child, different hextimes) is reported once, as its
// oldest file.
func (c *Changelog) Log(before string) ([]Revision, error) {
	all, err := c.loadAll()
	if err != nil {
		return nil, err
	}
	childrenOf := make(map[string][]Revision)
	for _, r := range all {
		if before != "" && r.Hextime >= before {
			continue
		}
		childrenOf[r.Parent] = append(childrenOf[r.Parent], r)
	}
	for parent := range childrenOf {
		kids := childrenOf[parent]
		sort.Slice(kids, func(i, j int) bool {
			if kids[i].Hextime != kids[j].Hextime {
				return kids[i].Hextime < kids[j].Hextime
			}
			return kids[i].Child < kids[j].Child
		})
		childrenOf[parent] = kids
	}

	var out []Revision
	visited := make(map[string]bool)
	var walk func(parent string)
	walk = func(parent string) {
		for _, r := range childrenOf[parent] {
			key := r.Parent + "-" + r.Child
			if visited[key] {
				continue
			}
			visited[key] = true
			out = append(out, r)
			walk(r.Child)
		}
	}
	walk(zeroHash)
	return out, nil
}

// Leaf returns the last revision of Log(""), or the zero Revision and
// false if the changelog is empty.
func (c *Changelog) Leaf() (Revision, bool, error) {
	revs, err := c.Log("")
	if err != nil {
		return Revision{}, false, err
	}
	if len(revs) == 0 {
		return Revision{}, false, nil
	}
	return revs[len(revs)-1], true, nil
}

// Leaves returns every revision whose child never appears as another
// revision's parent: the current fork set. Zero or one element means
// the history is not diverged.
func (c *Changelog) Leaves() ([]Revision, error) {
	revs, err := c.Log("")
	if err != nil {
		return nil, err
	}
	isParent := make(map[string]bool, len(revs))
	for _, r := range revs {
		isParent[r.Parent] = true
	}
	seenChild := make(map[string]bool, len(revs))
	var out []Revision
	for _, r := range revs {
		if isParent[r.Child] || seenChild[r.Child] {
			continue
		}
		seenChild[r.Child] = true
		out = append(out, r)
	}
	return out, nil
}

// Pull copies every revision present in remote but absent locally
// (diffed by child digest), verbatim, without reparsing the payload.
// Column blobs referenced by the copied commits must be synced by the
// caller separately.
func (c *Changelog) Pull(remote *Changelog) error {
	local, err := c.Log("")
	if err != nil {
		return err
	}
	haveChild := make(map[string]bool, len(local))
	for _, r := range local {
		haveChild[r.Child] = true
	}

	remoteRevs, err := remote.Log("")
	if err != nil {
		return fmt.Errorf("lakota: changelog pull: %w", err)
	}
	for _, r := range remoteRevs {
		if haveChild[r.Child] {
			continue
		}
		payload, err := remote.pod.Read(r.Filename())
		if err != nil {
			return fmt.Errorf("lakota: changelog pull: read %s: %w", r.Filename(), err)
		}
		if err := c.pod.Write(r.Filename(), payload); err != nil {
			return fmt.Errorf("lakota: changelog pull: write %s: %w", r.Filename(), err)
		}
		haveChild[r.Child] = true
	}
	c.Refresh()
	return nil
}

// Rollup rewrites revisions into one new root revision carrying
// payload, then deletes the originals. Serialized via the pod's
// optional file lock so two actors rolling up concurrently don't
// interleave the write-then-delete sequence.
func (c *Changelog) Rollup(revisions []Revision, payload []byte) (Revision, error) {
	var result Revision
	err := withOptionalLock(c.pod, "", func() error {
		result = Revision{Parent: zeroHash, Child: digest(payload), Hextime: hextime()}
		if err := c.pod.Write(result.Filename(), payload); err != nil {
			return fmt.Errorf("lakota: changelog rollup: write new revision: %w", err)
		}
		for _, r := range revisions {
			if r.Filename() == result.Filename() {
				continue
			}
			if err := c.pod.Rm(r.Filename(), false); err != nil && !isNotFound(err) {
				return fmt.Errorf("lakota: changelog rollup: remove %s: %w", r.Filename(), err)
			}
		}
		return nil
	})
	if err != nil {
		return Revision{}, err
	}
	c.Refresh()
	return result, nil
}
