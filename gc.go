// Garbage collection: a two-phase mark-and-delay sweep over every
// column blob in the repository pod. Grounded on
// original_source/lakota/repo.py's Repo.gc(); the exact active-digest
// membership test is accelerated by the bloom filter in bloom.go (a
// digest absent from the filter is definitely inactive and skips the
// exact-set lookup), the same fast-reject role a bloom filter plays in
// front of any exact lookup over a large key set.
package lakota

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// GCResult reports how many blobs were soft- and hard-deleted by one GC pass.
type GCResult struct {
	SoftDeleted int
	HardDeleted int
}

// onDiskDigest is one entry found while walking the pod's blob
// namespace: a base digest, optionally suffixed with the hextime at
// which it was soft-deleted.
type onDiskDigest struct {
	path   string // full path as stored: folder/rest[.suffix]
	digest string // base digest, suffix stripped
	suffix string // "" if not soft-deleted
}

// walkBlobDigests lists every file under the pod's two-level hashed
// namespace, skipping any path that is a registered collection's own
// changelog directory (those are traversed by Changelog.Log, not GC).
func (r *Repository) walkBlobDigests(excluded map[string]bool) ([]onDiskDigest, error) {
	folders, err := r.pod.Ls("")
	if err != nil {
		return nil, err
	}
	var out []onDiskDigest
	for _, folder := range folders {
		if len(folder) != 2 {
			continue
		}
		children, err := r.pod.Ls(folder)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		for _, rest := range children {
			full := folder + "/" + rest
			if excluded[full] {
				continue
			}
			base, suffix, _ := strings.Cut(rest, ".")
			out = append(out, onDiskDigest{path: full, digest: folder + base, suffix: suffix})
		}
	}
	return out, nil
}

// excludedPaths returns the set of pod paths that are registered
// collections' (or the registry's own) changelog directories, never
// blob files, and so must not be swept.
func (r *Repository) excludedPaths() (map[string]bool, error) {
	excluded := map[string]bool{hashedPathJoin(zeroHash): true}
	series, err := r.registrySeries()
	if err != nil {
		return nil, err
	}
	frame, err := series.Read(nil, nil, 0)
	if err != nil {
		return nil, err
	}
	labels := frame.Columns["label"].String
	for i, raw := range frame.Columns["meta"].Bytes {
		var meta registryMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("%w: registry entry for %q: %v", ErrCorruptPayload, labels[i], err)
		}
		excluded[meta.Path] = true
	}
	return excluded, nil
}

// activeDigests accumulates every column-blob digest referenced by any
// reachable revision of the registry and every registered collection.
func (r *Repository) activeDigests() ([]string, error) {
	active, err := r.registry.Digests()
	if err != nil {
		return nil, err
	}
	labels, err := r.Ls()
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		c, err := r.Collection(l)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		digs, err := c.Digests()
		if err != nil {
			return nil, err
		}
		active = append(active, digs...)
	}
	return active, nil
}

// GC walks the pod, soft-deletes blobs unreferenced by any reachable
// revision, and hard-deletes blobs whose soft-deletion is older than
// timeout. Blobs soft-deleted more recently than timeout are left
// alone, protecting writes from a concurrent actor whose commit is not
// yet visible.
func (r *Repository) GC(timeout time.Duration) (GCResult, error) {
	excluded, err := r.excludedPaths()
	if err != nil {
		return GCResult{}, err
	}
	onDisk, err := r.walkBlobDigests(excluded)
	if err != nil {
		return GCResult{}, err
	}

	r.Refresh()
	active, err := r.activeDigests()
	if err != nil {
		return GCResult{}, err
	}
	activeSet := make(map[string]bool, len(active))
	filter := newBloom(len(active))
	for _, d := range active {
		activeSet[d] = true
		filter.Add(d)
	}
	isActive := func(d string) bool {
		if !filter.Contains(d) {
			return false
		}
		return activeSet[d]
	}

	deadline := hextimeAt(time.Now().Add(-timeout))
	var result GCResult
	for _, od := range onDisk {
		if od.suffix == "" {
			if isActive(od.digest) {
				continue
			}
			newPath := od.path + "." + hextime()
			if err := r.pod.Mv(od.path, newPath); err != nil {
				return result, err
			}
			result.SoftDeleted++
			continue
		}

		if od.suffix > deadline {
			// Soft-deleted too recently to act on; a concurrent
			// writer's commit referencing it may not be visible yet.
			continue
		}

		basePath := strings.TrimSuffix(od.path, "."+od.suffix)
		if isActive(od.digest) {
			if err := r.pod.Mv(od.path, basePath); err != nil {
				return result, err
			}
			continue
		}
		if err := r.pod.Rm(od.path, false); err != nil && !isNotFound(err) {
			return result, err
		}
		result.HardDeleted++
	}
	return result, nil
}
