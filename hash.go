// Hash algorithms for label shortcuts and content digests.
//
// Two distinct hashing needs exist: a fast, non-cryptographic hash for
// sharding/bloom-filter use (xxh3, fnv), and a fixed-width content digest
// used as both a storage key and an identity (blake2b, truncated to 20
// bytes so hex-encoding produces the 40 character digests the revision
// filename and column-blob path formats require).
package lakota

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Hash algorithm constants, selectable for the fast non-cryptographic hash.
const (
	AlgXXHash3 = 1 // Default, fastest
	AlgFNV1a   = 2 // No external dependencies
)

// quickHash generates a 16 hex character fingerprint from a string using
// the specified algorithm. Used for sharding and bloom filter positions,
// never for content-addressed storage keys (see digest).
func quickHash(s string, alg int) string {
	switch alg {
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write([]byte(s))
		return fmt.Sprintf("%016x", h.Sum64())
	default:
		h := xxh3.HashString(s)
		return fmt.Sprintf("%016x", h)
	}
}

// digestSize is the byte length of a content digest: 20 bytes hex-encodes
// to the 40 character strings used for revision hashes and column-blob
// keys (spec §6).
const digestSize = 20

// zeroHash is the sentinel parent digest for root revisions.
const zeroHash = "0000000000000000000000000000000000000000"

// digest returns the 40 hex character content digest of b.
func digest(b []byte) string {
	h, _ := blake2b.New(digestSize, nil)
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

// hextimeCounter guarantees that hextime is strictly increasing even when
// called faster than the clock's resolution, so that two revisions
// committed back to back by the same actor never collide on filename.
var hextimeCounter atomic.Uint64

// hextime returns a big-endian, lexicographically sortable, 16 hex
// character encoding of a monotonic microsecond timestamp. Used to
// tie-break sibling revisions and to age soft-deleted blobs.
func hextime() string {
	us := uint64(time.Now().UnixMicro())
	for {
		last := hextimeCounter.Load()
		next := us
		if next <= last {
			next = last + 1
		}
		if hextimeCounter.CompareAndSwap(last, next) {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], next)
			return hex.EncodeToString(buf[:])
		}
	}
}

// hextimeAt encodes an arbitrary instant the same way hextime encodes
// now, without touching the monotonic counter. Used to compute GC's
// soft-delete deadline, which compares against a past point in time
// rather than minting a new unique timestamp.
func hextimeAt(t time.Time) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixMicro()))
	return hex.EncodeToString(buf[:])
}
