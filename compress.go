// Zstd compression backing the "blosc"-named column codec (codec.go).
//
// Column payloads referenced by a commit's digest map are stored raw or
// zstd-compressed depending on which named codec the schema assigns to
// that column (spec §1 treats concrete compression codecs as an external
// concern; this is the one concrete implementation the registry ships).
package lakota

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared encoder/decoder, both documented as safe for concurrent use.
// Allocated once at init because zstd encoder/decoder construction is
// expensive (internal state tables, dictionaries). Creating one per call
// would dominate the cost of compressing small columns.
//
// SpeedFastest is deliberate: compression runs on every column write
// (hot path) while decompression runs on every segment materialisation,
// also hot, but asymmetric since most reads hit far more rows than
// writes produce. Do not "improve" this to SpeedDefault without
// benchmarking write throughput.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

func zstdCompress(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return zstdEncoder.EncodeAll(data, nil)
}

func zstdDecompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptPayload, err)
	}
	return out, nil
}
