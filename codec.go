// Codec registry: a table of (name, encode, decode) built at startup,
// with commits storing names rather than code references. Concrete
// column codecs are out of scope (spec.md §1); this ships a minimal
// reference set, not a faithful blosc/lz4 port.
package lakota

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// columnCodec encodes/decodes one column's values to/from bytes.
type columnCodec struct {
	name   string
	encode func(Column) ([]byte, error)
	decode func([]byte, DType) (Column, error)
}

var codecRegistry = map[string]columnCodec{}

func registerCodec(c columnCodec) {
	codecRegistry[c.name] = c
}

func init() {
	registerCodec(columnCodec{name: "vlen-utf8", encode: encodeVlenUTF8, decode: decodeVlenUTF8})
	registerCodec(columnCodec{name: "fixed-binary", encode: encodeFixedBinary, decode: decodeFixedBinary})
	registerCodec(columnCodec{name: "blosc", encode: encodeBlosc, decode: decodeBlosc})
}

// encodeColumn looks up codecName in the registry and encodes col.
func encodeColumn(codecName string, col Column) ([]byte, error) {
	c, ok := codecRegistry[codecName]
	if !ok {
		return nil, fmt.Errorf("%w: codec %q", ErrUnsupported, codecName)
	}
	return c.encode(col)
}

// decodeColumn looks up codecName in the registry and decodes data into
// a Column of the given dtype.
func decodeColumn(codecName string, dtype DType, data []byte) (Column, error) {
	c, ok := codecRegistry[codecName]
	if !ok {
		return Column{}, fmt.Errorf("%w: codec %q", ErrUnsupported, codecName)
	}
	return c.decode(data, dtype)
}

// --- vlen-utf8: length-prefixed UTF-8 strings, for DTypeString/DTypeBytes ---

func encodeVlenUTF8(col Column) ([]byte, error) {
	var out []byte
	var lenBuf [4]byte
	switch col.DType {
	case DTypeString:
		for _, s := range col.String {
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
			out = append(out, lenBuf[:]...)
			out = append(out, s...)
		}
	case DTypeBytes:
		for _, b := range col.Bytes {
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
			out = append(out, lenBuf[:]...)
			out = append(out, b...)
		}
	default:
		return nil, fmt.Errorf("%w: vlen-utf8 codec requires string or bytes column, got %s", ErrUnsupported, col.DType)
	}
	return out, nil
}

func decodeVlenUTF8(data []byte, dtype DType) (Column, error) {
	out := NewColumn(dtype, 0)
	pos := 0
	for pos < len(data) {
		if pos+4 > len(data) {
			return Column{}, fmt.Errorf("%w: truncated vlen-utf8 length prefix", ErrCorruptPayload)
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return Column{}, fmt.Errorf("%w: truncated vlen-utf8 value", ErrCorruptPayload)
		}
		chunk := data[pos : pos+n]
		pos += n
		switch dtype {
		case DTypeString:
			out.String = append(out.String, string(chunk))
		case DTypeBytes:
			cp := make([]byte, n)
			copy(cp, chunk)
			out.Bytes = append(out.Bytes, cp)
		default:
			return Column{}, fmt.Errorf("%w: vlen-utf8 codec requires string or bytes column, got %s", ErrUnsupported, dtype)
		}
	}
	return out, nil
}

// --- fixed-binary: little-endian int64/float64/timestamp arrays ---

func encodeFixedBinary(col Column) ([]byte, error) {
	switch col.DType {
	case DTypeInt64:
		out := make([]byte, 8*len(col.Int64))
		for i, v := range col.Int64 {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
		return out, nil
	case DTypeFloat64:
		out := make([]byte, 8*len(col.Float64))
		for i, v := range col.Float64 {
			binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
		}
		return out, nil
	case DTypeTimestamp:
		out := make([]byte, 8*len(col.Timestamp))
		for i, v := range col.Timestamp {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v.UnixMicro()))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: fixed-binary codec requires a numeric or timestamp column, got %s", ErrUnsupported, col.DType)
	}
}

func decodeFixedBinary(data []byte, dtype DType) (Column, error) {
	if len(data)%8 != 0 {
		return Column{}, fmt.Errorf("%w: fixed-binary payload not a multiple of 8 bytes", ErrCorruptPayload)
	}
	n := len(data) / 8
	out := NewColumn(dtype, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint64(data[i*8:])
		switch dtype {
		case DTypeInt64:
			out.Int64[i] = int64(bits)
		case DTypeFloat64:
			out.Float64[i] = math.Float64frombits(bits)
		case DTypeTimestamp:
			out.Timestamp[i] = time.UnixMicro(int64(bits)).UTC()
		default:
			return Column{}, fmt.Errorf("%w: fixed-binary codec requires a numeric or timestamp column, got %s", ErrUnsupported, dtype)
		}
	}
	return out, nil
}

// --- blosc: fixed-binary or vlen-utf8 payload, zstd-compressed ---

func encodeBlosc(col Column) ([]byte, error) {
	var raw []byte
	var err error
	switch col.DType {
	case DTypeString, DTypeBytes:
		raw, err = encodeVlenUTF8(col)
	default:
		raw, err = encodeFixedBinary(col)
	}
	if err != nil {
		return nil, err
	}
	return zstdCompress(raw), nil
}

func decodeBlosc(data []byte, dtype DType) (Column, error) {
	raw, err := zstdDecompress(data)
	if err != nil {
		return Column{}, err
	}
	switch dtype {
	case DTypeString, DTypeBytes:
		return decodeVlenUTF8(raw, dtype)
	default:
		return decodeFixedBinary(raw, dtype)
	}
}
