// Zstd round-trip tests for the "blosc"-named column codec.
package lakota

import (
	"bytes"
	"testing"
)

func TestZstdRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"simple text", []byte("hello world")},
		{"single byte", []byte{0x42}},
		{"binary data", []byte{0x00, 0x01, 0xff, 0xfe, 0x80, 0x7f}},
		{"unicode", []byte("日本語テキスト")},
		{"json-ish", []byte(`{"key": "value", "num": 123}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := zstdCompress(tt.data)
			decoded, err := zstdDecompress(encoded)
			if err != nil {
				t.Fatalf("zstdDecompress: %v", err)
			}
			if !bytes.Equal(decoded, tt.data) {
				t.Errorf("round trip failed: got %v, want %v", decoded, tt.data)
			}
		})
	}
}

func TestZstdCompressEmpty(t *testing.T) {
	result := zstdCompress(nil)
	if result != nil {
		t.Errorf("zstdCompress(nil) = %v, want nil", result)
	}
}

func TestZstdDecompressEmpty(t *testing.T) {
	result, err := zstdDecompress(nil)
	if err != nil {
		t.Fatalf("zstdDecompress: %v", err)
	}
	if result != nil {
		t.Errorf("zstdDecompress(nil) = %v, want nil", result)
	}
}

func TestZstdLargeData(t *testing.T) {
	data := bytes.Repeat([]byte("time series value for compression "), 40000)

	encoded := zstdCompress(data)
	decoded, err := zstdDecompress(encoded)
	if err != nil {
		t.Fatalf("zstdDecompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("large data round trip failed: lengths got %d, want %d", len(decoded), len(data))
	}
}

func TestZstdReducesSize(t *testing.T) {
	data := bytes.Repeat([]byte("aaaaaaaaaa"), 1000)
	encoded := zstdCompress(data)
	if len(encoded) >= len(data) {
		t.Errorf("compression did not reduce size: encoded %d >= original %d", len(encoded), len(data))
	}
}

func TestZstdDecompressCorruptFrame(t *testing.T) {
	_, err := zstdDecompress([]byte{0xff, 0xff, 0xff, 0xff})
	if err == nil {
		t.Fatal("expected an error decoding a corrupt zstd frame")
	}
}

func TestZstdBinaryData(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	encoded := zstdCompress(data)
	decoded, err := zstdDecompress(encoded)
	if err != nil {
		t.Fatalf("zstdDecompress: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Error("binary data round trip failed")
	}
}
