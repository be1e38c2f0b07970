package persistence

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the snapshot compression algorithm.
type Compression string

const (
	// CompressionNone writes plain JSON.
	CompressionNone Compression = "none"
	// CompressionZstd writes a zstd frame (better ratio).
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 writes an lz4 frame (faster).
	CompressionLZ4 Compression = "lz4"
)

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd, CompressionLZ4:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("unknown snapshot compression %q", s)
	}
}

// Extension returns the conventional file suffix for the algorithm.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	default:
		return ""
	}
}

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress wraps data in the chosen format.
func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone, "":
		return data, nil
	case CompressionZstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot compression %q", c)
	}
}

// decompress detects the format from its magic bytes.
func decompress(data []byte) ([]byte, Compression, error) {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(data, nil)
		return out, CompressionZstd, err
	case bytes.HasPrefix(data, lz4Magic):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		return out, CompressionLZ4, err
	default:
		return data, CompressionNone, nil
	}
}
