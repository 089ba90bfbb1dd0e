// Package compress implements the framed block compression used by every
// artifact file: content blocks, document store shards and the key file.
//
// Frame: [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize == 0 means Data is stored as is.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrCorrupt is returned for frames that cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt frame")

// Type is the compression algorithm of a frame.
type Type uint8

const (
	// None stores data uncompressed.
	None Type = 0
	// LZ4 favours decode speed.
	LZ4 Type = 1
	// Zstd favours ratio. It is the default for artifacts.
	Zstd Type = 2
)

// HeaderSize is the frame header length in bytes.
const HeaderSize = 8

// String returns the stable name stored in manifests.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compress(%d)", uint8(t))
	}
}

// Ext returns the file extension appended to artifact names ("" for None).
func (t Type) Ext() string {
	switch t {
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseType is the inverse of Type.String.
func ParseType(name string) (Type, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return None, fmt.Errorf("compress: unknown type %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

// Compress frames data with algorithm t. Incompressible data is stored raw.
func Compress(data []byte, t Type) ([]byte, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("compress: frame of %d bytes too large", len(data))
	}

	var body []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		body = buf[:n]
	case Zstd:
		enc := getZstdEncoder()
		body = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", uint8(t))
	}

	if len(body) == 0 || len(body) >= len(data) {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out, nil
}

// Decompress decodes a frame produced by Compress with the same t.
// Stored frames may alias data.
func Decompress(data []byte, t Type) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	size := binary.LittleEndian.Uint32(data[0:])
	csize := binary.LittleEndian.Uint32(data[4:])

	if csize == 0 {
		if uint64(len(data)) < HeaderSize+uint64(size) {
			return nil, fmt.Errorf("%w: stored frame truncated", ErrCorrupt)
		}
		return data[HeaderSize : HeaderSize+int(size)], nil
	}
	if uint64(len(data)) < HeaderSize+uint64(csize) {
		return nil, fmt.Errorf("%w: compressed frame truncated", ErrCorrupt)
	}
	body := data[HeaderSize : HeaderSize+int(csize)]

	out := make([]byte, size)
	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed frame with type %v", ErrCorrupt, t)
	}
}
