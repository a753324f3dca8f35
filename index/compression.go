package index

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec used for segment snapshots
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// Tag bytes prefixed to compressed payloads
const (
	tagNone byte = iota
	tagZstd
	tagLZ4
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// ErrUnknownCompression is returned for an unsupported codec or tag
var ErrUnknownCompression = errors.New("unknown compression")

// ParseCompression validates a compression name. An empty name means zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionZstd:
		return CompressionZstd, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionNone:
		return CompressionNone, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

// compress encodes data and prefixes the codec tag
func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return append([]byte{tagNone}, data...), nil

	case CompressionZstd, "":
		return zstdEncoder.EncodeAll(data, []byte{tagZstd}), nil

	case CompressionLZ4:
		var buf bytes.Buffer
		buf.WriteByte(tagLZ4)
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compression failed: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, c)
	}
}

// decompress reverses compress using the tag byte
func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty compressed payload")
	}

	switch data[0] {
	case tagNone:
		return data[1:], nil
	case tagZstd:
		out, err := zstdDecoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		return out, nil
	case tagLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data[1:])))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCompression, data[0])
	}
}
