package serialization

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/levelhe/levelhe/utils"
)

// ComprModeType is the compression applied to the payload following a [Header].
type ComprModeType uint8

const (
	ComprModeNone ComprModeType = 0
	ComprModeZlib ComprModeType = 1
	ComprModeZstd ComprModeType = 2
)

// ComprModeDefault is the compression mode used when none is specified.
const ComprModeDefault = ComprModeZstd

func (c ComprModeType) String() string {
	switch c {
	case ComprModeNone:
		return "none"
	case ComprModeZlib:
		return "zlib"
	case ComprModeZstd:
		return "zstd"
	default:
		return fmt.Sprintf("ComprModeType(%d)", uint8(c))
	}
}

// IsSupported returns true if the compression mode is known.
func (c ComprModeType) IsSupported() bool {
	switch c {
	case ComprModeNone, ComprModeZlib, ComprModeZstd:
		return true
	default:
		return false
	}
}

// SaveSize returns an upper bound on the size, header included, of a payload
// of rawSize bytes once compressed with the given mode.
func (c ComprModeType) SaveSize(rawSize int) (size int, err error) {
	switch c {
	case ComprModeNone:
		size = rawSize
	case ComprModeZlib:
		// deflate worst case (stored blocks) plus zlib framing
		size = rawSize + (rawSize >> 12) + (rawSize >> 14) + (rawSize >> 25) + 13 + 6
	case ComprModeZstd:
		size = rawSize + (rawSize >> 8)
		if rawSize < 128<<10 {
			size += (128<<10 - rawSize) >> 11
		}
		// frame header and checksum
		size += 18
	default:
		return 0, fmt.Errorf("%w: unsupported compression mode %s", utils.ErrInvalidArgument, c)
	}
	return size + HeaderSize, nil
}

func compress(c ComprModeType, p []byte) (out []byte, err error) {
	switch c {
	case ComprModeNone:
		return p, nil
	case ComprModeZlib:
		var b bytes.Buffer
		zw, err := zlib.NewWriterLevel(&b, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err = zw.Write(p); err != nil {
			return nil, err
		}
		if err = zw.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	case ComprModeZstd:
		zw, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		defer zw.Close()
		return zw.EncodeAll(p, make([]byte, 0, len(p)/2)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression mode %s", utils.ErrInvalidArgument, c)
	}
}

// decompress returns the decompressed payload p, which cannot exceed limit bytes.
func decompress(c ComprModeType, p []byte, limit uint64) (out []byte, err error) {
	switch c {
	case ComprModeNone:
		if uint64(len(p)) > limit {
			return nil, fmt.Errorf("payload exceeds %d bytes", limit)
		}
		return p, nil
	case ComprModeZlib:
		zr, err := zlib.NewReader(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if out, err = io.ReadAll(io.LimitReader(zr, int64(limit)+1)); err != nil {
			return nil, err
		}
		if uint64(len(out)) > limit {
			return nil, fmt.Errorf("decompressed payload exceeds %d bytes", limit)
		}
		return out, nil
	case ComprModeZstd:
		zr, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limit), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return zr.DecodeAll(p, nil)
	default:
		return nil, fmt.Errorf("%w: unsupported compression mode %s", utils.ErrInvalidArgument, c)
	}
}
