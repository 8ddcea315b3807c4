// Package serialization implements the binary framing shared by every
// serializable object: a fixed 16-byte header followed by an optionally
// compressed payload.
package serialization

import (
	"bufio"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/buffer"
)

const (
	// Magic is the value of the first two bytes of every serialized object.
	Magic uint16 = 0xA15E
	// HeaderSize is the size in bytes of the [Header].
	HeaderSize = 16
	// VersionMajor is the major version of the wire format.
	VersionMajor uint8 = 1
	// VersionMinor is the minor version of the wire format.
	VersionMinor uint8 = 0
	// MaxSize is the largest serialized size, header included, that can be
	// loaded. It also bounds the size of a decompressed payload.
	MaxSize uint64 = 1 << 36
)

// Header is the 16-byte prefix of every serialized object.
//
//	offset size field
//	0      2    magic number 0xA15E
//	2      1    header size (16)
//	3      1    major version
//	4      1    minor version
//	5      1    compression mode
//	6      2    reserved
//	8      8    total size in bytes, header included
type Header struct {
	Magic        uint16
	HeaderSize   uint8
	VersionMajor uint8
	VersionMinor uint8
	ComprMode    ComprModeType
	Reserved     uint16
	Size         uint64
}

// NewHeader returns a header of the current version for an object whose
// serialization, header included, takes size bytes.
func NewHeader(compr ComprModeType, size uint64) Header {
	return Header{
		Magic:        Magic,
		HeaderSize:   HeaderSize,
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		ComprMode:    compr,
		Size:         size,
	}
}

// IsCompatibleVersion returns true if the header was written by a compatible version.
func (h Header) IsCompatibleVersion() bool {
	return h.VersionMajor == VersionMajor && h.VersionMinor <= VersionMinor
}

// IsValid returns true if the header is well formed and can be loaded.
func (h Header) IsValid() bool {
	return h.Magic == Magic &&
		h.HeaderSize == HeaderSize &&
		h.IsCompatibleVersion() &&
		h.ComprMode.IsSupported() &&
		h.Reserved == 0 &&
		h.Size >= HeaderSize &&
		h.Size <= MaxSize
}

// BinarySize returns the serialized size of the object in bytes.
func (h Header) BinarySize() int {
	return HeaderSize
}

// WriteTo writes the object on an [io.Writer].
func (h Header) WriteTo(w io.Writer) (n int64, err error) {
	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteUint16(w, h.Magic); err != nil {
			return n + inc, err
		}
		n += inc

		for _, b := range []uint8{h.HeaderSize, h.VersionMajor, h.VersionMinor, uint8(h.ComprMode)} {
			if inc, err = buffer.WriteUint8(w, b); err != nil {
				return n + inc, err
			}
			n += inc
		}

		if inc, err = buffer.WriteUint16(w, h.Reserved); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.WriteUint64(w, h.Size); err != nil {
			return n + inc, err
		}

		return n + inc, nil

	default:
		bw := bufio.NewWriter(w)
		if n, err = h.WriteTo(bw); err != nil {
			return
		}
		return n, bw.Flush()
	}
}

// ReadFrom reads on the object from an [io.Reader].
// It does not check the validity of the header.
func (h *Header) ReadFrom(r io.Reader) (n int64, err error) {
	switch r := r.(type) {
	case buffer.Reader:

		var inc int64

		if inc, err = buffer.ReadUint16(r, &h.Magic); err != nil {
			return n + inc, err
		}
		n += inc

		var compr uint8
		for _, b := range []*uint8{&h.HeaderSize, &h.VersionMajor, &h.VersionMinor, &compr} {
			if inc, err = buffer.ReadUint8(r, b); err != nil {
				return n + inc, err
			}
			n += inc
		}
		h.ComprMode = ComprModeType(compr)

		if inc, err = buffer.ReadUint16(r, &h.Reserved); err != nil {
			return n + inc, err
		}
		n += inc

		if inc, err = buffer.ReadUint64(r, &h.Size); err != nil {
			return n + inc, err
		}

		return n + inc, nil

	default:
		var b [HeaderSize]byte
		if _, err = io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return h.ReadFrom(buffer.NewBuffer(b[:]))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (h Header) MarshalBinary() (p []byte, err error) {
	buf := buffer.NewBufferSize(HeaderSize)
	_, err = h.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by [Header.MarshalBinary] on the object.
func (h *Header) UnmarshalBinary(p []byte) (err error) {
	if len(p) < HeaderSize {
		return fmt.Errorf("%w: header requires %d bytes but %d were given", utils.ErrInvalidArgument, HeaderSize, len(p))
	}
	_, err = h.ReadFrom(buffer.NewBuffer(p[:HeaderSize]))
	return
}
