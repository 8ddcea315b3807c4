package serialization

import (
	"bytes"
	"fmt"
	"io"

	"github.com/levelhe/levelhe/utils"
	"github.com/levelhe/levelhe/utils/buffer"
)

// Payload is an object that can write its raw payload on a [buffer.Writer].
type Payload interface {
	BinarySize() int
	WriteTo(w io.Writer) (n int64, err error)
}

// Save writes the [Header] followed by the payload of obj, compressed with compr, on w.
// It returns the total number of bytes written.
func Save(w io.Writer, compr ComprModeType, obj Payload) (n int64, err error) {

	if !compr.IsSupported() {
		return 0, fmt.Errorf("%w: unsupported compression mode %s", utils.ErrInvalidArgument, compr)
	}

	raw := buffer.NewBufferSize(obj.BinarySize())
	if _, err = obj.WriteTo(raw); err != nil {
		return 0, fmt.Errorf("cannot Save: %w", err)
	}

	data, err := compress(compr, raw.Bytes())
	if err != nil {
		return 0, fmt.Errorf("%w: cannot compress payload: %v", utils.ErrRuntime, err)
	}

	h := NewHeader(compr, uint64(HeaderSize+len(data)))

	hb, err := h.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("cannot Save: %w", err)
	}

	var inc int
	if inc, err = w.Write(hb); err != nil {
		return int64(inc), fmt.Errorf("%w: %v", utils.ErrRuntime, err)
	}
	n += int64(inc)

	if inc, err = w.Write(data); err != nil {
		return n + int64(inc), fmt.Errorf("%w: %v", utils.ErrRuntime, err)
	}

	return n + int64(inc), nil
}

// LoadPayload reads a [Header] from r, checks it, and returns the decompressed
// payload that follows it. Exactly the number of bytes announced by the header
// is consumed from r.
func LoadPayload(r io.Reader) (p []byte, n int64, err error) {

	var h Header
	if n, err = h.ReadFrom(r); err != nil {
		return nil, n, fmt.Errorf("%w: cannot read header: %v", utils.ErrRuntime, err)
	}

	if !h.IsValid() {
		return nil, n, fmt.Errorf("%w: loaded header is invalid", utils.ErrInvalidArgument)
	}

	// the announced size is not trusted for the allocation
	body := int64(h.Size - HeaderSize)
	var data bytes.Buffer
	inc, err := io.Copy(&data, io.LimitReader(r, body))
	n += inc
	if err != nil {
		return nil, n, fmt.Errorf("%w: cannot read payload: %v", utils.ErrRuntime, err)
	}

	if inc != body {
		return nil, n, fmt.Errorf("%w: payload size disagrees with the stream: %d bytes announced, %d read", utils.ErrRuntime, body, inc)
	}

	if p, err = decompress(h.ComprMode, data.Bytes(), MaxSize); err != nil {
		return nil, n, fmt.Errorf("%w: cannot decompress payload: %v", utils.ErrInvalidArgument, err)
	}

	return p, n, nil
}

// Load reads a [Header] and the payload that follows it from r, and decodes
// the payload on obj. The payload must be consumed entirely by obj.
func Load(r io.Reader, obj io.ReaderFrom) (n int64, err error) {

	p, n, err := LoadPayload(r)
	if err != nil {
		return n, err
	}

	buf := buffer.NewBuffer(p)
	if _, err = obj.ReadFrom(buf); err != nil {
		return n, fmt.Errorf("%w: cannot decode payload: %v", utils.ErrInvalidArgument, err)
	}

	if buf.Len() != 0 {
		return n, fmt.Errorf("%w: payload size disagrees with the decoded object (%d trailing bytes)", utils.ErrInvalidArgument, buf.Len())
	}

	return n, nil
}
