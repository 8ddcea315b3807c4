package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reserve makes sure that at least size bytes are available in w, flushing it if necessary.
func reserve(w Writer, size int, op string) (err error) {
	if w.Available() < size {
		if err = w.Flush(); err != nil {
			return
		}
		if w.Available() < size {
			return fmt.Errorf("cannot %s: available buffer is smaller than %d bytes even after flush", op, size)
		}
	}
	return
}

// Write writes a slice of bytes to w.
func Write(w Writer, c []byte) (n int64, err error) {
	nint, err := w.Write(c)
	return int64(nint), err
}

// WriteUint8 writes a byte c to w.
func WriteUint8(w Writer, c uint8) (n int64, err error) {
	if err = reserve(w, 1, "WriteUint8"); err != nil {
		return
	}
	nint, err := w.Write(append(w.AvailableBuffer(), c))
	return int64(nint), err
}

// WriteUint16 writes a uint16 c to w.
func WriteUint16(w Writer, c uint16) (n int64, err error) {
	if err = reserve(w, 2, "WriteUint16"); err != nil {
		return
	}
	nint, err := w.Write(binary.LittleEndian.AppendUint16(w.AvailableBuffer(), c))
	return int64(nint), err
}

// WriteUint32 writes a uint32 c to w.
func WriteUint32(w Writer, c uint32) (n int64, err error) {
	if err = reserve(w, 4, "WriteUint32"); err != nil {
		return
	}
	nint, err := w.Write(binary.LittleEndian.AppendUint32(w.AvailableBuffer(), c))
	return int64(nint), err
}

// WriteUint64 writes a uint64 c to w.
func WriteUint64(w Writer, c uint64) (n int64, err error) {
	if err = reserve(w, 8, "WriteUint64"); err != nil {
		return
	}
	nint, err := w.Write(binary.LittleEndian.AppendUint64(w.AvailableBuffer(), c))
	return int64(nint), err
}

// WriteInt writes an int c to w as a uint64.
func WriteInt(w Writer, c int) (n int64, err error) {
	return WriteUint64(w, uint64(c))
}

// WriteFloat64 writes the IEEE-754 representation of c to w.
func WriteFloat64(w Writer, c float64) (n int64, err error) {
	return WriteUint64(w, math.Float64bits(c))
}

// WriteUint32Slice writes a slice of uint32 c to w.
func WriteUint32Slice(w Writer, c []uint32) (n int64, err error) {
	for len(c) > 0 {
		if err = reserve(w, 4, "WriteUint32Slice"); err != nil {
			return
		}
		buf := w.AvailableBuffer()
		m := cap(buf) >> 2
		if m > len(c) {
			m = len(c)
		}
		for _, ci := range c[:m] {
			buf = binary.LittleEndian.AppendUint32(buf, ci)
		}
		var inc int
		if inc, err = w.Write(buf); err != nil {
			return n + int64(inc), err
		}
		n += int64(inc)
		c = c[m:]
	}
	return
}

// WriteUint64Slice writes a slice of uint64 c to w.
func WriteUint64Slice(w Writer, c []uint64) (n int64, err error) {
	for len(c) > 0 {
		if err = reserve(w, 8, "WriteUint64Slice"); err != nil {
			return
		}
		buf := w.AvailableBuffer()
		m := cap(buf) >> 3
		if m > len(c) {
			m = len(c)
		}
		for _, ci := range c[:m] {
			buf = binary.LittleEndian.AppendUint64(buf, ci)
		}
		var inc int
		if inc, err = w.Write(buf); err != nil {
			return n + int64(inc), err
		}
		n += int64(inc)
		c = c[m:]
	}
	return
}
