package buffer

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// next returns the next size bytes of r and advances the reader.
func next(r Reader, size int, op string) (b []byte, err error) {
	if b, err = r.Peek(size); err != nil {
		return nil, fmt.Errorf("cannot %s: %w", op, err)
	}
	if len(b) < size {
		return nil, fmt.Errorf("cannot %s: %w", op, io.ErrUnexpectedEOF)
	}
	if _, err = r.Discard(size); err != nil {
		return nil, fmt.Errorf("cannot %s: %w", op, err)
	}
	return
}

// Read reads len(c) bytes from r into c.
func Read(r Reader, c []byte) (n int64, err error) {
	nint, err := io.ReadFull(r, c)
	return int64(nint), err
}

// ReadUint8 reads a byte from r and stores it in c.
func ReadUint8(r Reader, c *uint8) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint8: c is nil")
	}
	b, err := next(r, 1, "ReadUint8")
	if err != nil {
		return
	}
	*c = b[0]
	return 1, nil
}

// ReadUint16 reads a uint16 from r and stores it in c.
func ReadUint16(r Reader, c *uint16) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint16: c is nil")
	}
	b, err := next(r, 2, "ReadUint16")
	if err != nil {
		return
	}
	*c = binary.LittleEndian.Uint16(b)
	return 2, nil
}

// ReadUint32 reads a uint32 from r and stores it in c.
func ReadUint32(r Reader, c *uint32) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint32: c is nil")
	}
	b, err := next(r, 4, "ReadUint32")
	if err != nil {
		return
	}
	*c = binary.LittleEndian.Uint32(b)
	return 4, nil
}

// ReadUint64 reads a uint64 from r and stores it in c.
func ReadUint64(r Reader, c *uint64) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadUint64: c is nil")
	}
	b, err := next(r, 8, "ReadUint64")
	if err != nil {
		return
	}
	*c = binary.LittleEndian.Uint64(b)
	return 8, nil
}

// ReadInt reads an int encoded as a uint64 from r and stores it in c.
func ReadInt(r Reader, c *int) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadInt: c is nil")
	}
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	if u > math.MaxInt {
		return n, fmt.Errorf("cannot ReadInt: value %d overflows int", u)
	}
	*c = int(u)
	return
}

// ReadFloat64 reads an IEEE-754 float64 from r and stores it in c.
func ReadFloat64(r Reader, c *float64) (n int64, err error) {
	if c == nil {
		return 0, fmt.Errorf("cannot ReadFloat64: c is nil")
	}
	var u uint64
	if n, err = ReadUint64(r, &u); err != nil {
		return
	}
	*c = math.Float64frombits(u)
	return
}

// ReadUint32Slice reads len(c) uint32 from r into c.
func ReadUint32Slice(r Reader, c []uint32) (n int64, err error) {
	for len(c) > 0 {
		m := r.Size() >> 2
		if m == 0 {
			m = 1
		}
		if m > len(c) {
			m = len(c)
		}
		var b []byte
		if b, err = next(r, m<<2, "ReadUint32Slice"); err != nil {
			return
		}
		for i := range c[:m] {
			c[i] = binary.LittleEndian.Uint32(b[i<<2:])
		}
		n += int64(m << 2)
		c = c[m:]
	}
	return
}

// ReadUint64Slice reads len(c) uint64 from r into c.
func ReadUint64Slice(r Reader, c []uint64) (n int64, err error) {
	for len(c) > 0 {
		m := r.Size() >> 3
		if m == 0 {
			m = 1
		}
		if m > len(c) {
			m = len(c)
		}
		var b []byte
		if b, err = next(r, m<<3, "ReadUint64Slice"); err != nil {
			return
		}
		for i := range c[:m] {
			c[i] = binary.LittleEndian.Uint64(b[i<<3:])
		}
		n += int64(m << 3)
		c = c[m:]
	}
	return
}
