package xxdb

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	recordLenSize  = 2
	cappedTailSize = 4
	maxRecordLen   = math.MaxUint16
)

// cappedBuffer packs length-prefixed records into a fixed capacity. When an
// append does not fit, whole records are dropped from the head until it does,
// so the buffer always holds the newest records in insertion order.
//
// layout: | len(2) | payload | len(2) | payload | ... | free |
type cappedBuffer struct {
	data    []byte
	currLen int
}

func newCappedBuffer(occupied []byte, capacity int) (*cappedBuffer, error) {
	if capacity < recordLenSize {
		return nil, errors.Wrapf(ErrInvalidOptions, "capped buffer capacity %d", capacity)
	}
	if len(occupied) > capacity {
		return nil, errors.Wrapf(ErrCorruptPage, "occupied %d > capacity %d", len(occupied), capacity)
	}
	c := &cappedBuffer{
		data:    make([]byte, capacity),
		currLen: len(occupied),
	}
	copy(c.data, occupied)
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadCappedBuffer is the inverse of dumps.
func loadCappedBuffer(dump []byte) (*cappedBuffer, error) {
	if len(dump) < cappedTailSize {
		return nil, errors.Wrapf(ErrCorruptPage, "capped dump of %d bytes", len(dump))
	}
	capacity := len(dump) - cappedTailSize
	currLen := int(binary.LittleEndian.Uint32(dump[capacity:]))
	if currLen > capacity {
		return nil, errors.Wrapf(ErrCorruptPage, "occupied %d > capacity %d", currLen, capacity)
	}
	return newCappedBuffer(dump[:currLen], capacity)
}

// check walks the record chain and rejects a prefix that runs past the
// occupied region.
func (c *cappedBuffer) check() error {
	p := 0
	for p < c.currLen {
		if p+recordLenSize > c.currLen {
			return errors.Wrapf(ErrCorruptPage, "truncated record prefix at %d", p)
		}
		p += recordLenSize + int(binary.LittleEndian.Uint16(c.data[p:]))
	}
	if p != c.currLen {
		return errors.Wrapf(ErrCorruptPage, "record chain ends at %d, occupied %d", p, c.currLen)
	}
	return nil
}

func (c *cappedBuffer) capacity() int {
	return len(c.data)
}

func (c *cappedBuffer) freeLen() int {
	return len(c.data) - c.currLen
}

func (c *cappedBuffer) append(payload []byte) error {
	size := recordLenSize + len(payload)
	if len(payload) > maxRecordLen || size > len(c.data) {
		return errors.Wrapf(ErrRecordTooLarge, "record %d bytes, capacity %d", len(payload), len(c.data))
	}
	c.ensureSpace(size)
	binary.LittleEndian.PutUint16(c.data[c.currLen:], uint16(len(payload)))
	copy(c.data[c.currLen+recordLenSize:], payload)
	c.currLen += size
	return nil
}

// ensureSpace drops the oldest records until size bytes are free.
func (c *cappedBuffer) ensureSpace(size int) {
	head := 0
	for len(c.data)-(c.currLen-head) < size {
		head += recordLenSize + int(binary.LittleEndian.Uint16(c.data[head:]))
	}
	if head == 0 {
		return
	}
	copy(c.data, c.data[head:c.currLen])
	c.currLen -= head
	// keep the free region zeroed, dumps relies on it for padding
	clear(c.data[c.currLen : c.currLen+head])
}

// retrieve returns copies of the stored payloads, oldest first.
func (c *cappedBuffer) retrieve() [][]byte {
	var (
		p   = 0
		res = make([][]byte, 0, 8)
	)
	for p < c.currLen {
		n := int(binary.LittleEndian.Uint16(c.data[p:]))
		p += recordLenSize
		rec := make([]byte, n)
		copy(rec, c.data[p:p+n])
		res = append(res, rec)
		p += n
	}
	return res
}

func (c *cappedBuffer) count() (n int) {
	for p := 0; p < c.currLen; n++ {
		p += recordLenSize + int(binary.LittleEndian.Uint16(c.data[p:]))
	}
	return
}

func (c *cappedBuffer) dumpsData() []byte {
	b := make([]byte, c.currLen)
	copy(b, c.data[:c.currLen])
	return b
}

// dumps returns | occupied | zero padding | occupied len(4) |.
func (c *cappedBuffer) dumps() []byte {
	b := make([]byte, len(c.data)+cappedTailSize)
	copy(b, c.data[:c.currLen])
	binary.LittleEndian.PutUint32(b[len(c.data):], uint32(c.currLen))
	return b
}
