package xxdb

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// Page is the in-memory form of one fixed size block:
//
//	| records ... | zero padding | lsn(8) | occupied(4) | magic(4) |
//
// The record area is a cappedBuffer, so appending to a full page silently
// drops its oldest records.
type Page struct {
	id  PageID
	mu  sync.RWMutex
	buf *cappedBuffer
	lsn uint64
	// dirty is guarded by mu, pinCnt by the owning buffer pool
	dirty  bool
	pinCnt int32
}

func newEmptyPage(id PageID, pageSize int) *Page {
	buf, err := newCappedBuffer(nil, pageSize-pageTrailerSize)
	if err != nil {
		// page size is validated when the disk is opened
		panic(err)
	}
	return &Page{id: id, buf: buf}
}

// loadPage decodes raw, which must be exactly one page long.
func loadPage(id PageID, raw []byte) (*Page, error) {
	if len(raw) < minPageSize {
		return nil, errors.Wrapf(ErrPageSizeMismatch, "page %d: %d bytes", id, len(raw))
	}
	var (
		magicOff = len(raw) - pageMagicSize
		sizeOff  = magicOff - pageSizeSize
		lsnOff   = sizeOff - pageLSNSize
	)
	if magic := binary.LittleEndian.Uint32(raw[magicOff:]); magic != pageMagic {
		return nil, errors.Wrapf(ErrCorruptPage, "page %d: magic %#08x", id, magic)
	}
	occupied := int(binary.LittleEndian.Uint32(raw[sizeOff:]))
	if occupied > lsnOff {
		return nil, errors.Wrapf(ErrCorruptPage, "page %d: occupied %d > capacity %d", id, occupied, lsnOff)
	}
	buf, err := newCappedBuffer(raw[:occupied], lsnOff)
	if err != nil {
		return nil, errors.WithMessagef(err, "page %d", id)
	}
	return &Page{
		id:  id,
		buf: buf,
		lsn: binary.LittleEndian.Uint64(raw[lsnOff:]),
	}, nil
}

func (p *Page) ID() PageID {
	return p.id
}

func (p *Page) LSN() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lsn
}

func (p *Page) SetLSN(lsn uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lsn = lsn
	p.dirty = true
}

// Append stores data as the newest record and marks the page dirty.
func (p *Page) Append(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.buf.append(data); err != nil {
		return errors.WithMessagef(err, "page %d", p.id)
	}
	p.dirty = true
	return nil
}

// Records returns the stored payloads, oldest first.
func (p *Page) Records() [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buf.retrieve()
}

func (p *Page) RecordCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buf.count()
}

func (p *Page) FreeSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.buf.freeLen()
}

func (p *Page) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

func (p *Page) markDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// takeDirty clears the dirty flag and returns the page image to write. ok is
// false when there is nothing to flush.
func (p *Page) takeDirty() (raw []byte, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.dirty {
		return nil, false
	}
	p.dirty = false
	return p.dumpLocked(), true
}

func (p *Page) DumpPage() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dumpLocked()
}

func (p *Page) dumpLocked() []byte {
	var (
		capacity = p.buf.capacity()
		raw      = make([]byte, capacity+pageTrailerSize)
	)
	copy(raw, p.buf.data[:p.buf.currLen])
	binary.LittleEndian.PutUint64(raw[capacity:], p.lsn)
	binary.LittleEndian.PutUint32(raw[capacity+pageLSNSize:], uint32(p.buf.currLen))
	binary.LittleEndian.PutUint32(raw[capacity+pageLSNSize+pageSizeSize:], pageMagic)
	return raw
}

func (p *Page) evictable() bool {
	return p.pinCnt == 0
}

func (p *Page) pin() {
	p.pinCnt++
}

func (p *Page) unpin() {
	if p.pinCnt <= 0 {
		panic(fmt.Errorf("unbalanced unpin of page %d", p.id))
	}
	p.pinCnt--
}

func (p *Page) String() string {
	return fmt.Sprintf("page{id=%d pins=%d}", p.id, p.pinCnt)
}
