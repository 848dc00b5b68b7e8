package xxdb

import (
	"io"
	"os"
	"sync"

	"github.com/nyan233/xxdb/internal/sys"
	"github.com/pkg/errors"
)

const (
	indexInitSize = 16 * 1024
	indexFiller   = 0xff
)

// hashTable is an append-only index file
//
//	| key | value | key | value | ...
//
// with both fields little endian and no header. Every entry is also kept in
// memory, lookups never touch the file.
//
// In mmap mode the file is grown ahead of the entries and the spare tail is
// filled with 0xff bytes. A value made only of 0xff bytes therefore marks the
// end of the entries and is never accepted by Set. Close cuts the spare tail
// off again.
type hashTable struct {
	mu         sync.RWMutex
	path       string
	file       *os.File
	keySize    int
	valueSize  int
	recordSize int
	table      map[uint64]uint64
	order      []uint64
	// dat is the file mapping, nil in direct mode
	dat []byte
}

func openHashTable(path string, opt IndexOption) (_ *hashTable, err error) {
	h := &hashTable{
		path:       path,
		keySize:    opt.KeySize,
		valueSize:  opt.ValueSize,
		recordSize: opt.KeySize + opt.ValueSize,
		table:      make(map[uint64]uint64),
	}
	h.file, err = sys.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open index %s", path)
	}
	defer func() {
		if err != nil {
			if h.dat != nil {
				_ = sys.MUnmap(h.dat)
			}
			_ = h.file.Close()
		}
	}()
	if err = h.load(); err != nil {
		return nil, err
	}
	// drop a spare tail left by a mapped run that did not close
	if err = h.file.Truncate(h.logicalSize()); err != nil {
		return nil, errors.Wrapf(err, "truncate index %s", path)
	}
	if opt.MMap && sys.Supported {
		if err = h.mapFile(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *hashTable) load() error {
	stat, err := h.file.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat index %s", h.path)
	}
	raw := make([]byte, stat.Size())
	n, err := h.file.ReadAt(raw, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(raw)) {
		return errors.Wrapf(err, "read index %s", h.path)
	}
	for off := 0; off < len(raw); off += h.recordSize {
		rec := raw[off:]
		if len(rec) < h.recordSize {
			if isFiller(rec) {
				break
			}
			return errors.Wrapf(ErrCorruptIndex, "%s: partial entry at %d", h.path, off)
		}
		if isFiller(rec[h.keySize:h.recordSize]) {
			break
		}
		key := getUint(rec[:h.keySize])
		if _, ok := h.table[key]; ok {
			return errors.Wrapf(ErrCorruptIndex, "%s: key %d stored twice", h.path, key)
		}
		h.table[key] = getUint(rec[h.keySize:h.recordSize])
		h.order = append(h.order, key)
	}
	return nil
}

func (h *hashTable) logicalSize() int64 {
	return int64(len(h.order)) * int64(h.recordSize)
}

func (h *hashTable) mapFile() (err error) {
	size := int64(indexInitSize)
	for size < h.logicalSize()+int64(h.recordSize) {
		size *= 2
	}
	if err = h.file.Truncate(size); err != nil {
		return errors.Wrapf(err, "reserve index %s", h.path)
	}
	h.dat, err = sys.MMap(h.file, uint64(size))
	if err != nil {
		h.dat = nil
		return errors.Wrapf(err, "mmap index %s", h.path)
	}
	fillSpare(h.dat[h.logicalSize():])
	return nil
}

// grow doubles the mapping until one more entry fits.
func (h *hashTable) grow() (err error) {
	size := int64(len(h.dat))
	old := size
	for size < h.logicalSize()+int64(h.recordSize) {
		size *= 2
	}
	if err = h.file.Truncate(size); err != nil {
		return errors.Wrapf(err, "grow index %s", h.path)
	}
	dat, err := sys.Remap(h.file, uint64(size), h.dat)
	if err != nil {
		return errors.Wrapf(err, "remap index %s", h.path)
	}
	h.dat = dat
	fillSpare(h.dat[old:])
	return nil
}

func (h *hashTable) Get(key uint64) (uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.table[key]
	return v, ok
}

func (h *hashTable) Set(key, value uint64) error {
	if key > maxUint(h.keySize) {
		return errors.Wrapf(ErrKeyOverflow, "key %d needs more than %d bytes", key, h.keySize)
	}
	// the all-ones value marks spare space
	if value >= maxUint(h.valueSize) {
		return errors.Wrapf(ErrKeyOverflow, "value %d does not fit %d bytes", value, h.valueSize)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return ErrClosed
	}
	if _, ok := h.table[key]; ok {
		return errors.Wrapf(ErrDuplicateKey, "key %d", key)
	}
	rec := make([]byte, h.recordSize)
	putUint(rec[:h.keySize], key)
	putUint(rec[h.keySize:], value)
	off := h.logicalSize()
	if h.dat != nil {
		if off+int64(h.recordSize) > int64(len(h.dat)) {
			if err := h.grow(); err != nil {
				return err
			}
		}
		copy(h.dat[off:], rec)
	} else {
		if _, err := h.file.WriteAt(rec, off); err != nil {
			return errors.Wrapf(err, "append index %s", h.path)
		}
	}
	h.table[key] = value
	h.order = append(h.order, key)
	return nil
}

func (h *hashTable) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}

func (h *hashTable) Range(fn func(key, value uint64) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range h.order {
		if !fn(key, h.table[key]) {
			return
		}
	}
}

func (h *hashTable) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.flushLocked()
}

func (h *hashTable) flushLocked() error {
	if h.file == nil {
		return ErrClosed
	}
	if h.dat != nil {
		return errors.Wrapf(sys.MSync(h.dat), "msync index %s", h.path)
	}
	return errors.Wrapf(h.file.Sync(), "sync index %s", h.path)
}

func (h *hashTable) Close() (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.file == nil {
		return nil
	}
	if err = h.flushLocked(); err != nil {
		return err
	}
	if h.dat != nil {
		if err = sys.MUnmap(h.dat); err != nil {
			return errors.Wrapf(err, "munmap index %s", h.path)
		}
		h.dat = nil
		if err = h.file.Truncate(h.logicalSize()); err != nil {
			return errors.Wrapf(err, "truncate index %s", h.path)
		}
		if err = h.file.Sync(); err != nil {
			return errors.Wrapf(err, "sync index %s", h.path)
		}
	}
	err = h.file.Close()
	h.file = nil
	return errors.Wrapf(err, "close index %s", h.path)
}
