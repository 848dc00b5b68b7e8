package xxdb

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// multiFile shards pages over block files <name>.<block>.dat.xxdb of
// PagesPerBlock pages each. Every block file carries its own meta region,
// block 0 holds the database metadata.
type multiFile struct {
	mu       sync.RWMutex
	opt      DiskOption
	blocks   []*blockIO
	nextPgId uint64
}

func openMultiFile(opt DiskOption) (_ *multiFile, err error) {
	m := &multiFile{opt: opt}
	ids, err := scanBlockIds(opt.Dir, opt.Name)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if id != uint64(i) {
			return nil, errors.Wrapf(ErrCorruptMeta, "block file %d missing for %s", i, opt.Name)
		}
	}
	defer func() {
		if err != nil {
			_ = m.Close()
		}
	}()
	for _, id := range ids {
		var b *blockIO
		b, err = openBlockIO(blockFilePath(opt.Dir, opt.Name, id), opt.PageSize)
		if err != nil {
			return nil, err
		}
		m.blocks = append(m.blocks, b)
	}
	if len(m.blocks) == 0 {
		if _, err = m.block(0, true); err != nil {
			return nil, err
		}
	}
	last := m.blocks[len(m.blocks)-1]
	n, err := last.pageLen()
	if err != nil {
		return nil, err
	}
	m.nextPgId = uint64(len(m.blocks)-1)*opt.PagesPerBlock + n
	return m, nil
}

func scanBlockIds(dir, name string) ([]uint64, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", dir)
	}
	var (
		prefix = name + "."
		suffix = ".dat.xxdb"
		ids    []uint64
	)
	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || !strings.HasPrefix(fname, prefix) || !strings.HasSuffix(fname, suffix) {
			continue
		}
		mid := strings.TrimSuffix(strings.TrimPrefix(fname, prefix), suffix)
		id, err := strconv.ParseUint(mid, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *multiFile) locate(id PageID) (blockId, off uint64) {
	return uint64(id) / m.opt.PagesPerBlock, uint64(id) % m.opt.PagesPerBlock
}

// block returns the block file, creating it and any missing predecessor when
// create is set. Creation is idempotent, racing callers get the same file.
func (m *multiFile) block(blockId uint64, create bool) (*blockIO, error) {
	m.mu.RLock()
	if blockId < uint64(len(m.blocks)) {
		b := m.blocks[blockId]
		m.mu.RUnlock()
		return b, nil
	}
	m.mu.RUnlock()
	if !create {
		return nil, errors.Wrapf(ErrPageNotFound, "block %d does not exist", blockId)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for uint64(len(m.blocks)) <= blockId {
		b, err := openBlockIO(blockFilePath(m.opt.Dir, m.opt.Name, uint64(len(m.blocks))), m.opt.PageSize)
		if err != nil {
			return nil, err
		}
		m.blocks = append(m.blocks, b)
	}
	return m.blocks[blockId], nil
}

func (m *multiFile) Kind() DiskKind {
	return DiskMultiFile
}

func (m *multiFile) PageSize() int {
	return m.opt.PageSize
}

func (m *multiFile) PageCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextPgId
}

func (m *multiFile) BlockCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

func (m *multiFile) NewPage() (*Page, error) {
	m.mu.Lock()
	pgId := PageID(m.nextPgId)
	m.nextPgId++
	m.mu.Unlock()
	// the first page of a block creates its file, so readers never have to
	blockId, _ := m.locate(pgId)
	if _, err := m.block(blockId, true); err != nil {
		return nil, err
	}
	return newEmptyPage(pgId, m.opt.PageSize), nil
}

func (m *multiFile) ReadPage(id PageID) (*Page, error) {
	if uint64(id) >= m.PageCount() {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d not allocated", id)
	}
	blockId, off := m.locate(id)
	b, err := m.block(blockId, false)
	if err != nil {
		return nil, err
	}
	raw, err := b.read(off)
	if err != nil {
		return nil, err
	}
	return loadPage(id, raw)
}

func (m *multiFile) WritePage(id PageID, raw []byte) error {
	blockId, off := m.locate(id)
	b, err := m.block(blockId, true)
	if err != nil {
		return err
	}
	return b.write(off, raw)
}

func (m *multiFile) ReadMeta() ([]byte, error) {
	b, err := m.block(0, true)
	if err != nil {
		return nil, err
	}
	return b.readMeta()
}

func (m *multiFile) WriteMeta(meta []byte) error {
	b, err := m.block(0, true)
	if err != nil {
		return err
	}
	return b.writeMeta(meta)
}

func (m *multiFile) Sync() error {
	m.mu.RLock()
	blocks := append([]*blockIO(nil), m.blocks...)
	m.mu.RUnlock()
	var g errgroup.Group
	for _, b := range blocks {
		g.Go(b.sync)
	}
	return g.Wait()
}

func (m *multiFile) Close() error {
	m.mu.Lock()
	blocks := m.blocks
	m.blocks = nil
	m.mu.Unlock()
	var g errgroup.Group
	for _, b := range blocks {
		g.Go(func() error {
			err := b.sync()
			if closeErr := b.close(); err == nil {
				err = closeErr
			}
			return err
		})
	}
	return g.Wait()
}
