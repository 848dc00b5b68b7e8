package xxdb

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type ioState uint8

const (
	ioFetching ioState = iota + 1
	ioFlushing
)

type BufferPoolOption struct {
	MaxPages int
	Replacer ReplacerKind
	Metrics  Metrics
	Logger   *logrus.Logger
}

// bufferPoolManager caches at most MaxPages pages of a Disk.
//
// All bookkeeping is guarded by mu. Disk I/O runs with mu released, the id
// being read or written is parked in states meanwhile so that other callers
// for the same id wait on cond instead of issuing their own I/O. reserved
// counts pool slots held by such in-flight reads and evict-flushes, so
// len(pool)+reserved never exceeds maxPages.
type bufferPoolManager struct {
	mu       sync.Mutex
	cond     *sync.Cond
	disk     Disk
	maxPages int
	pool     map[PageID]*Page
	dirty    map[PageID]struct{}
	states   map[PageID]ioState
	reserved int
	replacer Replacer
	stat     *iStat
	logger   *logrus.Entry
}

func newBufferPoolManager(disk Disk, opt BufferPoolOption) (*bufferPoolManager, error) {
	if opt.MaxPages <= 0 {
		return nil, errors.Wrapf(ErrInvalidOptions, "buffer pool max pages %d", opt.MaxPages)
	}
	replacer, err := newReplacer(opt.Replacer)
	if err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	b := &bufferPoolManager{
		disk:     disk,
		maxPages: opt.MaxPages,
		pool:     make(map[PageID]*Page, opt.MaxPages),
		dirty:    make(map[PageID]struct{}),
		states:   make(map[PageID]ioState),
		replacer: replacer,
		stat:     newIStat(opt.Metrics),
		logger:   logger.WithField("component", "bufferpool"),
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// PageGuard holds one pin on a cached page until Release.
type PageGuard struct {
	bpm      *bufferPoolManager
	page     *Page
	released atomic.Bool
}

func (g *PageGuard) Page() *Page {
	return g.page
}

// Release drops the pin, only the first call has an effect.
func (g *PageGuard) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.bpm.unpin(g.page)
}

func (b *bufferPoolManager) unpin(p *Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// a pinned page may have been appended to, track it for the next flush
	if p.IsDirty() {
		b.dirty[p.id] = struct{}{}
	}
	p.unpin()
	if p.evictable() {
		b.cond.Broadcast()
	}
}

func (b *bufferPoolManager) full() bool {
	return len(b.pool)+b.reserved >= b.maxPages
}

func (b *bufferPoolManager) pinLocked(p *Page) *PageGuard {
	p.pin()
	b.replacer.RecordAccess(p.id)
	return &PageGuard{bpm: b, page: p}
}

// NewPage allocates a page on disk and returns it pinned and dirty.
func (b *bufferPoolManager) NewPage() (*PageGuard, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.full() {
		if err := b.tryEvictLocked(); err != nil {
			return nil, err
		}
	}
	b.reserved++
	b.mu.Unlock()
	p, err := b.disk.NewPage()
	b.mu.Lock()
	b.reserved--
	b.cond.Broadcast()
	if err != nil {
		return nil, err
	}
	p.markDirty()
	b.pool[p.id] = p
	b.dirty[p.id] = struct{}{}
	return b.pinLocked(p), nil
}

// FetchPage returns page id pinned, reading it from disk on a miss.
func (b *bufferPoolManager) FetchPage(id PageID) (*PageGuard, error) {
	if uint64(id) >= b.disk.PageCount() {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d not allocated", id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if p, ok := b.pool[id]; ok {
			b.stat.OnCacheHit(id)
			return b.pinLocked(p), nil
		}
		if _, busy := b.states[id]; busy {
			b.cond.Wait()
			continue
		}
		if b.full() {
			if err := b.tryEvictLocked(); err != nil {
				return nil, err
			}
			// the lock may have been dropped, look again
			continue
		}
		break
	}
	b.stat.OnCacheMiss(id)
	b.states[id] = ioFetching
	b.reserved++
	b.mu.Unlock()
	p, err := b.disk.ReadPage(id)
	b.mu.Lock()
	delete(b.states, id)
	b.reserved--
	b.cond.Broadcast()
	if err != nil {
		b.logger.WithError(err).WithField("pgid", id).Debug("fetch page failed")
		return nil, err
	}
	b.pool[id] = p
	return b.pinLocked(p), nil
}

// tryEvictLocked frees at most one slot. When no page qualifies but some
// read or write is still in flight it waits for one of them to finish
// instead of failing, the caller re-checks capacity afterwards.
func (b *bufferPoolManager) tryEvictLocked() error {
	victim, ok := b.replacer.Evict(func(id PageID) bool {
		p, cached := b.pool[id]
		if !cached || !p.evictable() {
			return false
		}
		_, busy := b.states[id]
		return !busy
	})
	if !ok {
		// a page being flushed holds no reservation but is back as a
		// candidate once the write ends
		if b.reserved > 0 || len(b.states) > 0 {
			b.cond.Wait()
			return nil
		}
		return errors.Wrapf(ErrPoolExhausted, "%d pages pinned", len(b.pool))
	}
	p := b.pool[victim]
	delete(b.pool, victim)
	raw, dirty := p.takeDirty()
	delete(b.dirty, victim)
	if !dirty {
		b.stat.OnEvict(victim)
		b.logger.WithField("pgid", victim).Debug("evict clean page")
		return nil
	}
	b.states[victim] = ioFlushing
	b.reserved++
	b.mu.Unlock()
	err := b.disk.WritePage(victim, raw)
	b.mu.Lock()
	delete(b.states, victim)
	b.reserved--
	b.cond.Broadcast()
	if err != nil {
		// put it back as it was so a later call can retry the write
		p.markDirty()
		b.pool[victim] = p
		b.dirty[victim] = struct{}{}
		b.replacer.RecordAccess(victim)
		return errors.WithMessagef(err, "evict page %d", victim)
	}
	b.stat.OnFlush(victim)
	b.stat.OnEvict(victim)
	b.logger.WithField("pgid", victim).Debug("evict dirty page")
	return nil
}

// flush writes page id when it is cached and dirty. flushed is false when
// there was nothing to write.
func (b *bufferPoolManager) flush(id PageID) (flushed bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if _, busy := b.states[id]; !busy {
			break
		}
		b.cond.Wait()
	}
	p, ok := b.pool[id]
	delete(b.dirty, id)
	if !ok {
		// evicted meanwhile, eviction wrote it
		return false, nil
	}
	raw, dirty := p.takeDirty()
	if !dirty {
		return false, nil
	}
	b.states[id] = ioFlushing
	b.mu.Unlock()
	err = b.disk.WritePage(id, raw)
	b.mu.Lock()
	delete(b.states, id)
	b.cond.Broadcast()
	if err != nil {
		p.markDirty()
		b.dirty[id] = struct{}{}
		return false, errors.WithMessagef(err, "flush page %d", id)
	}
	b.stat.OnFlush(id)
	return true, nil
}

func (b *bufferPoolManager) FlushPage(id PageID) error {
	_, err := b.flush(id)
	return err
}

// FlushAll writes every page that was dirty when the call started, then
// syncs the disk. Pages dirtied during the run are left for the next call.
func (b *bufferPoolManager) FlushAll() error {
	b.mu.Lock()
	ids := make([]PageID, 0, len(b.dirty))
	for id := range b.dirty {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	slices.Sort(ids)
	var count int
	for _, id := range ids {
		flushed, err := b.flush(id)
		if err != nil {
			return err
		}
		if flushed {
			count++
		}
	}
	if err := b.disk.Sync(); err != nil {
		return err
	}
	b.stat.OnFlushAll(count)
	if count > 0 {
		b.logger.WithField("pages", count).Debug("flush all")
	}
	return nil
}

func (b *bufferPoolManager) Close() error {
	return b.FlushAll()
}

// Len is the number of cached pages.
func (b *bufferPoolManager) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pool)
}

func (b *bufferPoolManager) DirtyLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.dirty)
}
