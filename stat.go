package xxdb

import "sync/atomic"

// Metrics receives buffer pool events. Calls may happen while the pool lock is
// held, so an implementation must not block or call back into the engine.
type Metrics interface {
	OnCacheHit(id PageID)
	OnCacheMiss(id PageID)
	OnEvict(id PageID)
	OnFlush(id PageID)
	OnFlushAll(count int)
}

type ExportStat struct {
	CacheHit      uint64
	CacheMis      uint64
	Evicted       uint64
	Flushed       uint64
	FlushAllCount uint64
	IndexLen      int
	PageCount     uint64
}

// iStat is the Metrics every pool owns, it counts events and forwards them
// to the user sink when there is one.
type iStat struct {
	cacheHit      atomic.Uint64
	cacheMis      atomic.Uint64
	evicted       atomic.Uint64
	flushed       atomic.Uint64
	flushAllCount atomic.Uint64
	sink          Metrics
}

func newIStat(sink Metrics) *iStat {
	return &iStat{sink: sink}
}

func (s *iStat) OnCacheHit(id PageID) {
	s.cacheHit.Add(1)
	if s.sink != nil {
		s.sink.OnCacheHit(id)
	}
}

func (s *iStat) OnCacheMiss(id PageID) {
	s.cacheMis.Add(1)
	if s.sink != nil {
		s.sink.OnCacheMiss(id)
	}
}

func (s *iStat) OnEvict(id PageID) {
	s.evicted.Add(1)
	if s.sink != nil {
		s.sink.OnEvict(id)
	}
}

func (s *iStat) OnFlush(id PageID) {
	s.flushed.Add(1)
	if s.sink != nil {
		s.sink.OnFlush(id)
	}
}

func (s *iStat) OnFlushAll(count int) {
	s.flushAllCount.Add(1)
	if s.sink != nil {
		s.sink.OnFlushAll(count)
	}
}

func (s *iStat) export() ExportStat {
	return ExportStat{
		CacheHit:      s.cacheHit.Load(),
		CacheMis:      s.cacheMis.Load(),
		Evicted:       s.evicted.Load(),
		Flushed:       s.flushed.Load(),
		FlushAllCount: s.flushAllCount.Load(),
	}
}
