package xxdb

import (
	"container/list"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReplacerKind names an eviction policy. Only ReplacerFIFO can be built today,
// the LRU variants are reserved and rejected when the pool is created.
type ReplacerKind uint8

const (
	ReplacerFIFO ReplacerKind = iota + 1
	ReplacerLRU
	ReplacerLRUK
)

func (k ReplacerKind) String() string {
	switch k {
	case ReplacerFIFO:
		return "fifo"
	case ReplacerLRU:
		return "lru"
	case ReplacerLRUK:
		return "lru-k"
	default:
		return fmt.Sprintf("replacer(%d)", uint8(k))
	}
}

// ParseReplacer accepts "fifo", "lru" and "lru-<k>". k is only meaningful for
// ReplacerLRUK.
func ParseReplacer(s string) (kind ReplacerKind, k int, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "" || s == "fifo":
		return ReplacerFIFO, 0, nil
	case s == "lru":
		return ReplacerLRU, 0, nil
	case strings.HasPrefix(s, "lru-"):
		k, err = strconv.Atoi(s[len("lru-"):])
		if err != nil || k <= 0 {
			return 0, 0, errors.Wrapf(ErrInvalidOptions, "replacer %q", s)
		}
		return ReplacerLRUK, k, nil
	default:
		return 0, 0, errors.Wrapf(ErrInvalidOptions, "replacer %q", s)
	}
}

// Replacer picks the cached page to drop when the pool is full.
type Replacer interface {
	// RecordAccess makes id an eviction candidate.
	RecordAccess(id PageID)
	// Evict returns the first candidate accepted by evictable and forgets it.
	// ok is false when no candidate qualifies, which is not an error.
	Evict(evictable func(id PageID) bool) (id PageID, ok bool)
	Remove(id PageID)
	Len() int
}

func newReplacer(kind ReplacerKind) (Replacer, error) {
	switch kind {
	case ReplacerFIFO:
		return newFIFOReplacer(), nil
	case ReplacerLRU, ReplacerLRUK:
		return nil, errors.Wrapf(ErrReplacerUnsupported, "%s", kind)
	default:
		return nil, errors.Wrapf(ErrInvalidOptions, "%s", kind)
	}
}

// fifoReplacer evicts in first-access order. A repeated access keeps the
// first position.
type fifoReplacer struct {
	order *list.List
	elems map[PageID]*list.Element
}

func newFIFOReplacer() *fifoReplacer {
	return &fifoReplacer{
		order: list.New(),
		elems: make(map[PageID]*list.Element),
	}
}

func (r *fifoReplacer) RecordAccess(id PageID) {
	if _, ok := r.elems[id]; ok {
		return
	}
	r.elems[id] = r.order.PushBack(id)
}

func (r *fifoReplacer) Evict(evictable func(id PageID) bool) (PageID, bool) {
	for e := r.order.Front(); e != nil; e = e.Next() {
		id := e.Value.(PageID)
		if !evictable(id) {
			continue
		}
		r.order.Remove(e)
		delete(r.elems, id)
		return id, true
	}
	return 0, false
}

func (r *fifoReplacer) Remove(id PageID) {
	e, ok := r.elems[id]
	if !ok {
		return
	}
	r.order.Remove(e)
	delete(r.elems, id)
}

func (r *fifoReplacer) Len() int {
	return len(r.elems)
}
