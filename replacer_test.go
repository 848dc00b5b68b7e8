package xxdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOReplacer(t *testing.T) {
	r, err := newReplacer(ReplacerFIFO)
	require.NoError(t, err)
	all := func(PageID) bool { return true }

	_, ok := r.Evict(all)
	require.False(t, ok)
	for _, id := range []PageID{3, 1, 2} {
		r.RecordAccess(id)
	}
	// a second access does not move the page
	r.RecordAccess(3)
	require.Equal(t, 3, r.Len())

	id, ok := r.Evict(all)
	require.True(t, ok)
	require.Equal(t, PageID(3), id)

	id, ok = r.Evict(func(id PageID) bool { return id != 1 })
	require.True(t, ok)
	require.Equal(t, PageID(2), id)

	_, ok = r.Evict(func(PageID) bool { return false })
	require.False(t, ok)
	require.Equal(t, 1, r.Len())

	r.Remove(1)
	r.Remove(100)
	require.Equal(t, 0, r.Len())
}

func TestReplacerKinds(t *testing.T) {
	for _, tc := range []struct {
		in   string
		kind ReplacerKind
		k    int
	}{
		{"fifo", ReplacerFIFO, 0},
		{"", ReplacerFIFO, 0},
		{"LRU", ReplacerLRU, 0},
		{"lru-2", ReplacerLRUK, 2},
	} {
		kind, k, err := ParseReplacer(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.kind, kind, tc.in)
		require.Equal(t, tc.k, k, tc.in)
	}
	for _, in := range []string{"lru-0", "lru-x", "clock"} {
		_, _, err := ParseReplacer(in)
		require.ErrorIs(t, err, ErrInvalidOptions, in)
	}
	_, err := newReplacer(ReplacerLRU)
	require.ErrorIs(t, err, ErrReplacerUnsupported)
	_, err = newReplacer(ReplacerLRUK)
	require.ErrorIs(t, err, ErrReplacerUnsupported)
}
