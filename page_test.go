package xxdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPage(t *testing.T) {
	const pageSize = 128
	t.Run("DumpLoad", func(t *testing.T) {
		p := newEmptyPage(7, pageSize)
		require.False(t, p.IsDirty())
		require.Equal(t, pageSize-pageTrailerSize, p.FreeSize())
		require.NoError(t, p.Append([]byte("record-1")))
		require.NoError(t, p.Append([]byte("record-2")))
		p.SetLSN(42)
		require.True(t, p.IsDirty())

		raw := p.DumpPage()
		require.Len(t, raw, pageSize)
		require.Equal(t, uint64(42), binary.LittleEndian.Uint64(raw[pageSize-16:]))
		require.Equal(t, uint32(20), binary.LittleEndian.Uint32(raw[pageSize-8:]))
		require.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[pageSize-4:]))

		p2, err := loadPage(7, raw)
		require.NoError(t, err)
		require.Equal(t, PageID(7), p2.ID())
		require.Equal(t, uint64(42), p2.LSN())
		require.Equal(t, p.Records(), p2.Records())
		require.Equal(t, 2, p2.RecordCount())
		require.False(t, p2.IsDirty())
		require.Equal(t, raw, p2.DumpPage())
	})
	t.Run("ZeroPage", func(t *testing.T) {
		p, err := loadPage(0, make([]byte, pageSize))
		require.NoError(t, err)
		require.Empty(t, p.Records())
		require.Equal(t, uint64(0), p.LSN())
	})
	t.Run("BadMagic", func(t *testing.T) {
		raw := newEmptyPage(1, pageSize).DumpPage()
		binary.LittleEndian.PutUint32(raw[pageSize-4:], 0xdeadbeef)
		_, err := loadPage(1, raw)
		require.ErrorIs(t, err, ErrCorruptPage)
		require.True(t, IsCorrupted(err))
	})
	t.Run("BadOccupied", func(t *testing.T) {
		raw := newEmptyPage(1, pageSize).DumpPage()
		binary.LittleEndian.PutUint32(raw[pageSize-8:], pageSize)
		_, err := loadPage(1, raw)
		require.ErrorIs(t, err, ErrCorruptPage)
	})
	t.Run("TakeDirty", func(t *testing.T) {
		p := newEmptyPage(3, pageSize)
		_, ok := p.takeDirty()
		require.False(t, ok)
		require.NoError(t, p.Append([]byte("x")))
		raw, ok := p.takeDirty()
		require.True(t, ok)
		require.Len(t, raw, pageSize)
		require.False(t, p.IsDirty())
	})
	t.Run("Unpin", func(t *testing.T) {
		p := newEmptyPage(3, pageSize)
		p.pin()
		require.False(t, p.evictable())
		p.unpin()
		require.True(t, p.evictable())
		require.Panics(t, p.unpin)
	})
}
