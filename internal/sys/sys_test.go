package sys

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMMapRemap(t *testing.T) {
	if !Supported {
		t.Skip("no mmap on this platform")
	}
	f, err := OpenFile(filepath.Join(t.TempDir(), "map.dat"))
	require.NoError(t, err)
	defer f.Close()
	size := uint64(GetSysPageSize())
	require.NoError(t, f.Truncate(int64(size)))
	dat, err := MMap(f, size)
	require.NoError(t, err)
	copy(dat, "head")
	require.NoError(t, MSync(dat))

	require.NoError(t, f.Truncate(int64(size*4)))
	dat, err = Remap(f, size*4, dat)
	require.NoError(t, err)
	require.Len(t, dat, int(size*4))
	require.Equal(t, "head", string(dat[:4]))
	copy(dat[size*3:], "tail")
	require.NoError(t, MSync(dat))
	require.NoError(t, MUnmap(dat))

	buf := make([]byte, 4)
	_, err = f.ReadAt(buf, int64(size*3))
	require.NoError(t, err)
	require.Equal(t, "tail", string(buf))
}
