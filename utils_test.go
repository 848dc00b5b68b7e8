package xxdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesAllEqual(t *testing.T) {
	b := make([]byte, 37)
	require.True(t, bytesAllEqual(b, 0))
	b[16] = 1
	require.False(t, bytesAllEqual(b, 0))
	b[16] = 0
	b[36] = 1
	require.False(t, bytesAllEqual(b, 0))
	fillSpare(b)
	require.True(t, isFiller(b))
	require.True(t, bytesAllEqual(nil, 7))
}

func TestUintWidth(t *testing.T) {
	require.Equal(t, uint64(1<<32-1), maxUint(4))
	require.Equal(t, uint64(1<<64-1), maxUint(8))
	b := make([]byte, 4)
	putUint(b, 0x01020304)
	require.Equal(t, []byte{4, 3, 2, 1}, b)
	require.Equal(t, uint64(0x01020304), getUint(b))
	b = make([]byte, 8)
	putUint(b, 1<<40)
	require.Equal(t, uint64(1<<40), getUint(b))
}
