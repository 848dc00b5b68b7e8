//go:build linux

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

// Remap resizes the mapping of file, the returned slice replaces olddat.
func Remap(file *os.File, newLength uint64, olddat []byte) (dat []byte, err error) {
	if len(olddat) == 0 {
		return MMap(file, newLength)
	}
	return unix.Mremap(olddat, int(newLength), unix.MREMAP_MAYMOVE)
}
