//go:build unix

package sys

import (
	"os"

	"golang.org/x/sys/unix"
)

const Supported = true

func MMap(file *os.File, length uint64) (dat []byte, err error) {
	dat, err = unix.Mmap(int(file.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	return
}

func MUnmap(dat []byte) (err error) {
	if len(dat) == 0 {
		return nil
	}
	return unix.Munmap(dat)
}

// MSync blocks until the dirty pages of dat reach the file.
func MSync(dat []byte) error {
	if len(dat) == 0 {
		return nil
	}
	return unix.Msync(dat, unix.MS_SYNC)
}

func GetSysPageSize() int {
	return unix.Getpagesize()
}
