//go:build unix && !linux

package sys

import "os"

func Remap(file *os.File, newLength uint64, olddat []byte) (dat []byte, err error) {
	err = MUnmap(olddat)
	if err != nil {
		return
	}
	return MMap(file, newLength)
}
