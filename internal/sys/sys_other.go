//go:build !unix

package sys

import (
	"errors"
	"os"
)

// Supported reports whether file mappings are available, callers fall back
// to positional writes when it is false.
const Supported = false

var errUnsupported = errors.New("mmap is not supported on this platform")

func MMap(file *os.File, length uint64) ([]byte, error) {
	return nil, errUnsupported
}

func MUnmap(dat []byte) error {
	return errUnsupported
}

func MSync(dat []byte) error {
	return errUnsupported
}

func Remap(file *os.File, newLength uint64, olddat []byte) ([]byte, error) {
	return nil, errUnsupported
}

func GetSysPageSize() int {
	return 4096
}
