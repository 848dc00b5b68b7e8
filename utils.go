package xxdb

import "encoding/binary"

// bytesAllEqual reports whether every byte of data is c, an empty slice
// qualifies.
func bytesAllEqual(data []byte, c byte) bool {
	for len(data) >= 8 {
		if binary.LittleEndian.Uint64(data) != uint64(c)*0x0101010101010101 {
			return false
		}
		data = data[8:]
	}
	for _, b := range data {
		if b != c {
			return false
		}
	}
	return true
}

func isFiller(b []byte) bool {
	return bytesAllEqual(b, indexFiller)
}

func fillSpare(b []byte) {
	for i := range b {
		b[i] = indexFiller
	}
}

// maxUint is the largest value that fits size little endian bytes.
func maxUint(size int) uint64 {
	if size >= 8 {
		return 1<<64 - 1
	}
	return 1<<(uint(size)*8) - 1
}

func putUint(b []byte, v uint64) {
	switch len(b) {
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}
