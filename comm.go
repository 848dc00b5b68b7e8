package xxdb

import (
	"strconv"
)

const (
	// metaRegionSize is reserved at the head of every block file, page 0
	// starts right after it.
	metaRegionSize = 16 * 1024
	metaLenSize    = 2

	pageLSNSize   = 8
	pageSizeSize  = 4
	pageMagicSize = 4
	// pageTrailerSize is what a page spends on metadata, the rest of the
	// page is record space.
	pageTrailerSize = pageLSNSize + pageSizeSize + pageMagicSize

	pageMagic uint32 = 0x00000000

	minPageSize     = 64
	maxPageSize     = 1 << 20
	defaultPageSize = 2048
)

// PageID is dense and zero based; the page header does not store it, the
// position in the block file does.
type PageID uint64

func (p PageID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}
