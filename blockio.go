package xxdb

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/nyan233/xxdb/internal/sys"
	"github.com/pkg/errors"
)

// blockIO reads and writes whole pages of one backing file:
//
//	| meta region(16KiB) | page 0 | page 1 | ... |
//
// Positional reads and writes are used, so there is no shared file offset to
// guard and concurrent callers need no lock.
type blockIO struct {
	path     string
	file     *os.File
	pageSize int
}

func openBlockIO(path string, pageSize int) (b *blockIO, err error) {
	b = &blockIO{
		path:     path,
		pageSize: pageSize,
	}
	b.file, err = sys.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open block file %s", path)
	}
	stat, err := b.file.Stat()
	if err != nil {
		_ = b.file.Close()
		return nil, errors.Wrapf(err, "stat block file %s", path)
	}
	if stat.Size() < metaRegionSize {
		// reserve the meta region so pageLen stays meaningful for empty files
		err = b.file.Truncate(metaRegionSize)
		if err != nil {
			_ = b.file.Close()
			return nil, errors.Wrapf(err, "reserve meta region of %s", path)
		}
	}
	return b, nil
}

func (b *blockIO) offset(pgId uint64) int64 {
	return metaRegionSize + int64(pgId)*int64(b.pageSize)
}

func (b *blockIO) read(pgId uint64) ([]byte, error) {
	raw := make([]byte, b.pageSize)
	n, err := b.file.ReadAt(raw, b.offset(pgId))
	if n == b.pageSize {
		return raw, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrPageNotFound, "%s: page %d short read %d/%d", b.path, pgId, n, b.pageSize)
	}
	return nil, errors.Wrapf(err, "%s: read page %d", b.path, pgId)
}

func (b *blockIO) write(pgId uint64, raw []byte) error {
	if len(raw) != b.pageSize {
		return errors.Wrapf(ErrPageSizeMismatch, "%s: write page %d with %d bytes, page size %d", b.path, pgId, len(raw), b.pageSize)
	}
	_, err := b.file.WriteAt(raw, b.offset(pgId))
	if err != nil {
		return errors.Wrapf(err, "%s: write page %d", b.path, pgId)
	}
	return nil
}

// pageLen is the number of whole pages present in the file.
func (b *blockIO) pageLen() (uint64, error) {
	stat, err := b.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat block file %s", b.path)
	}
	if stat.Size() <= metaRegionSize {
		return 0, nil
	}
	return uint64(stat.Size()-metaRegionSize) / uint64(b.pageSize), nil
}

func (b *blockIO) size() (int64, error) {
	stat, err := b.file.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat block file %s", b.path)
	}
	return stat.Size(), nil
}

// readMeta returns the metadata stored in the reserved region, empty when none
// was written yet.
//
//	| meta bytes | zero padding | meta len(2) |
func (b *blockIO) readMeta() ([]byte, error) {
	region := make([]byte, metaRegionSize)
	n, err := b.file.ReadAt(region, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == metaRegionSize) {
		return nil, errors.Wrapf(err, "%s: read meta region", b.path)
	}
	metaLen := int(binary.LittleEndian.Uint16(region[metaRegionSize-metaLenSize:]))
	if metaLen > metaRegionSize-metaLenSize {
		return nil, errors.Wrapf(ErrCorruptMeta, "%s: meta length %d", b.path, metaLen)
	}
	return region[:metaLen], nil
}

func (b *blockIO) writeMeta(meta []byte) error {
	if len(meta) > metaRegionSize-metaLenSize {
		return errors.Wrapf(ErrInvalidOptions, "meta of %d bytes exceeds region", len(meta))
	}
	region := make([]byte, metaRegionSize)
	copy(region, meta)
	binary.LittleEndian.PutUint16(region[metaRegionSize-metaLenSize:], uint16(len(meta)))
	_, err := b.file.WriteAt(region, 0)
	if err != nil {
		return errors.Wrapf(err, "%s: write meta region", b.path)
	}
	return nil
}

func (b *blockIO) sync() error {
	return errors.Wrapf(b.file.Sync(), "sync %s", b.path)
}

func (b *blockIO) close() (err error) {
	err = b.file.Close()
	if err != nil {
		return errors.Wrapf(err, "close %s", b.path)
	}
	b.file = nil
	return
}
