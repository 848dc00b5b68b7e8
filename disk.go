package xxdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type DiskKind uint8

const (
	DiskSingleFile DiskKind = iota + 1
	DiskMultiFile
)

func (k DiskKind) String() string {
	switch k {
	case DiskSingleFile:
		return "singlefile"
	case DiskMultiFile:
		return "multifile"
	default:
		return fmt.Sprintf("disk(%d)", uint8(k))
	}
}

func ParseDiskKind(s string) (DiskKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singlefile", "single":
		return DiskSingleFile, nil
	case "multifile", "multi":
		return DiskMultiFile, nil
	default:
		return 0, errors.Wrapf(ErrUnknownDisk, "%q", s)
	}
}

// Disk allocates, reads and writes whole pages. Page ids are handed out in
// increasing order and never reused by the same Disk.
type Disk interface {
	Kind() DiskKind
	PageSize() int
	// PageCount is the next id NewPage will return.
	PageCount() uint64
	// NewPage reserves an id and returns an empty page, nothing is written.
	NewPage() (*Page, error)
	ReadPage(id PageID) (*Page, error)
	WritePage(id PageID, raw []byte) error
	ReadMeta() ([]byte, error)
	WriteMeta(meta []byte) error
	Sync() error
	Close() error
}

type DiskOption struct {
	Dir      string
	Name     string
	PageSize int
	// PagesPerBlock is only used by DiskMultiFile.
	PagesPerBlock uint64
}

func (o DiskOption) validate() error {
	if o.Name == "" {
		return errors.Wrap(ErrInvalidOptions, "empty disk name")
	}
	if o.PageSize < minPageSize || o.PageSize > maxPageSize {
		return errors.Wrapf(ErrInvalidOptions, "page size %d", o.PageSize)
	}
	return nil
}

func OpenDisk(kind DiskKind, opt DiskOption) (Disk, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	switch kind {
	case DiskSingleFile:
		return openSingleFile(opt)
	case DiskMultiFile:
		if opt.PagesPerBlock == 0 {
			return nil, errors.Wrap(ErrInvalidOptions, "multifile disk needs pages per block")
		}
		return openMultiFile(opt)
	default:
		return nil, errors.Wrapf(ErrUnknownDisk, "%s", kind)
	}
}

func singleFilePath(dir, name string) string {
	return filepath.Join(dir, name+".dat.xxdb")
}

func blockFilePath(dir, name string, blockId uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%d.dat.xxdb", name, blockId))
}

// findStoredMeta looks for an existing data file of name and returns the
// metadata kept in its reserved region. found is false for a new database.
func findStoredMeta(dir, name string) (meta []byte, found bool, err error) {
	for _, path := range []string{singleFilePath(dir, name), blockFilePath(dir, name, 0)} {
		if _, statErr := os.Stat(path); statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			return nil, false, errors.Wrapf(statErr, "stat %s", path)
		}
		// page size does not matter for the meta region
		b, err := openBlockIO(path, minPageSize)
		if err != nil {
			return nil, false, err
		}
		meta, err = b.readMeta()
		closeErr := b.close()
		if err != nil {
			return nil, false, err
		}
		if closeErr != nil {
			return nil, false, closeErr
		}
		return meta, true, nil
	}
	return nil, false, nil
}
