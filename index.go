package xxdb

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type IndexKind uint8

const (
	IndexHashTable IndexKind = iota + 1
	IndexSQLite
)

func (k IndexKind) String() string {
	switch k {
	case IndexHashTable:
		return "hashtable"
	case IndexSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("index(%d)", uint8(k))
	}
}

func ParseIndexKind(s string) (IndexKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hashtable":
		return IndexHashTable, nil
	case "sqlite":
		return IndexSQLite, nil
	default:
		return 0, errors.Wrapf(ErrInvalidOptions, "index %q", s)
	}
}

// Index maps a record key to the id of the page holding its records. Entries
// are never updated or removed.
type Index interface {
	Get(key uint64) (value uint64, found bool)
	// Set fails with ErrDuplicateKey when key is already present.
	Set(key, value uint64) error
	Len() int
	// Range visits entries until fn returns false, in insertion order for
	// IndexHashTable and in key order for IndexSQLite.
	Range(fn func(key, value uint64) bool)
	Flush() error
	Close() error
}

type IndexOption struct {
	KeySize   int
	ValueSize int
	// MMap enables the mapped write path where the platform has one.
	MMap bool
}

func (o IndexOption) validate() error {
	if o.KeySize != 4 && o.KeySize != 8 {
		return errors.Wrapf(ErrInvalidOptions, "index key size %d", o.KeySize)
	}
	if o.ValueSize != 4 && o.ValueSize != 8 {
		return errors.Wrapf(ErrInvalidOptions, "index value size %d", o.ValueSize)
	}
	return nil
}

func indexFilePath(dir, name string) string {
	return filepath.Join(dir, name+".ht.idx.xxdb")
}

func sqliteIndexFilePath(dir, name string) string {
	return filepath.Join(dir, name+".sqlite.idx.xxdb")
}

func OpenIndex(kind IndexKind, dir, name string, opt IndexOption) (Index, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	switch kind {
	case IndexHashTable:
		return openHashTable(indexFilePath(dir, name), opt)
	case IndexSQLite:
		return openSQLiteIndex(sqliteIndexFilePath(dir, name), opt)
	default:
		return nil, errors.Wrapf(ErrInvalidOptions, "%s", kind)
	}
}
