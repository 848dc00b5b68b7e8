package xxdb

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	defaultPoolBytes  = 128 * 1024 * 1024
	defaultBlockBytes = 64 * 1024 * 1024
	defaultFlushSec   = 5
)

// Options configures one database. Page size, disk layout and index widths
// only apply when the database is created, an existing database keeps the
// values stored in its metadata.
type Options struct {
	PageSize int    `toml:"page_size"`
	Disk     string `toml:"disk"`
	// PagesPerBlock is the page count of one multifile block.
	PagesPerBlock uint64 `toml:"pages_per_block"`
	LogLevel      string `toml:"log_level"`
	// FlushPeriod is the background flush interval in seconds, 0 disables it.
	FlushPeriod int              `toml:"flush_period"`
	Comment     string           `toml:"comment"`
	BufferPool  BufferPoolConfig `toml:"buffer_pool"`
	Index       IndexConfig      `toml:"index"`

	Logger  *logrus.Logger `toml:"-"`
	Metrics Metrics        `toml:"-"`
}

type BufferPoolConfig struct {
	MaxPages int    `toml:"max_pages"`
	Replacer string `toml:"replacer"`
}

type IndexConfig struct {
	Kind      string `toml:"kind"`
	KeySize   int    `toml:"key_size"`
	ValueSize int    `toml:"value_size"`
	MMap      bool   `toml:"mmap"`
}

func DefaultOptions() *Options {
	return &Options{
		PageSize:      defaultPageSize,
		Disk:          DiskSingleFile.String(),
		PagesPerBlock: defaultBlockBytes / defaultPageSize,
		LogLevel:      "info",
		FlushPeriod:   defaultFlushSec,
		BufferPool: BufferPoolConfig{
			MaxPages: defaultPoolBytes / defaultPageSize,
			Replacer: ReplacerFIFO.String(),
		},
		Index: IndexConfig{
			Kind:      IndexHashTable.String(),
			KeySize:   8,
			ValueSize: 4,
			MMap:      true,
		},
	}
}

// LoadOptions reads a TOML file, keys it does not set keep their defaults.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	opts := DefaultOptions()
	if err = toml.Unmarshal(data, opts); err != nil {
		return nil, errors.Wrapf(ErrInvalidOptions, "parse config %s: %v", path, err)
	}
	if err = opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) clone() *Options {
	c := *o
	return &c
}

func (o *Options) diskKind() (DiskKind, error) {
	return ParseDiskKind(o.Disk)
}

func (o *Options) validate() error {
	if o.PageSize < minPageSize || o.PageSize > maxPageSize {
		return errors.Wrapf(ErrInvalidOptions, "page_size %d", o.PageSize)
	}
	kind, err := o.diskKind()
	if err != nil {
		return err
	}
	if kind == DiskMultiFile && o.PagesPerBlock == 0 {
		return errors.Wrap(ErrInvalidOptions, "pages_per_block must be positive for multifile")
	}
	if o.FlushPeriod < 0 {
		return errors.Wrapf(ErrInvalidOptions, "flush_period %d", o.FlushPeriod)
	}
	if o.BufferPool.MaxPages <= 0 {
		return errors.Wrapf(ErrInvalidOptions, "buffer_pool.max_pages %d", o.BufferPool.MaxPages)
	}
	if _, _, err = ParseReplacer(o.BufferPool.Replacer); err != nil {
		return err
	}
	if _, err = ParseIndexKind(o.Index.Kind); err != nil {
		return err
	}
	if _, err = logrus.ParseLevel(o.logLevel()); err != nil {
		return errors.Wrapf(ErrInvalidOptions, "log_level %q", o.LogLevel)
	}
	return IndexOption{KeySize: o.Index.KeySize, ValueSize: o.Index.ValueSize}.validate()
}

func (o *Options) logLevel() string {
	if o.LogLevel == "" {
		return "info"
	}
	return o.LogLevel
}
