package xxdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xxdb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
page_size = 4096
disk = "multifile"
pages_per_block = 1024
flush_period = 0

[buffer_pool]
max_pages = 512

[index]
kind = "sqlite"
value_size = 8
mmap = false
`), 0644))
	opts, err := LoadOptions(path)
	require.NoError(t, err)
	require.Equal(t, 4096, opts.PageSize)
	require.Equal(t, "multifile", opts.Disk)
	require.Equal(t, uint64(1024), opts.PagesPerBlock)
	require.Equal(t, 0, opts.FlushPeriod)
	require.Equal(t, 512, opts.BufferPool.MaxPages)
	require.Equal(t, "sqlite", opts.Index.Kind)
	require.Equal(t, 8, opts.Index.ValueSize)
	require.False(t, opts.Index.MMap)
	// untouched keys keep their defaults
	require.Equal(t, "fifo", opts.BufferPool.Replacer)
	require.Equal(t, 8, opts.Index.KeySize)
	require.Equal(t, "info", opts.LogLevel)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.validate())
	require.Equal(t, 2048, opts.PageSize)
	require.Equal(t, 128*1024*1024/2048, opts.BufferPool.MaxPages)
	require.Equal(t, uint64(64*1024*1024/2048), opts.PagesPerBlock)
	require.Equal(t, 5, opts.FlushPeriod)
}

func TestOptionsValidate(t *testing.T) {
	for name, mutate := range map[string]func(o *Options){
		"PageSize":   func(o *Options) { o.PageSize = 10 },
		"MaxPages":   func(o *Options) { o.BufferPool.MaxPages = 0 },
		"Replacer":   func(o *Options) { o.BufferPool.Replacer = "clock" },
		"KeySize":    func(o *Options) { o.Index.KeySize = 3 },
		"IndexKind":  func(o *Options) { o.Index.Kind = "btree" },
		"LogLevel":   func(o *Options) { o.LogLevel = "loud" },
		"Flush":      func(o *Options) { o.FlushPeriod = -1 },
		"BlockPages": func(o *Options) { o.Disk = "multifile"; o.PagesPerBlock = 0 },
	} {
		opts := DefaultOptions()
		mutate(opts)
		require.ErrorIs(t, opts.validate(), ErrInvalidOptions, name)
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("page_size = \"big\""), 0644))
	_, err := LoadOptions(path)
	require.ErrorIs(t, err, ErrInvalidOptions)
	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestMeta(t *testing.T) {
	opts := DefaultOptions()
	opts.Disk = "multifile"
	opts.Comment = "hello"
	raw, err := metaFromOptions(opts).encode()
	require.NoError(t, err)
	m, err := decodeMeta(raw)
	require.NoError(t, err)
	require.Equal(t, metaFromOptions(opts), m)
	require.Equal(t, opts.PagesPerBlock, m.PagesPerBlock)

	_, err = decodeMeta([]byte("{"))
	require.ErrorIs(t, err, ErrCorruptMeta)
	_, err = decodeMeta([]byte(`{"version":2,"disk":"singlefile"}`))
	require.ErrorIs(t, err, ErrCorruptMeta)
}
