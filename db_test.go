package xxdb

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func testOptions() *Options {
	opts := DefaultOptions()
	opts.PageSize = 256
	opts.FlushPeriod = 0
	opts.BufferPool.MaxPages = 16
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	opts.Logger = logger
	return opts
}

func TestDB(t *testing.T) {
	for _, disk := range []string{"singlefile", "multifile"} {
		t.Run(disk, func(t *testing.T) {
			dir := t.TempDir()
			opts := testOptions()
			opts.Disk = disk
			opts.PagesPerBlock = 8
			db, err := Open(dir, "test", opts)
			require.NoError(t, err)

			const keys = 40
			for k := uint64(0); k < keys; k++ {
				require.NoError(t, db.Put(k, []byte(fmt.Sprintf("first %d", k))))
				require.NoError(t, db.Put(k, []byte(fmt.Sprintf("second %d", k))))
			}
			records, found, err := db.Get(7)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, [][]byte{[]byte("first 7"), []byte("second 7")}, records)
			_, found, err = db.Get(1000)
			require.NoError(t, err)
			require.False(t, found)

			st := db.Stat()
			require.Equal(t, keys, st.IndexLen)
			require.Equal(t, uint64(keys), st.PageCount)
			require.NoError(t, db.Close())
			require.NoError(t, db.Close())
			require.ErrorIs(t, db.Put(1, nil), ErrClosed)
			_, _, err = db.Get(1)
			require.ErrorIs(t, err, ErrClosed)

			db, err = Open(dir, "test", opts)
			require.NoError(t, err)
			defer db.Close()
			require.Equal(t, uint64(keys), db.PageCount())
			for k := uint64(0); k < keys; k++ {
				records, found, err := db.Get(k)
				require.NoError(t, err)
				require.True(t, found)
				require.Len(t, records, 2)
				require.Equal(t, []byte(fmt.Sprintf("second %d", k)), records[1])
			}
			var scanned int
			require.NoError(t, db.ScanPages(func(id PageID, records [][]byte) bool {
				scanned++
				return true
			}))
			require.Equal(t, keys, scanned)
			var first []uint64
			require.NoError(t, db.RangeKeys(func(key uint64, id PageID) bool {
				first = append(first, key)
				return len(first) < 3
			}))
			require.Equal(t, []uint64{0, 1, 2}, first)
		})
	}
}

func TestDBSQLiteIndex(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.Index.Kind = "sqlite"
	db, err := Open(dir, "lite", opts)
	require.NoError(t, err)
	for k := uint64(5); k > 0; k-- {
		require.NoError(t, db.Put(k, []byte(fmt.Sprintf("v%d", k))))
	}
	require.NoError(t, db.Put(3, []byte("again")))
	require.NoError(t, db.Close())

	db, err = Open(dir, "lite", opts)
	require.NoError(t, err)
	defer db.Close()
	records, found, err := db.Get(3)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{[]byte("v3"), []byte("again")}, records)
	require.Equal(t, 5, db.Stat().IndexLen)
	// key order, the first key put got page 0
	var keys []uint64
	var pages []PageID
	require.NoError(t, db.RangeKeys(func(key uint64, id PageID) bool {
		keys = append(keys, key)
		pages = append(pages, id)
		return true
	}))
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, keys)
	require.Equal(t, []PageID{4, 3, 2, 1, 0}, pages)
}

func TestDBBoundedRecords(t *testing.T) {
	db, err := Open(t.TempDir(), "bounded", testOptions())
	require.NoError(t, err)
	defer db.Close()
	payload := bytes.Repeat([]byte{'x'}, 30)
	for i := 0; i < 100; i++ {
		require.NoError(t, db.Put(1, payload))
	}
	records, found, err := db.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	// (256-16)/(30+2) records fit
	require.Len(t, records, 7)
	require.Equal(t, uint64(1), db.PageCount())

	err = db.Put(2, make([]byte, 256))
	require.ErrorIs(t, err, ErrRecordTooLarge)
	_, found, err = db.Get(2)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDBStoredMetaWins(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.Comment = "created with 256"
	db, err := Open(dir, "meta", opts)
	require.NoError(t, err)
	require.NoError(t, db.Put(1, []byte("a")))
	require.NoError(t, db.Close())

	logger, hook := test.NewNullLogger()
	opts2 := testOptions()
	opts2.PageSize = 1024
	opts2.Index.ValueSize = 8
	opts2.Logger = logger
	db, err = Open(dir, "meta", opts2)
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, 256, db.Meta().PageSize)
	require.Equal(t, 4, db.Meta().IndexValueSize)
	require.Equal(t, "created with 256", db.Meta().Comment)
	records, found, err := db.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{[]byte("a")}, records)

	var warned int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned++
		}
	}
	require.Equal(t, 2, warned)
}

func TestDBConcurrentPut(t *testing.T) {
	db, err := Open(t.TempDir(), "concurrent", testOptions())
	require.NoError(t, err)
	defer db.Close()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := uint64(0); k < 5; k++ {
				assertNoError(t, db.Put(k, []byte{byte(w)}))
			}
		}(w)
	}
	wg.Wait()
	st := db.Stat()
	require.Equal(t, 5, st.IndexLen)
	require.Equal(t, uint64(5), st.PageCount)
	for k := uint64(0); k < 5; k++ {
		records, found, err := db.Get(k)
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, records, 8)
	}
}

func TestDBPeriodicFlush(t *testing.T) {
	m := new(recordingMetrics)
	opts := testOptions()
	opts.FlushPeriod = 1
	opts.Metrics = m
	db, err := Open(t.TempDir(), "periodic", opts)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Put(1, []byte("a")))
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.flushes >= 1
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, 0, db.bpm.DirtyLen())
}

func TestDBInvalidOptions(t *testing.T) {
	opts := testOptions()
	opts.BufferPool.Replacer = "lru"
	_, err := Open(t.TempDir(), "lru", opts)
	require.ErrorIs(t, err, ErrReplacerUnsupported)

	opts = testOptions()
	opts.Disk = "tape"
	_, err = Open(t.TempDir(), "tape", opts)
	require.ErrorIs(t, err, ErrUnknownDisk)

	_, err = Open(t.TempDir(), "", testOptions())
	require.ErrorIs(t, err, ErrInvalidOptions)
}
