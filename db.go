package xxdb

import (
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DB stores lists of records under integer keys. All records of a key live
// in one page, so a key keeps only as many of its newest records as fit.
type DB struct {
	dir    string
	name   string
	opts   *Options
	meta   Meta
	logger *logrus.Entry

	disk  Disk
	bpm   *bufferPoolManager
	index Index

	// mu guards closed, operations hold it shared so Close waits for them
	mu     sync.RWMutex
	closed bool
	// putMu serializes creating the page of a new key
	putMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open opens database name under dir, creating it when no data file exists.
// opts may be nil for the defaults.
func Open(dir, name string, opts *Options) (db *DB, err error) {
	if name == "" {
		return nil, errors.Wrap(ErrInvalidOptions, "empty database name")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	opts = opts.clone()
	if err = opts.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = newLogger(opts.logLevel())
	}
	db = &DB{
		dir:    dir,
		name:   name,
		opts:   opts,
		logger: logger.WithField("db", name),
		stopCh: make(chan struct{}),
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	raw, found, err := findStoredMeta(dir, name)
	if err != nil {
		return nil, err
	}
	found = found && len(raw) > 0
	if found {
		if db.meta, err = decodeMeta(raw); err != nil {
			return nil, errors.WithMessagef(err, "database %s", name)
		}
		db.meta.applyTo(opts, db.logger)
		if err = opts.validate(); err != nil {
			return nil, errors.WithMessagef(err, "stored metadata of %s", name)
		}
	} else {
		db.meta = metaFromOptions(opts)
	}
	if err = db.init(found); err != nil {
		db.closeResources()
		return nil, err
	}
	if opts.FlushPeriod > 0 {
		db.wg.Add(1)
		go db.runFlusher(time.Duration(opts.FlushPeriod) * time.Second)
	}
	db.logger.WithFields(logrus.Fields{
		"disk":      opts.Disk,
		"page_size": opts.PageSize,
		"pages":     db.disk.PageCount(),
		"data":      humanize.IBytes(db.disk.PageCount() * uint64(opts.PageSize)),
		"keys":      db.index.Len(),
		"created":   !found,
	}).Info("database opened")
	return db, nil
}

func (db *DB) init(metaStored bool) (err error) {
	kind, err := db.opts.diskKind()
	if err != nil {
		return err
	}
	db.disk, err = OpenDisk(kind, DiskOption{
		Dir:           db.dir,
		Name:          db.name,
		PageSize:      db.opts.PageSize,
		PagesPerBlock: db.opts.PagesPerBlock,
	})
	if err != nil {
		return err
	}
	if !metaStored {
		raw, err := db.meta.encode()
		if err != nil {
			return err
		}
		if err = db.disk.WriteMeta(raw); err != nil {
			return err
		}
	}
	replacer, _, err := ParseReplacer(db.opts.BufferPool.Replacer)
	if err != nil {
		return err
	}
	db.bpm, err = newBufferPoolManager(db.disk, BufferPoolOption{
		MaxPages: db.opts.BufferPool.MaxPages,
		Replacer: replacer,
		Metrics:  db.opts.Metrics,
		Logger:   db.logger.Logger,
	})
	if err != nil {
		return err
	}
	indexKind, err := ParseIndexKind(db.opts.Index.Kind)
	if err != nil {
		return err
	}
	db.index, err = OpenIndex(indexKind, db.dir, db.name, IndexOption{
		KeySize:   db.opts.Index.KeySize,
		ValueSize: db.opts.Index.ValueSize,
		MMap:      db.opts.Index.MMap,
	})
	return err
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Meta() Meta {
	return db.meta
}

func (db *DB) PageCount() uint64 {
	return db.disk.PageCount()
}

// Get returns the records of key, oldest first.
func (db *DB) Get(key uint64) ([][]byte, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, false, ErrClosed
	}
	pgId, ok := db.index.Get(key)
	if !ok {
		return nil, false, nil
	}
	guard, err := db.bpm.FetchPage(PageID(pgId))
	if err != nil {
		return nil, false, errors.WithMessagef(err, "get key %d", key)
	}
	defer guard.Release()
	return guard.Page().Records(), true, nil
}

// Put appends data to the records of key. When the page of key is full its
// oldest records are dropped.
func (db *DB) Put(key uint64, data []byte) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if pgId, ok := db.index.Get(key); ok {
		return db.appendTo(PageID(pgId), data)
	}
	if len(data) > maxRecordLen || recordLenSize+len(data) > db.opts.PageSize-pageTrailerSize {
		return errors.Wrapf(ErrRecordTooLarge, "record %d bytes, page size %d", len(data), db.opts.PageSize)
	}
	db.putMu.Lock()
	defer db.putMu.Unlock()
	// another Put may have created the key while we waited
	if pgId, ok := db.index.Get(key); ok {
		return db.appendTo(PageID(pgId), data)
	}
	guard, err := db.bpm.NewPage()
	if err != nil {
		return errors.WithMessagef(err, "put key %d", key)
	}
	defer guard.Release()
	if err = guard.Page().Append(data); err != nil {
		return err
	}
	return db.index.Set(key, uint64(guard.Page().ID()))
}

func (db *DB) appendTo(id PageID, data []byte) error {
	guard, err := db.bpm.FetchPage(id)
	if err != nil {
		return err
	}
	defer guard.Release()
	return guard.Page().Append(data)
}

// ScanPages calls fn with the records of every allocated page in id order
// until fn returns false.
func (db *DB) ScanPages(fn func(id PageID, records [][]byte) bool) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	n := db.disk.PageCount()
	for id := PageID(0); uint64(id) < n; id++ {
		guard, err := db.bpm.FetchPage(id)
		if err != nil {
			return err
		}
		records := guard.Page().Records()
		guard.Release()
		if !fn(id, records) {
			return nil
		}
	}
	return nil
}

// RangeKeys visits the index in the order of its kind, see Index.Range.
func (db *DB) RangeKeys(fn func(key uint64, id PageID) bool) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	db.index.Range(func(key, value uint64) bool {
		return fn(key, PageID(value))
	})
	return nil
}

// Flush writes every dirty page and the index to stable storage.
func (db *DB) Flush() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	if err := db.bpm.FlushAll(); err != nil {
		return err
	}
	return db.index.Flush()
}

func (db *DB) Stat() ExportStat {
	s := db.bpm.stat.export()
	s.IndexLen = db.index.Len()
	s.PageCount = db.disk.PageCount()
	return s
}

func (db *DB) runFlusher(period time.Duration) {
	defer db.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopCh:
			return
		case <-ticker.C:
			err := db.Flush()
			if err != nil && !errors.Is(err, ErrClosed) {
				db.logger.WithError(err).Warn("background flush failed")
			}
		}
	}
}

// Close flushes and releases the database. Calling it again is a no-op.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()
	close(db.stopCh)
	db.wg.Wait()
	var err error
	if flushErr := db.bpm.Close(); flushErr != nil {
		err = flushErr
	}
	if closeErr := db.closeResources(); err == nil {
		err = closeErr
	}
	if err != nil {
		db.logger.WithError(err).Warn("database closed with error")
		return err
	}
	db.logger.Info("database closed")
	return nil
}

// closeResources closes what init managed to open and returns the first
// error.
func (db *DB) closeResources() (err error) {
	if db.index != nil {
		err = db.index.Close()
	}
	if db.disk != nil {
		if closeErr := db.disk.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
