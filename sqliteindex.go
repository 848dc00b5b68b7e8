package xxdb

import (
	"database/sql"
	"math"
	"sync"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteIndexSchema = `CREATE TABLE IF NOT EXISTS kv (key INTEGER PRIMARY KEY, value INTEGER)`

// sqliteIndex keeps the entries in table kv of a SQLite database. SQLite
// integers are signed, keys and values above math.MaxInt64 are rejected on
// top of the width checks. Range visits entries in key order.
type sqliteIndex struct {
	mu        sync.Mutex
	path      string
	db        *sql.DB
	keySize   int
	valueSize int
	count     int
}

func openSQLiteIndex(path string, opt IndexOption) (_ *sqliteIndex, err error) {
	db, err := sql.Open("sqlite", "file:"+path+
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "open index %s", path)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	// one connection keeps the pragmas and serializes writers
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(sqliteIndexSchema); err != nil {
		return nil, errors.Wrapf(err, "create index table %s", path)
	}
	s := &sqliteIndex{
		path:      path,
		db:        db,
		keySize:   opt.KeySize,
		valueSize: opt.ValueSize,
	}
	if err = db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&s.count); err != nil {
		return nil, errors.Wrapf(err, "count index %s", path)
	}
	return s, nil
}

func (s *sqliteIndex) Get(key uint64) (uint64, bool) {
	if key > math.MaxInt64 {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, false
	}
	var value int64
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, int64(key)).Scan(&value)
	if err != nil {
		return 0, false
	}
	return uint64(value), true
}

func (s *sqliteIndex) Set(key, value uint64) error {
	if key > maxUint(s.keySize) || key > math.MaxInt64 {
		return errors.Wrapf(ErrKeyOverflow, "key %d does not fit the index", key)
	}
	if value > maxUint(s.valueSize) || value > math.MaxInt64 {
		return errors.Wrapf(ErrKeyOverflow, "value %d does not fit the index", value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)`, int64(key), int64(value))
	if err != nil {
		if isConstraintErr(err) {
			return errors.Wrapf(ErrDuplicateKey, "key %d", key)
		}
		return errors.Wrapf(err, "insert index %s", s.path)
	}
	s.count++
	return nil
}

func isConstraintErr(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *sqliteIndex) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Range reads the entries before calling fn, fn may use the index.
func (s *sqliteIndex) Range(fn func(key, value uint64) bool) {
	type entry struct{ key, value int64 }
	var entries []entry
	s.mu.Lock()
	if s.db != nil {
		rows, err := s.db.Query(`SELECT key, value FROM kv ORDER BY key`)
		if err == nil {
			for rows.Next() {
				var e entry
				if rows.Scan(&e.key, &e.value) != nil {
					break
				}
				entries = append(entries, e)
			}
			_ = rows.Close()
		}
	}
	s.mu.Unlock()
	for _, e := range entries {
		if !fn(uint64(e.key), uint64(e.value)) {
			return
		}
	}
}

// Flush moves the write ahead log into the database file.
func (s *sqliteIndex) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(FULL)`)
	return errors.Wrapf(err, "checkpoint index %s", s.path)
}

func (s *sqliteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Wrapf(err, "close index %s", s.path)
}
