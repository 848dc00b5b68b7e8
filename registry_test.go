package xxdb

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, testOptions())
	a, err := r.Open("a")
	require.NoError(t, err)
	b, err := r.Open("b")
	require.NoError(t, err)
	again, err := r.Open("a")
	require.NoError(t, err)
	require.Same(t, a, again)
	require.Equal(t, []string{"a", "b"}, r.Names())

	require.NoError(t, a.Put(1, []byte("in a")))
	require.NoError(t, b.Put(1, []byte("in b")))
	got, ok := r.Get("b")
	require.True(t, ok)
	records, _, err := got.Get(1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("in b")}, records)
	_, ok = r.Get("c")
	require.False(t, ok)

	_, err = r.Open("../escape")
	require.ErrorIs(t, err, ErrInvalidOptions)

	require.NoError(t, r.Close("b"))
	require.Equal(t, []string{"a"}, r.Names())
	require.NoError(t, r.CloseAll())
	require.Empty(t, r.Names())
	require.ErrorIs(t, a.Put(2, nil), ErrClosed)

	// reopening sees what the closed instance wrote
	r2 := NewRegistry(dir, testOptions())
	defer r2.CloseAll()
	a2, err := r2.Open("a")
	require.NoError(t, err)
	records, found, err := a2.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{[]byte("in a")}, records)
}

// closeGateHook holds the Close of one database in its final log line.
type closeGateHook struct {
	name    string
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (h *closeGateHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *closeGateHook) Fire(e *logrus.Entry) error {
	if e.Message != "database closed" || e.Data["db"] != h.name {
		return nil
	}
	h.once.Do(func() {
		close(h.entered)
		<-h.gate
	})
	return nil
}

func TestRegistryOpenWaitsForClose(t *testing.T) {
	opts := testOptions()
	hook := &closeGateHook{name: "a", entered: make(chan struct{}), gate: make(chan struct{})}
	opts.Logger.AddHook(hook)
	r := NewRegistry(t.TempDir(), opts)
	defer r.CloseAll()
	old, err := r.Open("a")
	require.NoError(t, err)
	require.NoError(t, old.Put(1, []byte("before")))

	closeErr := make(chan error, 1)
	go func() { closeErr <- r.Close("a") }()
	<-hook.entered

	var opened atomic.Bool
	openRes := make(chan *DB, 1)
	go func() {
		db, err := r.Open("a")
		assert.NoError(t, err)
		opened.Store(true)
		openRes <- db
	}()
	require.Never(t, opened.Load, 100*time.Millisecond, 10*time.Millisecond)
	_, ok := r.Get("a")
	require.False(t, ok)

	close(hook.gate)
	require.NoError(t, <-closeErr)
	db := <-openRes
	require.NotNil(t, db)
	require.NotSame(t, old, db)
	records, found, err := db.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, [][]byte{[]byte("before")}, records)
}
