package xxdb

import (
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Registry keeps the databases of one data directory open by name. It is
// owned by the caller, there is no process wide instance.
type Registry struct {
	dir  string
	opts *Options
	mu   sync.Mutex
	dbs  map[string]*DB
	// closing holds names whose Close is still running, the channel is
	// closed once the files are released
	closing map[string]chan struct{}
}

// NewRegistry uses opts, or the defaults when nil, for every database it
// opens.
func NewRegistry(dir string, opts *Options) *Registry {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Registry{
		dir:     dir,
		opts:    opts,
		dbs:     make(map[string]*DB),
		closing: make(map[string]chan struct{}),
	}
}

// Open returns the open database name, opening or creating it first if
// needed.
func (r *Registry) Open(name string) (*DB, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, errors.Wrapf(ErrInvalidOptions, "database name %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		done, ok := r.closing[name]
		if !ok {
			break
		}
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}
	if db, ok := r.dbs[name]; ok {
		return db, nil
	}
	db, err := Open(r.dir, name, r.opts)
	if err != nil {
		return nil, err
	}
	r.dbs[name] = db
	return db, nil
}

func (r *Registry) Get(name string) (*DB, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	db, ok := r.dbs[name]
	return db, ok
}

// Names returns the open databases in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.dbs))
	for name := range r.dbs {
		names = append(names, name)
	}
	r.mu.Unlock()
	slices.Sort(names)
	return names
}

// Close closes one database and forgets it. Open of the same name waits
// until the close is done.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	db, ok := r.dbs[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	done := r.markClosingLocked(name)
	r.mu.Unlock()
	err := db.Close()
	r.closed(name, done)
	return err
}

// CloseAll closes every database concurrently and returns the first error.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	dbs := r.dbs
	dones := make(map[string]chan struct{}, len(dbs))
	for name := range dbs {
		dones[name] = r.markClosingLocked(name)
	}
	r.mu.Unlock()
	var g errgroup.Group
	for name, db := range dbs {
		g.Go(func() error {
			defer r.closed(name, dones[name])
			return db.Close()
		})
	}
	return g.Wait()
}

func (r *Registry) markClosingLocked(name string) chan struct{} {
	delete(r.dbs, name)
	done := make(chan struct{})
	r.closing[name] = done
	return done
}

func (r *Registry) closed(name string, done chan struct{}) {
	r.mu.Lock()
	delete(r.closing, name)
	r.mu.Unlock()
	close(done)
}
