package xxdb

import (
	"sync"

	"github.com/pkg/errors"
)

// singleFile keeps every page in <name>.dat.xxdb.
type singleFile struct {
	mu       sync.Mutex
	opt      DiskOption
	bio      *blockIO
	nextPgId uint64
}

func openSingleFile(opt DiskOption) (*singleFile, error) {
	bio, err := openBlockIO(singleFilePath(opt.Dir, opt.Name), opt.PageSize)
	if err != nil {
		return nil, err
	}
	n, err := bio.pageLen()
	if err != nil {
		_ = bio.close()
		return nil, err
	}
	return &singleFile{
		opt:      opt,
		bio:      bio,
		nextPgId: n,
	}, nil
}

func (s *singleFile) Kind() DiskKind {
	return DiskSingleFile
}

func (s *singleFile) PageSize() int {
	return s.opt.PageSize
}

func (s *singleFile) PageCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPgId
}

func (s *singleFile) NewPage() (*Page, error) {
	s.mu.Lock()
	pgId := s.nextPgId
	s.nextPgId++
	s.mu.Unlock()
	return newEmptyPage(PageID(pgId), s.opt.PageSize), nil
}

func (s *singleFile) ReadPage(id PageID) (*Page, error) {
	if uint64(id) >= s.PageCount() {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d not allocated", id)
	}
	raw, err := s.bio.read(uint64(id))
	if err != nil {
		return nil, err
	}
	return loadPage(id, raw)
}

func (s *singleFile) WritePage(id PageID, raw []byte) error {
	return s.bio.write(uint64(id), raw)
}

func (s *singleFile) ReadMeta() ([]byte, error) {
	return s.bio.readMeta()
}

func (s *singleFile) WriteMeta(meta []byte) error {
	return s.bio.writeMeta(meta)
}

func (s *singleFile) Sync() error {
	return s.bio.sync()
}

func (s *singleFile) Close() error {
	return s.bio.close()
}
