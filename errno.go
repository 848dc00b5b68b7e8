package xxdb

import "github.com/pkg/errors"

var (
	// corruption, never retried
	ErrCorruptPage  = errors.New("corrupt page")
	ErrCorruptMeta  = errors.New("corrupt metadata region")
	ErrCorruptIndex = errors.New("corrupt index file")

	// capacity, the caller may retry once pins are released
	ErrPoolExhausted = errors.New("buffer pool exhausted: no evictable page")

	// caller or configuration errors
	ErrDuplicateKey        = errors.New("duplicate index key")
	ErrKeyOverflow         = errors.New("key or value does not fit the index width")
	ErrRecordTooLarge      = errors.New("record larger than page capacity")
	ErrPageSizeMismatch    = errors.New("block size does not match page size")
	ErrPageNotFound        = errors.New("page not found on disk")
	ErrReplacerUnsupported = errors.New("replacer kind is not implemented")
	ErrUnknownDisk         = errors.New("unknown disk kind")
	ErrInvalidOptions      = errors.New("invalid options")

	ErrClosed = errors.New("database is closed")
)

// IsCorrupted reports whether err means on-disk bytes cannot be trusted.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrCorruptPage) || errors.Is(err, ErrCorruptMeta) || errors.Is(err, ErrCorruptIndex)
}

func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}
