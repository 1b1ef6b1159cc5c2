package paging

import (
	"github.com/pkg/errors"
)

// ErrInconsistent is wrapped by every failure reported by Check.
var ErrInconsistent = errors.New("inconsistent storage")

// Check verifies the structural invariants of s.
func (s *PagedStorage[K, V]) Check() error {
	if s.leadingNullCount < 0 || s.trailingNullCount < 0 || s.storageCount < 0 {
		return errors.Wrapf(ErrInconsistent, "negative count: %s", s)
	}

	loaded := 0
	last := len(s.pages) - 1
	for i, sl := range s.pages {
		if !sl.loaded() {
			if !s.IsTiled() {
				return errors.Wrapf(ErrInconsistent, "slot %d is %s in contiguous storage", i, sl.state)
			}
			continue
		}
		n := sl.page.Len()
		loaded += n
		if !s.IsTiled() {
			if n == 0 {
				return errors.Wrapf(ErrInconsistent, "empty page at slot %d in contiguous storage", i)
			}
			continue
		}
		if n > s.pageSize || (n < s.pageSize && i != last) {
			return errors.Wrapf(ErrInconsistent, "slot %d holds %d items, tile size %d", i, n, s.pageSize)
		}
	}

	if s.IsTiled() {
		if loaded > s.storageCount || s.storageCount > len(s.pages)*s.pageSize {
			return errors.Wrapf(ErrInconsistent, "storage count %d outside [%d, %d]",
				s.storageCount, loaded, len(s.pages)*s.pageSize)
		}
	} else if loaded != s.storageCount {
		return errors.Wrapf(ErrInconsistent, "storage count %d, pages hold %d", s.storageCount, loaded)
	}
	return nil
}
