package paging

import "github.com/pkg/errors"

var (
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrIncorrectTiling   = errors.New("page introduces incorrect tiling")
	ErrDataAlreadyLoaded = errors.New("data already loaded")
	ErrPageSizeReduced   = errors.New("page size cannot be reduced")
	// page size may only grow while the last page is the only one present
	ErrPageSizeLocked = errors.New("page size can change only if last page is only one present")
	ErrNotTiled       = errors.New("storage is not tiled")
)
