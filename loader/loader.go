// Package loader drives a paging.PagedStorage from a data source. A session
// owns one storage, serializes its mutations and hands snapshots to
// readers.
package loader

import (
	"context"

	"github.com/pkg/errors"

	"paging"
)

var ErrInvalidConfig = errors.New("invalid loader config")

// ContiguousSource loads pages relative to the keys carried by adjacent
// pages.
type ContiguousSource[K, V any] interface {
	LoadInitial(ctx context.Context, position, count int) (paging.InitialPage[K, V], error)
	LoadBefore(ctx context.Context, key K, count int) (*paging.Page[K, V], error)
	LoadAfter(ctx context.Context, key K, count int) (*paging.Page[K, V], error)
}

// PositionalSource loads pages by absolute position.
type PositionalSource[K, V any] interface {
	Count(ctx context.Context) (int, error)
	LoadRange(ctx context.Context, start, count int) (*paging.Page[K, V], error)
}

type Config struct {
	// PageSize is the number of items requested per page, and the tile
	// size of tiled sessions.
	PageSize int
	// PrefetchDistance is how close to a loaded edge an access may get
	// before more is loaded.
	PrefetchDistance int
	// InitialLoadSize is the size of the first page of contiguous
	// sessions.
	InitialLoadSize int
}

var DefaultConfig = Config{
	PageSize:         20,
	PrefetchDistance: 20,
	InitialLoadSize:  60,
}

func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "page size %d", c.PageSize)
	}
	if c.PrefetchDistance < 0 {
		return errors.Wrapf(ErrInvalidConfig, "prefetch distance %d", c.PrefetchDistance)
	}
	if c.InitialLoadSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "initial load size %d", c.InitialLoadSize)
	}
	return nil
}
