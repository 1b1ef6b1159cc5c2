package loader

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"paging"
)

// Tiled addresses its storage in PageSize tiles and fills the tiles around
// each access, fetching them concurrently.
//
// The callback is invoked with the storage lock held and must not call
// back into the session.
type Tiled[K, V any] struct {
	loadMu sync.Mutex   // Allows only one loading pass at a time.
	mu     sync.RWMutex // Protects storage against concurrent snapshots.

	source   PositionalSource[K, V]
	config   Config
	storage  *paging.PagedStorage[K, V]
	callback paging.Callback
	log      *log.Entry
}

func NewTiled[K, V any](source PositionalSource[K, V], config Config, callback paging.Callback, options *paging.Options) (*Tiled[K, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tiled[K, V]{
		source:   source,
		config:   config,
		storage:  paging.NewPagedStorage[K, V](options),
		callback: callback,
		log:      sessionLogger(options, "tiled"),
	}, nil
}

// Init loads the tile containing position.
func (t *Tiled[K, V]) Init(ctx context.Context, position int) error {
	t.loadMu.Lock()
	defer t.loadMu.Unlock()

	count, err := t.source.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count")
	}
	pageSize := t.config.PageSize
	start := 0
	if count > 0 {
		start = min(max(position, 0), count-1) / pageSize * pageSize
	}
	page, err := t.source.LoadRange(ctx, start, pageSize)
	if err != nil {
		t.log.WithError(err).Warn("initial load failed")
		return errors.Wrap(err, "initial load")
	}

	t.mu.Lock()
	t.storage.Init(start, page, count-start-page.Len(), 0, t.callback)
	t.mu.Unlock()

	t.log.WithFields(log.Fields{
		"count": count,
		"tile":  start / pageSize,
	}).Debug("initialized")
	return nil
}

// LoadAround makes every tile within PrefetchDistance of index addressable
// and loads those still missing.
func (t *Tiled[K, V]) LoadAround(ctx context.Context, index int) error {
	t.loadMu.Lock()
	defer t.loadMu.Unlock()

	pageSize := t.config.PageSize
	prefetch := t.config.PrefetchDistance

	t.mu.Lock()
	size := t.storage.Size()
	if size == 0 {
		t.mu.Unlock()
		return nil
	}
	if err := t.storage.AllocatePlaceholders(index, prefetch, pageSize, t.callback); err != nil {
		t.mu.Unlock()
		return errors.Wrapf(err, "allocate around %d", index)
	}
	var missing []int
	lastTile := (size - 1) / pageSize
	for tile := max((index-prefetch)/pageSize, 0); tile <= min((index+prefetch)/pageSize, lastTile); tile++ {
		if !t.storage.HasPage(pageSize, tile) {
			missing = append(missing, tile)
		}
	}
	t.mu.Unlock()

	if len(missing) == 0 {
		return nil
	}

	pages := make([]*paging.Page[K, V], len(missing))
	g, gctx := errgroup.WithContext(ctx)
	for i, tile := range missing {
		i, tile := i, tile
		g.Go(func() error {
			page, err := t.source.LoadRange(gctx, tile*pageSize, pageSize)
			if err != nil {
				return errors.Wrapf(err, "load tile %d", tile)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.log.WithError(err).Warn("tile load failed")
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tile := range missing {
		if err := t.storage.InsertPage(tile*pageSize, pages[i], t.callback); err != nil {
			return errors.Wrapf(err, "insert tile %d", tile)
		}
	}
	t.log.WithFields(log.Fields{
		"index": index,
		"tiles": missing,
	}).Debug("tiles loaded")
	return nil
}

// Snapshot returns an immutable view of the storage.
func (t *Tiled[K, V]) Snapshot() *paging.PagedStorage[K, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.storage.Snapshot()
}
