package loader

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"paging"
)

// Contiguous grows its storage at both ends with pages fetched by the keys
// of the current first and last pages.
//
// The callback is invoked with the storage lock held and must not call
// back into the session.
type Contiguous[K, V any] struct {
	loadMu sync.Mutex   // Allows only one loading pass at a time.
	mu     sync.RWMutex // Protects storage against concurrent snapshots.

	source   ContiguousSource[K, V]
	config   Config
	storage  *paging.PagedStorage[K, V]
	callback paging.Callback
	log      *log.Entry

	// the source returned nothing in that direction
	doneBefore, doneAfter bool
}

func NewContiguous[K, V any](source ContiguousSource[K, V], config Config, callback paging.Callback, options *paging.Options) (*Contiguous[K, V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Contiguous[K, V]{
		source:   source,
		config:   config,
		storage:  paging.NewPagedStorage[K, V](options),
		callback: callback,
		log:      sessionLogger(options, "contiguous"),
	}, nil
}

// Init loads the first page around position.
func (c *Contiguous[K, V]) Init(ctx context.Context, position int) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	initial, err := c.source.LoadInitial(ctx, position, c.config.InitialLoadSize)
	if err != nil {
		c.log.WithError(err).Warn("initial load failed")
		return errors.Wrap(err, "initial load")
	}

	c.mu.Lock()
	c.storage.Init(initial.LeadingNulls, initial.Page, initial.TrailingNulls, 0, c.callback)
	c.mu.Unlock()

	c.doneBefore = initial.Page.Len() == 0
	c.doneAfter = initial.Page.Len() == 0
	c.log.WithFields(log.Fields{
		"position": position,
		"leading":  initial.LeadingNulls,
		"loaded":   initial.Page.Len(),
		"trailing": initial.TrailingNulls,
	}).Debug("initialized")
	return nil
}

// LoadAround prepends and appends pages until index is at least
// PrefetchDistance away from either loaded edge, or the source runs out.
// index is in storage coordinates at the time of the call; it is shifted as
// pages grow the list in front of it.
func (c *Contiguous[K, V]) LoadAround(ctx context.Context, index int) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	for {
		c.mu.RLock()
		key, before := c.nextRequest(index)
		offset := c.storage.PositionOffset()
		c.mu.RUnlock()
		if key == nil {
			return nil
		}

		var (
			page *paging.Page[K, V]
			err  error
		)
		if before {
			page, err = c.source.LoadBefore(ctx, *key, c.config.PageSize)
		} else {
			page, err = c.source.LoadAfter(ctx, *key, c.config.PageSize)
		}
		if err != nil {
			c.log.WithError(err).WithField("before", before).Warn("load failed")
			return errors.Wrap(err, "load around")
		}

		c.mu.Lock()
		if before {
			c.storage.PrependPage(page, c.callback)
			c.doneBefore = page.Len() == 0
		} else {
			c.storage.AppendPage(page, c.callback)
			c.doneAfter = page.Len() == 0
		}
		index += offset - c.storage.PositionOffset()
		c.mu.Unlock()
	}
}

// nextRequest picks the key of the next page to fetch, preferring the front.
func (c *Contiguous[K, V]) nextRequest(index int) (key *K, before bool) {
	s := c.storage
	if first := s.FirstPage(); !c.doneBefore && first != nil && first.PreviousKey != nil &&
		index-s.LeadingNullCount() < c.config.PrefetchDistance {
		return first.PreviousKey, true
	}
	if last := s.LastPage(); !c.doneAfter && last != nil && last.NextKey != nil &&
		s.LeadingNullCount()+s.StorageCount()-1-index < c.config.PrefetchDistance {
		return last.NextKey, false
	}
	return nil, false
}

// Snapshot returns an immutable view of the storage.
func (c *Contiguous[K, V]) Snapshot() *paging.PagedStorage[K, V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storage.Snapshot()
}

func sessionLogger(options *paging.Options, mode string) *log.Entry {
	logger := log.NewEntry(log.StandardLogger())
	if options != nil && options.Logger != nil {
		logger = options.Logger
	}
	return logger.WithField("session", mode)
}
