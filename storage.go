package paging

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// irregularPageSize marks storage whose pages have stopped being uniform.
const irregularPageSize = -1

// Mode is the index addressing regime of a storage.
type Mode uint8

const (
	// uniform page size, O(1) index to page, slots may be unloaded
	ModeTiled Mode = iota
	// heterogeneous page sizes, every slot loaded, index to page walks pages
	ModeContiguous
)

func (m Mode) String() string {
	if m == ModeTiled {
		return "tiled"
	}
	return "contiguous"
}

// PagedStorage is a fixed-size list of which only a window is materialized.
//
// The list is laid out as leadingNullCount virtual items, then the page
// slots (storageCount items in total), then trailingNullCount virtual
// items. Pages are added at either end (contiguous API) or at any tile
// (tiled API). PagedStorage is not safe for concurrent mutation; hand
// readers a Snapshot instead. Create it with NewPagedStorage.
type PagedStorage[K, V any] struct {
	leadingNullCount int
	// Two storage modes:
	//
	// Contiguous: every slot is loaded, page sizes may differ.
	// Tiled: slots may be absent or placeholders while content is loading.
	pages             []slot[K, V]
	trailingNullCount int

	positionOffset int
	// items represented by pages, counting unloaded tiles
	storageCount int

	// > 0 while tiled, irregularPageSize once contiguous
	pageSize int

	numberPrepended int
	numberAppended  int

	opts *Options
	log  *log.Entry
}

// NewPagedStorage returns an empty storage.
func NewPagedStorage[K, V any](opts *Options) *PagedStorage[K, V] {
	if opts == nil {
		opts = DefaultOptions
	}
	return &PagedStorage[K, V]{
		pageSize: 1,
		opts:     opts,
		log:      opts.logger(),
	}
}

// NewPagedStorageWithPage returns a storage seeded with one page, without
// notifying anyone.
func NewPagedStorageWithPage[K, V any](leadingNulls int, page *Page[K, V], trailingNulls int, opts *Options) *PagedStorage[K, V] {
	s := NewPagedStorage[K, V](opts)
	s.init(leadingNulls, page, trailingNulls, 0)
	return s
}

// Snapshot returns a copy that shares pages with s but is unaffected by
// later mutation of s.
func (s *PagedStorage[K, V]) Snapshot() *PagedStorage[K, V] {
	cp := *s
	cp.pages = slices.Clone(s.pages)
	return &cp
}

func (s *PagedStorage[K, V]) init(leadingNulls int, page *Page[K, V], trailingNulls, positionOffset int) {
	s.leadingNullCount = leadingNulls
	s.trailingNullCount = trailingNulls
	s.positionOffset = positionOffset
	s.numberPrepended = 0
	s.numberAppended = 0

	if page.Len() == 0 {
		// Nothing to tile by yet: the first non-empty page sets the size.
		s.pages = nil
		s.storageCount = 0
		s.pageSize = 1
		return
	}
	s.pages = []slot[K, V]{loadedSlot(page)}
	s.storageCount = page.Len()

	// Tiled from the start, even if the nulls around the page do not
	// divide evenly by its size.
	s.pageSize = page.Len()
}

// Init resets s to hold a single page. It must only be called on a fresh
// storage.
func (s *PagedStorage[K, V]) Init(leadingNulls int, page *Page[K, V], trailingNulls, positionOffset int, cb Callback) {
	s.init(leadingNulls, page, trailingNulls, positionOffset)
	orNop(cb).OnInitialized(s.Size())
	s.strictCheck()
}

// Get returns the item at i. ok is false when the position is known but
// not loaded, which is the caller's cue to fetch it.
func (s *PagedStorage[K, V]) Get(i int) (item V, ok bool, err error) {
	if i < 0 || i >= s.Size() {
		return item, false, errors.Wrapf(ErrIndexOutOfRange, "index: %d, size: %d", i, s.Size())
	}

	localIndex := i - s.leadingNullCount
	if localIndex < 0 || localIndex >= s.storageCount {
		return item, false, nil
	}

	pageIndex, inPage := s.locate(localIndex)
	if pageIndex >= len(s.pages) {
		return item, false, nil
	}
	sl := s.pages[pageIndex]
	if !sl.loaded() || inPage >= sl.page.Len() {
		return item, false, nil
	}
	return sl.page.Items[inPage], true, nil
}

// locate maps a storage-local index to a slot and an offset in its page.
func (s *PagedStorage[K, V]) locate(localIndex int) (pageIndex, inPage int) {
	if s.IsTiled() {
		return localIndex / s.pageSize, localIndex % s.pageSize
	}
	// Only tiled storage has unloaded slots, so every page length is real.
	inPage = localIndex
	for pageIndex = 0; pageIndex < len(s.pages); pageIndex++ {
		n := s.pages[pageIndex].page.Len()
		if n > inPage {
			break
		}
		inPage -= n
	}
	return pageIndex, inPage
}

// IsTiled reports whether all pages are the same size, except for the last,
// which may be smaller.
func (s *PagedStorage[K, V]) IsTiled() bool {
	return s.pageSize > 0
}

// Mode reports the addressing regime, derived from PageSize.
func (s *PagedStorage[K, V]) Mode() Mode {
	if s.IsTiled() {
		return ModeTiled
	}
	return ModeContiguous
}

// LeadingNullCount is the number of virtual items before the first slot.
func (s *PagedStorage[K, V]) LeadingNullCount() int { return s.leadingNullCount }

// TrailingNullCount is the number of virtual items after the last slot.
func (s *PagedStorage[K, V]) TrailingNullCount() int { return s.trailingNullCount }

// StorageCount is the number of items covered by slots, unloaded tiles
// included.
func (s *PagedStorage[K, V]) StorageCount() int { return s.storageCount }

// NumberAppended counts the items added by AppendPage since Init.
func (s *PagedStorage[K, V]) NumberAppended() int { return s.numberAppended }

// NumberPrepended counts the items added by PrependPage since Init.
func (s *PagedStorage[K, V]) NumberPrepended() int { return s.numberPrepended }

// PageCount is the number of slots, whatever their state.
func (s *PagedStorage[K, V]) PageCount() int { return len(s.pages) }

// PositionOffset is the source position of list index 0. It moves down
// by every prepend that grows the list instead of consuming leading nulls.
func (s *PagedStorage[K, V]) PositionOffset() int { return s.positionOffset }

// PageSize is the established tile size, or a negative value once the
// storage is contiguous.
func (s *PagedStorage[K, V]) PageSize() int { return s.pageSize }

// Size is the full list length: leading nulls, slots and trailing nulls.
func (s *PagedStorage[K, V]) Size() int {
	return s.leadingNullCount + s.storageCount + s.trailingNullCount
}

// Slot reports the state of the i-th page slot and its page when loaded.
func (s *PagedStorage[K, V]) Slot(i int) (SlotState, *Page[K, V]) {
	if i < 0 || i >= len(s.pages) {
		return SlotAbsent, nil
	}
	return s.pages[i].state, s.pages[i].page
}

// ComputeLeadingNulls counts the leading nulls plus the run of unloaded
// tiles at the front of the slots.
func (s *PagedStorage[K, V]) ComputeLeadingNulls() int {
	total := s.leadingNullCount
	for _, sl := range s.pages {
		if sl.loaded() {
			break
		}
		total += s.pageSize
	}
	return total
}

// ComputeTrailingNulls counts the trailing nulls plus the run of unloaded
// tiles at the back of the slots.
func (s *PagedStorage[K, V]) ComputeTrailingNulls() int {
	total := s.trailingNullCount
	for i := len(s.pages) - 1; i >= 0; i-- {
		if s.pages[i].loaded() {
			break
		}
		total += s.pageSize
	}
	return total
}

// ---------------- Contiguous API -------------------

// FirstPage returns the first slot's page, or nil if it is not loaded.
func (s *PagedStorage[K, V]) FirstPage() *Page[K, V] {
	if len(s.pages) == 0 || !s.pages[0].loaded() {
		return nil
	}
	return s.pages[0].page
}

// LastPage returns the last slot's page, or nil if it is not loaded.
func (s *PagedStorage[K, V]) LastPage() *Page[K, V] {
	if len(s.pages) == 0 || !s.pages[len(s.pages)-1].loaded() {
		return nil
	}
	return s.pages[len(s.pages)-1].page
}

// FirstContiguousItem returns the first item of the first page, if loaded.
func (s *PagedStorage[K, V]) FirstContiguousItem() (item V, ok bool) {
	page := s.FirstPage()
	if page.Len() == 0 {
		return item, false
	}
	return page.Items[0], true
}

// LastContiguousItem returns the last item of the last page, if loaded.
func (s *PagedStorage[K, V]) LastContiguousItem() (item V, ok bool) {
	page := s.LastPage()
	if page.Len() == 0 {
		return item, false
	}
	return page.Items[page.Len()-1], true
}

// PrependPage adds page in front of the loaded pages. An empty page means
// the source has nothing more in that direction and is ignored.
func (s *PagedStorage[K, V]) PrependPage(page *Page[K, V], cb Callback) {
	count := page.Len()
	if count == 0 {
		return
	}
	switch {
	case len(s.pages) == 0:
		s.adoptPageSize(count)
	case s.pageSize > 0 && count != s.pageSize:
		if len(s.pages) == 1 && count > s.pageSize {
			// prepending to a single page, adopt the size of the inner page
			s.adoptPageSize(count)
		} else {
			s.dropTiling("prepended page size differs")
		}
	}

	s.pages = append([]slot[K, V]{loadedSlot(page)}, s.pages...)
	s.storageCount += count

	changed := min(s.leadingNullCount, count)
	added := count - changed

	s.leadingNullCount -= changed
	s.positionOffset -= added
	s.numberPrepended += count

	orNop(cb).OnPagePrepended(s.leadingNullCount, changed, added)
	s.strictCheck()
}

// AppendPage adds page after the loaded pages. An empty page is ignored.
func (s *PagedStorage[K, V]) AppendPage(page *Page[K, V], cb Callback) {
	count := page.Len()
	if count == 0 {
		return
	}

	switch {
	case len(s.pages) == 0:
		s.adoptPageSize(count)
	case s.pageSize > 0:
		// a short previous page or an oversized new one can only be the end
		if s.pages[len(s.pages)-1].page.Len() != s.pageSize || count > s.pageSize {
			s.dropTiling("appended page breaks uniform size")
		}
	}

	s.pages = append(s.pages, loadedSlot(page))
	s.storageCount += count

	changed := min(s.trailingNullCount, count)
	added := count - changed

	s.trailingNullCount -= changed
	s.numberAppended += count

	orNop(cb).OnPageAppended(s.leadingNullCount+s.storageCount-count, changed, added)
	s.strictCheck()
}

// ------------------ Non-Contiguous API (tiling required) ----------------------

// InsertPage stores page at the tile containing position. A page whose
// size differs from the tile size is accepted only as the final, shorter
// tile, or as a larger page when the last page is the only one loaded.
// On error s is left untouched.
func (s *PagedStorage[K, V]) InsertPage(position int, page *Page[K, V], cb Callback) error {
	if !s.IsTiled() {
		return errors.Wrapf(ErrNotTiled, "insert at %d", position)
	}
	size := s.Size()
	if position < 0 || position >= size {
		return errors.Wrapf(ErrIndexOutOfRange, "index: %d, size: %d", position, size)
	}

	pageSize := s.pageSize
	newPageSize := page.Len()
	if newPageSize != pageSize {
		addingLastPage := position == size-size%pageSize && newPageSize < pageSize
		onlyEndPagePresent := s.trailingNullCount == 0 && len(s.pages) == 1 && newPageSize > pageSize
		if !addingLastPage && !onlyEndPagePresent {
			return errors.Wrapf(ErrIncorrectTiling, "position %d: %d items, tile size %d",
				position, newPageSize, pageSize)
		}
		if onlyEndPagePresent {
			pageSize = newPageSize
		}
	}

	pageIndex := position / pageSize
	if local := pageIndex - s.leadingNullCount/pageSize; local >= 0 && local < len(s.pages) && s.pages[local].loaded() {
		return errors.Wrapf(ErrDataAlreadyLoaded, "invalid position %d", position)
	}

	if pageSize != s.pageSize {
		s.adoptPageSize(pageSize)
	}
	s.allocatePageRange(pageIndex, pageIndex)

	s.pages[pageIndex-s.leadingNullCount/s.pageSize] = loadedSlot(page)
	orNop(cb).OnPageInserted(position, newPageSize)
	s.strictCheck()
	return nil
}

// allocatePageRange makes sure slots exist for tiles minPage..maxPage,
// moving the matching virtual items out of the null counts.
func (s *PagedStorage[K, V]) allocatePageRange(minPage, maxPage int) {
	leadingNullPages := s.leadingNullCount / s.pageSize

	if minPage < leadingNullPages {
		n := leadingNullPages - minPage
		s.pages = append(make([]slot[K, V], n, n+len(s.pages)), s.pages...)
		allocated := n * s.pageSize
		s.storageCount += allocated
		s.leadingNullCount -= allocated

		leadingNullPages = minPage
	}
	if maxPage >= leadingNullPages+len(s.pages) {
		allocated := min(s.trailingNullCount,
			(maxPage+1-(leadingNullPages+len(s.pages)))*s.pageSize)
		for i := len(s.pages); i <= maxPage-leadingNullPages; i++ {
			s.pages = append(s.pages, absentSlot[K, V]())
		}
		s.storageCount += allocated
		s.trailingNullCount -= allocated
	}
}

// AllocatePlaceholders gives every tile overlapping
// [index-prefetchDistance, index+prefetchDistance] a slot, marking unloaded
// ones as placeholders. pageSize may only grow, and only while the last
// page is the only one present. On error s is left untouched.
func (s *PagedStorage[K, V]) AllocatePlaceholders(index, prefetchDistance, pageSize int, cb Callback) error {
	if !s.IsTiled() {
		return errors.Wrap(ErrNotTiled, "allocate placeholders")
	}
	if pageSize != s.pageSize {
		if pageSize < s.pageSize {
			return errors.Wrapf(ErrPageSizeReduced, "from %d to %d", s.pageSize, pageSize)
		}
		if len(s.pages) != 1 || s.trailingNullCount != 0 {
			return errors.Wrapf(ErrPageSizeLocked, "from %d to %d", s.pageSize, pageSize)
		}
		s.adoptPageSize(pageSize)
	}

	maxPageCount := (s.Size() + s.pageSize - 1) / s.pageSize
	minPage := max((index-prefetchDistance)/s.pageSize, 0)
	maxPage := min((index+prefetchDistance)/s.pageSize, maxPageCount-1)
	if maxPage < minPage {
		s.strictCheck()
		return nil
	}

	s.allocatePageRange(minPage, maxPage)
	cb = orNop(cb)
	leadingNullPages := s.leadingNullCount / s.pageSize
	for pageIndex := minPage; pageIndex <= maxPage; pageIndex++ {
		local := pageIndex - leadingNullPages
		if s.pages[local].state == SlotAbsent {
			s.pages[local] = placeholderSlot[K, V]()
			cb.OnPagePlaceholderInserted(pageIndex)
		}
	}
	s.strictCheck()
	return nil
}

// HasPage reports whether tile index holds a real page. The tile size is
// passed in since the stored one may not be final yet while the last page
// is the only one loaded.
func (s *PagedStorage[K, V]) HasPage(pageSize, index int) bool {
	if pageSize <= 0 {
		return false
	}
	leadingNullPages := s.leadingNullCount / pageSize
	if index < leadingNullPages || index >= leadingNullPages+len(s.pages) {
		return false
	}
	return s.pages[index-leadingNullPages].loaded()
}

func (s *PagedStorage[K, V]) adoptPageSize(pageSize int) {
	if pageSize == s.pageSize {
		return
	}
	s.log.WithFields(log.Fields{
		"from": s.pageSize,
		"to":   pageSize,
	}).Debug("adopting page size")
	s.pageSize = pageSize
}

func (s *PagedStorage[K, V]) dropTiling(reason string) {
	s.log.WithFields(log.Fields{
		"pageSize": s.pageSize,
		"pages":    len(s.pages),
	}).Debugf("storage no longer tiled: %s", reason)
	s.pageSize = irregularPageSize
}

func (s *PagedStorage[K, V]) strictCheck() {
	if s.opts.StrictMode {
		if err := s.Check(); err != nil {
			panic(err)
		}
	}
}

func (s *PagedStorage[K, V]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "leading %d, storage %d, trailing %d",
		s.leadingNullCount, s.storageCount, s.trailingNullCount)
	for _, sl := range s.pages {
		b.WriteString(" ")
		b.WriteString(sl.String())
	}
	return b.String()
}
