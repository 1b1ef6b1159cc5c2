package paging

import "fmt"

// Page is one chunk of loaded items handed to the storage by a data source.
// PreviousKey and NextKey are opaque to the storage; a loader uses them to
// request the adjacent pages. Pages must not be mutated once handed over.
type Page[K, V any] struct {
	Items       []V
	PreviousKey *K
	NextKey     *K
}

// NewPage builds a page, taking the address of the keys that are present.
func NewPage[K, V any](items []V, prev, next *K) *Page[K, V] {
	return &Page[K, V]{Items: items, PreviousKey: prev, NextKey: next}
}

// Len is the number of items held by the page.
func (p *Page[K, V]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// InitialPage is the first page of a loading session together with the
// number of items the source reports before and after it.
type InitialPage[K, V any] struct {
	Page          *Page[K, V]
	LeadingNulls  int
	TrailingNulls int
}

func (p *Page[K, V]) String() string {
	return fmt.Sprintf("%v", p.Items)
}

// SlotState tells what a page slot currently holds.
type SlotState uint8

const (
	// slot allocated, nothing requested yet
	SlotAbsent SlotState = iota
	// slot allocated and a fetch is expected to fill it
	SlotPlaceholder
	// slot holds a real page
	SlotLoaded
)

func (s SlotState) String() string {
	switch s {
	case SlotAbsent:
		return "absent"
	case SlotPlaceholder:
		return "placeholder"
	case SlotLoaded:
		return "loaded"
	}
	return fmt.Sprintf("SlotState(%d)", uint8(s))
}

type slot[K, V any] struct {
	state SlotState
	page  *Page[K, V]
}

func absentSlot[K, V any]() slot[K, V] {
	return slot[K, V]{state: SlotAbsent}
}

func placeholderSlot[K, V any]() slot[K, V] {
	return slot[K, V]{state: SlotPlaceholder}
}

func loadedSlot[K, V any](page *Page[K, V]) slot[K, V] {
	return slot[K, V]{state: SlotLoaded, page: page}
}

// loaded reports whether the slot holds real content.
func (s slot[K, V]) loaded() bool {
	return s.state == SlotLoaded
}

func (s slot[K, V]) String() string {
	if s.loaded() {
		return s.page.String()
	}
	return s.state.String()
}
