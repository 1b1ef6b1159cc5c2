package paging

import (
	log "github.com/sirupsen/logrus"
)

// Callback receives storage notifications synchronously, inline with the
// mutation that caused them.
type Callback interface {
	OnInitialized(count int)
	OnPagePrepended(leadingNulls, changed, added int)
	OnPageAppended(endPosition, changed, added int)
	OnPagePlaceholderInserted(pageIndex int)
	OnPageInserted(start, count int)
}

// NopCallback ignores every notification.
type NopCallback struct{}

func (NopCallback) OnInitialized(int)             {}
func (NopCallback) OnPagePrepended(int, int, int) {}
func (NopCallback) OnPageAppended(int, int, int)  {}
func (NopCallback) OnPagePlaceholderInserted(int) {}
func (NopCallback) OnPageInserted(int, int)       {}

func orNop(cb Callback) Callback {
	if cb == nil {
		return NopCallback{}
	}
	return cb
}

// Change is one recorded notification. Field meaning depends on Kind:
//
//	ChangeInitialized:         A = total size
//	ChangePrepended:           A = leading nulls, B = changed, C = added
//	ChangeAppended:            A = end position, B = changed, C = added
//	ChangePlaceholderInserted: A = page index
//	ChangeInserted:            A = start position, B = count
type Change struct {
	Kind    ChangeKind
	A, B, C int
}

// ChangeRecorder turns notifications into a list of Change records that the
// caller applies itself.
type ChangeRecorder struct {
	// Mask selects the kinds to keep. Zero keeps everything.
	Mask    ChangeKind
	Changes []Change
}

var _ Callback = (*ChangeRecorder)(nil)

// NewChangeRecorder returns a recorder keeping only the given kinds, or
// every kind when none is given.
func NewChangeRecorder(kinds ...ChangeKind) *ChangeRecorder {
	var mask ChangeKind
	for _, k := range kinds {
		mask = Set(mask, k)
	}
	return &ChangeRecorder{Mask: mask}
}

func (r *ChangeRecorder) record(c Change) {
	if r.Mask != 0 && !Has(r.Mask, c.Kind) {
		return
	}
	r.Changes = append(r.Changes, c)
}

// Drain returns the recorded changes and resets the recorder.
func (r *ChangeRecorder) Drain() []Change {
	changes := r.Changes
	r.Changes = nil
	return changes
}

func (r *ChangeRecorder) OnInitialized(count int) {
	r.record(Change{Kind: ChangeInitialized, A: count})
}

func (r *ChangeRecorder) OnPagePrepended(leadingNulls, changed, added int) {
	r.record(Change{Kind: ChangePrepended, A: leadingNulls, B: changed, C: added})
}

func (r *ChangeRecorder) OnPageAppended(endPosition, changed, added int) {
	r.record(Change{Kind: ChangeAppended, A: endPosition, B: changed, C: added})
}

func (r *ChangeRecorder) OnPagePlaceholderInserted(pageIndex int) {
	r.record(Change{Kind: ChangePlaceholderInserted, A: pageIndex})
}

func (r *ChangeRecorder) OnPageInserted(start, count int) {
	r.record(Change{Kind: ChangeInserted, A: start, B: count})
}

// LogCallback writes every notification to a logrus entry at debug level.
type LogCallback struct {
	Logger *log.Entry
}

var _ Callback = LogCallback{}

func (l LogCallback) entry(kind ChangeKind) *log.Entry {
	logger := l.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return logger.WithField("change", kind.String())
}

func (l LogCallback) OnInitialized(count int) {
	l.entry(ChangeInitialized).WithField("size", count).Debug("storage initialized")
}

func (l LogCallback) OnPagePrepended(leadingNulls, changed, added int) {
	l.entry(ChangePrepended).WithFields(log.Fields{
		"leading": leadingNulls,
		"changed": changed,
		"added":   added,
	}).Debug("page prepended")
}

func (l LogCallback) OnPageAppended(endPosition, changed, added int) {
	l.entry(ChangeAppended).WithFields(log.Fields{
		"end":     endPosition,
		"changed": changed,
		"added":   added,
	}).Debug("page appended")
}

func (l LogCallback) OnPagePlaceholderInserted(pageIndex int) {
	l.entry(ChangePlaceholderInserted).WithField("page", pageIndex).Debug("placeholder inserted")
}

func (l LogCallback) OnPageInserted(start, count int) {
	l.entry(ChangeInserted).WithFields(log.Fields{
		"start": start,
		"count": count,
	}).Debug("page inserted")
}

// MultiCallback fans each notification out to all callbacks, in order.
type MultiCallback []Callback

var _ Callback = MultiCallback(nil)

func (m MultiCallback) OnInitialized(count int) {
	for _, cb := range m {
		cb.OnInitialized(count)
	}
}

func (m MultiCallback) OnPagePrepended(leadingNulls, changed, added int) {
	for _, cb := range m {
		cb.OnPagePrepended(leadingNulls, changed, added)
	}
}

func (m MultiCallback) OnPageAppended(endPosition, changed, added int) {
	for _, cb := range m {
		cb.OnPageAppended(endPosition, changed, added)
	}
}

func (m MultiCallback) OnPagePlaceholderInserted(pageIndex int) {
	for _, cb := range m {
		cb.OnPagePlaceholderInserted(pageIndex)
	}
}

func (m MultiCallback) OnPageInserted(start, count int) {
	for _, cb := range m {
		cb.OnPageInserted(start, count)
	}
}
