package paging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	assertion "github.com/stretchr/testify/assert"
)

func TestChangeKindFlags(t *testing.T) {
	assert := assertion.New(t)
	mask := Set(0, ChangeInserted)
	mask = Set(mask, ChangePlaceholderInserted)
	assert.True(Has(mask, ChangeInserted))
	assert.False(Has(mask, ChangeAppended))
	assert.Equal(mask, Set(mask, ChangeInserted))
	assert.True(Has(ChangeAll, ChangeInitialized))
	assert.Equal("mixed", mask.String())
	assert.Equal("placeholder-inserted", ChangePlaceholderInserted.String())
}

func TestChangeRecorderMask(t *testing.T) {
	assert := assertion.New(t)
	rec := NewChangeRecorder(ChangeInserted, ChangePlaceholderInserted)
	assert.Equal(ChangeInserted|ChangePlaceholderInserted, rec.Mask)
	s := NewPagedStorage[int, string](strict)

	s.Init(4, numbered(4, 8), 4, 0, rec)
	assert.NoError(s.AllocatePlaceholders(0, 0, 4, rec))
	assert.NoError(s.InsertPage(0, numbered(0, 4), rec))

	assert.Equal([]Change{
		{Kind: ChangePlaceholderInserted, A: 0},
		{Kind: ChangeInserted, A: 0, B: 4},
	}, rec.Drain())
	assert.Nil(rec.Changes)

	all := NewChangeRecorder()
	assert.Equal(ChangeKind(0), all.Mask)
	all.OnInitialized(3)
	all.OnPageAppended(3, 0, 1)
	assert.Len(all.Changes, 2)
}

func TestLogCallback(t *testing.T) {
	assert := assertion.New(t)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	rec := &ChangeRecorder{}
	cb := MultiCallback{LogCallback{Logger: log.NewEntry(logger)}, rec}

	s := NewPagedStorage[int, string](&Options{Logger: log.NewEntry(logger)})
	s.Init(0, page("a", "b"), 2, 0, cb)
	s.AppendPage(page("c", "d", "e"), cb)

	assert.Len(rec.Changes, 2)
	var changes []string
	for _, e := range hook.AllEntries() {
		if c, ok := e.Data["change"]; ok {
			changes = append(changes, c.(string))
		}
	}
	assert.Equal([]string{"initialized", "appended"}, changes)

	// the mode transition is logged by the storage itself
	var dropped bool
	for _, e := range hook.AllEntries() {
		if _, ok := e.Data["pages"]; ok {
			dropped = true
		}
	}
	assert.True(dropped)
	assert.Equal(2, hook.LastEntry().Data["changed"])
}
