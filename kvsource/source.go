// Package kvsource serves pages of sorted key/value records kept in
// compressed blocks, both by key (the records before or after a key) and by
// position.
package kvsource

import (
	"bytes"
	"context"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"paging"
)

const DefaultBlockSize = 64

var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrOutOfRange   = errors.New("position out of range")
)

type Options struct {
	// BlockSize is the number of records encoded together. Key prefix
	// compression restarts at every block.
	BlockSize   int
	Compression CompressAlgorithm
	// Comparator sets the record order. Nil means BytesComparator.
	Comparator Comparator
	Logger     *log.Entry
}

var DefaultOptions = &Options{
	BlockSize:   DefaultBlockSize,
	Compression: CompSnappy,
}

type KVPage = paging.Page[[]byte, Record]

// Source is an immutable, sorted record set. It is safe for concurrent use.
type Source struct {
	blocks    [][]byte
	firstKeys [][]byte
	count     int
	blockSize int
	codec     Codec
	compare   Comparator
	log       *log.Entry
}

// New sorts records by key and encodes them into blocks.
func New(records []Record, options *Options) (*Source, error) {
	if options == nil {
		options = DefaultOptions
	}
	codec, err := CodecFor(options.Compression)
	if err != nil {
		return nil, err
	}
	s := &Source{
		count:     len(records),
		blockSize: options.BlockSize,
		codec:     codec,
		compare:   options.Comparator,
		log:       options.Logger,
	}
	if s.blockSize <= 0 {
		s.blockSize = DefaultBlockSize
	}
	if s.compare == nil {
		s.compare = BytesComparator
	}
	if s.log == nil {
		s.log = log.NewEntry(log.StandardLogger())
	}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return s.compare(sorted[i].Key, sorted[j].Key) < 0
	})

	for start := 0; start < len(sorted); start += s.blockSize {
		end := min(start+s.blockSize, len(sorted))
		var (
			block   []byte
			prevKey []byte
		)
		for i := start; i < end; i++ {
			if i > 0 && s.compare(sorted[i-1].Key, sorted[i].Key) == 0 {
				return nil, errors.Wrapf(ErrDuplicateKey, "%q", sorted[i].Key)
			}
			if block, err = appendRecord(block, sorted[i], prevKey, codec.Compress); err != nil {
				return nil, errors.Wrapf(err, "encode record %d", i)
			}
			prevKey = sorted[i].Key
		}
		s.blocks = append(s.blocks, block)
		s.firstKeys = append(s.firstKeys, sorted[start].Key)
	}

	s.log.WithFields(log.Fields{
		"records":     s.count,
		"blocks":      len(s.blocks),
		"compression": codec.Algorithm,
	}).Debug("source built")
	return s, nil
}

func (s *Source) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return s.count, nil
}

// EncodedSize is the number of bytes held by all blocks.
func (s *Source) EncodedSize() int {
	n := 0
	for _, b := range s.blocks {
		n += len(b)
	}
	return n
}

// LoadRange returns up to count records starting at position start.
func (s *Source) LoadRange(ctx context.Context, start, count int) (*KVPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "load range")
	}
	if start < 0 || start > s.count {
		return nil, errors.Wrapf(ErrOutOfRange, "start %d, count %d", start, s.count)
	}
	return s.page(start, start+count)
}

// LoadInitial returns up to count records centered on position, together
// with the number of records on either side.
func (s *Source) LoadInitial(ctx context.Context, position, count int) (paging.InitialPage[[]byte, Record], error) {
	var initial paging.InitialPage[[]byte, Record]
	if err := ctx.Err(); err != nil {
		return initial, errors.Wrap(err, "load initial")
	}
	start := max(min(position-count/2, s.count-count), 0)
	page, err := s.page(start, start+count)
	if err != nil {
		return initial, err
	}
	initial.Page = page
	initial.LeadingNulls = start
	initial.TrailingNulls = s.count - start - page.Len()
	return initial, nil
}

// LoadBefore returns up to count records with keys below key.
func (s *Source) LoadBefore(ctx context.Context, key []byte, count int) (*KVPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "load before")
	}
	end, _, err := s.search(key)
	if err != nil {
		return nil, err
	}
	return s.page(max(end-count, 0), end)
}

// LoadAfter returns up to count records with keys above key.
func (s *Source) LoadAfter(ctx context.Context, key []byte, count int) (*KVPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "load after")
	}
	start, found, err := s.search(key)
	if err != nil {
		return nil, err
	}
	if found {
		start++
	}
	return s.page(start, start+count)
}

// search returns the position of the first record whose key is not below
// key, and whether that record has exactly this key.
func (s *Source) search(key []byte) (int, bool, error) {
	b := sort.Search(len(s.firstKeys), func(i int) bool {
		return s.compare(s.firstKeys[i], key) > 0
	}) - 1
	if b < 0 {
		return 0, false, nil
	}
	records, err := s.block(b)
	if err != nil {
		return 0, false, err
	}
	i := sort.Search(len(records), func(i int) bool {
		return s.compare(records[i].Key, key) >= 0
	})
	found := i < len(records) && s.compare(records[i].Key, key) == 0
	return b*s.blockSize + i, found, nil
}

// page builds the page for positions [start, end), clamped to the source.
// PreviousKey and NextKey are only set when records exist in that
// direction.
func (s *Source) page(start, end int) (*KVPage, error) {
	start = max(start, 0)
	end = min(end, s.count)
	if start >= end {
		return paging.NewPage[[]byte, Record](nil, nil, nil), nil
	}

	items := make([]Record, 0, end-start)
	for b := start / s.blockSize; b*s.blockSize < end; b++ {
		records, err := s.block(b)
		if err != nil {
			return nil, err
		}
		base := b * s.blockSize
		lo := max(start-base, 0)
		hi := min(end-base, len(records))
		items = append(items, records[lo:hi]...)
	}

	var prev, next *[]byte
	if start > 0 {
		prev = &items[0].Key
	}
	if end < s.count {
		next = &items[len(items)-1].Key
	}
	s.log.WithFields(log.Fields{"start": start, "end": end}).Debug("page loaded")
	return paging.NewPage(items, prev, next), nil
}

// block decodes every record of block b.
func (s *Source) block(b int) ([]Record, error) {
	reader := bytes.NewReader(s.blocks[b])
	records := make([]Record, 0, s.blockSize)
	var prevKey []byte
	for reader.Len() > 0 {
		r, err := readRecord(reader, prevKey, s.codec.DeCompress)
		if err != nil {
			return nil, errors.Wrapf(err, "decode block %d record %d", b, len(records))
		}
		records = append(records, r)
		prevKey = r.Key
	}
	return records, nil
}
