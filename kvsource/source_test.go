package kvsource

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(i int) []byte {
	return []byte(fmt.Sprintf("key-%04d", i))
}

// testRecords returns n records in descending key order.
func testRecords(n int) []Record {
	records := make([]Record, 0, n)
	for i := n - 1; i >= 0; i-- {
		records = append(records, Record{
			Key:   key(i),
			Value: bytes.Repeat([]byte(fmt.Sprintf("value-%04d;", i)), 8),
		})
	}
	return records
}

func testSource(t *testing.T, n int, alg CompressAlgorithm) *Source {
	t.Helper()
	s, err := New(testRecords(n), &Options{BlockSize: 7, Compression: alg})
	require.NoError(t, err)
	return s
}

func keys(page *KVPage) []string {
	out := make([]string, 0, page.Len())
	for _, r := range page.Items {
		out = append(out, string(r.Key))
	}
	return out
}

func keyRange(from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, string(key(i)))
	}
	return out
}

func TestLoadRange(t *testing.T) {
	ctx := context.Background()
	for _, alg := range []CompressAlgorithm{CompSnappy, CompLz4, CompNone} {
		t.Run(alg.String(), func(t *testing.T) {
			assert := assertion.New(t)
			s := testSource(t, 100, alg)

			count, err := s.Count(ctx)
			assert.NoError(err)
			assert.Equal(100, count)

			page, err := s.LoadRange(ctx, 10, 5)
			require.NoError(t, err)
			assert.Equal(keyRange(10, 15), keys(page))
			assert.Equal(key(10), *page.PreviousKey)
			assert.Equal(key(14), *page.NextKey)
			assert.Equal(bytes.Repeat([]byte("value-0012;"), 8), page.Items[2].Value)

			page, err = s.LoadRange(ctx, 0, 3)
			require.NoError(t, err)
			assert.Nil(page.PreviousKey)
			assert.Equal(keyRange(0, 3), keys(page))

			page, err = s.LoadRange(ctx, 95, 10)
			require.NoError(t, err)
			assert.Equal(keyRange(95, 100), keys(page))
			assert.Nil(page.NextKey)

			page, err = s.LoadRange(ctx, 100, 5)
			require.NoError(t, err)
			assert.Equal(0, page.Len())

			_, err = s.LoadRange(ctx, 101, 5)
			assert.True(errors.Is(err, ErrOutOfRange))
		})
	}
}

func TestLoadBeforeAfter(t *testing.T) {
	assert := assertion.New(t)
	ctx := context.Background()
	s := testSource(t, 100, CompSnappy)

	page, err := s.LoadAfter(ctx, key(20), 5)
	require.NoError(t, err)
	assert.Equal(keyRange(21, 26), keys(page))

	page, err = s.LoadBefore(ctx, key(20), 5)
	require.NoError(t, err)
	assert.Equal(keyRange(15, 20), keys(page))

	page, err = s.LoadBefore(ctx, key(2), 5)
	require.NoError(t, err)
	assert.Equal(keyRange(0, 2), keys(page))
	assert.Nil(page.PreviousKey)
	assert.NotNil(page.NextKey)

	// keys between records
	page, err = s.LoadAfter(ctx, []byte("key-0020a"), 2)
	require.NoError(t, err)
	assert.Equal(keyRange(21, 23), keys(page))
	page, err = s.LoadBefore(ctx, []byte("key-0020a"), 2)
	require.NoError(t, err)
	assert.Equal(keyRange(19, 21), keys(page))

	page, err = s.LoadAfter(ctx, key(99), 5)
	require.NoError(t, err)
	assert.Equal(0, page.Len())
	page, err = s.LoadAfter(ctx, []byte("zzz"), 5)
	require.NoError(t, err)
	assert.Equal(0, page.Len())
	page, err = s.LoadBefore(ctx, []byte("a"), 5)
	require.NoError(t, err)
	assert.Equal(0, page.Len())
}

func TestLoadInitial(t *testing.T) {
	assert := assertion.New(t)
	ctx := context.Background()
	s := testSource(t, 100, CompLz4)

	initial, err := s.LoadInitial(ctx, 50, 10)
	require.NoError(t, err)
	assert.Equal(keyRange(45, 55), keys(initial.Page))
	assert.Equal(45, initial.LeadingNulls)
	assert.Equal(45, initial.TrailingNulls)

	initial, err = s.LoadInitial(ctx, 98, 10)
	require.NoError(t, err)
	assert.Equal(90, initial.LeadingNulls)
	assert.Equal(0, initial.TrailingNulls)

	initial, err = s.LoadInitial(ctx, 0, 500)
	require.NoError(t, err)
	assert.Equal(100, initial.Page.Len())
	assert.Equal(0, initial.LeadingNulls)
	assert.Equal(0, initial.TrailingNulls)
}

func TestNewSource(t *testing.T) {
	assert := assertion.New(t)
	records := append(testRecords(10), Record{Key: key(3), Value: []byte("again")})
	_, err := New(records, nil)
	assert.True(errors.Is(err, ErrDuplicateKey))

	_, err = New(testRecords(3), &Options{Compression: CompressAlgorithm(9)})
	assert.True(errors.Is(err, ErrUnknownAlgorithm))

	empty, err := New(nil, nil)
	require.NoError(t, err)
	page, err := empty.LoadRange(context.Background(), 0, 10)
	assert.NoError(err)
	assert.Equal(0, page.Len())

	plain := testSource(t, 50, CompNone)
	compressed := testSource(t, 50, CompSnappy)
	assert.Less(compressed.EncodedSize(), plain.EncodedSize())
}

func TestReverseOrder(t *testing.T) {
	assert := assertion.New(t)
	ctx := context.Background()
	s, err := New(testRecords(20), &Options{
		BlockSize:   4,
		Compression: CompLz4,
		Comparator:  Reverse(BytesComparator),
	})
	require.NoError(t, err)

	page, err := s.LoadRange(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal([]string{"key-0019", "key-0018", "key-0017"}, keys(page))
	assert.Nil(page.PreviousKey)
	require.NotNil(t, page.NextKey)
	assert.Equal("key-0017", string(*page.NextKey))

	// before and after follow the source order, not the byte order
	after, err := s.LoadAfter(ctx, key(10), 3)
	require.NoError(t, err)
	assert.Equal([]string{"key-0009", "key-0008", "key-0007"}, keys(after))
	before, err := s.LoadBefore(ctx, key(10), 2)
	require.NoError(t, err)
	assert.Equal([]string{"key-0012", "key-0011"}, keys(before))

	last, err := s.LoadAfter(ctx, key(2), 5)
	require.NoError(t, err)
	assert.Equal([]string{"key-0001", "key-0000"}, keys(last))
	assert.Nil(last.NextKey)

	assert.Equal(1, BytesComparator(key(2), key(1)))
	assert.Equal(-1, Reverse(BytesComparator)(key(2), key(1)))
	assert.Equal(0, Reverse(BytesComparator)(key(2), key(2)))
}

func TestCanceledContext(t *testing.T) {
	assert := assertion.New(t)
	s := testSource(t, 10, CompSnappy)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadRange(ctx, 0, 5)
	assert.True(errors.Is(err, context.Canceled))
	_, err = s.LoadAfter(ctx, key(1), 5)
	assert.True(errors.Is(err, context.Canceled))
	_, err = s.LoadInitial(ctx, 0, 5)
	assert.True(errors.Is(err, context.Canceled))
	_, err = s.Count(ctx)
	assert.True(errors.Is(err, context.Canceled))
}
