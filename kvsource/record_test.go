package kvsource

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	assertion "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonPrefix(t *testing.T) {
	assert := assertion.New(t)
	assert.Equal(commonPrefix(nil, nil), uint8(0))
	assert.Equal(commonPrefix([]byte("abcde"), nil), uint8(0))
	assert.Equal(commonPrefix(nil, []byte("abcde")), uint8(0))
	assert.Equal(commonPrefix([]byte("abcde"), []byte("abcdefg")), uint8(5))
	assert.Equal(commonPrefix([]byte("abcdefg"), []byte("abcde")), uint8(5))
	long := bytes.Repeat([]byte("k"), 400)
	assert.Equal(commonPrefix(long, long), uint8(maxPrefixLen))
}

func TestRecordSerde(t *testing.T) {
	records := []Record{
		{Key: []byte("keykeykey"), Value: bytes.Repeat([]byte("value"), 20)},
		{Key: []byte("keykeykeykeykey"), Value: []byte("v")},
		{Key: []byte("other"), Value: nil},
	}
	for _, alg := range []CompressAlgorithm{CompSnappy, CompLz4, CompNone} {
		t.Run(alg.String(), func(t *testing.T) {
			assert := assertion.New(t)
			codec, err := CodecFor(alg)
			require.NoError(t, err)

			var (
				buf  []byte
				prev []byte
			)
			for _, r := range records {
				buf, err = appendRecord(buf, r, prev, codec.Compress)
				require.NoError(t, err)
				prev = r.Key
			}

			reader := bytes.NewReader(buf)
			prev = nil
			for _, want := range records {
				got, err := readRecord(reader, prev, codec.DeCompress)
				require.NoError(t, err)
				assert.Equal(want.Key, got.Key)
				assert.Equal(len(want.Value), len(got.Value))
				assert.True(bytes.Equal(want.Value, got.Value))
				prev = got.Key
			}
			assert.Equal(0, reader.Len())
		})
	}
}

func TestRecordPrefixDoesNotAliasPreviousKey(t *testing.T) {
	assert := assertion.New(t)
	prev := make([]byte, 3, 16)
	copy(prev, "key")
	buf, err := appendRecord(nil, Record{Key: []byte("keyA")}, prev, nil)
	require.NoError(t, err)

	got, err := readRecord(bytes.NewReader(buf), prev, nil)
	require.NoError(t, err)
	assert.Equal([]byte("keyA"), got.Key)
	got.Key[0] = 'X'
	assert.Equal([]byte("key"), prev)
}

func TestRecordDecodeErrors(t *testing.T) {
	assert := assertion.New(t)
	buf, err := appendRecord(nil, Record{Key: []byte("k"), Value: bytes.Repeat([]byte("a"), 100)}, nil, SnappyCompress)
	require.NoError(t, err)

	_, err = readRecord(bytes.NewReader(buf), nil, nil)
	assert.Error(err, "compressed record needs a decompressor")

	_, err = readRecord(bytes.NewReader(buf[:len(buf)-2]), nil, SnappyDeCompress)
	assert.Error(err)

	_, err = readRecord(bytes.NewReader([]byte{1}), nil, nil)
	assert.Error(err)
}

func TestCompressAlgorithmText(t *testing.T) {
	assert := assertion.New(t)
	var a CompressAlgorithm
	assert.NoError(a.UnmarshalText([]byte("LZ4")))
	assert.Equal(CompLz4, a)
	assert.NoError(a.UnmarshalText([]byte("none")))
	assert.Equal(CompNone, a)

	err := a.UnmarshalText([]byte("zstd"))
	assert.True(errors.Is(err, ErrUnknownAlgorithm))
	_, err = CodecFor(CompressAlgorithm(42))
	assert.True(errors.Is(err, ErrUnknownAlgorithm))
}
