package kvsource

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type RecordFlag uint8

// minRecordSize = flag + kLen + vLen, key and value may be empty
const minRecordSize = 3

// keys share at most this many leading bytes with their predecessor
const maxPrefixLen = 255

const (
	RecordKeyPrefixed RecordFlag = 1 << iota
	RecordKeyCompressed
	RecordValueCompressed
)

type Record struct {
	Key   []byte
	Value []byte
}

// appendRecord encodes r after dst. The key is stored as the bytes that
// follow the prefix it shares with prevKey.
func appendRecord(dst []byte, r Record, prevKey []byte, compress Compressor) ([]byte, error) {
	var flag RecordFlag
	prefixLen := commonPrefix(prevKey, r.Key)
	if prefixLen > 0 {
		flag |= RecordKeyPrefixed
	}
	key := r.Key[prefixLen:]
	value := r.Value
	if compress != nil {
		keyC, err := compress(key)
		if err != nil {
			return nil, errors.Wrap(err, "compress key")
		}
		if len(keyC) < len(key) {
			key = keyC
			flag |= RecordKeyCompressed
		}
		valueC, err := compress(value)
		if err != nil {
			return nil, errors.Wrap(err, "compress value")
		}
		if len(valueC) < len(value) {
			value = valueC
			flag |= RecordValueCompressed
		}
	}

	dst = append(dst, byte(flag))
	if flag&RecordKeyPrefixed != 0 {
		dst = append(dst, prefixLen)
	}
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = append(dst, key...)
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	dst = append(dst, value...)
	return dst, nil
}

// readRecord decodes the record at the reader's position.
func readRecord(reader *bytes.Reader, prevKey []byte, decompress DeCompressor) (Record, error) {
	if reader.Len() < minRecordSize {
		return Record{}, errors.Errorf("record data shorter than %d bytes", minRecordSize)
	}
	b, _ := reader.ReadByte()
	flag := RecordFlag(b)

	var prefix []byte
	if flag&RecordKeyPrefixed != 0 {
		n, err := reader.ReadByte()
		if err != nil {
			return Record{}, errors.Wrap(err, "failed to read prefix length")
		}
		if len(prevKey) < int(n) {
			return Record{}, errors.New("wrong prefixed key len")
		}
		prefix = prevKey[:n]
	}
	if decompress == nil && flag&(RecordKeyCompressed|RecordValueCompressed) != 0 {
		return Record{}, errors.New("record is compressed but decompressor is nil")
	}

	key, err := readChunk(reader)
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to read key")
	}
	value, err := readChunk(reader)
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to read value")
	}

	if flag&RecordKeyCompressed != 0 {
		if key, err = decompress(key); err != nil {
			return Record{}, errors.Wrap(err, "failed to decompress key")
		}
	}
	if flag&RecordValueCompressed != 0 {
		if value, err = decompress(value); err != nil {
			return Record{}, errors.Wrap(err, "failed to decompress value")
		}
	}

	full := make([]byte, 0, len(prefix)+len(key))
	full = append(full, prefix...)
	return Record{Key: append(full, key...), Value: value}, nil
}

func readChunk(reader *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, errors.Wrap(err, "length")
	}
	if n > uint64(reader.Len()) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "need %d bytes, have %d", n, reader.Len())
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func commonPrefix(a, b []byte) (length uint8) {
	if a == nil || b == nil {
		return
	}
	for i, v := range b {
		if i >= len(a) || v != a[i] {
			return
		}
		length++
		if length >= maxPrefixLen {
			return
		}
	}
	return
}
