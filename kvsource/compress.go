package kvsource

import (
	"bytes"
	"strings"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

type CompressAlgorithm uint16

const (
	CompSnappy CompressAlgorithm = iota // default
	CompNone
	CompLz4
)

var ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

func (a CompressAlgorithm) String() string {
	switch a {
	case CompSnappy:
		return "snappy"
	case CompNone:
		return "none"
	case CompLz4:
		return "lz4"
	}
	return "unknown"
}

// UnmarshalText lets the algorithm be read from configuration by name.
func (a *CompressAlgorithm) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "snappy", "":
		*a = CompSnappy
	case "none":
		*a = CompNone
	case "lz4":
		*a = CompLz4
	default:
		return errors.Wrapf(ErrUnknownAlgorithm, "%q", text)
	}
	return nil
}

type Compressor func([]byte) ([]byte, error)
type DeCompressor func([]byte) ([]byte, error)

// Codec pairs the two directions of an algorithm. Nil functions mean the
// data is stored as is.
type Codec struct {
	Algorithm  CompressAlgorithm
	Compress   Compressor
	DeCompress DeCompressor
}

func CodecFor(a CompressAlgorithm) (Codec, error) {
	switch a {
	case CompSnappy:
		return Codec{a, SnappyCompress, SnappyDeCompress}, nil
	case CompNone:
		return Codec{Algorithm: a}, nil
	case CompLz4:
		return Codec{a, Lz4Compress, Lz4DeCompress}, nil
	}
	return Codec{}, errors.Wrapf(ErrUnknownAlgorithm, "%d", a)
}

var (
	SnappyCompress Compressor = func(in []byte) ([]byte, error) {
		return snappy.Encode(nil, in), nil
	}
	SnappyDeCompress DeCompressor = func(in []byte) ([]byte, error) {
		out, err := snappy.Decode(nil, in)
		return out, errors.Wrap(err, "snappy decode")
	}
)

var (
	Lz4Compress Compressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		writer := lz4.NewWriter(buf)
		writer.NoChecksum = true
		if _, err := writer.Write(in); err != nil {
			return nil, errors.Wrap(err, "lz4 write")
		}
		if err := writer.Close(); err != nil {
			return nil, errors.Wrap(err, "lz4 close")
		}
		return buf.Bytes(), nil
	}

	Lz4DeCompress DeCompressor = func(in []byte) ([]byte, error) {
		buf := &bytes.Buffer{}
		reader := lz4.NewReader(bytes.NewReader(in))
		if _, err := buf.ReadFrom(reader); err != nil {
			return nil, errors.Wrap(err, "lz4 read")
		}
		return buf.Bytes(), nil
	}
)
