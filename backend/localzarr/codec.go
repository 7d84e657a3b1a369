/*
Copyright © 2026 the zdataset authors.
This file is part of zdataset.

zdataset is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

zdataset is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with zdataset.  If not, see <http://www.gnu.org/licenses/>.
*/

package localzarr

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/scigrid/zdataset/zlog"
)

// Codec compresses/decompresses one chunk's raw bytes. zdataset's
// compressor configuration (spec §4.1) only ever names "blosc" with an
// algorithm sub-field; this module doesn't link cgo blosc, so each
// blosc algorithm is mapped to the nearest pure-Go codec available in
// the retrieved corpus (klauspost/compress/zstd, pierrec/lz4/v4).
type Codec interface {
	Encode(raw []byte) ([]byte, error)
	Decode(compressed []byte) ([]byte, error)
}

// CompressorConfig is the decoded spec §4.1 `metadata.compressor` object.
type CompressorConfig struct {
	ID        string
	Algorithm string
	Level     int
	Shuffle   int
	BlockSize int
}

// DefaultCompressor is the spec §4.1 default: lz4, level 5, shuffle 1.
func DefaultCompressor() CompressorConfig {
	return CompressorConfig{ID: "blosc", Algorithm: "lz4", Level: 5, Shuffle: 1, BlockSize: 0}
}

// NewCodec maps a CompressorConfig onto a concrete Codec. blosclz and
// lz4hc have no equivalent pure-Go codec in the corpus, so they downgrade
// to lz4 with a logged notice; zlib downgrades to zstd (closer
// compression ratio/speed tradeoff than lz4). zstd and lz4 pass through
// unchanged.
func NewCodec(cfg CompressorConfig) (Codec, error) {
	switch cfg.Algorithm {
	case "zstd":
		return zstdCodec{level: zstdLevel(cfg.Level)}, nil
	case "lz4":
		return lz4Codec{}, nil
	case "lz4hc":
		zlog.WithField("algorithm", cfg.Algorithm).Warn("localzarr: lz4hc has no pure-Go equivalent in this build; using lz4")
		return lz4Codec{}, nil
	case "blosclz":
		zlog.WithField("algorithm", cfg.Algorithm).Warn("localzarr: blosclz has no pure-Go equivalent in this build; using lz4")
		return lz4Codec{}, nil
	case "zlib":
		zlog.WithField("algorithm", cfg.Algorithm).Warn("localzarr: zlib downgraded to zstd in this build")
		return zstdCodec{level: zstdLevel(cfg.Level)}, nil
	default:
		return nil, unsupportedCompressorError{cfg.Algorithm}
	}
}

type unsupportedCompressorError struct{ algorithm string }

func (e unsupportedCompressorError) Error() string {
	return "localzarr: unsupported compressor algorithm " + e.algorithm
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 1:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 8:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

type zstdCodec struct{ level zstd.EncoderLevel }

func (c zstdCodec) Encode(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func (c zstdCodec) Decode(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}

type lz4Codec struct{}

func (lz4Codec) Encode(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decode(compressed []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(compressed))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
