package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

type deflateEncoder struct {
	level int
}

func newDeflateEncoder(level int) (*deflateEncoder, error) {
	if level < 1 {
		level = 1
	}
	return &deflateEncoder{level: level}, nil
}

func (deflateEncoder) Properties() []byte { return nil }

func (e *deflateEncoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	w, err := flate.NewWriter(dst, e.level)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

type zstdEncoder struct {
	level zstd.EncoderLevel
}

func newZstdEncoder(level int) (*zstdEncoder, error) {
	return &zstdEncoder{level: zstdLevel(level)}, nil
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 2:
		return zstd.SpeedFastest
	case level <= 5:
		return zstd.SpeedDefault
	case level <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (zstdEncoder) Properties() []byte { return nil }

func (e *zstdEncoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	w, err := zstd.NewWriter(dst,
		zstd.WithEncoderLevel(e.level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithLowerEncoderMem(true))
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type lz4Encoder struct {
	level lz4.CompressionLevel
}

func newLZ4Encoder(level int) (*lz4Encoder, error) {
	return &lz4Encoder{level: lz4Level(level)}, nil
}

func lz4Level(level int) lz4.CompressionLevel {
	switch level {
	case 0, 1, 2:
		return lz4.Fast
	case 3:
		return lz4.Level1
	case 4:
		return lz4.Level2
	case 5:
		return lz4.Level4
	case 6:
		return lz4.Level5
	case 7:
		return lz4.Level6
	case 8:
		return lz4.Level8
	default:
		return lz4.Level9
	}
}

func (lz4Encoder) Properties() []byte { return nil }

func (e *lz4Encoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(e.level), lz4.ConcurrencyOption(1)); err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}
