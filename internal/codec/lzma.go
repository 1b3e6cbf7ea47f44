package codec

import (
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaContainerHeaderLen is the length of the header the lzma writer
// prefixes to its stream: one properties byte, a 4-byte dictionary size,
// and an 8-byte uncompressed size.
const lzmaContainerHeaderLen = 13

// dictCaps maps compression levels 0-9 to dictionary capacities.
var dictCaps = [...]int{
	1 << 16, 1 << 18, 1 << 20, 1 << 21, 1 << 22,
	1 << 24, 1 << 25, 1 << 25, 1 << 26, 1 << 26,
}

type lzmaEncoder struct {
	cfg   lzma.WriterConfig
	props []byte
}

func newLZMAEncoder(level int) (*lzmaEncoder, error) {
	dictCap := dictCaps[level]
	p := lzma.Properties{LC: 3, LP: 0, PB: 2}
	cfg := lzma.WriterConfig{
		DictCap:    dictCap,
		Properties: &p,
	}
	props := []byte{
		byte((p.PB*5+p.LP)*9 + p.LC),
		byte(dictCap), byte(dictCap >> 8), byte(dictCap >> 16), byte(dictCap >> 24),
	}
	return &lzmaEncoder{cfg: cfg, props: props}, nil
}

// Properties returns the 5-byte blob: packed lc/lp/pb plus the dictionary
// size, the same values the stripped stream header would carry.
func (e *lzmaEncoder) Properties() []byte { return e.props }

func (e *lzmaEncoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	// The archive records stream parameters in the coder-properties blob,
	// so the writer's own container header is dropped.
	w, err := e.cfg.NewWriter(&skipWriter{w: dst, skip: lzmaContainerHeaderLen})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

type lzma2Encoder struct {
	cfg   lzma.Writer2Config
	props []byte
}

func newLZMA2Encoder(level int) (*lzma2Encoder, error) {
	dictCap := dictCaps[level]
	cfg := lzma.Writer2Config{DictCap: dictCap}
	return &lzma2Encoder{cfg: cfg, props: []byte{dictSizeCode(dictCap)}}, nil
}

func (e *lzma2Encoder) Properties() []byte { return e.props }

func (e *lzma2Encoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	w, err := e.cfg.NewWriter2(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		return err
	}
	return w.Close()
}

// dictSizeCode returns the smallest dictionary-size code whose decoded
// capacity, (2|(code&1)) << (code/2+11), covers dictCap.
func dictSizeCode(dictCap int) byte {
	for code := byte(0); code < 40; code++ {
		size := uint64(2|uint64(code&1)) << (code/2 + 11)
		if size >= uint64(dictCap) {
			return code
		}
	}
	return 40
}

// skipWriter discards the first skip bytes and forwards the rest.
type skipWriter struct {
	w    io.Writer
	skip int
}

func (s *skipWriter) Write(p []byte) (int, error) {
	n := len(p)
	if s.skip > 0 {
		if len(p) <= s.skip {
			s.skip -= len(p)
			return n, nil
		}
		p = p[s.skip:]
		s.skip = 0
	}
	if _, err := s.w.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}
