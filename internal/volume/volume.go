// Package volume presents a single write sink that transparently rolls to
// the next numbered output file as a byte budget is consumed.
//
// The splitter knows nothing about what it carries: volumes are plain
// partitions of the byte stream, and their boundaries need not coincide
// with any structure inside it.
package volume

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var errClosed = errors.New("volume: splitter is closed")

// OpenFunc creates the sink for one volume file.
type OpenFunc func(name string) (io.WriteCloser, error)

// Splitter is an io.WriteCloser producing <prefix>.001, <prefix>.002, …
// files of at most limit bytes each. Writes of arbitrary size are split
// exactly at the volume boundary.
type Splitter struct {
	prefix string
	limit  uint64
	open   OpenFunc

	cur     io.WriteCloser
	curSize uint64
	count   int
	closed  bool
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithOpenFunc replaces the file-creating callback, primarily for tests.
func WithOpenFunc(fn OpenFunc) Option {
	return func(s *Splitter) {
		s.open = fn
	}
}

// NewSplitter creates a splitter writing volumes of at most limit bytes
// under the given path prefix. limit must be non-zero.
func NewSplitter(prefix string, limit uint64, opts ...Option) *Splitter {
	s := &Splitter{
		prefix: prefix,
		limit:  limit,
		open: func(name string) (io.WriteCloser, error) {
			return os.Create(name)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the file name of the n-th volume (1-based), zero padded to
// three digits and growing naturally past 999.
func Name(prefix string, n int) string {
	return fmt.Sprintf("%s.%03d", prefix, n)
}

// Write implements io.Writer, rolling to a new volume whenever the
// current one reaches the byte budget.
func (s *Splitter) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errClosed
	}
	total := len(p)
	for len(p) > 0 {
		if s.cur == nil {
			s.count++
			w, err := s.open(Name(s.prefix, s.count))
			if err != nil {
				s.count--
				return total - len(p), err
			}
			s.cur = w
			s.curSize = 0
		}
		n := uint64(len(p))
		if room := s.limit - s.curSize; n > room {
			n = room
		}
		if _, err := s.cur.Write(p[:n]); err != nil {
			return total - len(p), err
		}
		s.curSize += n
		p = p[n:]
		if s.curSize == s.limit {
			if err := s.cur.Close(); err != nil {
				s.cur = nil
				return total - len(p), err
			}
			s.cur = nil
		}
	}
	return total, nil
}

// Close finalizes the volume set. The volume count is stable afterwards.
func (s *Splitter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cur != nil {
		err := s.cur.Close()
		s.cur = nil
		return err
	}
	return nil
}

// VolumeCount returns the number of volumes opened so far; after Close it
// is the final count.
func (s *Splitter) VolumeCount() int {
	return s.count
}
