// Package codec binds compression and encryption codecs behind the
// factory interface the compression pipeline consumes.
//
// Each encoder compresses exactly one input stream to one output stream
// and, where the 7z format requires it, exposes the coder-properties blob
// a matching decoder needs. Encoders hold private working state and are
// never shared between goroutines; the factory yields a fresh instance per
// job.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/crately/sevenpar/internal/sevenz"
)

// ErrUnknownMethod is returned by the built-in factory for method ids it
// has no encoder for.
var ErrUnknownMethod = errors.New("codec: unknown method id")

// Encoder compresses one byte stream.
type Encoder interface {
	// Code reads src to EOF and writes the compressed form to dst.
	// sizeHint is the expected input size, or 0 when unknown; encoders may
	// use it to size internal buffers but must tolerate mismatches.
	Code(dst io.Writer, src io.Reader, sizeHint uint64) error

	// Properties returns the coder-properties blob a decoder requires, or
	// nil when the method needs none. Valid after configuration,
	// independent of Code.
	Properties() []byte
}

// Factory yields fresh encoder instances. Implementations must be safe
// for concurrent use; the returned encoders need not be.
type Factory interface {
	NewEncoder(method sevenz.MethodID, level int) (Encoder, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(method sevenz.MethodID, level int) (Encoder, error)

// NewEncoder implements Factory.
func (f FactoryFunc) NewEncoder(method sevenz.MethodID, level int) (Encoder, error) {
	return f(method, level)
}

// Default is the built-in factory covering the methods in
// internal/sevenz's id table.
var Default Factory = FactoryFunc(newEncoder)

func newEncoder(method sevenz.MethodID, level int) (Encoder, error) {
	if level < 0 {
		level = 0
	} else if level > 9 {
		level = 9
	}
	switch method {
	case sevenz.MethodCopy:
		return copyEncoder{}, nil
	case sevenz.MethodLZMA:
		return newLZMAEncoder(level)
	case sevenz.MethodLZMA2:
		return newLZMA2Encoder(level)
	case sevenz.MethodDeflate:
		return newDeflateEncoder(level)
	case sevenz.MethodZstd:
		return newZstdEncoder(level)
	case sevenz.MethodLZ4:
		return newLZ4Encoder(level)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}

// copyEncoder stores the input unmodified.
type copyEncoder struct{}

func (copyEncoder) Code(dst io.Writer, src io.Reader, _ uint64) error {
	_, err := io.Copy(dst, src)
	return err
}

func (copyEncoder) Properties() []byte { return nil }
