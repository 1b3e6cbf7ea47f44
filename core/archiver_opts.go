package core

import (
	"log/slog"
	"time"

	"github.com/crately/sevenpar/internal/codec"
	"github.com/crately/sevenpar/internal/sevenz"
)

// Option configures an Archiver at construction.
type Option func(*Archiver)

// WithThreads sets the worker count, clamped to [1, 256].
func WithThreads(n int) Option {
	return func(a *Archiver) {
		a.SetNumThreads(n)
	}
}

// WithLevel sets the compression level, clamped to [0, 9].
func WithLevel(level int) Option {
	return func(a *Archiver) {
		a.SetLevel(level)
	}
}

// WithMethod sets the compression method id.
func WithMethod(id sevenz.MethodID) Option {
	return func(a *Archiver) {
		a.SetMethod(id)
	}
}

// WithPassword enables password-based encryption.
func WithPassword(password string) Option {
	return func(a *Archiver) {
		a.SetPassword(password)
	}
}

// WithSolid enables solid layout with the given block size; 0 puts every
// file in one folder.
func WithSolid(blockSize int) Option {
	return func(a *Archiver) {
		a.SetSolid(true)
		a.SetSolidBlockSize(blockSize)
	}
}

// WithVolumes enables volume splitting: numbered files under prefix, each
// at most size bytes.
func WithVolumes(prefix string, size uint64) Option {
	return func(a *Archiver) {
		a.SetVolumePrefix(prefix)
		a.SetVolumeSize(size)
	}
}

// WithCallback registers the progress/cancel collaborator.
func WithCallback(cb Callback) Option {
	return func(a *Archiver) {
		a.SetCallback(cb)
	}
}

// WithProgressInterval throttles intermediate progress callbacks.
func WithProgressInterval(d time.Duration) Option {
	return func(a *Archiver) {
		a.SetProgressUpdateInterval(d)
	}
}

// WithCodecFactory replaces the built-in codec factory.
func WithCodecFactory(f codec.Factory) Option {
	return func(a *Archiver) {
		if f != nil {
			a.factory = f
		}
	}
}

// WithLogger attaches a logger; nil keeps logging disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}
