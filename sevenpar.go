package sevenpar

import (
	"github.com/crately/sevenpar/core"
	"github.com/crately/sevenpar/internal/sevenz"
)

// --- Re-exports from core ---

// Archiver compresses sets of independent input streams concurrently and
// assembles the results into a 7z container.
type Archiver = core.Archiver

// InputItem is one caller-supplied stream to archive.
type InputItem = core.InputItem

// Statistics is a consistent snapshot of a compress call's counters.
type Statistics = core.Statistics

// Callback is the progress and cancellation collaborator for a compress
// call. Implementations must be safe for concurrent calls.
type Callback = core.Callback

// CallbackFuncs adapts optional functions to the Callback interface.
type CallbackFuncs = core.CallbackFuncs

// StreamQueue collects input streams ahead of a single archiving run.
type StreamQueue = core.StreamQueue

// Option configures an Archiver at construction.
type Option = core.Option

// MethodID identifies a codec in the 7z method id space.
type MethodID = sevenz.MethodID

// NewArchiver returns an archiver with a single worker, level 5, and the
// LZMA method.
var NewArchiver = core.NewArchiver

// NewStreamQueue wraps an archiver with queueing.
var NewStreamQueue = core.NewStreamQueue

// Construction options re-exported from core.
var (
	WithThreads          = core.WithThreads
	WithLevel            = core.WithLevel
	WithMethod           = core.WithMethod
	WithPassword         = core.WithPassword
	WithSolid            = core.WithSolid
	WithVolumes          = core.WithVolumes
	WithCallback         = core.WithCallback
	WithProgressInterval = core.WithProgressInterval
	WithCodecFactory     = core.WithCodecFactory
	WithLogger           = core.WithLogger
)

// Compression method ids understood by the built-in codec factory.
const (
	MethodCopy    = sevenz.MethodCopy
	MethodLZMA    = sevenz.MethodLZMA
	MethodLZMA2   = sevenz.MethodLZMA2
	MethodDeflate = sevenz.MethodDeflate
	MethodZstd    = sevenz.MethodZstd
	MethodLZ4     = sevenz.MethodLZ4
)

// Clamp bounds re-exported from core.
const (
	MinThreads = core.MinThreads
	MaxThreads = core.MaxThreads
	MaxLevel   = core.MaxLevel
)

// Sentinel errors re-exported from core.
var (
	// ErrInvalidArgument is returned for nil or empty required inputs.
	ErrInvalidArgument = core.ErrInvalidArgument

	// ErrResourceExhausted names the resource-exhaustion kind of the
	// error taxonomy; no code path returns it.
	ErrResourceExhausted = core.ErrResourceExhausted

	// ErrInputTooLarge is returned when a solid block exceeds the 4 GiB
	// buffering cap.
	ErrInputTooLarge = core.ErrInputTooLarge

	// ErrCodecFailure is returned when an encoder reports failure.
	ErrCodecFailure = core.ErrCodecFailure

	// ErrCancelled is returned when the callback cancelled the run.
	ErrCancelled = core.ErrCancelled

	// ErrSinkFailure is returned when a write to the output sink failed.
	ErrSinkFailure = core.ErrSinkFailure

	// ErrPartialSuccess is returned when the archive was written but at
	// least one job failed.
	ErrPartialSuccess = core.ErrPartialSuccess

	// ErrCompressionFailed is returned when every job failed.
	ErrCompressionFailed = core.ErrCompressionFailed

	// ErrQueueFull is returned when the stream queue is at capacity.
	ErrQueueFull = core.ErrQueueFull

	// ErrQueueProcessing is returned when the stream queue refuses a
	// mutation while a run is in progress.
	ErrQueueProcessing = core.ErrQueueProcessing
)
