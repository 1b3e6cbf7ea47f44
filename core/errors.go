package core

import "errors"

// Sentinel errors for archiving operations. Call-level results wrap these
// with context; callers match with errors.Is.
var (
	// ErrInvalidArgument is returned for nil or empty required inputs.
	ErrInvalidArgument = errors.New("sevenpar: invalid argument")

	// ErrResourceExhausted names the resource-exhaustion kind of the
	// error taxonomy. No code path returns it: starting worker goroutines
	// cannot fail, and a volume file that cannot be created surfaces as
	// ErrSinkFailure.
	ErrResourceExhausted = errors.New("sevenpar: resource exhausted")

	// ErrInputTooLarge is returned when a solid block's concatenated
	// input exceeds the 4 GiB buffering cap.
	ErrInputTooLarge = errors.New("sevenpar: solid input exceeds 4 GiB")

	// ErrCodecFailure is returned when an encoder reports failure on a
	// job; the codec's own error is attached as context.
	ErrCodecFailure = errors.New("sevenpar: codec failure")

	// ErrCancelled is returned when the callback requested cancellation
	// before or between jobs.
	ErrCancelled = errors.New("sevenpar: cancelled")

	// ErrSinkFailure is returned when a write to the output sink (or a
	// volume file) fails. Sink failures are fatal to the call.
	ErrSinkFailure = errors.New("sevenpar: sink write failed")

	// ErrPartialSuccess is returned when the archive was written but at
	// least one job failed; the archive is valid and lists only the
	// succeeded files.
	ErrPartialSuccess = errors.New("sevenpar: partial success")

	// ErrCompressionFailed is returned when every job failed; no archive
	// is written.
	ErrCompressionFailed = errors.New("sevenpar: all compression jobs failed")

	// ErrQueueFull is returned when the stream queue is at capacity.
	ErrQueueFull = errors.New("sevenpar: stream queue full")

	// ErrQueueProcessing is returned when the stream queue refuses a
	// mutation while a run is in progress.
	ErrQueueProcessing = errors.New("sevenpar: stream queue busy")
)
