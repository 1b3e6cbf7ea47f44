package core

import (
	"bytes"
	"io"
	"time"
)

// InputItem is one caller-supplied stream to archive.
type InputItem struct {
	// Reader is the pull-based byte source. Required.
	Reader io.Reader

	// Name is a path-like identifier stored in the archive; may be empty.
	Name string

	// Size is the declared input size in bytes; 0 means unknown. It is a
	// hint only; the actual byte count is whatever Reader yields.
	Size uint64

	// Attributes is a Windows-style attribute bit-field; recorded in the
	// header when non-zero.
	Attributes uint32

	// ModTime is the modification timestamp; recorded when non-zero.
	ModTime time.Time

	// UserData is an opaque pass-through cookie.
	UserData any
}

// job promotes a block of input items to a unit of parallel work. Parallel
// layout uses one item per job; solid layout groups a whole block.
//
// Output slots are written by exactly one worker between job start and the
// completion notification, then become read-only for the assembler.
type job struct {
	index     int
	firstItem int
	items     []InputItem

	payload  bytes.Buffer
	packSize uint64
	read     uint64
	segSizes []uint64
	segCRCs  []uint32
	chain    chainResult

	err       error
	completed bool
}

// succeeded reports whether the job produced archive content.
func (j *job) succeeded() bool {
	return j.completed && j.err == nil
}

// hasStream reports whether the job contributes a folder (at least one
// non-empty substream).
func (j *job) hasStream() bool {
	return j.succeeded() && j.read > 0
}
