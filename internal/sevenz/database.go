package sevenz

import (
	"fmt"
	"time"
)

// Coder is one codec entry in a folder's chain: its method id, stream
// counts, and the private properties blob a matching decoder needs.
type Coder struct {
	ID            MethodID
	NumInStreams  int
	NumOutStreams int
	Props         []byte
}

// BindPair connects one coder's output stream to another coder's input
// stream within a folder. Indices are folder-global stream indices.
type BindPair struct {
	InIndex  int
	OutIndex int
}

// Folder describes one contiguous compressed region: a coder chain, the
// unpack size of every coder output stream, and the substreams (files)
// the decoded output splits into.
type Folder struct {
	Coders    []Coder
	BindPairs []BindPair

	// UnpackSizes holds one entry per coder output stream, in coder order.
	UnpackSizes []uint64

	// SubSizes and SubCRCs describe the files packed into the folder's
	// decoded output, in order. Parallel layout folders carry exactly one
	// substream; solid folders carry one per file.
	SubSizes       []uint64
	SubCRCs        []uint32
	SubCRCsDefined []bool
}

func (f *Folder) numOutStreams() int {
	n := 0
	for _, c := range f.Coders {
		n += c.NumOutStreams
	}
	return n
}

func (f *Folder) numInStreams() int {
	n := 0
	for _, c := range f.Coders {
		n += c.NumInStreams
	}
	return n
}

// mainUnpackSize returns the size of the folder's decoded output: the
// unpack size of the output stream no bind pair consumes.
func (f *Folder) mainUnpackSize() uint64 {
	out := f.numOutStreams()
	for i := out - 1; i >= 0; i-- {
		bound := false
		for _, bp := range f.BindPairs {
			if bp.OutIndex == i {
				bound = true
				break
			}
		}
		if !bound {
			return f.UnpackSizes[i]
		}
	}
	if len(f.UnpackSizes) > 0 {
		return f.UnpackSizes[len(f.UnpackSizes)-1]
	}
	return 0
}

// FileEntry is one file descriptor destined for the archive header.
// Entries without a stream (empty files) contribute no substream and no
// folder.
type FileEntry struct {
	Name      string
	Size      uint64
	HasStream bool

	CRC        uint32
	CRCDefined bool

	MTime        time.Time
	MTimeDefined bool

	Attrib        uint32
	AttribDefined bool
}

// Database is the staged description of everything the header will record:
// file descriptors in listing order, folders in pack order, and the packed
// substream sizes aligned with the folders' packed streams.
type Database struct {
	Files     []FileEntry
	Folders   []Folder
	PackSizes []uint64
}

// Validate checks the cross-structure invariants before header encoding.
func (db *Database) Validate() error {
	streams := 0
	for _, f := range db.Files {
		if f.HasStream {
			streams++
		}
	}
	subs := 0
	packed := 0
	for i := range db.Folders {
		f := &db.Folders[i]
		subs += len(f.SubSizes)
		packed += f.numInStreams() - len(f.BindPairs)
		if len(f.SubCRCs) != len(f.SubSizes) || len(f.SubCRCsDefined) != len(f.SubSizes) {
			return fmt.Errorf("sevenz: folder %d: substream vectors disagree", i)
		}
		if len(f.UnpackSizes) != f.numOutStreams() {
			return fmt.Errorf("sevenz: folder %d: %d unpack sizes for %d output streams", i, len(f.UnpackSizes), f.numOutStreams())
		}
	}
	if subs != streams {
		return fmt.Errorf("sevenz: %d substreams for %d streamed files", subs, streams)
	}
	if packed != len(db.PackSizes) {
		return fmt.Errorf("sevenz: %d pack sizes for %d packed streams", len(db.PackSizes), packed)
	}
	return nil
}

// windowsEpochDelta is the offset between 1601-01-01 and 1970-01-01 in
// 100-nanosecond ticks.
const windowsEpochDelta = 116444736000000000

// filetime converts t to 100-ns ticks since 1601-01-01 UTC.
func filetime(t time.Time) uint64 {
	ns := t.UnixNano()
	return uint64(ns/100 + windowsEpochDelta)
}
