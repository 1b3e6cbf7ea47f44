// Package sevenz encodes the 7z container format: the leading signature
// block, the archive database (files, folders, coder chains, packed
// substream sizes), and the trailing header property tag stream.
//
// The encoder is purely in-memory: callers stage a Database, serialize it
// with EncodeHeader, and compose the final byte layout themselves. Nothing
// here touches codecs or I/O.
package sevenz
