// Package digest computes CRC-32 checksums over byte streams.
//
// The 7z container stores CRC-32 (IEEE polynomial) digests for file
// content and header blocks. Reader wraps an input stream and folds every
// byte pulled through it into a running checksum.
package digest

import (
	"hash/crc32"
	"io"
)

// Reader wraps an io.Reader and maintains a CRC-32 checksum together with
// a count of the bytes read through it.
type Reader struct {
	r   io.Reader
	crc uint32
	n   uint64
}

// NewReader returns a Reader computing the CRC-32 of everything read from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Read implements io.Reader, updating the checksum with the bytes returned.
func (d *Reader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.crc = crc32.Update(d.crc, crc32.IEEETable, p[:n])
		d.n += uint64(n)
	}
	return n, err
}

// Sum32 returns the checksum of the bytes read so far.
func (d *Reader) Sum32() uint32 {
	return d.crc
}

// BytesRead returns the number of bytes read through the Reader.
func (d *Reader) BytesRead() uint64 {
	return d.n
}

// Sum returns the CRC-32 of a byte slice.
func Sum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
