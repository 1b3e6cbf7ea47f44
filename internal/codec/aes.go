package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"unicode/utf16"
)

const (
	aesKeySize = 32
	aesIVSize  = 16

	// NumCyclesPower is the exponent of the SHA-256 round count used by
	// standard password-based key derivation (2^19 rounds).
	NumCyclesPower = 19
)

// AESFilter encrypts a coder's output with AES-256 in CBC mode. Each
// filter instance carries its own random IV; the final partial block is
// zero padded, so the padded output length is what lands in the packed
// stream while the decoder's output length stays the unpadded size.
type AESFilter struct {
	key []byte
	iv  [aesIVSize]byte
}

// NewAESFilter creates a filter around a 32-byte key with a fresh
// random IV.
func NewAESFilter(key []byte) (*AESFilter, error) {
	if len(key) != aesKeySize {
		return nil, errors.New("codec: AES-256 key must be 32 bytes")
	}
	f := &AESFilter{key: key}
	if _, err := rand.Read(f.iv[:]); err != nil {
		return nil, err
	}
	return f, nil
}

// Properties returns the coder-properties blob: the derivation cycle
// count, the IV length, and the IV itself.
func (f *AESFilter) Properties() []byte {
	props := make([]byte, 2+aesIVSize)
	props[0] = NumCyclesPower | 0x40
	props[1] = aesIVSize - 1
	copy(props[2:], f.iv[:])
	return props
}

// Writer returns a WriteCloser encrypting into w. Close flushes the
// zero-padded final block without closing w.
func (f *AESFilter) Writer(w io.Writer) (io.WriteCloser, error) {
	block, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, err
	}
	return &cbcWriter{w: w, mode: cipher.NewCBCEncrypter(block, f.iv[:])}, nil
}

type cbcWriter struct {
	w    io.Writer
	mode cipher.BlockMode
	buf  []byte
	out  []byte
}

func (c *cbcWriter) Write(p []byte) (int, error) {
	total := len(p)
	c.buf = append(c.buf, p...)
	n := len(c.buf) / aes.BlockSize * aes.BlockSize
	if n > 0 {
		c.out = append(c.out[:0], c.buf[:n]...)
		c.mode.CryptBlocks(c.out, c.out)
		if _, err := c.w.Write(c.out); err != nil {
			return 0, err
		}
		c.buf = append(c.buf[:0], c.buf[n:]...)
	}
	return total, nil
}

func (c *cbcWriter) Close() error {
	if len(c.buf) == 0 {
		return nil
	}
	blk := make([]byte, aes.BlockSize)
	copy(blk, c.buf)
	c.buf = c.buf[:0]
	c.mode.CryptBlocks(blk, blk)
	_, err := c.w.Write(blk)
	return err
}

// DeriveKey computes the AES-256 key for a password: SHA-256 folded over
// 2^cyclesPower rounds of salt, the UTF-16LE password bytes, and a
// little-endian 64-bit round counter. A cyclesPower of 0x3F or more means
// no hashing: the key is salt plus password, zero padded.
func DeriveKey(password string, salt []byte, cyclesPower uint) []byte {
	pass := utf16LEBytes(password)
	if cyclesPower >= 0x3F {
		key := make([]byte, aesKeySize)
		n := copy(key, salt)
		copy(key[n:], pass)
		return key
	}
	h := sha256.New()
	var ctr [8]byte
	for i := uint64(0); i < 1<<cyclesPower; i++ {
		h.Write(salt)
		h.Write(pass)
		binary.LittleEndian.PutUint64(ctr[:], i)
		h.Write(ctr[:])
	}
	return h.Sum(nil)
}

func utf16LEBytes(s string) []byte {
	u := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(u))
	for i, v := range u {
		b[2*i] = byte(v)
		b[2*i+1] = byte(v >> 8)
	}
	return b
}
