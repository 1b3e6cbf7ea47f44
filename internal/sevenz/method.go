package sevenz

// MethodID identifies a codec in the 7z method id space. Ids are written
// into coder descriptors as big-endian byte strings with leading zero
// bytes stripped (the Copy method is the single byte 0x00).
type MethodID uint64

// Method ids understood by the built-in codec factory.
const (
	MethodCopy    MethodID = 0x00
	MethodLZMA    MethodID = 0x030101
	MethodLZMA2   MethodID = 0x21
	MethodDeflate MethodID = 0x040108
	MethodZstd    MethodID = 0x04F71101
	MethodLZ4     MethodID = 0x04F71104
	MethodAES256  MethodID = 0x06F10701
)

// Bytes returns the id's wire form: big-endian with leading zero bytes
// removed. The zero id encodes as a single zero byte.
func (m MethodID) Bytes() []byte {
	if m == 0 {
		return []byte{0}
	}
	var raw [8]byte
	for i := 7; i >= 0; i-- {
		raw[i] = byte(m)
		m >>= 8
	}
	i := 0
	for i < 7 && raw[i] == 0 {
		i++
	}
	return raw[i:]
}

func (m MethodID) String() string {
	switch m {
	case MethodCopy:
		return "copy"
	case MethodLZMA:
		return "lzma"
	case MethodLZMA2:
		return "lzma2"
	case MethodDeflate:
		return "deflate"
	case MethodZstd:
		return "zstd"
	case MethodLZ4:
		return "lz4"
	case MethodAES256:
		return "aes256"
	}
	buf := make([]byte, 0, 18)
	buf = append(buf, '0', 'x')
	const hexdigits = "0123456789ABCDEF"
	for _, b := range m.Bytes() {
		buf = append(buf, hexdigits[b>>4], hexdigits[b&0xF])
	}
	return string(buf)
}
