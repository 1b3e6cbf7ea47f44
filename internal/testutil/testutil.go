// Package testutil decodes archives produced in tests: a minimal 7z
// reader sufficient to list entries, verify digests, and extract
// payloads written with the methods the built-in codec factory emits.
// It is test support, not a general extractor.
package testutil

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf16"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz/lzma"

	"github.com/crately/sevenpar/internal/codec"
	"github.com/crately/sevenpar/internal/sevenz"
)

// CRC32 returns the IEEE CRC-32 of data, the digest the container
// stores per file.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Entry is one listed file.
type Entry struct {
	Name       string
	Size       uint64
	HasStream  bool
	CRC        uint32
	CRCDefined bool

	MTimeDefined  bool
	MTimeTicks    uint64
	Attrib        uint32
	AttribDefined bool
}

// Archive is a parsed container.
type Archive struct {
	Entries []Entry

	data      []byte
	password  string
	packPos   uint64
	packSizes []uint64
	folders   []folder
}

type coder struct {
	id    uint64
	numIn int
	props []byte
}

type folder struct {
	coders      []coder
	bindPairs   [][2]int
	unpackSizes []uint64
	numSubs     int
	subSizes    []uint64
	subCRCs     []uint32
	subDefined  []bool
}

func (f *folder) mainUnpackSize() uint64 {
	for i := len(f.unpackSizes) - 1; i >= 0; i-- {
		bound := false
		for _, bp := range f.bindPairs {
			if bp[1] == i {
				bound = true
				break
			}
		}
		if !bound {
			return f.unpackSizes[i]
		}
	}
	return 0
}

// FolderCount reports how many folders the archive's streams decode
// from.
func (a *Archive) FolderCount() int {
	return len(a.folders)
}

// ParseArchive validates the signature block and decodes the trailing
// header (decrypting it with password when needed).
func ParseArchive(data []byte, password string) (*Archive, error) {
	if len(data) < 32 {
		return nil, errors.New("testutil: short archive")
	}
	if !bytes.Equal(data[:6], sevenz.Signature[:]) {
		return nil, errors.New("testutil: bad signature")
	}
	startCRC := binary.LittleEndian.Uint32(data[8:12])
	if crc32.ChecksumIEEE(data[12:32]) != startCRC {
		return nil, errors.New("testutil: start header CRC mismatch")
	}
	offset := binary.LittleEndian.Uint64(data[12:20])
	size := binary.LittleEndian.Uint64(data[20:28])
	nextCRC := binary.LittleEndian.Uint32(data[28:32])
	if 32+offset+size > uint64(len(data)) {
		return nil, errors.New("testutil: header range out of bounds")
	}
	tail := data[32+offset : 32+offset+size]
	if crc32.ChecksumIEEE(tail) != nextCRC {
		return nil, errors.New("testutil: next header CRC mismatch")
	}

	a := &Archive{data: data, password: password}
	r := &sliceReader{buf: tail}
	id, err := r.number()
	if err != nil {
		return nil, err
	}

	header := tail
	if id == 0x17 { // encoded header
		header, err = a.decodeEncodedHeader(r)
		if err != nil {
			return nil, err
		}
		r = &sliceReader{buf: header}
		id, err = r.number()
		if err != nil {
			return nil, err
		}
	}
	if id != 0x01 {
		return nil, fmt.Errorf("testutil: unexpected header tag 0x%02X", id)
	}
	if err := a.parseHeader(r); err != nil {
		return nil, err
	}
	return a, nil
}

// Extract decodes every folder and returns each entry's content, an
// empty slice for stream-less entries.
func (a *Archive) Extract() ([][]byte, error) {
	contents := make([][]byte, len(a.Entries))

	// Decode folders in order, carving out substreams.
	var sub [][]byte
	packOff := 32 + a.packPos
	packIdx := 0
	for fi := range a.folders {
		f := &a.folders[fi]
		packSize := a.packSizes[packIdx]
		packIdx++
		if packOff+packSize > uint64(len(a.data)) {
			return nil, errors.New("testutil: packed stream out of bounds")
		}
		packed := a.data[packOff : packOff+packSize]
		packOff += packSize

		decoded, err := a.decodeFolder(f, packed)
		if err != nil {
			return nil, err
		}
		var off uint64
		for _, sz := range f.subSizes {
			if off+sz > uint64(len(decoded)) {
				return nil, errors.New("testutil: substream out of bounds")
			}
			sub = append(sub, decoded[off:off+sz])
			off += sz
		}
	}

	si := 0
	for i, e := range a.Entries {
		if !e.HasStream {
			contents[i] = []byte{}
			continue
		}
		if si >= len(sub) {
			return nil, errors.New("testutil: missing substream")
		}
		contents[i] = sub[si]
		si++
	}
	return contents, nil
}

func (a *Archive) decodeEncodedHeader(r *sliceReader) ([]byte, error) {
	packPos, packSizes, folders, err := parseStreamsInfo(r, false)
	if err != nil {
		return nil, err
	}
	if len(folders) != 1 || len(packSizes) != 1 {
		return nil, errors.New("testutil: unexpected encoded header shape")
	}
	start := 32 + packPos
	if start+packSizes[0] > uint64(len(a.data)) {
		return nil, errors.New("testutil: encoded header out of bounds")
	}
	return a.decodeFolder(&folders[0], a.data[start:start+packSizes[0]])
}

// decodeFolder runs the folder's chain in decode direction. Supported
// shapes: a single compression coder, or compression plus an AES filter.
func (a *Archive) decodeFolder(f *folder, packed []byte) ([]byte, error) {
	data := packed
	for i := len(f.coders) - 1; i >= 0; i-- {
		c := f.coders[i]
		out, err := a.decodeCoder(c, data, f.unpackSizes[i])
		if err != nil {
			return nil, err
		}
		data = out
	}
	main := f.mainUnpackSize()
	if uint64(len(data)) < main {
		return nil, fmt.Errorf("testutil: decoded %d of %d bytes", len(data), main)
	}
	return data[:main], nil
}

func (a *Archive) decodeCoder(c coder, data []byte, unpackSize uint64) ([]byte, error) {
	switch sevenz.MethodID(c.id) {
	case sevenz.MethodCopy:
		if uint64(len(data)) < unpackSize {
			return nil, errors.New("testutil: stored stream too short")
		}
		return data[:unpackSize], nil
	case sevenz.MethodAES256:
		return a.decryptAES(c.props, data, unpackSize)
	case sevenz.MethodLZMA:
		return decodeLZMA(c.props, data, unpackSize)
	case sevenz.MethodLZMA2:
		return decodeLZMA2(c.props, data, unpackSize)
	case sevenz.MethodDeflate:
		return decodeWith(flate.NewReader(bytes.NewReader(data)), unpackSize)
	case sevenz.MethodZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return decodeWith(io.NopCloser(dec), unpackSize)
	case sevenz.MethodLZ4:
		return decodeWith(io.NopCloser(lz4.NewReader(bytes.NewReader(data))), unpackSize)
	}
	return nil, fmt.Errorf("testutil: unsupported method 0x%X", c.id)
}

func (a *Archive) decryptAES(props, data []byte, unpackSize uint64) ([]byte, error) {
	if len(props) < 1 {
		return nil, errors.New("testutil: empty AES properties")
	}
	cycles := uint(props[0] & 0x3F)
	saltLen := int(props[0]>>7) & 1
	ivLen := int(props[0]>>6) & 1
	idx := 1
	if props[0]&0xC0 != 0 {
		if len(props) < 2 {
			return nil, errors.New("testutil: truncated AES properties")
		}
		saltLen += int(props[1] >> 4)
		ivLen += int(props[1] & 0x0F)
		idx = 2
	}
	if len(props) < idx+saltLen+ivLen {
		return nil, errors.New("testutil: truncated AES properties")
	}
	salt := props[idx : idx+saltLen]
	iv := make([]byte, 16)
	copy(iv, props[idx+saltLen:idx+saltLen+ivLen])

	key := codec.DeriveKey(a.password, salt, cycles)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, errors.New("testutil: encrypted stream not block aligned")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	if uint64(len(out)) < unpackSize {
		return nil, errors.New("testutil: encrypted stream too short")
	}
	return out[:unpackSize], nil
}

func decodeLZMA(props, data []byte, unpackSize uint64) ([]byte, error) {
	if len(props) != 5 {
		return nil, errors.New("testutil: bad LZMA properties length")
	}
	// Reassemble the classic stream header the encoder stripped: the
	// 5 property bytes plus an unknown-size marker.
	hdr := make([]byte, 0, 13+len(data))
	hdr = append(hdr, props...)
	hdr = append(hdr, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	hdr = append(hdr, data...)

	dictCap := int(binary.LittleEndian.Uint32(props[1:5]))
	if dictCap < lzma.MinDictCap {
		dictCap = lzma.MinDictCap
	}
	cfg := lzma.ReaderConfig{DictCap: dictCap}
	r, err := cfg.NewReader(bytes.NewReader(hdr))
	if err != nil {
		return nil, err
	}
	return decodeWith(io.NopCloser(r), unpackSize)
}

func decodeLZMA2(props, data []byte, unpackSize uint64) ([]byte, error) {
	if len(props) != 1 {
		return nil, errors.New("testutil: bad LZMA2 properties length")
	}
	dictCap := 1 << 24
	if props[0] < 40 {
		dictCap = int(uint64(2|uint64(props[0]&1)) << (props[0]/2 + 11))
	}
	if dictCap < lzma.MinDictCap {
		dictCap = lzma.MinDictCap
	}
	cfg := lzma.Reader2Config{DictCap: dictCap}
	r, err := cfg.NewReader2(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return decodeWith(io.NopCloser(r), unpackSize)
}

func decodeWith(r io.ReadCloser, unpackSize uint64) ([]byte, error) {
	defer r.Close()
	out := make([]byte, unpackSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- header parsing ---

type sliceReader struct {
	buf []byte
	pos int
}

func (r *sliceReader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *sliceReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *sliceReader) number() (uint64, error) {
	first, err := r.byte()
	if err != nil {
		return 0, err
	}
	mask := byte(0x80)
	var value uint64
	for i := 0; i < 8; i++ {
		if first&mask == 0 {
			value |= uint64(first&(mask-1)) << (8 * i)
			return value, nil
		}
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b) << (8 * i)
		mask >>= 1
	}
	return value, nil
}

func (r *sliceReader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *sliceReader) uint64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *sliceReader) bitVector(n int) ([]bool, error) {
	bits := make([]bool, n)
	var cur byte
	mask := byte(0)
	for i := range bits {
		if mask == 0 {
			b, err := r.byte()
			if err != nil {
				return nil, err
			}
			cur = b
			mask = 0x80
		}
		bits[i] = cur&mask != 0
		mask >>= 1
	}
	return bits, nil
}

// digests reads an optional-definedness digest block for n streams.
func (r *sliceReader) digests(n int) ([]bool, []uint32, error) {
	allDefined, err := r.byte()
	if err != nil {
		return nil, nil, err
	}
	var defined []bool
	if allDefined != 0 {
		defined = make([]bool, n)
		for i := range defined {
			defined[i] = true
		}
	} else {
		defined, err = r.bitVector(n)
		if err != nil {
			return nil, nil, err
		}
	}
	crcs := make([]uint32, n)
	for i := range defined {
		if defined[i] {
			crcs[i], err = r.uint32()
			if err != nil {
				return nil, nil, err
			}
		}
	}
	return defined, crcs, nil
}

func (a *Archive) parseHeader(r *sliceReader) error {
	for {
		id, err := r.number()
		if err != nil {
			return err
		}
		switch id {
		case 0x00: // end
			return nil
		case 0x04: // main streams info
			packPos, packSizes, folders, err := parseStreamsInfo(r, true)
			if err != nil {
				return err
			}
			a.packPos = packPos
			a.packSizes = packSizes
			a.folders = folders
		case 0x05: // files info
			if err := a.parseFilesInfo(r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("testutil: unexpected header tag 0x%02X", id)
		}
	}
}

func parseStreamsInfo(r *sliceReader, withSubStreams bool) (uint64, []uint64, []folder, error) {
	var packPos uint64
	var packSizes []uint64
	var folders []folder
	for {
		id, err := r.number()
		if err != nil {
			return 0, nil, nil, err
		}
		switch id {
		case 0x00:
			finishSubStreams(folders)
			return packPos, packSizes, folders, nil
		case 0x06: // pack info
			packPos, packSizes, err = parsePackInfo(r)
		case 0x07: // unpack info
			folders, err = parseUnpackInfo(r)
		case 0x08: // substreams info
			if !withSubStreams {
				return 0, nil, nil, errors.New("testutil: unexpected substreams block")
			}
			err = parseSubStreamsInfo(r, folders)
		default:
			return 0, nil, nil, fmt.Errorf("testutil: unexpected streams tag 0x%02X", id)
		}
		if err != nil {
			return 0, nil, nil, err
		}
	}
}

// finishSubStreams defaults folders without an explicit substream block
// to one substream covering the whole decoded output.
func finishSubStreams(folders []folder) {
	for i := range folders {
		f := &folders[i]
		if f.numSubs != 0 {
			continue
		}
		f.numSubs = 1
		f.subSizes = []uint64{f.mainUnpackSize()}
		f.subCRCs = []uint32{0}
		f.subDefined = []bool{false}
	}
}

func parsePackInfo(r *sliceReader) (uint64, []uint64, error) {
	packPos, err := r.number()
	if err != nil {
		return 0, nil, err
	}
	n, err := r.number()
	if err != nil {
		return 0, nil, err
	}
	var sizes []uint64
	for {
		id, err := r.number()
		if err != nil {
			return 0, nil, err
		}
		switch id {
		case 0x00:
			return packPos, sizes, nil
		case 0x09: // sizes
			sizes = make([]uint64, n)
			for i := range sizes {
				sizes[i], err = r.number()
				if err != nil {
					return 0, nil, err
				}
			}
		case 0x0A: // pack digests
			if _, _, err := r.digests(int(n)); err != nil {
				return 0, nil, err
			}
		default:
			return 0, nil, fmt.Errorf("testutil: unexpected pack tag 0x%02X", id)
		}
	}
}

func parseUnpackInfo(r *sliceReader) ([]folder, error) {
	id, err := r.number()
	if err != nil {
		return nil, err
	}
	if id != 0x0B {
		return nil, errors.New("testutil: missing folder block")
	}
	n, err := r.number()
	if err != nil {
		return nil, err
	}
	external, err := r.byte()
	if err != nil {
		return nil, err
	}
	if external != 0 {
		return nil, errors.New("testutil: external folder block")
	}
	folders := make([]folder, n)
	for i := range folders {
		if err := parseFolder(r, &folders[i]); err != nil {
			return nil, err
		}
	}

	id, err = r.number()
	if err != nil {
		return nil, err
	}
	if id != 0x0C {
		return nil, errors.New("testutil: missing unpack sizes")
	}
	for i := range folders {
		f := &folders[i]
		outs := len(f.unpackSizes)
		for j := 0; j < outs; j++ {
			f.unpackSizes[j], err = r.number()
			if err != nil {
				return nil, err
			}
		}
	}
	for {
		id, err := r.number()
		if err != nil {
			return nil, err
		}
		switch id {
		case 0x00:
			return folders, nil
		case 0x0A: // folder digests
			if _, _, err := r.digests(len(folders)); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("testutil: unexpected unpack tag 0x%02X", id)
		}
	}
}

func parseFolder(r *sliceReader, f *folder) error {
	numCoders, err := r.number()
	if err != nil {
		return err
	}
	totalIn, totalOut := 0, 0
	for i := uint64(0); i < numCoders; i++ {
		flags, err := r.byte()
		if err != nil {
			return err
		}
		idLen := int(flags & 0x0F)
		idBytes, err := r.bytes(idLen)
		if err != nil {
			return err
		}
		var id uint64
		for _, b := range idBytes {
			id = id<<8 | uint64(b)
		}
		c := coder{id: id, numIn: 1}
		numOut := 1
		if flags&0x10 != 0 {
			in, err := r.number()
			if err != nil {
				return err
			}
			out, err := r.number()
			if err != nil {
				return err
			}
			c.numIn = int(in)
			numOut = int(out)
		}
		if flags&0x20 != 0 {
			propLen, err := r.number()
			if err != nil {
				return err
			}
			c.props, err = r.bytes(int(propLen))
			if err != nil {
				return err
			}
		}
		totalIn += c.numIn
		totalOut += numOut
		f.coders = append(f.coders, c)
	}
	f.unpackSizes = make([]uint64, totalOut)
	for i := 0; i < totalOut-1; i++ {
		in, err := r.number()
		if err != nil {
			return err
		}
		out, err := r.number()
		if err != nil {
			return err
		}
		f.bindPairs = append(f.bindPairs, [2]int{int(in), int(out)})
	}
	if packed := totalIn - (totalOut - 1); packed > 1 {
		for i := 0; i < packed; i++ {
			if _, err := r.number(); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseSubStreamsInfo(r *sliceReader, folders []folder) error {
	numsKnown := false
	for {
		id, err := r.number()
		if err != nil {
			return err
		}
		switch id {
		case 0x00:
			finishSubStreams(folders)
			return nil
		case 0x0D: // substream counts
			numsKnown = true
			for i := range folders {
				n, err := r.number()
				if err != nil {
					return err
				}
				folders[i].numSubs = int(n)
			}
		case 0x09: // sizes, n-1 per folder
			if !numsKnown {
				for i := range folders {
					folders[i].numSubs = 1
				}
			}
			for i := range folders {
				f := &folders[i]
				f.subSizes = make([]uint64, f.numSubs)
				var sum uint64
				for j := 0; j < f.numSubs-1; j++ {
					f.subSizes[j], err = r.number()
					if err != nil {
						return err
					}
					sum += f.subSizes[j]
				}
				if f.numSubs > 0 {
					f.subSizes[f.numSubs-1] = f.mainUnpackSize() - sum
				}
			}
		case 0x0A: // digests
			total := 0
			for i := range folders {
				f := &folders[i]
				if f.numSubs == 0 {
					f.numSubs = 1
				}
				if len(f.subSizes) == 0 {
					f.subSizes = []uint64{f.mainUnpackSize()}
				}
				total += f.numSubs
			}
			defined, crcs, err := r.digests(total)
			if err != nil {
				return err
			}
			idx := 0
			for i := range folders {
				f := &folders[i]
				f.subCRCs = make([]uint32, f.numSubs)
				f.subDefined = make([]bool, f.numSubs)
				for j := 0; j < f.numSubs; j++ {
					f.subCRCs[j] = crcs[idx]
					f.subDefined[j] = defined[idx]
					idx++
				}
			}
		default:
			return fmt.Errorf("testutil: unexpected substreams tag 0x%02X", id)
		}
	}
}

func (a *Archive) parseFilesInfo(r *sliceReader) error {
	n, err := r.number()
	if err != nil {
		return err
	}
	numFiles := int(n)
	a.Entries = make([]Entry, numFiles)
	for i := range a.Entries {
		a.Entries[i].HasStream = true
	}
	var emptyStream []bool

	for {
		id, err := r.number()
		if err != nil {
			return err
		}
		if id == 0x00 {
			break
		}
		size, err := r.number()
		if err != nil {
			return err
		}
		body, err := r.bytes(int(size))
		if err != nil {
			return err
		}
		pr := &sliceReader{buf: body}
		switch id {
		case 0x0E: // empty stream
			emptyStream, err = pr.bitVector(numFiles)
			if err != nil {
				return err
			}
			for i, empty := range emptyStream {
				a.Entries[i].HasStream = !empty
			}
		case 0x0F: // empty file
			// All stream-less entries the writer produces are files.
		case 0x11: // names
			if err := parseNames(pr, a.Entries); err != nil {
				return err
			}
		case 0x14: // mtimes
			if err := parseTimes(pr, a.Entries); err != nil {
				return err
			}
		case 0x15: // attributes
			if err := parseAttribs(pr, a.Entries); err != nil {
				return err
			}
		}
	}

	// Attach substream sizes and digests to streamed entries in order.
	var sizes []uint64
	var crcs []uint32
	var defined []bool
	for i := range a.folders {
		f := &a.folders[i]
		sizes = append(sizes, f.subSizes...)
		crcs = append(crcs, f.subCRCs...)
		defined = append(defined, f.subDefined...)
	}
	si := 0
	for i := range a.Entries {
		if !a.Entries[i].HasStream {
			continue
		}
		if si >= len(sizes) {
			return errors.New("testutil: more streamed files than substreams")
		}
		a.Entries[i].Size = sizes[si]
		a.Entries[i].CRC = crcs[si]
		a.Entries[i].CRCDefined = defined[si]
		si++
	}
	if si != len(sizes) {
		return errors.New("testutil: unconsumed substreams")
	}
	return nil
}

func parseNames(r *sliceReader, entries []Entry) error {
	external, err := r.byte()
	if err != nil {
		return err
	}
	if external != 0 {
		return errors.New("testutil: external names block")
	}
	for i := range entries {
		var units []uint16
		for {
			b, err := r.bytes(2)
			if err != nil {
				return err
			}
			u := binary.LittleEndian.Uint16(b)
			if u == 0 {
				break
			}
			units = append(units, u)
		}
		entries[i].Name = string(utf16.Decode(units))
	}
	return nil
}

func parseTimes(r *sliceReader, entries []Entry) error {
	defined, err := definedVector(r, len(entries))
	if err != nil {
		return err
	}
	if _, err := r.byte(); err != nil { // external
		return err
	}
	for i := range entries {
		if !defined[i] {
			continue
		}
		ticks, err := r.uint64()
		if err != nil {
			return err
		}
		entries[i].MTimeDefined = true
		entries[i].MTimeTicks = ticks
	}
	return nil
}

func parseAttribs(r *sliceReader, entries []Entry) error {
	defined, err := definedVector(r, len(entries))
	if err != nil {
		return err
	}
	if _, err := r.byte(); err != nil { // external
		return err
	}
	for i := range entries {
		if !defined[i] {
			continue
		}
		attr, err := r.uint32()
		if err != nil {
			return err
		}
		entries[i].AttribDefined = true
		entries[i].Attrib = attr
	}
	return nil
}

func definedVector(r *sliceReader, n int) ([]bool, error) {
	all, err := r.byte()
	if err != nil {
		return nil, err
	}
	if all != 0 {
		bits := make([]bool, n)
		for i := range bits {
			bits[i] = true
		}
		return bits, nil
	}
	return r.bitVector(n)
}
