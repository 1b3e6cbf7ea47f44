package sevenz

import (
	"bytes"
	"hash/crc32"
	"unicode/utf16"
)

// Header property tags.
const (
	idEnd              = 0x00
	idHeader           = 0x01
	idMainStreamsInfo  = 0x04
	idFilesInfo        = 0x05
	idPackInfo         = 0x06
	idUnpackInfo       = 0x07
	idSubStreamsInfo   = 0x08
	idSize             = 0x09
	idCRC              = 0x0A
	idFolder           = 0x0B
	idCodersUnpackSize = 0x0C
	idNumUnpackStream  = 0x0D
	idEmptyStream      = 0x0E
	idEmptyFile        = 0x0F
	idName             = 0x11
	idMTime            = 0x14
	idWinAttrib        = 0x15
	idEncodedHeader    = 0x17
)

// Signature is the 6-byte archive magic.
var Signature = [6]byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}

const (
	versionMajor = 0
	versionMinor = 4
)

// SignatureBlockSize is the fixed length of the leading signature block.
const SignatureBlockSize = 32

// SignatureBlock builds the complete 32-byte block at offset zero:
// signature, format version, start-header CRC, and the location of the
// trailing header. nextHeaderOffset is relative to the end of this block.
func SignatureBlock(nextHeaderOffset, nextHeaderSize uint64, nextHeaderCRC uint32) [SignatureBlockSize]byte {
	var start bytes.Buffer
	writeUint64LE(&start, nextHeaderOffset)
	writeUint64LE(&start, nextHeaderSize)
	writeUint32LE(&start, nextHeaderCRC)

	var out [SignatureBlockSize]byte
	copy(out[:6], Signature[:])
	out[6] = versionMajor
	out[7] = versionMinor
	crc := crc32.ChecksumIEEE(start.Bytes())
	out[8] = byte(crc)
	out[9] = byte(crc >> 8)
	out[10] = byte(crc >> 16)
	out[11] = byte(crc >> 24)
	copy(out[12:], start.Bytes())
	return out
}

// EncodeHeader serializes the database into the raw (uncompressed) header
// tag stream, beginning with kHeader.
func EncodeHeader(db *Database) ([]byte, error) {
	if err := db.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte(idHeader)
	if len(db.Folders) > 0 {
		buf.WriteByte(idMainStreamsInfo)
		writeStreamsInfo(&buf, 0, db.PackSizes, db.Folders, true)
	}
	writeFilesInfo(&buf, db.Files)
	buf.WriteByte(idEnd)
	return buf.Bytes(), nil
}

// EncodeEncodedHeaderTail serializes the kEncodedHeader tag stream that
// locates and describes the packed header folder. packPos is the offset of
// the packed header data relative to the end of the signature block.
func EncodeEncodedHeaderTail(packPos, packSize uint64, folder Folder) []byte {
	var buf bytes.Buffer
	buf.WriteByte(idEncodedHeader)
	writeStreamsInfo(&buf, packPos, []uint64{packSize}, []Folder{folder}, false)
	return buf.Bytes()
}

// writeStreamsInfo emits kPackInfo, kUnpackInfo and (for the main streams)
// kSubStreamsInfo, terminated by kEnd.
func writeStreamsInfo(buf *bytes.Buffer, packPos uint64, packSizes []uint64, folders []Folder, subStreams bool) {
	buf.WriteByte(idPackInfo)
	writeNumber(buf, packPos)
	writeNumber(buf, uint64(len(packSizes)))
	buf.WriteByte(idSize)
	for _, sz := range packSizes {
		writeNumber(buf, sz)
	}
	buf.WriteByte(idEnd)

	buf.WriteByte(idUnpackInfo)
	buf.WriteByte(idFolder)
	writeNumber(buf, uint64(len(folders)))
	buf.WriteByte(0) // inline, not external
	for i := range folders {
		writeFolder(buf, &folders[i])
	}
	buf.WriteByte(idCodersUnpackSize)
	for i := range folders {
		for _, sz := range folders[i].UnpackSizes {
			writeNumber(buf, sz)
		}
	}
	buf.WriteByte(idEnd)

	if subStreams {
		writeSubStreamsInfo(buf, folders)
	}
	buf.WriteByte(idEnd)
}

func writeFolder(buf *bytes.Buffer, f *Folder) {
	writeNumber(buf, uint64(len(f.Coders)))
	for _, c := range f.Coders {
		id := c.ID.Bytes()
		flags := byte(len(id))
		complex := c.NumInStreams != 1 || c.NumOutStreams != 1
		if complex {
			flags |= 0x10
		}
		if len(c.Props) > 0 {
			flags |= 0x20
		}
		buf.WriteByte(flags)
		buf.Write(id)
		if complex {
			writeNumber(buf, uint64(c.NumInStreams))
			writeNumber(buf, uint64(c.NumOutStreams))
		}
		if len(c.Props) > 0 {
			writeNumber(buf, uint64(len(c.Props)))
			buf.Write(c.Props)
		}
	}
	for _, bp := range f.BindPairs {
		writeNumber(buf, uint64(bp.InIndex))
		writeNumber(buf, uint64(bp.OutIndex))
	}
	// With a single packed stream its index is implied by the unbound
	// input; multiple packed streams are listed explicitly.
	if packed := f.numInStreams() - len(f.BindPairs); packed > 1 {
		for in := 0; in < f.numInStreams(); in++ {
			bound := false
			for _, bp := range f.BindPairs {
				if bp.InIndex == in {
					bound = true
					break
				}
			}
			if !bound {
				writeNumber(buf, uint64(in))
			}
		}
	}
}

func writeSubStreamsInfo(buf *bytes.Buffer, folders []Folder) {
	buf.WriteByte(idSubStreamsInfo)

	uniform := true
	for i := range folders {
		if len(folders[i].SubSizes) != 1 {
			uniform = false
			break
		}
	}
	if !uniform {
		buf.WriteByte(idNumUnpackStream)
		for i := range folders {
			writeNumber(buf, uint64(len(folders[i].SubSizes)))
		}
		// Sizes: n-1 entries per folder, the last substream's size is the
		// folder's decoded size minus the rest.
		buf.WriteByte(idSize)
		for i := range folders {
			subs := folders[i].SubSizes
			for j := 0; j < len(subs)-1; j++ {
				writeNumber(buf, subs[j])
			}
		}
	}

	var defined []bool
	var crcs []uint32
	for i := range folders {
		f := &folders[i]
		for j := range f.SubSizes {
			defined = append(defined, f.SubCRCsDefined[j])
			crcs = append(crcs, f.SubCRCs[j])
		}
	}
	if len(defined) > 0 {
		buf.WriteByte(idCRC)
		writeDigests(buf, defined, crcs)
	}

	buf.WriteByte(idEnd)
}

func writeDigests(buf *bytes.Buffer, defined []bool, crcs []uint32) {
	if allTrue(defined) {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
		writeBitVector(buf, defined)
	}
	for i, d := range defined {
		if d {
			writeUint32LE(buf, crcs[i])
		}
	}
}

func writeFilesInfo(buf *bytes.Buffer, files []FileEntry) {
	buf.WriteByte(idFilesInfo)
	writeNumber(buf, uint64(len(files)))

	empty := make([]bool, len(files))
	anyEmpty := false
	for i, f := range files {
		if !f.HasStream {
			empty[i] = true
			anyEmpty = true
		}
	}
	if anyEmpty {
		var prop bytes.Buffer
		writeBitVector(&prop, empty)
		writeProperty(buf, idEmptyStream, prop.Bytes())

		// Every stream-less entry here is a zero-length file.
		n := 0
		for _, e := range empty {
			if e {
				n++
			}
		}
		var emptyFiles bytes.Buffer
		writeBitVector(&emptyFiles, trueBits(n))
		writeProperty(buf, idEmptyFile, emptyFiles.Bytes())
	}

	var names bytes.Buffer
	names.WriteByte(0) // inline
	for _, f := range files {
		for _, u := range utf16.Encode([]rune(f.Name)) {
			names.WriteByte(byte(u))
			names.WriteByte(byte(u >> 8))
		}
		names.WriteByte(0)
		names.WriteByte(0)
	}
	writeProperty(buf, idName, names.Bytes())

	writeTimeProperty(buf, files)
	writeAttribProperty(buf, files)

	buf.WriteByte(idEnd)
}

func writeTimeProperty(buf *bytes.Buffer, files []FileEntry) {
	defined := make([]bool, len(files))
	any := false
	for i, f := range files {
		defined[i] = f.MTimeDefined
		any = any || f.MTimeDefined
	}
	if !any {
		return
	}
	var prop bytes.Buffer
	if allTrue(defined) {
		prop.WriteByte(1)
	} else {
		prop.WriteByte(0)
		writeBitVector(&prop, defined)
	}
	prop.WriteByte(0) // inline
	for _, f := range files {
		if f.MTimeDefined {
			writeUint64LE(&prop, filetime(f.MTime))
		}
	}
	writeProperty(buf, idMTime, prop.Bytes())
}

func writeAttribProperty(buf *bytes.Buffer, files []FileEntry) {
	defined := make([]bool, len(files))
	any := false
	for i, f := range files {
		defined[i] = f.AttribDefined
		any = any || f.AttribDefined
	}
	if !any {
		return
	}
	var prop bytes.Buffer
	if allTrue(defined) {
		prop.WriteByte(1)
	} else {
		prop.WriteByte(0)
		writeBitVector(&prop, defined)
	}
	prop.WriteByte(0) // inline
	for _, f := range files {
		if f.AttribDefined {
			writeUint32LE(&prop, f.Attrib)
		}
	}
	writeProperty(buf, idWinAttrib, prop.Bytes())
}

func writeProperty(buf *bytes.Buffer, id byte, data []byte) {
	buf.WriteByte(id)
	writeNumber(buf, uint64(len(data)))
	buf.Write(data)
}

func trueBits(n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = true
	}
	return bits
}
