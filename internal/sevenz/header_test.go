package sevenz

import (
	"hash/crc32"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureBlock(t *testing.T) {
	blk := SignatureBlock(100, 20, 0xDEADBEEF)

	assert.Equal(t, []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, blk[:6])
	assert.Equal(t, byte(0), blk[6])
	assert.Equal(t, byte(4), blk[7])

	// Start-header CRC covers the trailing 20 bytes.
	crc := uint32(blk[8]) | uint32(blk[9])<<8 | uint32(blk[10])<<16 | uint32(blk[11])<<24
	assert.Equal(t, crc32.ChecksumIEEE(blk[12:]), crc)

	assert.Equal(t, byte(100), blk[12])
	assert.Equal(t, byte(20), blk[20])
	assert.Equal(t, byte(0xEF), blk[28])
	assert.Equal(t, byte(0xDE), blk[31])
}

func TestDatabaseValidate(t *testing.T) {
	folder := Folder{
		Coders:         []Coder{{ID: MethodLZMA, NumInStreams: 1, NumOutStreams: 1, Props: []byte{0x5D, 0, 0, 1, 0}}},
		UnpackSizes:    []uint64{10},
		SubSizes:       []uint64{10},
		SubCRCs:        []uint32{1},
		SubCRCsDefined: []bool{true},
	}

	t.Run("consistent", func(t *testing.T) {
		db := &Database{
			Files:     []FileEntry{{Name: "a", Size: 10, HasStream: true}},
			Folders:   []Folder{folder},
			PackSizes: []uint64{4},
		}
		assert.NoError(t, db.Validate())
	})

	t.Run("substream count mismatch", func(t *testing.T) {
		db := &Database{
			Files:     []FileEntry{{Name: "a", HasStream: true}, {Name: "b", HasStream: true}},
			Folders:   []Folder{folder},
			PackSizes: []uint64{4},
		}
		assert.Error(t, db.Validate())
	})

	t.Run("pack size mismatch", func(t *testing.T) {
		db := &Database{
			Files:     []FileEntry{{Name: "a", HasStream: true}},
			Folders:   []Folder{folder},
			PackSizes: []uint64{4, 5},
		}
		assert.Error(t, db.Validate())
	})
}

func TestEncodeHeaderShape(t *testing.T) {
	db := &Database{
		Files: []FileEntry{
			{Name: "a.bin", Size: 3, HasStream: true, CRC: 7, CRCDefined: true,
				MTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), MTimeDefined: true},
			{Name: "empty.bin"},
		},
		Folders: []Folder{{
			Coders:         []Coder{{ID: MethodCopy, NumInStreams: 1, NumOutStreams: 1}},
			UnpackSizes:    []uint64{3},
			SubSizes:       []uint64{3},
			SubCRCs:        []uint32{7},
			SubCRCsDefined: []bool{true},
		}},
		PackSizes: []uint64{3},
	}
	header, err := EncodeHeader(db)
	require.NoError(t, err)

	require.NotEmpty(t, header)
	assert.Equal(t, byte(idHeader), header[0])
	assert.Equal(t, byte(idMainStreamsInfo), header[1])
	assert.Equal(t, byte(idEnd), header[len(header)-1])
}

func TestEncodeHeaderEmptyFilesOnly(t *testing.T) {
	db := &Database{
		Files: []FileEntry{{Name: "a"}, {Name: "b"}},
	}
	header, err := EncodeHeader(db)
	require.NoError(t, err)

	// No streams: the header goes straight to the files block.
	assert.Equal(t, byte(idHeader), header[0])
	assert.Equal(t, byte(idFilesInfo), header[1])
}

func TestFiletime(t *testing.T) {
	// The tick clock starts 1601-01-01; the Unix epoch lands at a known
	// offset.
	epoch := time.Unix(0, 0).UTC()
	assert.Equal(t, uint64(116444736000000000), filetime(epoch))

	later := epoch.Add(time.Second)
	assert.Equal(t, uint64(116444736000000000+10_000_000), filetime(later))
}
