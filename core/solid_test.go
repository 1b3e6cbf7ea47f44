package core

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crately/sevenpar/internal/testutil"
)

func overlappingItems() ([]InputItem, [][]byte) {
	base := "the quick brown fox jumps over the lazy dog; "
	contents := make([][]byte, 5)
	items := make([]InputItem, 5)
	for i := range items {
		contents[i] = []byte(fmt.Sprintf("%s variant %d; %s%s", base, i, base, base))
		items[i] = InputItem{
			Reader: bytes.NewReader(contents[i]),
			Name:   fmt.Sprintf("text-%d.txt", i),
			Size:   uint64(len(contents[i])),
		}
	}
	return items, contents
}

func TestSolidSingleFolder(t *testing.T) {
	a := NewArchiver(WithSolid(0))
	defer a.Close()

	items, contents := overlappingItems()
	var solidOut bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &solidOut))

	arc, err := testutil.ParseArchive(solidOut.Bytes(), "")
	require.NoError(t, err)
	require.Len(t, arc.Entries, 5)
	assert.Equal(t, 1, arc.FolderCount())

	extracted, err := arc.Extract()
	require.NoError(t, err)
	for i, want := range contents {
		assert.Equal(t, fmt.Sprintf("text-%d.txt", i), arc.Entries[i].Name)
		assert.Equal(t, want, extracted[i])
		require.True(t, arc.Entries[i].CRCDefined)
		assert.Equal(t, testutil.CRC32(want), arc.Entries[i].CRC)
	}

	// Overlapping content compresses better in one folder than one
	// folder per file.
	items2, _ := overlappingItems()
	p := NewArchiver()
	defer p.Close()
	var parallelOut bytes.Buffer
	require.NoError(t, p.CompressMultiple(context.Background(), items2, &parallelOut))
	assert.Less(t, solidOut.Len(), parallelOut.Len())
}

func TestSolidBlockSize(t *testing.T) {
	a := NewArchiver(WithSolid(2), WithThreads(2))
	defer a.Close()

	items, contents := overlappingItems()
	arc := compressAndParse(t, a, items, "")

	require.Len(t, arc.Entries, 5)
	assert.Equal(t, 3, arc.FolderCount()) // 2+2+1

	extracted, err := arc.Extract()
	require.NoError(t, err)
	for i, want := range contents {
		assert.Equal(t, want, extracted[i])
	}
}

func TestSolidWithEmptySegment(t *testing.T) {
	a := NewArchiver(WithSolid(0))
	defer a.Close()

	arc := compressAndParse(t, a, []InputItem{
		{Reader: bytes.NewReader([]byte("head")), Name: "head.bin"},
		{Reader: bytes.NewReader(nil), Name: "hollow.bin"},
		{Reader: bytes.NewReader([]byte("tail")), Name: "tail.bin"},
	}, "")

	require.Len(t, arc.Entries, 3)
	assert.False(t, arc.Entries[1].HasStream)

	extracted, err := arc.Extract()
	require.NoError(t, err)
	assert.Equal(t, []byte("head"), extracted[0])
	assert.Empty(t, extracted[1])
	assert.Equal(t, []byte("tail"), extracted[2])
}

func TestCopyCappedGuard(t *testing.T) {
	var buf bytes.Buffer
	n, err := copyCapped(context.Background(), &buf, bytes.NewReader(make([]byte, 64)), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), n)

	buf.Reset()
	_, err = copyCapped(context.Background(), &buf, bytes.NewReader(make([]byte, 256)), 100)
	assert.ErrorIs(t, err, ErrInputTooLarge)
}
