package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crately/sevenpar/internal/sevenz"
	"github.com/crately/sevenpar/internal/testutil"
)

func TestPasswordEncryption(t *testing.T) {
	const password = "p@ss"

	a := NewArchiver(WithThreads(2), WithPassword(password))
	defer a.Close()

	items, contents := threeItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))

	// The plaintext must not survive verbatim anywhere in the archive.
	assert.NotContains(t, out.String(), string(contents[0]))
	assert.NotContains(t, out.String(), "a.bin")

	arc, err := testutil.ParseArchive(out.Bytes(), password)
	require.NoError(t, err)
	require.Len(t, arc.Entries, 3)
	assert.Equal(t, "a.bin", arc.Entries[0].Name)

	extracted, err := arc.Extract()
	require.NoError(t, err)
	for i, want := range contents {
		assert.Equal(t, want, extracted[i])
		assert.Equal(t, testutil.CRC32(want), arc.Entries[i].CRC)
	}
}

func TestWrongPasswordFailsToList(t *testing.T) {
	a := NewArchiver(WithPassword("correct"))
	defer a.Close()

	items, _ := threeItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))

	// The header is part of the encrypted chain: without the right key
	// it does not decode into a listing.
	_, err := testutil.ParseArchive(out.Bytes(), "wrong")
	assert.Error(t, err)
}

func TestEncryptedSolid(t *testing.T) {
	const password = "s0lid"

	a := NewArchiver(WithSolid(0), WithPassword(password))
	defer a.Close()

	items, contents := overlappingItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))

	arc, err := testutil.ParseArchive(out.Bytes(), password)
	require.NoError(t, err)
	require.Len(t, arc.Entries, 5)
	assert.Equal(t, 1, arc.FolderCount())

	extracted, err := arc.Extract()
	require.NoError(t, err)
	for i, want := range contents {
		assert.Equal(t, want, extracted[i])
	}
}

func TestClearingPasswordDisablesEncryption(t *testing.T) {
	a := NewArchiver(WithPassword("secret"))
	defer a.Close()
	a.SetPassword("")

	items, _ := threeItems()
	arc := compressAndParse(t, a, items, "")
	assert.Len(t, arc.Entries, 3)
}

func TestRawKeyWithStandardMethodIsRejected(t *testing.T) {
	var notified bool
	cb := &CallbackFuncs{
		Error: func(index int, err error, _ string) {
			if index == 0 && err != nil {
				notified = true
			}
		},
	}

	a := NewArchiver(WithCallback(cb))
	defer a.Close()
	a.SetRawKey(make([]byte, 32), make([]byte, 16))

	items, contents := threeItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))
	assert.True(t, notified)

	// The archive is written unencrypted: readable without a password.
	arc, err := testutil.ParseArchive(out.Bytes(), "")
	require.NoError(t, err)
	extracted, err := arc.Extract()
	require.NoError(t, err)
	assert.Equal(t, contents[0], extracted[0])
}

func TestPasswordSupersedesRawKey(t *testing.T) {
	a := NewArchiver()
	defer a.Close()
	a.SetRawKey(make([]byte, 32), make([]byte, 16))
	a.SetPassword("wins")

	items, _ := threeItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))

	arc, err := testutil.ParseArchive(out.Bytes(), "wins")
	require.NoError(t, err)
	assert.Len(t, arc.Entries, 3)
}

func TestEncryptedFolderChainShape(t *testing.T) {
	a := NewArchiver(WithPassword("p"))
	defer a.Close()

	res := chainResult{props: []byte{0x5D, 0, 0, 0, 1}, aesProps: []byte{0x53, 0x0F}, coderSize: 40}
	folder := a.chainFolder(res, 100)

	require.Len(t, folder.Coders, 2)
	assert.Equal(t, sevenz.MethodAES256, folder.Coders[1].ID)
	assert.Equal(t, []sevenz.BindPair{{InIndex: 0, OutIndex: 1}}, folder.BindPairs)
	assert.Equal(t, []uint64{100, 40}, folder.UnpackSizes)
}
