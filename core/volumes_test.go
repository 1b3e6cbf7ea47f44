package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crately/sevenpar/internal/sevenz"
	"github.com/crately/sevenpar/internal/testutil"
)

func volumeItems() ([]InputItem, int) {
	const numItems = 10
	items := make([]InputItem, numItems)
	for i := range items {
		// Mildly compressible so several volumes are produced.
		payload := bytes.Repeat([]byte{byte('a' + i), byte(i), byte(i * 7)}, 170_000)
		items[i] = InputItem{
			Reader: bytes.NewReader(payload),
			Name:   fmt.Sprintf("part-%02d.bin", i),
			Size:   uint64(len(payload)),
		}
	}
	return items, numItems
}

func TestVolumesSplitAndConcatenate(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "out")
	const volSize = 1 << 20

	// Volume run.
	va := NewArchiver(WithThreads(2), WithMethod(sevenz.MethodCopy), WithVolumes(prefix, volSize))
	defer va.Close()
	items, numItems := volumeItems()
	require.NoError(t, va.CompressMultiple(context.Background(), items, nil))

	var concat bytes.Buffer
	var count int
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", prefix, i)
		data, err := os.ReadFile(name)
		if err != nil {
			break
		}
		count = i
		if i > 1 {
			info, statErr := os.Stat(fmt.Sprintf("%s.%03d", prefix, i-1))
			require.NoError(t, statErr)
			assert.Equal(t, int64(volSize), info.Size())
		}
		concat.Write(data)
	}
	require.Greater(t, count, 1)

	// Single-sink run with identical configuration.
	sa := NewArchiver(WithThreads(2), WithMethod(sevenz.MethodCopy))
	defer sa.Close()
	items2, _ := volumeItems()
	var single bytes.Buffer
	require.NoError(t, sa.CompressMultiple(context.Background(), items2, &single))

	assert.Equal(t, single.Bytes(), concat.Bytes())

	arc, err := testutil.ParseArchive(concat.Bytes(), "")
	require.NoError(t, err)
	assert.Len(t, arc.Entries, numItems)
}

func TestVolumesDisabledWithoutPrefix(t *testing.T) {
	a := NewArchiver()
	defer a.Close()
	a.SetVolumeSize(1024) // prefix missing: splitting stays off

	items, _ := threeItems()
	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))
	assert.NotZero(t, out.Len())
}
