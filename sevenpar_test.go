package sevenpar_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crately/sevenpar"
)

func TestFacadeCompress(t *testing.T) {
	a := sevenpar.NewArchiver(
		sevenpar.WithThreads(2),
		sevenpar.WithLevel(5),
		sevenpar.WithMethod(sevenpar.MethodLZMA),
	)
	defer a.Close()

	items := []sevenpar.InputItem{
		{Reader: bytes.NewReader(bytes.Repeat([]byte("A"), 100)), Name: "a.bin", Size: 100},
		{Reader: bytes.NewReader(bytes.Repeat([]byte("B"), 200)), Name: "b.bin", Size: 200},
	}

	var out bytes.Buffer
	require.NoError(t, a.CompressMultiple(context.Background(), items, &out))
	assert.Equal(t, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, out.Bytes()[:6])

	completed, failed, totalIn, _ := a.Statistics()
	assert.Equal(t, 2, completed)
	assert.Zero(t, failed)
	assert.Equal(t, uint64(300), totalIn)
}

func TestFacadeQueue(t *testing.T) {
	a := sevenpar.NewArchiver()
	defer a.Close()

	q := sevenpar.NewStreamQueue(a)
	require.NoError(t, q.Add(bytes.NewReader([]byte("payload")), "p.bin", 7))

	var out bytes.Buffer
	require.NoError(t, q.Process(context.Background(), &out))
	processed, failed, pending := q.Status()
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
	assert.Zero(t, pending)
}

func TestFacadeErrorsAreCoreErrors(t *testing.T) {
	a := sevenpar.NewArchiver()
	defer a.Close()

	var out bytes.Buffer
	err := a.CompressMultiple(context.Background(), nil, &out)
	assert.ErrorIs(t, err, sevenpar.ErrInvalidArgument)
}
