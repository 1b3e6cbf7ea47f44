package sevenz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteNumber(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		want  []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"small", 0x7F, []byte{0x7F}},
		{"two bytes low", 0x80, []byte{0x80, 0x80}},
		{"two bytes", 0x1234, []byte{0x80 | 0x12, 0x34}},
		{"two byte max", 0x3FFF, []byte{0xBF, 0xFF}},
		{"three bytes", 0x4000, []byte{0xC0, 0x00, 0x40}},
		{"full width", 0xFFFFFFFFFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeNumber(&buf, tt.value)
			assert.Equal(t, tt.want, buf.Bytes())
		})
	}
}

func TestWriteBitVector(t *testing.T) {
	var buf bytes.Buffer
	writeBitVector(&buf, []bool{true, false, false, true, false, false, false, false, true})
	assert.Equal(t, []byte{0x90, 0x80}, buf.Bytes())

	buf.Reset()
	writeBitVector(&buf, []bool{true, true, true, true, true, true, true, true})
	assert.Equal(t, []byte{0xFF}, buf.Bytes())
}

func TestMethodIDBytes(t *testing.T) {
	assert.Equal(t, []byte{0x00}, MethodCopy.Bytes())
	assert.Equal(t, []byte{0x21}, MethodLZMA2.Bytes())
	assert.Equal(t, []byte{0x03, 0x01, 0x01}, MethodLZMA.Bytes())
	assert.Equal(t, []byte{0x06, 0xF1, 0x07, 0x01}, MethodAES256.Bytes())
	assert.Equal(t, []byte{0x04, 0xF7, 0x11, 0x01}, MethodZstd.Bytes())
}

func TestMethodIDString(t *testing.T) {
	assert.Equal(t, "lzma", MethodLZMA.String())
	assert.Equal(t, "0x0102", MethodID(0x0102).String())
}
