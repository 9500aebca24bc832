package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushBuffer struct {
	*bytes.Buffer
}

func (f flushBuffer) Flush() error { return nil }

func newConn() (*flushBuffer, *bufio.Reader) {
	buf := &flushBuffer{Buffer: &bytes.Buffer{}}
	return buf, bufio.NewReader(buf)
}

func TestFrameRoundTrip(t *testing.T) {
	buf, _ := newConn()
	w := NewWriter(buf)
	require.NoError(t, w.WriteFrame(KindJSON, []byte(`{"type":"HELLO"}`)))
	require.NoError(t, w.WriteFrame(KindBinary, []byte{1, 2, 3, 4}))

	r := NewReader(buf)
	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindJSON, f1.Kind)
	assert.Equal(t, []byte(`{"type":"HELLO"}`), f1.Payload)

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindBinary, f2.Kind)
	assert.Equal(t, []byte{1, 2, 3, 4}, f2.Payload)

	_, err = r.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameEmptyPayload(t *testing.T) {
	buf, _ := newConn()
	w := NewWriter(buf)
	require.NoError(t, w.WriteFrame(KindJSON, nil))

	r := NewReader(buf)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, KindJSON, f.Kind)
	assert.Len(t, f.Payload, 0)
}

func TestFrameInvalidKindByte(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte('X')
	buf.Write([]byte{0, 0, 0, 0})

	r := NewReader(buf)
	_, err := r.ReadFrame()
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
}

func TestFrameNegativeLength(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(KindJSON))
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	r := NewReader(buf)
	_, err := r.ReadFrame()
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
}

func TestFrameTruncatedPayload(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteByte(byte(KindJSON))
	buf.Write([]byte{0, 0, 0, 10})
	buf.Write([]byte{1, 2, 3})

	r := NewReader(buf)
	_, err := r.ReadFrame()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestFrameOversizeRejected(t *testing.T) {
	buf, _ := newConn()
	w := NewWriter(buf)
	err := w.WriteFrame(KindBinary, make([]byte, MaxPayloadLen+1))
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))
}

func TestFrameCleanEOFBetweenFrames(t *testing.T) {
	buf, _ := newConn()
	r := NewReader(buf)
	_, err := r.ReadFrame()
	assert.Equal(t, io.EOF, err)
}
