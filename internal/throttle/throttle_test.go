package throttle

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPassthroughWhenLimiterNil(t *testing.T) {
	src := bytes.NewReader([]byte("hello world"))
	r := NewReader(context.Background(), src, nil)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestWriterPassthroughWhenLimiterNil(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, nil)
	n, err := w.Write([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "payload", buf.String())
}

func TestReaderThrottlesUnderLimiter(t *testing.T) {
	limiter := NewLimiter(1 << 30) // generous; just confirm it doesn't block the happy path
	src := bytes.NewReader(bytes.Repeat([]byte("x"), 4096))
	r := NewReader(context.Background(), src, limiter)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, got, 4096)
}

func TestNewLimiterCapsBurstToRate(t *testing.T) {
	limiter := NewLimiter(1024)
	assert.Equal(t, 1024, limiter.Burst())
}

func TestReaderHandlesReadsLargerThanBurst(t *testing.T) {
	limiter := NewLimiter(256) // burst capped to 256 bytes
	payload := bytes.Repeat([]byte("y"), 4096)
	src := bytes.NewReader(payload)
	r := NewReader(context.Background(), src, limiter)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriterHandlesWritesLargerThanBurst(t *testing.T) {
	limiter := NewLimiter(256)
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, limiter)
	payload := bytes.Repeat([]byte("z"), 4096)

	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf.Bytes())
}

func TestWaitBytesSpansMultipleBurstChunks(t *testing.T) {
	limiter := NewLimiter(256)
	require.NoError(t, WaitBytes(context.Background(), limiter, 4096))
	assert.NoError(t, WaitBytes(context.Background(), nil, 4096))
}
