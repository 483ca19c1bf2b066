package protocol

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, b := Pipe()

	require.NoError(t, a.Send(Ready{}))
	require.NoError(t, a.Send(Edit{Content: "x"}))
	require.NoError(t, b.Send(Init{Value: "v"}))

	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ready{}, msg)
	msg, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Edit{Content: "x"}, msg)

	msg, err = a.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Init{Value: "v"}, msg)

	require.NoError(t, a.Send(Update{Content: "queued"}))
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(Ready{}), ErrClosed)

	msg, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Update{Content: "queued"}, msg)
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipe_ReceiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _ := Pipe()
	_, err := a.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	left, right := net.Pipe()
	a, b := NewStream(left, nil), NewStream(right, nil)
	defer func() { _ = b.Close() }()

	go func() {
		assert.NoError(t, a.Send(GetFileData{RequestID: 7}))
		assert.NoError(t, a.Send(Response{RequestID: 7, Body: "# line\n\nmore"}))
	}()

	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, GetFileData{RequestID: 7}, msg)
	msg, err = b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Response{RequestID: 7, Body: "# line\n\nmore"}, msg)

	require.NoError(t, a.Close())
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_SkipsMalformed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	left, right := net.Pipe()
	b := NewStream(right, nil)
	defer func() { _ = b.Close() }()

	go func() {
		_, _ = left.Write([]byte("garbage\n\n{\"type\":\"ready\"}\n"))
		_ = left.Close()
	}()

	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Ready{}, msg)
	_, err = b.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
