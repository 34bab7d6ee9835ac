package transport

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStream_ReadWrite(t *testing.T) {
	require := require.New(t)

	host, dev := net.Pipe()
	s := NewStream(host)
	t.Cleanup(func() { _ = s.Close(); _ = dev.Close() })

	go func() {
		buf := make([]byte, 3)
		if _, err := io.ReadFull(dev, buf); err != nil {
			return
		}
		_, _ = dev.Write(buf)
	}()

	n, err := s.Write([]byte{0xF0, 0x79, 0xF7})
	require.NoError(err)
	require.Equal(3, n)

	b, err := s.ReadByte()
	require.NoError(err)
	require.Equal(byte(0xF0), b)

	// the rest of the echo is buffered
	avail, err := s.BytesAvailable()
	require.NoError(err)
	require.Equal(2, avail)

	require.NoError(s.ResetInputBuffer())
	avail, err = s.BytesAvailable()
	require.NoError(err)
	require.Zero(avail)
}

func TestStream_PeerClosed(t *testing.T) {
	host, dev := net.Pipe()
	s := NewStream(host)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, dev.Close())

	_, err := s.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestStream_Close(t *testing.T) {
	require := require.New(t)

	host, dev := net.Pipe()
	t.Cleanup(func() { _ = dev.Close() })
	s := NewStream(host)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ReadByte()
		errCh <- err
	}()

	require.NoError(s.Close())
	require.NoError(s.Close())
	require.ErrorIs(<-errCh, io.EOF)

	_, err := s.Write([]byte{0x00})
	require.ErrorIs(err, io.ErrClosedPipe)

	_, err = s.BytesAvailable()
	require.ErrorIs(err, io.EOF)
}
