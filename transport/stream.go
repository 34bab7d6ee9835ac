// Package transport provides byte streams for the firmata engine: a generic
// adapter over any io.ReadWriteCloser, serial ports and TCP sockets.
package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync/atomic"
)

// DefaultBufferSize is the read buffer size of a Stream.
const DefaultBufferSize = 4096

// inputResetter matches streams that can discard pending OS level input.
type inputResetter interface {
	ResetInputBuffer() error
}

// Stream adapts an io.ReadWriteCloser to the engine's transport contract.
//
// Reads are buffered. Once the stream is closed, or the peer goes away,
// ReadByte returns io.EOF. ReadByte, BytesAvailable and ResetInputBuffer
// share the read buffer and must not be called concurrently with each other.
type Stream struct {
	rwc    io.ReadWriteCloser
	r      *bufio.Reader
	closed atomic.Bool
}

// NewStream wraps rwc.
func NewStream(rwc io.ReadWriteCloser) *Stream {
	return NewStreamSize(rwc, DefaultBufferSize)
}

// NewStreamSize wraps rwc with a read buffer of the given size.
func NewStreamSize(rwc io.ReadWriteCloser, size int) *Stream {
	return &Stream{rwc: rwc, r: bufio.NewReaderSize(rwc, size)}
}

// ReadByte reads one byte, blocking until it is available.
func (s *Stream) ReadByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err != nil {
		if s.closed.Load() || isEndOfStream(err) {
			return 0, io.EOF
		}

		return 0, err
	}

	return b, nil
}

// Write writes p to the underlying stream.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.ErrClosedPipe
	}

	return s.rwc.Write(p)
}

// Close closes the underlying stream. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	return s.rwc.Close()
}

// BytesAvailable returns the number of buffered bytes that ReadByte returns
// without blocking.
func (s *Stream) BytesAvailable() (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}

	return s.r.Buffered(), nil
}

// ResetInputBuffer drops buffered input, including the OS buffer when the
// underlying stream supports it.
func (s *Stream) ResetInputBuffer() error {
	if _, err := s.r.Discard(s.r.Buffered()); err != nil {
		return err
	}
	if r, ok := s.rwc.(inputResetter); ok {
		return r.ResetInputBuffer()
	}

	return nil
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
