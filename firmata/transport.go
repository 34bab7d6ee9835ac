package firmata

import "io"

// Transport is the byte stream between the engine and the device.
//
// The engine's reader loop is the only caller of ReadByte. ReadByte blocks
// until a byte arrives and returns io.EOF once the stream is gone. Close must
// release a blocked ReadByte where the underlying stream allows it.
type Transport interface {
	io.Writer
	io.Closer

	// ReadByte reads one byte, blocking until it is available.
	ReadByte() (byte, error)

	// BytesAvailable returns the number of bytes that can be read without
	// blocking.
	BytesAvailable() (int, error)
}

// InputResetter is implemented by transports that can discard pending input
// at the OS or driver level. Start uses it to drop stale bytes left by a
// previous session.
type InputResetter interface {
	ResetInputBuffer() error
}
