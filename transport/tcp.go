package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds DialTCP when ctx has no deadline.
const DefaultDialTimeout = 5 * time.Second

// DialTCP connects to a device exposing Firmata over TCP, such as a board
// running StandardFirmataWiFi.
func DialTCP(ctx context.Context, addr string) (*Stream, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	return NewStream(conn), nil
}
