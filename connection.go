package cik

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pior/cik/proto"
)

// DefaultDialTimeout bounds how long a lazy (re)connect may take.
const DefaultDialTimeout = 2500 * time.Millisecond

// dialServer opens the TCP stream to addr and disables send-coalescing so
// small request frames go out immediately.
func dialServer(ctx context.Context, dialer *net.Dialer, addr string) (net.Conn, error) {
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &proto.ConnectionError{Op: "connect", Err: err}
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}

	return conn, nil
}

// writeAll loops until every byte of b is sent. A failed or zero-byte
// write leaves the stream framing in an unknown state and surfaces as a
// connection fault.
func writeAll(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return &proto.ConnectionError{Op: "write", Err: err}
		}
		if n == 0 {
			return &proto.ConnectionError{Op: "write", Err: io.ErrShortWrite}
		}
		b = b[n:]
	}
	return nil
}

// readExact loops until exactly n bytes have been read, tolerating a
// transport that delivers the response in arbitrarily short chunks.
// n == 0 returns immediately with an empty result.
func readExact(conn net.Conn, n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, &proto.ConnectionError{Op: "read", Err: err}
	}
	return buf, nil
}
