package testutils

import (
	"bytes"
	"net"
	"time"
)

// ConnectionMock is a scriptable net.Conn for codec-level tests. It
// serves pre-configured response bytes and records everything written.
type ConnectionMock struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer

	// ReadChunkSize caps how many bytes a single Read returns.
	// Zero means no cap. Use 1 to simulate a dribbling transport.
	ReadChunkSize int

	// WriteErr, when set, is returned by the next Write.
	WriteErr error

	closed bool
}

// NewConnectionMock creates a mock connection serving responseData.
func NewConnectionMock(responseData ...[]byte) *ConnectionMock {
	return &ConnectionMock{
		readBuf:  bytes.NewBuffer(bytes.Join(responseData, nil)),
		writeBuf: &bytes.Buffer{},
	}
}

func (m *ConnectionMock) Read(b []byte) (int, error) {
	if m.ReadChunkSize > 0 && len(b) > m.ReadChunkSize {
		b = b[:m.ReadChunkSize]
	}
	return m.readBuf.Read(b)
}

func (m *ConnectionMock) Write(b []byte) (int, error) {
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *ConnectionMock) Closed() bool { return m.closed }

// Written returns the raw request bytes written so far.
func (m *ConnectionMock) Written() []byte { return m.writeBuf.Bytes() }

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1121}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }
