package proto

import (
	"encoding/binary"
	"fmt"
)

// Header is a decoded response header.
type Header struct {
	// OK is true when the status byte was StatusSuccess.
	OK bool

	// N is the sizeOrError field: the payload length on success, the
	// error code on failure.
	N uint32
}

// ParseHeader decodes the fixed 8-byte response header. A wrong magic or
// an unrecognized status byte means the stream is desynced and yields a
// ProtocolError carrying the raw header bytes.
func ParseHeader(b []byte) (Header, error) {
	if len(b) != ResponseHeaderSize {
		return Header{}, &ProtocolError{
			Message: fmt.Sprintf("response header is %d bytes, want %d", len(b), ResponseHeaderSize),
			Raw:     b,
		}
	}
	if b[0] != Magic[0] || b[1] != Magic[1] || b[2] != Magic[2] {
		return Header{}, &ProtocolError{Message: "bad magic", Raw: b}
	}

	n := binary.BigEndian.Uint32(b[4:8])

	switch b[3] {
	case StatusSuccess:
		return Header{OK: true, N: n}, nil
	case StatusFailure:
		return Header{OK: false, N: n}, nil
	default:
		return Header{}, &ProtocolError{
			Message: fmt.Sprintf("unknown status byte 0x%02x", b[3]),
			Raw:     b,
		}
	}
}

// ParseList decodes a LST success payload: length-prefixed entries
// consumed until the payload is exhausted. A zero-length entry is valid
// and decodes to the empty string. A length prefix pointing past the end
// of the payload is malformed.
func ParseList(payload []byte) ([]string, error) {
	var entries []string
	for i := 0; i < len(payload); {
		n := int(payload[i])
		i++
		if i+n > len(payload) {
			return nil, &ProtocolError{
				Message: fmt.Sprintf("list entry of %d bytes overruns payload", n),
				Raw:     payload,
			}
		}
		entries = append(entries, string(payload[i:i+n]))
		i += n
	}
	return entries, nil
}

// ServerInfo is the decoded server-level NFO payload.
type ServerInfo struct {
	MemUsed uint64
	MemFree uint64
}

// PercentFull derives how full the server is from the memory counters,
// rounded up. Zero counters yield 0.
func (s ServerInfo) PercentFull() int {
	total := s.MemUsed + s.MemFree
	if total == 0 {
		return 0
	}
	// ceil(used * 100 / total) without floating point
	return int((s.MemUsed*100 + total - 1) / total)
}

// ParseServerInfo decodes a server-level NFO success payload: two
// big-endian uint64 counters, memory used then memory free.
func ParseServerInfo(payload []byte) (ServerInfo, error) {
	if len(payload) != 16 {
		return ServerInfo{}, &ProtocolError{
			Message: fmt.Sprintf("server info payload is %d bytes, want 16", len(payload)),
			Raw:     payload,
		}
	}
	return ServerInfo{
		MemUsed: binary.BigEndian.Uint64(payload[0:8]),
		MemFree: binary.BigEndian.Uint64(payload[8:16]),
	}, nil
}

// KeyInfo is the decoded key-level NFO payload.
type KeyInfo struct {
	// Expires is the expiry timestamp in Unix seconds, or -1 when the
	// entry never expires.
	Expires int64

	// Mtime is the last-modified timestamp in Unix seconds.
	Mtime int64

	// Tags is the entry's tag set.
	Tags []string
}

// Infinite reports whether the entry has no expiry.
func (k KeyInfo) Infinite() bool { return k.Expires == -1 }

// ParseKeyInfo decodes a key-level NFO success payload: expires and mtime
// as big-endian int64, then a tag block. Unlike LST entries, a zero-length
// tag is malformed.
func ParseKeyInfo(payload []byte) (KeyInfo, error) {
	if len(payload) < 16 {
		return KeyInfo{}, &ProtocolError{
			Message: fmt.Sprintf("key info payload is %d bytes, want at least 16", len(payload)),
			Raw:     payload,
		}
	}

	info := KeyInfo{
		Expires: int64(binary.BigEndian.Uint64(payload[0:8])),
		Mtime:   int64(binary.BigEndian.Uint64(payload[8:16])),
	}

	for i := 16; i < len(payload); {
		n := int(payload[i])
		i++
		if n == 0 {
			return KeyInfo{}, &ProtocolError{Message: "zero-length tag in key info", Raw: payload}
		}
		if i+n > len(payload) {
			return KeyInfo{}, &ProtocolError{
				Message: fmt.Sprintf("tag of %d bytes overruns payload", n),
				Raw:     payload,
			}
		}
		info.Tags = append(info.Tags, string(payload[i:i+n]))
		i += n
	}

	return info, nil
}
