// Package ciktest provides an in-process CiK server for tests: a real
// TCP listener in front of a small tag-aware in-memory store, with hooks
// to inject faults and to observe connections and requests.
package ciktest

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pior/cik/proto"
)

// DefaultCapacity is the advertised memory capacity for server-level
// info queries.
const DefaultCapacity = 1 << 20

type entry struct {
	value   []byte
	tags    []string
	expires int64 // unix seconds, -1 for no expiry
	mtime   int64
}

func (e *entry) expired(now int64) bool {
	return e.expires != -1 && e.expires <= now
}

func (e *entry) hasTag(tag string) bool {
	for _, t := range e.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Server is an in-memory CiK server bound to 127.0.0.1.
type Server struct {
	listener net.Listener

	// Capacity is the advertised total memory for info queries.
	Capacity uint64

	// WriteChunkSize, when positive, splits every response into writes
	// of at most that many bytes.
	WriteChunkSize int

	mu           sync.Mutex
	store        map[string]*entry
	connCount    int
	requestCount int
	failCode     *uint32 // next request fails with this code
	corruptMagic bool    // next response header carries a bad magic
}

// Start runs a server until the test ends.
func Start(t *testing.T) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ciktest: listen: %v", err)
	}

	s := &Server{
		listener: listener,
		Capacity: DefaultCapacity,
		store:    make(map[string]*entry),
	}
	go s.acceptLoop()
	t.Cleanup(func() { listener.Close() })

	return s
}

// Addr returns the server's host:port.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Stop closes the listener. New connections are refused; established
// connections keep being served.
func (s *Server) Stop() { s.listener.Close() }

// ConnCount returns how many connections have been accepted.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connCount
}

// RequestCount returns how many requests have been served.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCount
}

// FailNext makes the next request fail with the given error code.
func (s *Server) FailNext(code uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCode = &code
}

// CorruptNext makes the next response header carry a wrong magic.
func (s *Server) CorruptNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptMagic = true
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.connCount++
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		status, payload, ok := s.serveRequest(r)
		if !ok {
			return
		}
		if err := s.writeResponse(conn, status, payload); err != nil {
			return
		}
	}
}

// serveRequest reads one request and computes the response. ok is false
// when the connection ended.
func (s *Server) serveRequest(r *bufio.Reader) (status byte, payload []byte, ok bool) {
	prefix := make([]byte, proto.RequestPrefixSize)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return 0, nil, false
	}
	if prefix[0] != proto.Magic[0] || prefix[1] != proto.Magic[1] || prefix[2] != proto.Magic[2] {
		return 0, nil, false
	}
	cmd := prefix[3]
	header := prefix[4:]

	s.mu.Lock()
	s.requestCount++
	fail := s.failCode
	s.failCode = nil
	s.mu.Unlock()

	var resp []byte
	var code uint32
	var err error

	switch cmd {
	case proto.CmdGet:
		resp, code, err = s.handleGet(r, header)
	case proto.CmdSet:
		resp, code, err = s.handleSet(r, header)
	case proto.CmdDel:
		resp, code, err = s.handleDel(r, header)
	case proto.CmdClr:
		resp, code, err = s.handleClr(r, header)
	case proto.CmdLst:
		resp, code, err = s.handleLst(r, header)
	case proto.CmdNfo:
		resp, code, err = s.handleNfo(r, header)
	default:
		return 0, nil, false
	}
	if err != nil {
		return 0, nil, false
	}

	if fail != nil {
		return proto.StatusFailure, be32(*fail), true
	}
	if code != 0 {
		return proto.StatusFailure, be32(code), true
	}
	return proto.StatusSuccess, resp, true
}

func (s *Server) writeResponse(conn net.Conn, status byte, payload []byte) error {
	head := make([]byte, 0, proto.ResponseHeaderSize)
	head = append(head, proto.Magic[0], proto.Magic[1], proto.Magic[2])

	s.mu.Lock()
	if s.corruptMagic {
		head[0] = 'X'
		s.corruptMagic = false
	}
	chunk := s.WriteChunkSize
	s.mu.Unlock()

	head = append(head, status)
	if status == proto.StatusSuccess {
		head = binary.BigEndian.AppendUint32(head, uint32(len(payload)))
		head = append(head, payload...)
	} else {
		head = append(head, payload...) // payload is the 4-byte code
	}

	if chunk <= 0 {
		_, err := conn.Write(head)
		return err
	}
	for len(head) > 0 {
		n := min(chunk, len(head))
		if _, err := conn.Write(head[:n]); err != nil {
			return err
		}
		head = head[n:]
		time.Sleep(time.Millisecond)
	}
	return nil
}

func be32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func readString(r *bufio.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readTagBlock(r *bufio.Reader, count int) ([]string, error) {
	tags := make([]string, 0, count)
	for i := 0; i < count; i++ {
		n, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		tag, err := readString(r, int(n))
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (s *Server) handleGet(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	key, err := readString(r, int(header[0]))
	if err != nil {
		return nil, 0, err
	}
	flags := proto.GetFlags(header[1])

	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.store[key]
	if !found {
		return nil, proto.CodeNotFound, nil
	}
	if e.expired(time.Now().Unix()) && flags&proto.GetIgnoreExpiry == 0 {
		return nil, proto.CodeExpired, nil
	}
	return e.value, 0, nil
}

func (s *Server) handleSet(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	keyLen := int(header[0])
	tagCount := int(header[1])
	flags := proto.SetFlags(header[2])
	valueLen := binary.BigEndian.Uint32(header[8:12])
	wireTTL := binary.BigEndian.Uint32(header[12:16])

	key, err := readString(r, keyLen)
	if err != nil {
		return nil, 0, err
	}
	tags, err := readTagBlock(r, tagCount)
	if err != nil {
		return nil, 0, err
	}
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, 0, err
	}

	now := time.Now().Unix()
	expires := int64(-1)
	if ttl := proto.DecodeTTL(wireTTL); ttl != proto.TTLInfinite {
		expires = now + int64(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if flags&proto.SetTTLOnly != 0 {
		e, found := s.store[key]
		if !found {
			return nil, proto.CodeNotFound, nil
		}
		e.expires = expires
		return nil, 0, nil
	}

	if s.usedLocked()+uint64(len(value)) > s.Capacity {
		return nil, proto.CodeOutOfMemory, nil
	}
	s.store[key] = &entry{value: value, tags: tags, expires: expires, mtime: now}
	return nil, 0, nil
}

func (s *Server) handleDel(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	key, err := readString(r, int(header[0]))
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.store[key]; !found {
		return nil, proto.CodeNotFound, nil
	}
	delete(s.store, key)
	return nil, 0, nil
}

func matches(e *entry, mode proto.ClearMode, tags []string) bool {
	switch mode {
	case proto.ClearMatchAll:
		for _, tag := range tags {
			if !e.hasTag(tag) {
				return false
			}
		}
		return true
	case proto.ClearMatchNone:
		for _, tag := range tags {
			if e.hasTag(tag) {
				return false
			}
		}
		return true
	case proto.ClearMatchAny:
		for _, tag := range tags {
			if e.hasTag(tag) {
				return true
			}
		}
		return false
	}
	return false
}

func (s *Server) handleClr(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	mode := proto.ClearMode(header[0])
	tags, err := readTagBlock(r, int(header[1]))
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case proto.ClearAll:
		if len(tags) > 0 {
			return nil, proto.ClassClient | 0x01, nil
		}
		s.store = make(map[string]*entry)
	case proto.ClearOld:
		if len(tags) > 0 {
			return nil, proto.ClassClient | 0x01, nil
		}
		now := time.Now().Unix()
		for key, e := range s.store {
			if e.expired(now) {
				delete(s.store, key)
			}
		}
	case proto.ClearMatchAll, proto.ClearMatchNone, proto.ClearMatchAny:
		for key, e := range s.store {
			if matches(e, mode, tags) {
				delete(s.store, key)
			}
		}
	default:
		return nil, proto.ClassClient | 0x02, nil
	}
	return nil, 0, nil
}

func (s *Server) handleLst(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	mode := proto.ListMode(header[0])
	tags, err := readTagBlock(r, int(header[1]))
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []string
	switch mode {
	case proto.ListKeys:
		for key := range s.store {
			entries = append(entries, key)
		}
	case proto.ListTags:
		seen := make(map[string]struct{})
		for _, e := range s.store {
			for _, tag := range e.tags {
				if _, dup := seen[tag]; !dup {
					seen[tag] = struct{}{}
					entries = append(entries, tag)
				}
			}
		}
	case proto.ListMatchAll, proto.ListMatchNone, proto.ListMatchAny:
		for key, e := range s.store {
			if matches(e, proto.ClearMode(mode), tags) {
				entries = append(entries, key)
			}
		}
	default:
		return nil, proto.ClassClient | 0x03, nil
	}

	var payload []byte
	for _, entry := range entries {
		payload = append(payload, byte(len(entry)))
		payload = append(payload, entry...)
	}
	return payload, 0, nil
}

func (s *Server) handleNfo(r *bufio.Reader, header []byte) ([]byte, uint32, error) {
	keyLen := int(header[0])

	if keyLen == 0 {
		s.mu.Lock()
		used := s.usedLocked()
		capacity := s.Capacity
		s.mu.Unlock()

		payload := binary.BigEndian.AppendUint64(nil, used)
		return binary.BigEndian.AppendUint64(payload, capacity-used), 0, nil
	}

	key, err := readString(r, keyLen)
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.store[key]
	if !found {
		return nil, proto.CodeNotFound, nil
	}

	payload := binary.BigEndian.AppendUint64(nil, uint64(e.expires))
	payload = binary.BigEndian.AppendUint64(payload, uint64(e.mtime))
	for _, tag := range e.tags {
		payload = append(payload, byte(len(tag)))
		payload = append(payload, tag...)
	}
	return payload, 0, nil
}

func (s *Server) usedLocked() uint64 {
	var used uint64
	for _, e := range s.store {
		used += uint64(len(e.value))
	}
	return used
}
