package cik

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pior/cik/proto"
)

// TTLForever stores an item without expiration.
const TTLForever = proto.TTLInfinite

// Item is a cache entry retrieved from or stored into the server.
type Item struct {
	Key   string
	Value []byte

	// Tags and TTL are consumed by Set; Get does not return them
	// (use KeyInfo for entry metadata).
	Tags []string
	TTL  int32 // seconds, TTLForever for no expiration

	// Found indicates whether Get found a live value. When false,
	// Condition says why the server answered without one.
	Found     bool
	Condition proto.Condition
}

// Config holds configuration for a Client.
type Config struct {
	// DialTimeout bounds each (re)connect attempt.
	// Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used to create connections.
	// If nil, a default dialer with DialTimeout is used.
	Dialer *net.Dialer

	// NewCircuitBreaker creates a circuit breaker for the server.
	// Called once with the server address when the client is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker
}

// Client is a CiK protocol client owning a single lazily-opened
// connection to one server.
//
// Each exchange is a strict request/response pair; a mutex serializes
// them, so a Client is safe for concurrent use but never has more than
// one request in flight. Any hard fault (network, protocol, server,
// client) closes the connection and the next call reconnects. Soft
// conditions (not found, expired, ...) leave the connection open.
//
// Read and write on an established connection are unbounded unless the
// context carries a deadline: a hung peer blocks the calling goroutine
// until then.
type Client struct {
	addr   string
	dialer *net.Dialer
	cb     CircuitBreaker
	stats  *clientStatsCollector

	mu   sync.Mutex
	conn net.Conn // nil when closed
}

// NewClient creates a client for the server at addr ("host:port").
// No connection is made until the first operation.
func NewClient(addr string, config Config) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("cik: no server address provided")
	}

	dialer := config.Dialer
	if dialer == nil {
		timeout := config.DialTimeout
		if timeout == 0 {
			timeout = DefaultDialTimeout
		}
		dialer = &net.Dialer{Timeout: timeout}
	}

	client := &Client{
		addr:   addr,
		dialer: dialer,
		stats:  newClientStatsCollector(),
	}
	if config.NewCircuitBreaker != nil {
		client.cb = config.NewCircuitBreaker(addr)
	}

	return client, nil
}

// Addr returns the configured server address.
func (c *Client) Addr() string { return c.addr }

// Stats returns a snapshot of the operation counters.
func (c *Client) Stats() ClientStats { return c.stats.snapshot() }

// Close closes the connection if one is open. The client remains usable:
// the next operation reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ensureConnected dials if no connection is open. Must be called with
// c.mu held. A connect failure leaves the client closed.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := dialServer(ctx, c.dialer, c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

// outcome is the classified result of one exchange.
type outcome struct {
	cond    proto.Condition
	payload []byte
}

// roundTrip performs one request/response exchange, wrapped by the
// circuit breaker when one is configured.
func (c *Client) roundTrip(ctx context.Context, req []byte) (outcome, error) {
	if c.cb == nil {
		return c.exchange(ctx, req)
	}

	v, err := c.cb.Execute(func() (any, error) {
		out, err := c.exchange(ctx, req)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return outcome{}, err
	}
	return v.(outcome), nil
}

// exchange writes one request frame and reads back one framed response,
// classifying a failure status into a soft condition or a hard error.
// Every hard fault tears the connection down before returning.
func (c *Client) exchange(ctx context.Context, req []byte) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConnected(ctx); err != nil {
		return outcome{}, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	if err := writeAll(c.conn, req); err != nil {
		c.closeLocked()
		return outcome{}, err
	}

	raw, err := readExact(c.conn, proto.ResponseHeaderSize)
	if err != nil {
		c.closeLocked()
		return outcome{}, err
	}

	hdr, err := proto.ParseHeader(raw)
	if err != nil {
		c.closeLocked()
		return outcome{}, err
	}

	if hdr.OK {
		payload, err := readExact(c.conn, int(hdr.N))
		if err != nil {
			c.closeLocked()
			return outcome{}, err
		}
		return outcome{payload: payload}, nil
	}

	cond, err := proto.ClassifyCode(hdr.N)
	if err != nil {
		c.closeLocked()
		return outcome{}, err
	}
	return outcome{cond: cond}, nil
}

// fault tears the connection down when err invalidates it. Used for
// faults detected after the exchange completed, such as a payload that
// does not decode.
func (c *Client) fault(err error) {
	if proto.ShouldCloseConnection(err) {
		c.mu.Lock()
		c.closeLocked()
		c.mu.Unlock()
	}
}

// Get retrieves the value stored under key. A soft condition (not found,
// expired) is not an error: it returns an Item with Found set to false
// and Condition saying why.
func (c *Client) Get(ctx context.Context, key string, flags proto.GetFlags) (Item, error) {
	req := proto.AppendGet(nil, key, flags)

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return Item{}, err
	}

	if out.cond != proto.CondNone {
		c.stats.recordGet(false)
		return Item{Key: key, Found: false, Condition: out.cond}, nil
	}

	c.stats.recordGet(true)
	return Item{Key: key, Value: out.payload, Found: true}, nil
}

// Set stores item.Value under item.Key with its tag set and TTL.
// It returns true when the server stored the entry; a soft condition
// (out of memory, limit exceeded) returns false without an error.
func (c *Client) Set(ctx context.Context, item Item) (bool, error) {
	return c.set(ctx, item, 0)
}

// Touch updates only the TTL of an existing entry, leaving value and
// tags untouched. Whether the server applies ttl as an absolute
// replacement or relative to the previously stored TTL is defined by
// the server, not by this client.
func (c *Client) Touch(ctx context.Context, key string, ttl int32) (bool, error) {
	return c.set(ctx, Item{Key: key, TTL: ttl}, proto.SetTTLOnly)
}

func (c *Client) set(ctx context.Context, item Item, flags proto.SetFlags) (bool, error) {
	req, err := proto.AppendSet(nil, item.Key, item.Value, item.Tags, item.TTL, flags)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	c.stats.recordSet()
	// Success with a non-empty payload is tolerated and discarded.
	return out.cond == proto.CondNone, nil
}

// Delete removes the entry stored under key. It returns true when an
// entry was removed; a miss returns false without an error.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	req := proto.AppendDelete(nil, key)

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	c.stats.recordDelete()
	return out.cond == proto.CondNone, nil
}

// Clear removes entries in bulk according to mode. ClearAll and ClearOld
// must be called without tags; the combination is rejected locally
// without a round trip.
func (c *Client) Clear(ctx context.Context, mode proto.ClearMode, tags []string) (bool, error) {
	req, err := proto.AppendClear(nil, mode, tags)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	c.stats.recordClear()
	return out.cond == proto.CondNone, nil
}

// List enumerates keys or tags according to mode. The match modes return
// keys filtered by the given tag set.
func (c *Client) List(ctx context.Context, mode proto.ListMode, tags []string) ([]string, error) {
	req, err := proto.AppendList(nil, mode, tags)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	if out.cond != proto.CondNone {
		// Nothing matched; an empty enumeration, not a failure.
		c.stats.recordList()
		return nil, nil
	}

	entries, err := proto.ParseList(out.payload)
	if err != nil {
		c.stats.recordError()
		c.fault(err)
		return nil, err
	}

	c.stats.recordList()
	return entries, nil
}

// Info queries server-level stats: the memory used and free counters.
func (c *Client) Info(ctx context.Context) (proto.ServerInfo, error) {
	req := proto.AppendInfo(nil, "")

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return proto.ServerInfo{}, err
	}
	if out.cond != proto.CondNone {
		c.stats.recordInfo()
		return proto.ServerInfo{}, nil
	}

	info, err := proto.ParseServerInfo(out.payload)
	if err != nil {
		c.stats.recordError()
		c.fault(err)
		return proto.ServerInfo{}, err
	}

	c.stats.recordInfo()
	return info, nil
}

// KeyInfo queries the metadata of one entry: expiry, last-modified time
// and tag set. A miss returns found == false without an error.
func (c *Client) KeyInfo(ctx context.Context, key string) (info proto.KeyInfo, found bool, err error) {
	if key == "" {
		// An empty key would reach the server as a server-level query.
		c.stats.recordError()
		return proto.KeyInfo{}, false, &proto.RequestError{Message: "empty key for key-level info"}
	}

	req := proto.AppendInfo(nil, key)

	out, err := c.roundTrip(ctx, req)
	if err != nil {
		c.stats.recordError()
		return proto.KeyInfo{}, false, err
	}

	if out.cond != proto.CondNone {
		c.stats.recordInfo()
		return proto.KeyInfo{}, false, nil
	}

	info, err = proto.ParseKeyInfo(out.payload)
	if err != nil {
		c.stats.recordError()
		c.fault(err)
		return proto.KeyInfo{}, false, err
	}

	c.stats.recordInfo()
	return info, true, nil
}
