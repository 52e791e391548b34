package cik

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/cik/internal/ciktest"
	"github.com/pior/cik/proto"
)

func newTestClient(t *testing.T) (*Client, *ciktest.Server) {
	t.Helper()

	server := ciktest.Start(t)
	client, err := NewClient(server.Addr(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, server
}

func TestNewClientRequiresAddr(t *testing.T) {
	_, err := NewClient("", Config{})
	require.Error(t, err)
}

func TestSetGetRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	value := []byte("hello \x00 binary \xff world")
	stored, err := client.Set(ctx, Item{
		Key:   "greeting",
		Value: value,
		Tags:  []string{"demo", "greetings"},
		TTL:   300,
	})
	require.NoError(t, err)
	require.True(t, stored)

	item, err := client.Get(ctx, "greeting", 0)
	require.NoError(t, err)
	require.True(t, item.Found)
	assert.Equal(t, value, item.Value)
	assert.Equal(t, proto.CondNone, item.Condition)
}

func TestGetEmptyValue(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	stored, err := client.Set(ctx, Item{Key: "empty", TTL: TTLForever})
	require.NoError(t, err)
	require.True(t, stored)

	item, err := client.Get(ctx, "empty", 0)
	require.NoError(t, err)
	require.True(t, item.Found)
	assert.Empty(t, item.Value)
}

func TestGetMiss(t *testing.T) {
	client, _ := newTestClient(t)

	item, err := client.Get(context.Background(), "nope", 0)
	require.NoError(t, err, "a miss is a soft condition, not an error")
	assert.False(t, item.Found)
	assert.Equal(t, proto.CondNotFound, item.Condition)
}

func TestDelete(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "doomed", Value: []byte("x"), TTL: TTLForever})
	require.NoError(t, err)

	deleted, err := client.Delete(ctx, "doomed")
	require.NoError(t, err)
	assert.True(t, deleted)

	item, err := client.Get(ctx, "doomed", 0)
	require.NoError(t, err)
	assert.False(t, item.Found)
	assert.Equal(t, proto.CondNotFound, item.Condition)

	// Deleting a missing key is a soft miss, not an error.
	deleted, err = client.Delete(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestExpiredEntry(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	// TTL 0 means "already expired" by server semantics.
	stored, err := client.Set(ctx, Item{Key: "stale", Value: []byte("old"), TTL: 0})
	require.NoError(t, err)
	require.True(t, stored)

	item, err := client.Get(ctx, "stale", 0)
	require.NoError(t, err)
	assert.False(t, item.Found)
	assert.Equal(t, proto.CondExpired, item.Condition)

	// The ignore-expiry flag still reads the stored value.
	item, err = client.Get(ctx, "stale", proto.GetIgnoreExpiry)
	require.NoError(t, err)
	require.True(t, item.Found)
	assert.Equal(t, []byte("old"), item.Value)
}

func TestInfiniteTTL(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "forever", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)

	info, found, err := client.KeyInfo(ctx, "forever")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, info.Infinite())
	assert.EqualValues(t, -1, info.Expires)
}

func TestTouch(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)

	touched, err := client.Touch(ctx, "k", 3600)
	require.NoError(t, err)
	assert.True(t, touched)

	info, found, err := client.KeyInfo(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, info.Infinite())

	// Value untouched by a TTL-only update.
	item, err := client.Get(ctx, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), item.Value)

	touched, err = client.Touch(ctx, "missing", 3600)
	require.NoError(t, err)
	assert.False(t, touched)
}

func TestInvalidTTLRejectedLocally(t *testing.T) {
	client, server := newTestClient(t)

	_, err := client.Set(context.Background(), Item{Key: "k", TTL: -7})
	require.Error(t, err)

	var reqErr *proto.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, server.RequestCount(), "invalid ttl must not reach the wire")
}

func TestClearModeValidatedLocally(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	_, err := client.Clear(ctx, proto.ClearAll, []string{"x"})
	require.Error(t, err)

	var reqErr *proto.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Zero(t, server.RequestCount(), "rejected clear must not reach the wire")

	// The same mode without tags goes through.
	cleared, err := client.Clear(ctx, proto.ClearAll, nil)
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Equal(t, 1, server.RequestCount())
}

func TestClearByTags(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	seed := func(key string, tags ...string) {
		t.Helper()
		_, err := client.Set(ctx, Item{Key: key, Value: []byte(key), Tags: tags, TTL: TTLForever})
		require.NoError(t, err)
	}
	seed("a", "red", "round")
	seed("b", "red")
	seed("c", "blue")

	cleared, err := client.Clear(ctx, proto.ClearMatchAny, []string{"red"})
	require.NoError(t, err)
	assert.True(t, cleared)

	for key, want := range map[string]bool{"a": false, "b": false, "c": true} {
		item, err := client.Get(ctx, key, 0)
		require.NoError(t, err)
		assert.Equal(t, want, item.Found, "key %q", key)
	}
}

func TestList(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "a", Value: []byte("1"), Tags: []string{"odd"}, TTL: TTLForever})
	require.NoError(t, err)
	_, err = client.Set(ctx, Item{Key: "b", Value: []byte("2"), Tags: []string{"even"}, TTL: TTLForever})
	require.NoError(t, err)
	_, err = client.Set(ctx, Item{Key: "c", Value: []byte("3"), Tags: []string{"odd"}, TTL: TTLForever})
	require.NoError(t, err)

	keys, err := client.List(ctx, proto.ListKeys, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

	tags, err := client.List(ctx, proto.ListTags, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"odd", "even"}, tags)

	odd, err := client.List(ctx, proto.ListMatchAll, []string{"odd"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, odd)

	notOdd, err := client.List(ctx, proto.ListMatchNone, []string{"odd"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b"}, notOdd)
}

func TestInfo(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.MemUsed)
	assert.Equal(t, uint64(ciktest.DefaultCapacity), info.MemFree)
	assert.Zero(t, info.PercentFull())

	_, err = client.Set(ctx, Item{Key: "k", Value: make([]byte, 1024), TTL: TTLForever})
	require.NoError(t, err)

	info, err = client.Info(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, info.MemUsed)
	assert.Positive(t, info.PercentFull())
}

func TestKeyInfo(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), Tags: []string{"t1", "t2"}, TTL: 600})
	require.NoError(t, err)

	info, found, err := client.KeyInfo(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.ElementsMatch(t, []string{"t1", "t2"}, info.Tags)
	assert.False(t, info.Infinite())
	assert.Positive(t, info.Mtime)

	_, found, err = client.KeyInfo(ctx, "missing")
	require.NoError(t, err, "key-level miss is a soft condition")
	assert.False(t, found)

	_, _, err = client.KeyInfo(ctx, "")
	require.Error(t, err, "empty key must not be sent as a server-level query")
}

func TestOversizedIdentifiersRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	longKey := strings.Repeat("K", 2000)
	longTag := strings.Repeat("T", 300)

	_, err := client.Set(ctx, Item{Key: longKey, Value: []byte("v"), Tags: []string{longTag}, TTL: TTLForever})
	require.NoError(t, err)

	item, err := client.Get(ctx, longKey, 0)
	require.NoError(t, err)
	require.True(t, item.Found)
	assert.Equal(t, []byte("v"), item.Value)

	// Tag filters normalize the same way, so the long tag still matches.
	keys, err := client.List(ctx, proto.ListMatchAll, []string{longTag})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Len(t, keys[0], 128, "server stores the digest form of the key")
}

func TestMalformedHeaderClosesAndReconnects(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)
	require.Equal(t, 1, server.ConnCount())

	server.CorruptNext()
	_, err = client.Get(ctx, "k", 0)
	require.Error(t, err)

	var protoErr *proto.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.NotEmpty(t, protoErr.Raw)

	// The next operation reconnects lazily and succeeds.
	item, err := client.Get(ctx, "k", 0)
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, 2, server.ConnCount())
}

func TestSoftConditionKeepsConnection(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	item, err := client.Get(ctx, "missing", 0)
	require.NoError(t, err)
	require.False(t, item.Found)

	// A second operation must reuse the same connection.
	_, err = client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)
	assert.Equal(t, 1, server.ConnCount())
}

func TestServerFaultClosesConnection(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)

	server.FailNext(proto.ClassInternal | 0x05)
	_, err = client.Get(ctx, "k", 0)
	require.Error(t, err)

	var srvErr *proto.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, proto.ClassInternal|0x05, srvErr.Code)

	item, err := client.Get(ctx, "k", 0)
	require.NoError(t, err)
	assert.True(t, item.Found)
	assert.Equal(t, 2, server.ConnCount(), "server fault must tear the connection down")
}

func TestClientFaultClosesConnection(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)

	server.FailNext(proto.ClassClient | 0x09)
	_, err = client.Get(ctx, "k", 0)
	require.Error(t, err)

	var cliErr *proto.ClientError
	require.ErrorAs(t, err, &cliErr)

	_, err = client.Get(ctx, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, server.ConnCount())
}

func TestChunkedResponses(t *testing.T) {
	client, server := newTestClient(t)
	server.WriteChunkSize = 1
	ctx := context.Background()

	value := []byte("assembled from single bytes")
	_, err := client.Set(ctx, Item{Key: "k", Value: value, TTL: TTLForever})
	require.NoError(t, err)

	item, err := client.Get(ctx, "k", 0)
	require.NoError(t, err)
	require.True(t, item.Found)
	assert.Equal(t, value, item.Value)
}

func TestConnectFailure(t *testing.T) {
	server := ciktest.Start(t)
	addr := server.Addr()
	client, err := NewClient(addr, Config{})
	require.NoError(t, err)

	// Shut the listener down before the first exchange.
	server.Stop()

	_, err = client.Get(context.Background(), "k", 0)
	require.Error(t, err)

	var connErr *proto.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "connect", connErr.Op)
}

func TestCloseIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), "k", 0)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestStatsCounters(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Set(ctx, Item{Key: "k", Value: []byte("v"), TTL: TTLForever})
	require.NoError(t, err)

	_, err = client.Get(ctx, "k", 0)
	require.NoError(t, err)
	_, err = client.Get(ctx, "missing", 0)
	require.NoError(t, err)
	_, err = client.Delete(ctx, "k")
	require.NoError(t, err)

	stats := client.Stats()
	assert.EqualValues(t, 2, stats.Gets)
	assert.EqualValues(t, 1, stats.GetHits)
	assert.EqualValues(t, 1, stats.Sets)
	assert.EqualValues(t, 1, stats.Deletes)
	assert.Zero(t, stats.Errors)
}
