package cik

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/pior/cik/internal"
	"github.com/pior/cik/proto"
)

// Ring routes operations across a static set of CiK servers, one Client
// (and therefore one connection) per server. Per-key operations go to the
// server selected by Jump Hash over the xxh3 of the raw key, so a key
// always lands on the same server while additions move as few keys as
// possible. Bulk operations fan out to every server.
//
// A Ring is not a connection pool: members are distinct servers, not
// interchangeable resources.
type Ring struct {
	clients []*Client
}

// NewRing creates one Client per address with the given configuration.
func NewRing(config Config, addrs ...string) (*Ring, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("cik: no server addresses provided")
	}

	clients := make([]*Client, 0, len(addrs))
	for _, addr := range addrs {
		client, err := NewClient(addr, config)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return &Ring{clients: clients}, nil
}

// pick selects the member responsible for key. Selection uses the raw
// key, before wire normalization, so callers and the ring agree on
// placement regardless of key length.
func (r *Ring) pick(key string) *Client {
	return r.clients[internal.JumpHash(xxh3.HashString(key), len(r.clients))]
}

// Clients returns the member clients, in address order.
func (r *Ring) Clients() []*Client { return r.clients }

// Close closes every member connection.
func (r *Ring) Close() error {
	var errs []error
	for _, client := range r.clients {
		errs = append(errs, client.Close())
	}
	return errors.Join(errs...)
}

// Get retrieves key from the server responsible for it.
func (r *Ring) Get(ctx context.Context, key string, flags proto.GetFlags) (Item, error) {
	return r.pick(key).Get(ctx, key, flags)
}

// Set stores the item on the server responsible for its key.
func (r *Ring) Set(ctx context.Context, item Item) (bool, error) {
	return r.pick(item.Key).Set(ctx, item)
}

// Touch updates the TTL of key on the server responsible for it.
func (r *Ring) Touch(ctx context.Context, key string, ttl int32) (bool, error) {
	return r.pick(key).Touch(ctx, key, ttl)
}

// Delete removes key from the server responsible for it.
func (r *Ring) Delete(ctx context.Context, key string) (bool, error) {
	return r.pick(key).Delete(ctx, key)
}

// KeyInfo queries the metadata of key on the server responsible for it.
func (r *Ring) KeyInfo(ctx context.Context, key string) (proto.KeyInfo, bool, error) {
	return r.pick(key).KeyInfo(ctx, key)
}

// Clear fans the bulk delete out to every member. It returns true only
// when every member reported success, and stops at the first hard error.
func (r *Ring) Clear(ctx context.Context, mode proto.ClearMode, tags []string) (bool, error) {
	ok := true
	for _, client := range r.clients {
		cleared, err := client.Clear(ctx, mode, tags)
		if err != nil {
			return false, err
		}
		ok = ok && cleared
	}
	return ok, nil
}

// List fans the enumeration out to every member and merges the results.
// Keys are disjoint across members; tags may repeat and are deduplicated,
// keeping first-seen order.
func (r *Ring) List(ctx context.Context, mode proto.ListMode, tags []string) ([]string, error) {
	var merged []string
	seen := make(map[string]struct{})

	for _, client := range r.clients {
		entries, err := client.List(ctx, mode, tags)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if _, dup := seen[entry]; dup {
				continue
			}
			seen[entry] = struct{}{}
			merged = append(merged, entry)
		}
	}
	return merged, nil
}

// Info sums the server-level memory counters across all members.
func (r *Ring) Info(ctx context.Context) (proto.ServerInfo, error) {
	var total proto.ServerInfo
	for _, client := range r.clients {
		info, err := client.Info(ctx)
		if err != nil {
			return proto.ServerInfo{}, err
		}
		total.MemUsed += info.MemUsed
		total.MemFree += info.MemFree
	}
	return total, nil
}
