// Package cik is a client for the CiK binary protocol spoken by
// tag-aware caching servers: get/set/delete by key, bulk clears by
// tag-matching rule, key/tag enumeration, and usage metadata.
//
// # Client
//
// A Client owns a single lazily-opened TCP connection:
//
//	client, err := cik.NewClient("127.0.0.1:1121", cik.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	stored, err := client.Set(ctx, cik.Item{
//	    Key:   "user:42",
//	    Value: payload,
//	    Tags:  []string{"users", "session"},
//	    TTL:   300,
//	})
//
//	item, err := client.Get(ctx, "user:42", 0)
//	if err != nil {
//	    return err // hard fault: network, protocol, server or client error
//	}
//	if !item.Found {
//	    // soft condition: item.Condition is "not found", "expired", ...
//	}
//
// Soft conditions are real outcomes, not errors: the server answered, it
// just answered "no", and the connection stays open. Every hard fault
// closes the connection; the next operation reconnects transparently.
//
// # Bulk operations
//
//	client.Clear(ctx, proto.ClearMatchAny, []string{"session"})
//	keys, err := client.List(ctx, proto.ListMatchAll, []string{"users"})
//
// # Identifiers
//
// Keys and tags longer than 255 bytes are transparently replaced by their
// SHA-512 hex digest before transmission; tag sets are deduplicated and
// capped at 255 members. See the proto package for the wire format.
//
// # Multiple servers
//
// Ring shards keys across a static server list with consistent hashing:
//
//	ring, err := cik.NewRing(cik.Config{}, "cache-1:1121", "cache-2:1121")
package cik
