package proto

import (
	"crypto/sha512"
	"encoding/hex"
)

// NormalizeKey returns the form of a key or tag that goes on the wire.
// Identifiers up to MaxIdentifierLength bytes pass through unchanged;
// longer ones are replaced by the lowercase hex SHA-512 digest of their
// content (128 bytes), so the substitution is deterministic and two
// distinct identifiers only collide if their digests do.
func NormalizeKey(raw string) string {
	if len(raw) <= MaxIdentifierLength {
		return raw
	}
	sum := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NormalizeTags canonicalizes a tag set for transmission: blank tags are
// dropped, duplicates removed, the set is capped at MaxTags members, and
// each survivor is normalized like a key. Order of the result follows the
// first occurrence of each tag in the input.
func NormalizeTags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, min(len(raw), MaxTags))

	for _, tag := range raw {
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, NormalizeKey(tag))
		if len(tags) == MaxTags {
			break
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}
