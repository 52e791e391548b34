package proto

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Request encoders. Each Append* function normalizes its identifiers,
// validates what can be validated without a round trip, and appends one
// complete request frame to dst.
//
// Header offsets below are relative to the 16-byte fixed header region
// that follows magic+command.

// EncodeTTL converts a TTL in seconds to its wire form.
// TTLInfinite maps to TTLWireInfinite; other negative values are invalid.
func EncodeTTL(ttl int32) (uint32, error) {
	if ttl == TTLInfinite {
		return TTLWireInfinite, nil
	}
	if ttl < 0 {
		return 0, &RequestError{Message: fmt.Sprintf("negative ttl %d (only -1 is meaningful)", ttl)}
	}
	return uint32(ttl), nil
}

// DecodeTTL is the inverse of EncodeTTL.
func DecodeTTL(wire uint32) int32 {
	if wire == TTLWireInfinite {
		return TTLInfinite
	}
	return int32(wire)
}

func appendPrefix(dst []byte, cmd byte) ([]byte, int) {
	dst = append(dst, Magic[0], Magic[1], Magic[2], cmd)
	headerAt := len(dst)
	var header [HeaderSize]byte
	dst = append(dst, header[:]...)
	return dst, headerAt
}

// appendTagBlock appends each tag as a 1-byte length prefix followed by
// the tag bytes. Tags must already be normalized.
func appendTagBlock(dst []byte, tags []string) []byte {
	for _, tag := range tags {
		dst = append(dst, byte(len(tag)))
		dst = append(dst, tag...)
	}
	return dst
}

// AppendGet appends a GET request for key.
func AppendGet(dst []byte, key string, flags GetFlags) []byte {
	key = NormalizeKey(key)

	dst, h := appendPrefix(dst, CmdGet)
	dst[h+0] = byte(len(key))
	dst[h+1] = byte(flags)
	return append(dst, key...)
}

// AppendSet appends a SET request storing value under key with the given
// tag set and TTL in seconds. The tag set is canonicalized via
// NormalizeTags. Fails locally on an invalid TTL or oversized value.
func AppendSet(dst []byte, key string, value []byte, tags []string, ttl int32, flags SetFlags) ([]byte, error) {
	wireTTL, err := EncodeTTL(ttl)
	if err != nil {
		return dst, err
	}
	if uint64(len(value)) > math.MaxUint32 {
		return dst, &RequestError{Message: "value exceeds 4 GiB"}
	}

	key = NormalizeKey(key)
	tags = NormalizeTags(tags)

	dst, h := appendPrefix(dst, CmdSet)
	dst[h+0] = byte(len(key))
	dst[h+1] = byte(len(tags))
	dst[h+2] = byte(flags)
	binary.BigEndian.PutUint32(dst[h+8:], uint32(len(value)))
	binary.BigEndian.PutUint32(dst[h+12:], wireTTL)

	dst = append(dst, key...)
	dst = appendTagBlock(dst, tags)
	return append(dst, value...), nil
}

// AppendDelete appends a DEL request for key.
func AppendDelete(dst []byte, key string) []byte {
	key = NormalizeKey(key)

	dst, h := appendPrefix(dst, CmdDel)
	dst[h+0] = byte(len(key))
	return append(dst, key...)
}

// AppendClear appends a CLR request. ClearAll and ClearOld must not carry
// tags; the match modes require at least the shape of a tag set (an empty
// set is sent as-is and left to the server to judge). The mode/tag rule is
// enforced locally so the invalid combination never reaches the wire.
func AppendClear(dst []byte, mode ClearMode, tags []string) ([]byte, error) {
	switch mode {
	case ClearAll, ClearOld:
		if len(tags) > 0 {
			return dst, &RequestError{Message: fmt.Sprintf("clear mode 0x%02x does not accept tags", byte(mode))}
		}
	case ClearMatchAll, ClearMatchNone, ClearMatchAny:
	default:
		return dst, &RequestError{Message: fmt.Sprintf("unknown clear mode 0x%02x", byte(mode))}
	}

	tags = NormalizeTags(tags)

	dst, h := appendPrefix(dst, CmdClr)
	dst[h+0] = byte(mode)
	dst[h+1] = byte(len(tags))
	return appendTagBlock(dst, tags), nil
}

// AppendList appends a LST request.
func AppendList(dst []byte, mode ListMode, tags []string) ([]byte, error) {
	switch mode {
	case ListKeys, ListTags, ListMatchAll, ListMatchNone, ListMatchAny:
	default:
		return dst, &RequestError{Message: fmt.Sprintf("unknown list mode 0x%02x", byte(mode))}
	}

	tags = NormalizeTags(tags)

	dst, h := appendPrefix(dst, CmdLst)
	dst[h+0] = byte(mode)
	dst[h+1] = byte(len(tags))
	return appendTagBlock(dst, tags), nil
}

// AppendInfo appends a NFO request. An empty key queries server-level
// stats instead of a single entry.
func AppendInfo(dst []byte, key string) []byte {
	key = NormalizeKey(key)

	dst, h := appendPrefix(dst, CmdNfo)
	dst[h+0] = byte(len(key))
	return append(dst, key...)
}
