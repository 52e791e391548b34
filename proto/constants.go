package proto

// Wire framing
//
// Every request is:
//
//	magic (3 bytes) | command (1 byte) | fixed header (16 bytes) | payload
//
// Every response is:
//
//	magic (3 bytes) | status (1 byte) | sizeOrError (uint32, big-endian)
//
// On success sizeOrError is the payload length that follows. On failure it
// is the error code consumed by ClassifyCode and no payload follows.
// All multi-byte integers on the wire are big-endian.

// Magic is the 3-byte prefix opening every request and response frame.
var Magic = [3]byte{'C', 'i', 'K'}

// Frame sizes.
const (
	// MagicSize is the length of the frame magic.
	MagicSize = 3

	// HeaderSize is the fixed header region following magic+command in a
	// request. Unused trailing bytes are zero.
	HeaderSize = 16

	// RequestPrefixSize is magic + command + fixed header.
	RequestPrefixSize = MagicSize + 1 + HeaderSize

	// ResponseHeaderSize is magic + status + sizeOrError.
	ResponseHeaderSize = MagicSize + 1 + 4
)

// Command bytes.
const (
	// CmdGet retrieves the value stored under a key.
	//
	// Header: keyLen (1), flags (1), zero padding.
	// Payload: wire key.
	// Success payload: the raw value bytes (possibly empty).
	CmdGet byte = 'G'

	// CmdSet stores a value with its tag set and TTL.
	//
	// Header: keyLen (1), tagCount (1), flags (1), zero padding to offset 8,
	// valueLen (uint32), ttl (uint32, TTLWireInfinite for no expiry).
	// Payload: wire key, tag block, value.
	// Success payload: empty.
	CmdSet byte = 'S'

	// CmdDel removes a single key.
	//
	// Header: keyLen (1), reserved flags (1), zero padding.
	// Payload: wire key.
	// Success payload: empty.
	CmdDel byte = 'D'

	// CmdClr removes entries in bulk according to a ClearMode.
	//
	// Header: mode (1), tagCount (1), reserved flags (1), zero padding.
	// Payload: tag block (must be empty for ClearAll and ClearOld).
	// Success payload: empty.
	CmdClr byte = 'C'

	// CmdLst enumerates keys or tags according to a ListMode.
	//
	// Header: mode (1), tagCount (1), zero padding.
	// Payload: tag block.
	// Success payload: a tag block of the enumerated identifiers, where a
	// zero-length entry is permitted and decodes to the empty string.
	CmdLst byte = 'L'

	// CmdNfo queries metadata. A zero keyLen asks for server-level stats.
	//
	// Header: keyLen (1), zero padding.
	// Payload: wire key (absent for server-level).
	// Success payload, server-level: memUsed (uint64), memFree (uint64).
	// Success payload, key-level: expires (int64, -1 for no expiry),
	// mtime (int64), tag block. A zero-length tag here is malformed.
	CmdNfo byte = 'N'
)

// Response status bytes. Any other value means the stream is desynced.
const (
	StatusSuccess byte = 0x00
	StatusFailure byte = 0xFF
)

// Error code classes. The high nibble of the 32-bit code selects how the
// failure is handled; see ClassifyCode.
const (
	// ClassInternal marks a server fault. The connection must be closed.
	ClassInternal uint32 = 0x80000000

	// ClassClient marks a request the server rejected as malformed.
	// The connection must be closed.
	ClassClient uint32 = 0x40000000

	// ClassMessage marks a soft condition. The exchange completed and the
	// connection stays open.
	ClassMessage uint32 = 0x20000000
)

// Soft condition codes (ClassMessage).
const (
	CodeNotFound      uint32 = ClassMessage | 0x01
	CodeExpired       uint32 = ClassMessage | 0x02
	CodeOutOfMemory   uint32 = ClassMessage | 0x03
	CodeLimitExceeded uint32 = ClassMessage | 0x04
)

// ClearMode selects which entries a clear operation removes.
type ClearMode byte

const (
	// ClearAll removes every entry. Tags are not allowed.
	ClearAll ClearMode = 0x01

	// ClearOld removes only expired entries. Tags are not allowed.
	ClearOld ClearMode = 0x02

	// ClearMatchAll removes entries carrying every given tag.
	ClearMatchAll ClearMode = 0x03

	// ClearMatchNone removes entries carrying none of the given tags.
	ClearMatchNone ClearMode = 0x04

	// ClearMatchAny removes entries carrying at least one of the given tags.
	ClearMatchAny ClearMode = 0x05
)

// ListMode selects what a list operation enumerates.
type ListMode byte

const (
	// ListKeys enumerates every key.
	ListKeys ListMode = 0x01

	// ListTags enumerates every tag in use.
	ListTags ListMode = 0x02

	// ListMatchAll enumerates keys carrying every given tag.
	ListMatchAll ListMode = 0x03

	// ListMatchNone enumerates keys carrying none of the given tags.
	ListMatchNone ListMode = 0x04

	// ListMatchAny enumerates keys carrying at least one of the given tags.
	ListMatchAny ListMode = 0x05
)

// GetFlags is the per-request bitfield of CmdGet.
type GetFlags byte

const (
	// GetIgnoreExpiry returns the stored value even if it has expired.
	GetIgnoreExpiry GetFlags = 0x01
)

// SetFlags is the per-request bitfield of CmdSet.
type SetFlags byte

const (
	// SetTTLOnly updates the TTL of an existing entry without replacing
	// its value or tags.
	SetTTLOnly SetFlags = 0x01
)

// Identifier and TTL limits.
const (
	// MaxIdentifierLength is the longest key or tag transmitted verbatim.
	// Longer identifiers are replaced by their SHA-512 hex digest.
	MaxIdentifierLength = 255

	// MaxTags is the cap on the number of tags per entry; excess tags are
	// silently discarded.
	MaxTags = 255

	// TTLInfinite is the caller-facing sentinel for "no expiration".
	TTLInfinite int32 = -1

	// TTLWireInfinite is the on-wire encoding of TTLInfinite.
	TTLWireInfinite uint32 = 0xFFFFFFFF
)
