package linkstore

// Byte widths and root prefixes that make up the on-disk key ABI. Every width here is load-bearing for range scans and must
// never change shape for an existing deployment.
const (
	FidByteSize           = 4  // fid truncated to 32 bits in keys
	LinkTypeByteSize      = 8  // zero-padded link type field width
	TargetIDByteSize      = 4  // target fid truncated to 32 bits in keys
	TSHashLength          = 24 // 4-byte timestamp ‖ 20-byte hash
	RootPrefixByteSize    = 1
	PostfixByteSize       = 1
	RootPrefixedFidSize   = 1 + FidByteSize // root prefix ‖ fid
	PageSizeMaxDefault    = 1000
)

// RootPrefix values partition the keyspace by index family. Only the two
// families the link store touches are modeled; other message families
// (reactions, casts, ...) own the remaining values and are out of scope.
type RootPrefix byte

const (
	RootPrefixUser          RootPrefix = 1
	RootPrefixLinksByTarget RootPrefix = 15
)

// UserPostfix values partition a user's (fid-scoped) keyspace by record
// kind. LinkMessage is the primary-storage postfix shared by LinkAdd,
// LinkRemove, and LinkCompactState alike — the generic store skeleton
// writes every message family's primary record at the same per-family
// postfix and relies on the decoded payload to distinguish subtypes.
type UserPostfix byte

const (
	UserPostfixLinkMessage             UserPostfix = 13
	UserPostfixLinkAdds                UserPostfix = 10
	UserPostfixLinkRemoves             UserPostfix = 11
	UserPostfixLinkCompactStateMessage UserPostfix = 12
)
