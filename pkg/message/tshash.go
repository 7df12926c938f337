package message

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/farcasterxyz/linkstore/pkg/lserrors"
)

// TSHashLength is the byte width of a TsHash: a 4-byte big-endian timestamp
// concatenated with a 20-byte content hash. Lexicographic order over this
//24-byte value equals time order, which is what every range scan in the
// store relies on.
const TSHashLength = 24

// TsHash is a message's 24-byte identity.
type TsHash [TSHashLength]byte

// NewTsHash builds a TsHash from a timestamp and a 20-byte hash.
func NewTsHash(timestamp uint32, hash []byte) (TsHash, error) {
	var out TsHash
	if len(hash) != 20 {
		return out, lserrors.ValidationFailure("hash must be 20 bytes")
	}
	binary.BigEndian.PutUint32(out[0:4], timestamp)
	copy(out[4:], hash)
	return out, nil
}

// TsHashOf derives the TsHash identity of a message.
func TsHashOf(m *Message) (TsHash, error) {
	if m == nil || m.Data == nil {
		return TsHash{}, lserrors.InvalidParameter("invalid message data")
	}
	return NewTsHash(m.Data.Timestamp, m.Hash)
}

// Timestamp returns the 4-byte big-endian timestamp component.
func (t TsHash) Timestamp() uint32 {
	return binary.BigEndian.Uint32(t[0:4])
}

// HashBytes returns the 20-byte content hash component.
func (t TsHash) HashBytes() []byte {
	out := make([]byte, 20)
	copy(out, t[4:])
	return out
}

// Bytes returns the raw 24 bytes.
func (t TsHash) Bytes() []byte {
	out := make([]byte, TSHashLength)
	copy(out, t[:])
	return out
}

// String renders a TsHash as hex, for logging.
func (t TsHash) String() string {
	return hex.EncodeToString(t[:])
}

// FromBytes parses a 24-byte slice into a TsHash.
func FromBytes(b []byte) (TsHash, error) {
	var out TsHash
	if len(b) != TSHashLength {
		return out, lserrors.ValidationFailure("tsHash must be 24 bytes")
	}
	copy(out[:], b)
	return out, nil
}
