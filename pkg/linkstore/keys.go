// Key encoding for the link store. Every function here is
// a pure translation from logical entities to the byte layouts persisted in
// the KV engine; none of it touches storage. Byte widths, field order, and
// the big-endian choice for fid/timestamp are the on-disk ABI and must not
// be reordered for convenience.
package linkstore

import (
	"encoding/binary"

	"github.com/farcasterxyz/linkstore/pkg/lserrors"
	"github.com/farcasterxyz/linkstore/pkg/message"
)

// MakeFidKey serializes a fid as 4 big-endian bytes. fid is logically 64
// bits but truncated here — a documented space optimization valid up to
// ~4*10^9 accounts.
func MakeFidKey(fid uint32) []byte {
	var b [FidByteSize]byte
	binary.BigEndian.PutUint32(b[:], fid)
	return b[:]
}

// MakeUserKey returns the root-prefixed fid prefix every per-user key is
// built on: <RootPrefix.User>‖fid(4B BE).
func MakeUserKey(fid uint32) []byte {
	out := make([]byte, 0, RootPrefixedFidSize)
	out = append(out, byte(RootPrefixUser))
	out = append(out, MakeFidKey(fid)...)
	return out
}

// MakeMessagePrimaryKey builds the primary message key
// <RootPrefix.User>‖fid‖<postfix>‖tsHash(24B, optional). A nil tsHash
// returns the bare per-family prefix, useful as a scan/count bound.
func MakeMessagePrimaryKey(fid uint32, postfix UserPostfix, tsHash *message.TsHash) []byte {
	out := MakeUserKey(fid)
	out = append(out, byte(postfix))
	if tsHash != nil {
		out = append(out, tsHash.Bytes()...)
	}
	return out
}

// beFid decodes a 4-byte big-endian fid, the inverse of MakeFidKey.
func beFid(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func padType(linkType string, padded bool) []byte {
	b := []byte(linkType)
	if padded {
		padded := make([]byte, LinkTypeByteSize)
		copy(padded, b)
		return padded
	}
	return b
}

func validateLinkTypeAndTarget(linkType string, target *message.Target) error {
	if target != nil && linkType == "" {
		return lserrors.ValidationFailure("targetId provided without type")
	}
	if linkType != "" && (len(linkType) > LinkTypeByteSize || len(linkType) == 0) {
		return lserrors.ValidationFailure("link type invalid - non-empty link type found with invalid length")
	}
	return nil
}

// linkSetKey builds an Adds-Set or Removes-Set key:
// <RootPrefix.User>‖fid‖<postfix>‖type(padded?)‖target_fid(4B BE, optional).
// An empty type (only valid without a target) contributes no bytes, which
// yields the scan prefix over every entry of the fid's set.
func linkSetKey(fid uint32, postfix UserPostfix, linkType string, target *message.Target, padded bool) ([]byte, error) {
	if err := validateLinkTypeAndTarget(linkType, target); err != nil {
		return nil, err
	}
	out := MakeUserKey(fid)
	out = append(out, byte(postfix))
	if linkType != "" {
		out = append(out, padType(linkType, padded)...)
	}
	if target != nil {
		out = append(out, MakeFidKey(uint32(target.TargetFid))...)
	}
	return out, nil
}

// MakeAddKeyPadded builds the LinkAdds Set key for (fid, body), with or
// without the canonical 8-byte type padding. The unpadded form exists only
// to read/delete legacy entries.
func MakeAddKeyPadded(fid uint32, body *message.LinkBody, padded bool) ([]byte, error) {
	return linkSetKey(fid, UserPostfixLinkAdds, body.Type, body.Target, padded)
}

// MakeRemoveKeyPadded builds the LinkRemoves Set key, see MakeAddKeyPadded.
func MakeRemoveKeyPadded(fid uint32, body *message.LinkBody, padded bool) ([]byte, error) {
	return linkSetKey(fid, UserPostfixLinkRemoves, body.Type, body.Target, padded)
}

// MakeAddKey returns the canonical (padded) Adds Set key for m.
func MakeAddKey(m *message.Message) ([]byte, error) {
	body, err := linkBodyOf(m)
	if err != nil {
		return nil, err
	}
	return MakeAddKeyPadded(uint32(m.Data.Fid), body, true)
}

// MakeRemoveKey returns the canonical (padded) Removes Set key for m.
func MakeRemoveKey(m *message.Message) ([]byte, error) {
	body, err := linkBodyOf(m)
	if err != nil {
		return nil, err
	}
	return MakeRemoveKeyPadded(uint32(m.Data.Fid), body, true)
}

func linkBodyOf(m *message.Message) (*message.LinkBody, error) {
	if m == nil || m.Data == nil {
		return nil, lserrors.InvalidParameter("invalid message data")
	}
	body, ok := m.Data.Body.(*message.LinkBody)
	if !ok {
		return nil, lserrors.InvalidParameter("link body not specified")
	}
	return body, nil
}

// MakeLinkCompactStateAddKey builds the LinkCompactState key:
// <RootPrefix.User>‖fid‖<postfix>‖type(8B padded).
func MakeLinkCompactStateAddKey(fid uint32, linkType string) ([]byte, error) {
	if linkType == "" || len(linkType) > LinkTypeByteSize {
		return nil, lserrors.ValidationFailure("link type invalid - non-empty link type found with invalid length")
	}
	out := MakeUserKey(fid)
	out = append(out, byte(UserPostfixLinkCompactStateMessage))
	out = append(out, padType(linkType, true)...)
	return out, nil
}

// MakeCompactStateAddKeyForMessage resolves a LinkCompactState message's key,
// accepting either a LinkCompactStateBody or (historically) a LinkBody;
// LinkCompactStateBody is preferred when present.
func MakeCompactStateAddKeyForMessage(m *message.Message) ([]byte, error) {
	if m == nil || m.Data == nil {
		return nil, lserrors.InvalidParameter("invalid message data")
	}
	switch body := m.Data.Body.(type) {
	case *message.LinkCompactStateBody:
		return MakeLinkCompactStateAddKey(uint32(m.Data.Fid), body.Type)
	case *message.LinkBody:
		return MakeLinkCompactStateAddKey(uint32(m.Data.Fid), body.Type)
	default:
		return nil, lserrors.InvalidParameter("link_compact_state_body not specified")
	}
}

// MakeCompactStatePrefix is the scan prefix for every compact state a fid
// holds, across all link types.
func MakeCompactStatePrefix(fid uint32) []byte {
	out := MakeUserKey(fid)
	out = append(out, byte(UserPostfixLinkCompactStateMessage))
	return out
}

// MakeLinksByTargetKey builds the LinksByTarget index key:
// <RootPrefix.LinksByTarget>‖target_fid(4B BE)‖tsHash(24B, optional)‖owner_fid(4B BE, optional).
// If either tsHash or owner fid is supplied, both must be — a bare target fid is only valid as a scan prefix.
func MakeLinksByTargetKey(targetFid uint64, ownerFid uint32, tsHash *message.TsHash) ([]byte, error) {
	if ownerFid != 0 && tsHash == nil {
		return nil, lserrors.ValidationFailure("fid provided without timestamp hash")
	}
	if tsHash != nil && ownerFid == 0 {
		return nil, lserrors.ValidationFailure("timestamp hash provided without fid")
	}
	out := make([]byte, 0, RootPrefixByteSize+TargetIDByteSize+TSHashLength+FidByteSize)
	out = append(out, byte(RootPrefixLinksByTarget))
	out = append(out, MakeFidKey(uint32(targetFid))...)
	if tsHash != nil {
		out = append(out, tsHash.Bytes()...)
	}
	if ownerFid > 0 {
		out = append(out, MakeFidKey(ownerFid)...)
	}
	return out, nil
}

// LinksByTargetSecondaryIndexKey derives the (key, value) pair the merge
// path writes to the LinksByTarget index for a retained LinkAdd.
func LinksByTargetSecondaryIndexKey(tsHash message.TsHash, m *message.Message) (key []byte, value []byte, err error) {
	body, err := linkBodyOf(m)
	if err != nil {
		return nil, nil, err
	}
	if body.Target == nil {
		return nil, nil, lserrors.InvalidParameter("target ID not specified")
	}
	key, err = MakeLinksByTargetKey(body.Target.TargetFid, uint32(m.Data.Fid), &tsHash)
	if err != nil {
		return nil, nil, err
	}
	return key, []byte(body.Type), nil
}
