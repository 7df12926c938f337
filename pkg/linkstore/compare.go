// CRDT comparator: a deterministic total order over messages that
// collide on the same (fid, type, target) slot, so that convergence does
// not depend on the order replicas observe conflicting writes in.
package linkstore

import (
	"bytes"

	"github.com/farcasterxyz/linkstore/pkg/message"
)

// Compare orders two candidates for the same conflict slot by:
//  1. higher timestamp wins
//  2. a tie is broken by Remove beating Add
//  3. a further tie is broken by the higher 20-byte hash
//
// It returns >0 if a is newer than b, <0 if a is older, 0 if identical
// (same timestamp, same remove/add class, same hash — i.e. a duplicate).
func Compare(aType message.MessageType, aTsHash message.TsHash, bType message.MessageType, bTsHash message.TsHash) int {
	at, bt := aTsHash.Timestamp(), bTsHash.Timestamp()
	if at != bt {
		if at > bt {
			return 1
		}
		return -1
	}

	aRemove, bRemove := aType == message.MessageTypeLinkRemove, bType == message.MessageTypeLinkRemove
	if aRemove != bRemove {
		if aRemove {
			return 1
		}
		return -1
	}

	return bytes.Compare(aTsHash.HashBytes(), bTsHash.HashBytes())
}

// CompareMessages is a convenience wrapper over Compare for two fully
// decoded messages.
func CompareMessages(a, b *message.Message) (int, error) {
	aTsHash, err := message.TsHashOf(a)
	if err != nil {
		return 0, err
	}
	bTsHash, err := message.TsHashOf(b)
	if err != nil {
		return 0, err
	}
	return Compare(a.Data.Type, aTsHash, b.Data.Type, bTsHash), nil
}
