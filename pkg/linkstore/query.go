// Query Surface: read-only accessors over the state Merge/Prune
// maintain. Every paged method honors PageOptions/Page and never returns
// more than pageSizeMax messages in one call.
package linkstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/farcasterxyz/linkstore/pkg/lserrors"
	"github.com/farcasterxyz/linkstore/pkg/message"
)

// lookupGroup deduplicates concurrent identical point lookups (GetLinkAdd,
// GetLinkRemove) so a thundering herd of callers asking for the same
// (fid, type, target) triggers one KV read instead of N.
var lookupGroup singleflight.Group

// GetLinkAdd returns the active LinkAdd for (fid, type, target), trying the
// canonical padded key first and the legacy unpadded key second.
func (s *LinkStore) GetLinkAdd(ctx context.Context, fid uint32, linkType string, target *message.Target) (*message.Message, error) {
	body := &message.LinkBody{Type: linkType, Target: target}
	key := fidTypeTargetCacheKey("add", fid, linkType, target)
	v, err, _ := lookupGroup.Do(key, func() (any, error) {
		return s.getBySetKey(fid, UserPostfixLinkAdds, body)
	})
	if err != nil {
		return nil, err
	}
	return v.(*message.Message), nil
}

// GetLinkRemove returns the tombstone LinkRemove for (fid, type, target), if
// one is currently retained.
func (s *LinkStore) GetLinkRemove(ctx context.Context, fid uint32, linkType string, target *message.Target) (*message.Message, error) {
	body := &message.LinkBody{Type: linkType, Target: target}
	key := fidTypeTargetCacheKey("remove", fid, linkType, target)
	v, err, _ := lookupGroup.Do(key, func() (any, error) {
		return s.getBySetKey(fid, UserPostfixLinkRemoves, body)
	})
	if err != nil {
		return nil, err
	}
	return v.(*message.Message), nil
}

func fidTypeTargetCacheKey(kind string, fid uint32, linkType string, target *message.Target) string {
	var t uint64
	if target != nil {
		t = target.TargetFid
	}
	return fmt.Sprintf("%s:%d:%s:%d", kind, fid, linkType, t)
}

func (s *LinkStore) getBySetKey(fid uint32, postfix UserPostfix, body *message.LinkBody) (*message.Message, error) {
	var key []byte
	var err error
	if postfix == UserPostfixLinkAdds {
		key, err = MakeAddKeyPadded(fid, body, true)
	} else {
		key, err = MakeRemoveKeyPadded(fid, body, true)
	}
	if err != nil {
		return nil, err
	}
	val, err := s.kv.Get(key)
	if err != nil {
		if !IsNotFound(err) {
			return nil, lserrors.StorageFailure("reading set key", err)
		}
		// fall back to the legacy unpadded key
		if postfix == UserPostfixLinkAdds {
			key, err = MakeAddKeyPadded(fid, body, false)
		} else {
			key, err = MakeRemoveKeyPadded(fid, body, false)
		}
		if err != nil {
			return nil, err
		}
		val, err = s.kv.Get(key)
		if err != nil {
			if IsNotFound(err) {
				return nil, lserrors.NotFound("link not found")
			}
			return nil, lserrors.StorageFailure("reading legacy set key", err)
		}
	}

	tsHash, err := message.FromBytes(val)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding stored tsHash", err)
	}
	return s.getMessage(fid, tsHash)
}

// GetLinkAddsByFid pages through every active LinkAdd owned by fid, optionally
// restricted to linkType.
func (s *LinkStore) GetLinkAddsByFid(ctx context.Context, fid uint32, linkType string, opts PageOptions) (*Page, error) {
	return s.pageSetByFid(fid, UserPostfixLinkAdds, linkType, opts)
}

// GetLinkRemovesByFid pages through every retained LinkRemove owned by fid.
func (s *LinkStore) GetLinkRemovesByFid(ctx context.Context, fid uint32, linkType string, opts PageOptions) (*Page, error) {
	return s.pageSetByFid(fid, UserPostfixLinkRemoves, linkType, opts)
}

func (s *LinkStore) pageSetByFid(fid uint32, postfix UserPostfix, linkType string, opts PageOptions) (*Page, error) {
	prefix, err := linkSetKey(fid, postfix, linkType, nil, true)
	if err != nil {
		return nil, err
	}

	limit := pageSize(opts, s.pageSizeMax)
	var tsHashes [][]byte
	var keys [][]byte
	err = s.kv.ScanPrefix(prefix, nil, opts.PageToken, func(k, v []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), k...))
		tsHashes = append(tsHashes, append([]byte(nil), v...))
		return len(tsHashes) >= limit+1, nil
	})
	if err != nil {
		return nil, lserrors.StorageFailure("scanning set by fid", err)
	}

	page := &Page{}
	truncated := len(tsHashes) > limit
	if truncated {
		tsHashes = tsHashes[:limit]
		keys = keys[:limit]
	}
	for _, raw := range tsHashes {
		tsHash, err := message.FromBytes(raw)
		if err != nil {
			continue
		}
		m, err := s.getMessage(fid, tsHash)
		if err != nil {
			continue
		}
		page.Messages = append(page.Messages, m)
	}
	if truncated {
		page.NextPageToken = keys[len(keys)-1]
	}
	return page, nil
}

// GetLinksByTarget pages through every LinkAdd that points at targetFid,
// across all owning fids, optionally restricted to linkType.
func (s *LinkStore) GetLinksByTarget(ctx context.Context, targetFid uint64, linkType string, opts PageOptions) (*Page, error) {
	prefix, err := MakeLinksByTargetKey(targetFid, 0, nil)
	if err != nil {
		return nil, err
	}

	limit := pageSize(opts, s.pageSizeMax)
	type hit struct {
		key    []byte
		tsHash message.TsHash
		fid    uint32
	}
	var hits []hit
	err = s.kv.ScanPrefix(prefix, nil, opts.PageToken, func(k, v []byte) (bool, error) {
		if linkType != "" && string(v) != linkType {
			return false, nil
		}
		tsHashBytes, ownerFid, err := splitLinksByTargetKey(k, prefix)
		if err != nil {
			return false, nil
		}
		tsHash, err := message.FromBytes(tsHashBytes)
		if err != nil {
			return false, nil
		}
		hits = append(hits, hit{key: append([]byte(nil), k...), tsHash: tsHash, fid: ownerFid})
		return len(hits) >= limit+1, nil
	})
	if err != nil {
		return nil, lserrors.StorageFailure("scanning links by target", err)
	}

	page := &Page{}
	truncated := len(hits) > limit
	if truncated {
		hits = hits[:limit]
	}
	for _, h := range hits {
		m, err := s.getMessage(h.fid, h.tsHash)
		if err != nil {
			continue
		}
		page.Messages = append(page.Messages, m)
	}
	if truncated {
		page.NextPageToken = hits[len(hits)-1].key
	}
	return page, nil
}

// splitLinksByTargetKey extracts the tsHash and owner fid suffix appended
// after prefix in a LinksByTarget key.
func splitLinksByTargetKey(key, prefix []byte) (tsHash []byte, ownerFid uint32, err error) {
	rest := key[len(prefix):]
	if len(rest) != TSHashLength+FidByteSize {
		return nil, 0, lserrors.StorageFailure("malformed links-by-target key", nil)
	}
	tsHash = rest[:TSHashLength]
	ownerFid = binary.BigEndian.Uint32(rest[TSHashLength:])
	return tsHash, ownerFid, nil
}

// GetLinkCompactStateMessagesByFid returns every compact state fid holds,
// across all link types (there is at most one per type, so this is not
// paged against pageSizeMax the way Set scans are).
func (s *LinkStore) GetLinkCompactStateMessagesByFid(ctx context.Context, fid uint32) ([]*message.Message, error) {
	prefix := MakeCompactStatePrefix(fid)
	var out []*message.Message
	err := s.kv.ScanPrefix(prefix, nil, nil, func(_, v []byte) (bool, error) {
		m, err := message.Unmarshal(v)
		if err != nil {
			return false, nil
		}
		out = append(out, m)
		return false, nil
	})
	if err != nil {
		return nil, lserrors.StorageFailure("scanning compact states", err)
	}
	return out, nil
}
