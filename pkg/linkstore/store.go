// LinkStore Index Manager: owns every write path to link keys,
// performing merge, conflict detection, compact-state installation, and
// pruning, all coalesced into a single KV batch per operation.
package linkstore

import (
	"context"
	"fmt"

	"github.com/farcasterxyz/linkstore/pkg/logger"
	"github.com/farcasterxyz/linkstore/pkg/lserrors"
	"github.com/farcasterxyz/linkstore/pkg/message"
)

// LinkStore is the CRDT-aware persistence layer for link messages. It owns
// all write paths to link keys; the KV engine it is built on is a shared,
// process-wide resource owned elsewhere.
type LinkStore struct {
	kv             KV
	events         EventHandler
	pruneSizeLimit uint32
	pageSizeMax    uint32
	limiter        *FidLimiterPool // nil disables rate limiting
}

// New builds a LinkStore over kv. pruneSizeLimit is the per-fid retention
// ceiling; pageSizeMax bounds a single query page.
// limiter may be nil to accept merges unconditionally.
func New(kv KV, events EventHandler, pruneSizeLimit, pageSizeMax uint32, limiter *FidLimiterPool) *LinkStore {
	if events == nil {
		events = NoopEventHandler{}
	}
	if pageSizeMax == 0 {
		pageSizeMax = PageSizeMaxDefault
	}
	return &LinkStore{kv: kv, events: events, pruneSizeLimit: pruneSizeLimit, pageSizeMax: pageSizeMax, limiter: limiter}
}

// Merge validates and applies a single incoming message. It either commits one KV batch and returns nil, or returns a
// typed error (Conflict, Duplicate, ValidationFailure, ...) with nothing
// written.
func (s *LinkStore) Merge(ctx context.Context, m *message.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if s.limiter != nil && !s.limiter.Allow(uint32(m.Data.Fid)) {
		return lserrors.RateLimited("merge rate limit exceeded for fid")
	}
	switch {
	case m.IsLinkAdd(), m.IsLinkRemove():
		return s.mergeAddOrRemove(ctx, m)
	case m.IsLinkCompactState():
		return s.mergeCompactState(ctx, m)
	default:
		return lserrors.InvalidParameter("unsupported message type for link store")
	}
}

func (s *LinkStore) mergeAddOrRemove(ctx context.Context, m *message.Message) error {
	fid := uint32(m.Data.Fid)
	body, err := linkBodyOf(m)
	if err != nil {
		return err
	}
	tsHash, err := message.TsHashOf(m)
	if err != nil {
		return err
	}

	// Compact-state check: a compact state's own timestamp is
	// treated as an inclusive upper bound. We evaluate
	// this before writing anything so a covered message never touches the
	// batch, rather than writing then discarding within the same commit.
	if compact, err := s.getCompactState(fid, body.Type); err != nil {
		return err
	} else if compact != nil && m.Data.Timestamp <= compact.Data.Timestamp {
		return lserrors.Conflict("message is covered by a newer compact state")
	}

	losers, err := s.findMergeConflicts(fid, body, m.Data.Type, tsHash)
	if err != nil {
		return err
	}

	batch := s.kv.NewBatch()
	defer batch.Close()

	raw, err := message.Marshal(m)
	if err != nil {
		return err
	}
	batch.Put(MakeMessagePrimaryKey(fid, UserPostfixLinkMessage, &tsHash), raw)

	if m.IsLinkAdd() {
		addKey, err := MakeAddKeyPadded(fid, body, true)
		if err != nil {
			return err
		}
		batch.Put(addKey, tsHash.Bytes())
		targetKey, typeVal, err := LinksByTargetSecondaryIndexKey(tsHash, m)
		if err != nil {
			return err
		}
		batch.Put(targetKey, typeVal)
	} else {
		removeKey, err := MakeRemoveKeyPadded(fid, body, true)
		if err != nil {
			return err
		}
		batch.Put(removeKey, tsHash.Bytes())
	}

	for _, loser := range losers {
		s.deleteMessageAndIndices(batch, fid, loser)
	}

	if err := batch.Commit(); err != nil {
		return lserrors.StorageFailure("committing merge batch", err)
	}

	s.events.OnMerge(MergeEvent{Type: MergeEventMerge, Fid: m.Data.Fid, Message: m, DeletedMessages: losers})
	return nil
}

// findMergeConflicts probes the Removes Set and Adds Set, at both the
// canonical padded key and the legacy unpadded key, for an existing entry
// colliding on (fid, type, target). It returns the messages that must be deleted as conflict losers, or
// a typed Conflict/Duplicate error on the first disqualifying hit.
func (s *LinkStore) findMergeConflicts(fid uint32, body *message.LinkBody, incomingType message.MessageType, tsHash message.TsHash) ([]*message.Message, error) {
	var losers []*message.Message
	seen := make(map[message.TsHash]bool)

	probe := func(key []byte, storedType message.MessageType) error {
		val, err := s.kv.Get(key)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return lserrors.StorageFailure("reading conflict key", err)
		}
		storedTsHash, err := message.FromBytes(val)
		if err != nil {
			return lserrors.StorageFailure("decoding stored tsHash", err)
		}

		cmp := Compare(incomingType, tsHash, storedType, storedTsHash)
		if cmp < 0 {
			return lserrors.Conflict(fmt.Sprintf("message conflicts with a more recent %s", storedType))
		}
		if cmp == 0 {
			return lserrors.Duplicate("message has already been merged")
		}
		if seen[storedTsHash] {
			return nil
		}
		seen[storedTsHash] = true

		stored, err := s.getMessage(fid, storedTsHash)
		if err != nil {
			if lserrors.Is(err, lserrors.KindNotFound) {
				logger.Warn("merge_conflict_primary_missing", "fid", fid, "ts_hash", storedTsHash.Bytes())
				return nil
			}
			return err
		}
		losers = append(losers, stored)
		return nil
	}

	removePadded, err := MakeRemoveKeyPadded(fid, body, true)
	if err != nil {
		return nil, err
	}
	if err := probe(removePadded, message.MessageTypeLinkRemove); err != nil {
		return nil, err
	}
	removeUnpadded, err := MakeRemoveKeyPadded(fid, body, false)
	if err != nil {
		return nil, err
	}
	if err := probe(removeUnpadded, message.MessageTypeLinkRemove); err != nil {
		return nil, err
	}
	addPadded, err := MakeAddKeyPadded(fid, body, true)
	if err != nil {
		return nil, err
	}
	if err := probe(addPadded, message.MessageTypeLinkAdd); err != nil {
		return nil, err
	}
	addUnpadded, err := MakeAddKeyPadded(fid, body, false)
	if err != nil {
		return nil, err
	}
	if err := probe(addUnpadded, message.MessageTypeLinkAdd); err != nil {
		return nil, err
	}

	return losers, nil
}

// deleteMessageAndIndices schedules the deletion of a superseded message's
// primary record and every secondary entry that points at it, including the
// legacy unpadded Set key.
func (s *LinkStore) deleteMessageAndIndices(batch Batch, fid uint32, m *message.Message) {
	tsHash, err := message.TsHashOf(m)
	if err != nil {
		logger.Warn("delete_indices_bad_tshash", "fid", fid, "error", err)
		return
	}
	batch.Delete(MakeMessagePrimaryKey(fid, UserPostfixLinkMessage, &tsHash))

	body, err := linkBodyOf(m)
	if err != nil {
		return
	}
	if m.IsLinkAdd() {
		if k, err := MakeAddKeyPadded(fid, body, true); err == nil {
			batch.Delete(k)
		}
		if k, err := MakeAddKeyPadded(fid, body, false); err == nil {
			batch.Delete(k)
		}
		if targetKey, _, err := LinksByTargetSecondaryIndexKey(tsHash, m); err == nil {
			batch.Delete(targetKey)
		}
	} else if m.IsLinkRemove() {
		if k, err := MakeRemoveKeyPadded(fid, body, true); err == nil {
			batch.Delete(k)
		}
		if k, err := MakeRemoveKeyPadded(fid, body, false); err == nil {
			batch.Delete(k)
		}
	}
}

// mergeCompactState installs a LinkCompactState, replacing any older
// compact state for (fid, type) and deleting every Add/Remove it supersedes.
func (s *LinkStore) mergeCompactState(ctx context.Context, m *message.Message) error {
	fid := uint32(m.Data.Fid)
	key, err := MakeCompactStateAddKeyForMessage(m)
	if err != nil {
		return err
	}

	existing, err := s.getCompactStateAt(key)
	if err != nil {
		return err
	}
	if existing != nil {
		cmp, err := CompareMessages(m, existing)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return lserrors.Conflict("a newer compact state already exists")
		}
		if cmp == 0 {
			return lserrors.Duplicate("compact state has already been merged")
		}
	}

	linkType, keep := compactStateTargets(m)

	batch := s.kv.NewBatch()
	defer batch.Close()

	raw, err := message.Marshal(m)
	if err != nil {
		return err
	}
	batch.Put(key, raw)

	var deleted []*message.Message

	addsPrefix, err := linkSetKey(fid, UserPostfixLinkAdds, linkType, nil, true)
	if err != nil {
		return err
	}
	if err := s.kv.ScanPrefix(addsPrefix, nil, nil, func(_, v []byte) (bool, error) {
		storedTsHash, err := message.FromBytes(v)
		if err != nil {
			return false, nil
		}
		stored, err := s.getMessage(fid, storedTsHash)
		if err != nil || stored == nil {
			return false, nil
		}
		body := stored.LinkBody()
		covered := stored.Data.Timestamp <= m.Data.Timestamp &&
			(body == nil || body.Target == nil || !keep[body.Target.TargetFid])
		if covered {
			s.deleteMessageAndIndices(batch, fid, stored)
			deleted = append(deleted, stored)
		}
		return false, nil
	}); err != nil {
		return lserrors.StorageFailure("scanning adds for compact state install", err)
	}

	removesPrefix, err := linkSetKey(fid, UserPostfixLinkRemoves, linkType, nil, true)
	if err != nil {
		return err
	}
	if err := s.kv.ScanPrefix(removesPrefix, nil, nil, func(_, v []byte) (bool, error) {
		storedTsHash, err := message.FromBytes(v)
		if err != nil {
			return false, nil
		}
		stored, err := s.getMessage(fid, storedTsHash)
		if err != nil || stored == nil {
			return false, nil
		}
		if stored.Data.Timestamp <= m.Data.Timestamp {
			s.deleteMessageAndIndices(batch, fid, stored)
			deleted = append(deleted, stored)
		}
		return false, nil
	}); err != nil {
		return lserrors.StorageFailure("scanning removes for compact state install", err)
	}

	if err := batch.Commit(); err != nil {
		return lserrors.StorageFailure("committing compact state batch", err)
	}

	s.events.OnMerge(MergeEvent{Type: MergeEventCompactStateMerge, Fid: m.Data.Fid, Message: m, DeletedMessages: deleted})
	return nil
}

func compactStateTargets(m *message.Message) (linkType string, keep map[uint64]bool) {
	keep = make(map[uint64]bool)
	switch body := m.Data.Body.(type) {
	case *message.LinkCompactStateBody:
		linkType = body.Type
		for _, t := range body.TargetFids {
			keep[t] = true
		}
	case *message.LinkBody:
		linkType = body.Type
		if body.Target != nil {
			keep[body.Target.TargetFid] = true
		}
	}
	return linkType, keep
}

func (s *LinkStore) getCompactState(fid uint32, linkType string) (*message.Message, error) {
	key, err := MakeLinkCompactStateAddKey(fid, linkType)
	if err != nil {
		return nil, err
	}
	return s.getCompactStateAt(key)
}

func (s *LinkStore) getCompactStateAt(key []byte) (*message.Message, error) {
	val, err := s.kv.Get(key)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, lserrors.StorageFailure("reading compact state", err)
	}
	return message.Unmarshal(val)
}

func (s *LinkStore) getMessage(fid uint32, tsHash message.TsHash) (*message.Message, error) {
	key := MakeMessagePrimaryKey(fid, UserPostfixLinkMessage, &tsHash)
	val, err := s.kv.Get(key)
	if err != nil {
		if IsNotFound(err) {
			return nil, lserrors.NotFound("message not found")
		}
		return nil, lserrors.StorageFailure("reading message", err)
	}
	return message.Unmarshal(val)
}

// Prune deletes the earliest-tsHash link messages for fid until the
// retained count is back at or under the configured prune size limit
//. It returns the number of messages deleted.
func (s *LinkStore) Prune(ctx context.Context, fid uint32) (int, error) {
	prefix := MakeMessagePrimaryKey(fid, UserPostfixLinkMessage, nil)

	var keys [][]byte
	if err := s.kv.ScanPrefix(prefix, nil, nil, func(k, _ []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), k...))
		return false, nil
	}); err != nil {
		return 0, lserrors.StorageFailure("scanning fid for prune", err)
	}

	limit := int(s.pruneSizeLimit)
	if limit <= 0 || len(keys) <= limit {
		return 0, nil
	}
	toDelete := keys[:len(keys)-limit] // primary-key order equals tsHash order

	batch := s.kv.NewBatch()
	defer batch.Close()

	var deleted []*message.Message
	for _, k := range toDelete {
		val, err := s.kv.Get(k)
		if err != nil {
			logger.Warn("prune_primary_missing", "fid", fid, "key", k)
			continue
		}
		msg, err := message.Unmarshal(val)
		if err != nil {
			logger.Warn("prune_decode_failed", "fid", fid, "error", err)
			continue
		}
		s.deleteMessageAndIndices(batch, fid, msg)
		deleted = append(deleted, msg)
	}

	if err := batch.Commit(); err != nil {
		return 0, lserrors.StorageFailure("committing prune batch", err)
	}
	s.events.OnMerge(MergeEvent{Type: MergeEventPrune, Fid: uint64(fid), DeletedMessages: deleted})
	return len(deleted), nil
}
