package linkstore

import (
	"log/slog"
	"sync"

	"github.com/farcasterxyz/linkstore/pkg/message"
)

// MergeEventType distinguishes the write that produced a MergeEvent.
type MergeEventType int

const (
	MergeEventMerge MergeEventType = iota
	MergeEventPrune
	MergeEventCompactStateMerge
)

// MergeEvent is broadcast after a successful commit. Broadcast itself is an external collaborator
// concern; EventHandler is the seam a real broadcaster plugs into.
type MergeEvent struct {
	Type            MergeEventType
	Fid             uint64
	Message         *message.Message
	DeletedMessages []*message.Message
}

// EventHandler is called after a successful commit to broadcast the change.
// Implementations are expected to be internally thread-safe.
type EventHandler interface {
	OnMerge(MergeEvent)
}

// NoopEventHandler discards every event. Useful for tests and for embedders
// that only care about the persisted state, not change notifications.
type NoopEventHandler struct{}

func (NoopEventHandler) OnMerge(MergeEvent) {}

// BroadcastEventHandler fans merge events out to any number of subscriber
// channels. An event is dropped for any subscriber whose buffer is full
// rather than allowed to block a committing merge; the subscriber itself
// stays registered.
type BroadcastEventHandler struct {
	mu   sync.Mutex
	subs map[chan MergeEvent]struct{}
}

func NewBroadcastEventHandler() *BroadcastEventHandler {
	return &BroadcastEventHandler{subs: make(map[chan MergeEvent]struct{})}
}

// Subscribe returns a channel of buffered merge events. Call Unsubscribe to
// release it.
func (b *BroadcastEventHandler) Subscribe(buffer int) chan MergeEvent {
	ch := make(chan MergeEvent, buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *BroadcastEventHandler) Unsubscribe(ch chan MergeEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *BroadcastEventHandler) OnMerge(evt MergeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// subscriber is behind; drop rather than block the committing merge.
		}
	}
}

func (t MergeEventType) String() string {
	switch t {
	case MergeEventMerge:
		return "merge"
	case MergeEventPrune:
		return "prune"
	case MergeEventCompactStateMerge:
		return "compact_state_merge"
	default:
		return "unknown"
	}
}

// AuditEventHandler writes one JSON record per commit to an audit logger,
// independent of the human-readable Log stream. It is the link store's
// consumer of a dedicated audit sink: every merge, prune, and compact-state
// installation is recorded with the fields an operator needs to reconstruct
// what changed and why, without parsing the text log.
type AuditEventHandler struct {
	log *slog.Logger
}

// NewAuditEventHandler wraps log (typically logger.Audit) as an EventHandler.
// log must be non-nil; construct it with logger.AttachAuditSink first.
func NewAuditEventHandler(log *slog.Logger) *AuditEventHandler {
	return &AuditEventHandler{log: log}
}

func (a *AuditEventHandler) OnMerge(evt MergeEvent) {
	var tsHash, msgType string
	if evt.Message != nil {
		msgType = evt.Message.Data.Type.String()
		if h, err := message.TsHashOf(evt.Message); err == nil {
			tsHash = h.String()
		}
	}
	a.log.Info("link_store_commit",
		"event", evt.Type.String(),
		"fid", evt.Fid,
		"message_type", msgType,
		"ts_hash", tsHash,
		"deleted_count", len(evt.DeletedMessages),
	)
}

// MultiEventHandler fans a single commit out to every wrapped handler, in
// order. Used to run the audit trail and the live-subscriber broadcast off
// the same commit without the store itself knowing about either.
type MultiEventHandler struct {
	handlers []EventHandler
}

func NewMultiEventHandler(handlers ...EventHandler) *MultiEventHandler {
	return &MultiEventHandler{handlers: handlers}
}

func (m *MultiEventHandler) OnMerge(evt MergeEvent) {
	for _, h := range m.handlers {
		if h != nil {
			h.OnMerge(evt)
		}
	}
}
