// Package message defines the wire types link messages are built from:
// MessageType and SignatureScheme enums, the LinkBody/LinkCompactStateBody
// payloads, and the envelope (Message/MessageData) that carries a signed,
// timestamped declaration between two fids.
//
// Field order and widths here are the network wire format boundary: fid is u64 on the wire even though keys persist
// only the low 32 bits, signature_scheme is restricted to Ed25519, and the
// link body oneof is either a LinkBody or, for compact states, either a
// LinkCompactStateBody or (historically) a LinkBody.
package message

import "github.com/farcasterxyz/linkstore/pkg/lserrors"

// MessageType mirrors the subset of the network's message-type enum that the
// link store cares about. Other message families (reactions, casts, ...)
// use disjoint values and are not modeled here.
type MessageType int32

const (
	MessageTypeLinkAdd          MessageType = 5
	MessageTypeLinkRemove       MessageType = 6
	MessageTypeLinkCompactState MessageType = 14
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeLinkAdd:
		return "LinkAdd"
	case MessageTypeLinkRemove:
		return "LinkRemove"
	case MessageTypeLinkCompactState:
		return "LinkCompactState"
	default:
		return "Unknown"
	}
}

// SignatureScheme mirrors the network's signature-scheme enum. The link
// store only ever accepts Ed25519-signed messages.
type SignatureScheme int32

const (
	SignatureSchemeNone    SignatureScheme = 0
	SignatureSchemeEd25519 SignatureScheme = 1
)

// Target identifies the object a link points at. Only target-by-fid exists
// today; it is still modeled as a small oneof so a future target kind does
// not have to change every call site.
type Target struct {
	TargetFid uint64
}

// LinkBody is the payload of a LinkAdd or LinkRemove message.
type LinkBody struct {
	Type   string
	Target *Target // nil means "no target" (validation rules in apply)
}

// LinkCompactStateBody is the payload of a LinkCompactState message: a
// summary of every target actively linked under (fid, Type) as of Timestamp.
type LinkCompactStateBody struct {
	Type       string
	TargetFids []uint64
}

// Body is implemented by LinkBody and LinkCompactStateBody. A
// LinkCompactState message may legally carry either — the compact-state key
// derivation accepts both but prefers LinkCompactStateBody.
type Body interface {
	isBody()
}

func (*LinkBody) isBody()             {}
func (*LinkCompactStateBody) isBody() {}

// MessageData is the signed payload of a Message.
type MessageData struct {
	Fid       uint64
	Type      MessageType
	Timestamp uint32
	Body      Body
}

// Message is a complete, signed link message as received from the network.
type Message struct {
	Data            *MessageData
	Hash            []byte // 20 bytes, content hash of Data
	HashScheme      uint8
	Signature       []byte
	SignatureScheme SignatureScheme
	Signer          []byte
}

// LinkBody returns the message's LinkBody, or nil if its body is not one.
func (m *Message) LinkBody() *LinkBody {
	if m == nil || m.Data == nil {
		return nil
	}
	b, _ := m.Data.Body.(*LinkBody)
	return b
}

// LinkCompactStateBody returns the message's LinkCompactStateBody, or nil.
func (m *Message) LinkCompactStateBody() *LinkCompactStateBody {
	if m == nil || m.Data == nil {
		return nil
	}
	b, _ := m.Data.Body.(*LinkCompactStateBody)
	return b
}

// IsLinkAdd reports whether m is a validly-shaped, Ed25519-signed LinkAdd.
func (m *Message) IsLinkAdd() bool {
	return m.isTyped(MessageTypeLinkAdd)
}

// IsLinkRemove reports whether m is a validly-shaped, Ed25519-signed LinkRemove.
func (m *Message) IsLinkRemove() bool {
	return m.isTyped(MessageTypeLinkRemove)
}

// IsLinkCompactState reports whether m is a validly-shaped, Ed25519-signed LinkCompactState.
func (m *Message) IsLinkCompactState() bool {
	return m.isTyped(MessageTypeLinkCompactState)
}

func (m *Message) isTyped(t MessageType) bool {
	return m != nil &&
		m.SignatureScheme == SignatureSchemeEd25519 &&
		m.Data != nil &&
		m.Data.Type == t &&
		m.Data.Body != nil
}

// Validate checks the structural preconditions the merge path relies on
// before ever touching a key: data and body must be present, and a
// LinkCompactState must resolve to one of the two accepted body shapes.
func (m *Message) Validate() error {
	if m == nil || m.Data == nil {
		return lserrors.InvalidParameter("invalid message data")
	}
	if m.Data.Body == nil {
		return lserrors.InvalidParameter("invalid message data body")
	}
	switch m.Data.Type {
	case MessageTypeLinkAdd, MessageTypeLinkRemove:
		if _, ok := m.Data.Body.(*LinkBody); !ok {
			return lserrors.InvalidParameter("link body not specified")
		}
	case MessageTypeLinkCompactState:
		switch m.Data.Body.(type) {
		case *LinkCompactStateBody, *LinkBody:
			// both accepted; see Body doc comment.
		default:
			return lserrors.InvalidParameter("link_compact_state_body not specified")
		}
	default:
		return lserrors.InvalidParameter("unsupported message type")
	}
	if len(m.Hash) != 20 {
		return lserrors.ValidationFailure("message hash must be 20 bytes")
	}
	return nil
}
