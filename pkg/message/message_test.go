package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validLinkAdd() *Message {
	return &Message{
		Data: &MessageData{
			Fid:       1,
			Type:      MessageTypeLinkAdd,
			Timestamp: 100,
			Body:      &LinkBody{Type: "follow", Target: &Target{TargetFid: 2}},
		},
		Hash:            hash20(0x01),
		SignatureScheme: SignatureSchemeEd25519,
	}
}

func TestValidateAcceptsWellFormedLinkAdd(t *testing.T) {
	require.NoError(t, validLinkAdd().Validate())
}

func TestValidateRejectsNilData(t *testing.T) {
	require.Error(t, (&Message{}).Validate())
}

func TestValidateRejectsWrongHashLength(t *testing.T) {
	m := validLinkAdd()
	m.Hash = []byte{1, 2, 3}
	require.Error(t, m.Validate())
}

func TestValidateRejectsMismatchedBody(t *testing.T) {
	m := validLinkAdd()
	m.Data.Body = &LinkCompactStateBody{Type: "follow"}
	require.Error(t, m.Validate())
}

func TestValidateAcceptsBothCompactStateBodyShapes(t *testing.T) {
	withCompact := validLinkAdd()
	withCompact.Data.Type = MessageTypeLinkCompactState
	withCompact.Data.Body = &LinkCompactStateBody{Type: "follow", TargetFids: []uint64{1}}
	require.NoError(t, withCompact.Validate())

	withLinkBody := validLinkAdd()
	withLinkBody.Data.Type = MessageTypeLinkCompactState
	require.NoError(t, withLinkBody.Validate())
}

func TestIsLinkAddRequiresEd25519Signature(t *testing.T) {
	m := validLinkAdd()
	require.True(t, m.IsLinkAdd())
	m.SignatureScheme = SignatureSchemeNone
	require.False(t, m.IsLinkAdd())
}

func TestMessageTypeStringCoversKnownAndUnknownValues(t *testing.T) {
	require.Equal(t, "LinkAdd", MessageTypeLinkAdd.String())
	require.Equal(t, "LinkRemove", MessageTypeLinkRemove.String())
	require.Equal(t, "LinkCompactState", MessageTypeLinkCompactState.String())
	require.Equal(t, "Unknown", MessageType(99).String())
}
