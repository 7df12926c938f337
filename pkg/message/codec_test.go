package message

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func hash20(b byte) []byte {
	h := make([]byte, 20)
	for i := range h {
		h[i] = b
	}
	return h
}

func TestMarshalUnmarshalLinkAdd(t *testing.T) {
	m := &Message{
		Data: &MessageData{
			Fid:       1234,
			Type:      MessageTypeLinkAdd,
			Timestamp: 1700000000,
			Body: &LinkBody{
				Type:   "follow",
				Target: &Target{TargetFid: 5678},
			},
		},
		Hash:            hash20(0xAB),
		HashScheme:      1,
		Signature:       []byte{1, 2, 3, 4},
		SignatureScheme: SignatureSchemeEd25519,
		Signer:          []byte{9, 9, 9},
	}

	raw, err := Marshal(m)
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)

	require.Equal(t, m.Data.Fid, got.Data.Fid)
	require.Equal(t, m.Data.Type, got.Data.Type)
	require.Equal(t, m.Data.Timestamp, got.Data.Timestamp)
	require.True(t, bytes.Equal(m.Hash, got.Hash))
	require.Equal(t, m.HashScheme, got.HashScheme)
	require.Equal(t, m.SignatureScheme, got.SignatureScheme)
	require.True(t, bytes.Equal(m.Signature, got.Signature))
	require.True(t, bytes.Equal(m.Signer, got.Signer))

	gotBody, ok := got.Data.Body.(*LinkBody)
	require.True(t, ok)
	require.Equal(t, "follow", gotBody.Type)
	require.NotNil(t, gotBody.Target)
	require.Equal(t, uint64(5678), gotBody.Target.TargetFid)
}

func TestMarshalUnmarshalLinkAddNoTarget(t *testing.T) {
	// Structurally valid to encode/decode even though the link store's own
	// validation rules reject a targetless LinkAdd at merge time.
	m := &Message{
		Data: &MessageData{
			Fid:       1,
			Type:      MessageTypeLinkAdd,
			Timestamp: 100,
			Body:      &LinkBody{Type: "follow"},
		},
		Hash: hash20(0x01),
	}
	raw, err := Marshal(m)
	require.NoError(t, err)
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Nil(t, got.LinkBody().Target)
}

func TestMarshalUnmarshalLinkCompactState(t *testing.T) {
	m := &Message{
		Data: &MessageData{
			Fid:       42,
			Type:      MessageTypeLinkCompactState,
			Timestamp: 1700000500,
			Body: &LinkCompactStateBody{
				Type:       "follow",
				TargetFids: []uint64{1, 2, 3, 100000},
			},
		},
		Hash: hash20(0xCD),
	}

	raw, err := Marshal(m)
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	body, ok := got.Data.Body.(*LinkCompactStateBody)
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2, 3, 100000}, body.TargetFids)
}

func TestMarshalRejectsInvalidMessage(t *testing.T) {
	_, err := Marshal(&Message{})
	require.Error(t, err)
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	_, err := Unmarshal([]byte{0x01})
	require.Error(t, err)
}
