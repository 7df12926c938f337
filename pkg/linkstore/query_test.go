package linkstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/farcasterxyz/linkstore/pkg/message"
)

func TestGetLinkAddsByFidPaginatesWithoutGapsOrDuplicates(t *testing.T) {
	s := New(newMemKV(), NoopEventHandler{}, 10000, 2, nil) // page size max = 2
	ctx := context.Background()
	fid := uint32(1)

	for i := uint64(1); i <= 5; i++ {
		m := linkMsg(message.MessageTypeLinkAdd, uint64(fid), "follow", i, uint32(100+i), byte(i))
		require.NoError(t, s.Merge(ctx, m))
	}

	seenTargets := make(map[uint64]bool)
	var token []byte
	pages := 0
	for {
		page, err := s.GetLinkAddsByFid(ctx, fid, "follow", PageOptions{PageToken: token})
		require.NoError(t, err)
		pages++
		require.LessOrEqual(t, len(page.Messages), 2)
		for _, m := range page.Messages {
			target := m.LinkBody().Target.TargetFid
			require.False(t, seenTargets[target], "target %d returned twice", target)
			seenTargets[target] = true
		}
		if page.NextPageToken == nil {
			break
		}
		token = page.NextPageToken
		require.Less(t, pages, 10) // guard against an infinite loop on a codec bug
	}

	require.Len(t, seenTargets, 5)
	for i := uint64(1); i <= 5; i++ {
		require.True(t, seenTargets[i])
	}
}

func TestGetLinkAddsByFidFiltersByType(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	fid := uint32(1)

	require.NoError(t, s.Merge(ctx, linkMsg(message.MessageTypeLinkAdd, uint64(fid), "follow", 1, 100, 0x01)))
	require.NoError(t, s.Merge(ctx, linkMsg(message.MessageTypeLinkAdd, uint64(fid), "like", 2, 100, 0x02)))

	page, err := s.GetLinkAddsByFid(ctx, fid, "follow", PageOptions{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, "follow", page.Messages[0].LinkBody().Type)
}

func TestGetLinkCompactStateMessagesByFid(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	fid := uint32(1)

	follow := &message.Message{
		Data: &message.MessageData{
			Fid:       uint64(fid),
			Type:      message.MessageTypeLinkCompactState,
			Timestamp: 100,
			Body:      &message.LinkCompactStateBody{Type: "follow", TargetFids: []uint64{1, 2}},
		},
		Hash:            fullHash(0x01),
		SignatureScheme: message.SignatureSchemeEd25519,
	}
	like := &message.Message{
		Data: &message.MessageData{
			Fid:       uint64(fid),
			Type:      message.MessageTypeLinkCompactState,
			Timestamp: 200,
			Body:      &message.LinkCompactStateBody{Type: "like", TargetFids: []uint64{3}},
		},
		Hash:            fullHash(0x02),
		SignatureScheme: message.SignatureSchemeEd25519,
	}
	require.NoError(t, s.Merge(ctx, follow))
	require.NoError(t, s.Merge(ctx, like))

	got, err := s.GetLinkCompactStateMessagesByFid(ctx, fid)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestEncodeDecodePageTokenRoundTrips(t *testing.T) {
	key := []byte{0x01, 0x02, 0x03, 0xFF}
	token := EncodePageToken(key)
	require.NotEmpty(t, token)

	back, err := DecodePageToken(token)
	require.NoError(t, err)
	require.Equal(t, key, back)
}

func TestDecodeEmptyPageTokenIsNil(t *testing.T) {
	back, err := DecodePageToken("")
	require.NoError(t, err)
	require.Nil(t, back)
}
