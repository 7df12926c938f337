package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/farcasterxyz/linkstore/pkg/lserrors"
)

// wire tags for the length-delimited body encoding. These are internal to
// this store's primary-key value and are not the network envelope itself
// (which is out of scope — see Out of scope: signature verification and
// message validation); they only need to round-trip deterministically.
const (
	bodyTagLinkBody             = 1
	bodyTagLinkCompactStateBody = 2
)

// Marshal encodes a Message as the bytes stored under its primary key. The
// encoding is a flat, length-delimited field layout: every variable-length
// field (strings, byte slices, repeated fids) is prefixed with a uvarint
// length so decoding never has to guess a boundary.
func Marshal(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer

	putUvarint(&buf, m.Data.Fid)
	putUvarint(&buf, uint64(m.Data.Type))
	var tsBuf [4]byte
	binary.BigEndian.PutUint32(tsBuf[:], m.Data.Timestamp)
	buf.Write(tsBuf[:])

	switch body := m.Data.Body.(type) {
	case *LinkBody:
		buf.WriteByte(bodyTagLinkBody)
		putString(&buf, body.Type)
		if body.Target != nil {
			buf.WriteByte(1)
			putUvarint(&buf, body.Target.TargetFid)
		} else {
			buf.WriteByte(0)
		}
	case *LinkCompactStateBody:
		buf.WriteByte(bodyTagLinkCompactStateBody)
		putString(&buf, body.Type)
		putUvarint(&buf, uint64(len(body.TargetFids)))
		for _, fid := range body.TargetFids {
			putUvarint(&buf, fid)
		}
	default:
		return nil, lserrors.InvalidParameter("link body not specified")
	}

	putBytes(&buf, m.Hash)
	buf.WriteByte(m.HashScheme)
	putUvarint(&buf, uint64(m.SignatureScheme))
	putBytes(&buf, m.Signature)
	putBytes(&buf, m.Signer)

	return buf.Bytes(), nil
}

// Unmarshal decodes bytes produced by Marshal back into a Message.
func Unmarshal(b []byte) (*Message, error) {
	r := bytes.NewReader(b)

	fid, err := getUvarint(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding message fid", err)
	}
	typ, err := getUvarint(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding message type", err)
	}
	var tsBuf [4]byte
	if _, err := io.ReadFull(r, tsBuf[:]); err != nil {
		return nil, lserrors.StorageFailure("decoding message timestamp", err)
	}

	data := &MessageData{
		Fid:       fid,
		Type:      MessageType(typ),
		Timestamp: binary.BigEndian.Uint32(tsBuf[:]),
	}

	tag, err := r.ReadByte()
	if err != nil {
		return nil, lserrors.StorageFailure("decoding message body tag", err)
	}
	switch tag {
	case bodyTagLinkBody:
		lt, err := getString(r)
		if err != nil {
			return nil, lserrors.StorageFailure("decoding link type", err)
		}
		hasTarget, err := r.ReadByte()
		if err != nil {
			return nil, lserrors.StorageFailure("decoding link target presence", err)
		}
		lb := &LinkBody{Type: lt}
		if hasTarget == 1 {
			tfid, err := getUvarint(r)
			if err != nil {
				return nil, lserrors.StorageFailure("decoding link target fid", err)
			}
			lb.Target = &Target{TargetFid: tfid}
		}
		data.Body = lb
	case bodyTagLinkCompactStateBody:
		lt, err := getString(r)
		if err != nil {
			return nil, lserrors.StorageFailure("decoding compact state type", err)
		}
		n, err := getUvarint(r)
		if err != nil {
			return nil, lserrors.StorageFailure("decoding compact state target count", err)
		}
		targets := make([]uint64, 0, n)
		for i := uint64(0); i < n; i++ {
			tfid, err := getUvarint(r)
			if err != nil {
				return nil, lserrors.StorageFailure("decoding compact state target fid", err)
			}
			targets = append(targets, tfid)
		}
		data.Body = &LinkCompactStateBody{Type: lt, TargetFids: targets}
	default:
		return nil, lserrors.StorageFailure("decoding message body", fmt.Errorf("unknown body tag %d", tag))
	}

	hash, err := getBytes(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding message hash", err)
	}
	hashScheme, err := r.ReadByte()
	if err != nil {
		return nil, lserrors.StorageFailure("decoding hash scheme", err)
	}
	sigScheme, err := getUvarint(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding signature scheme", err)
	}
	sig, err := getBytes(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding signature", err)
	}
	signer, err := getBytes(r)
	if err != nil {
		return nil, lserrors.StorageFailure("decoding signer", err)
	}

	return &Message{
		Data:            data,
		Hash:            hash,
		HashScheme:      hashScheme,
		Signature:       sig,
		SignatureScheme: SignatureScheme(sigScheme),
		Signer:          signer,
	}, nil
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func getUvarint(r *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	n, err := getUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func getString(r *bytes.Reader) (string, error) {
	b, err := getBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
