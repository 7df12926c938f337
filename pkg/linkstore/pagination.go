package linkstore

import (
	"encoding/base64"

	"github.com/farcasterxyz/linkstore/pkg/message"
)

// PageOptions bounds and resumes a range scan.
// PageToken is the opaque last-returned key from a prior Page.
type PageOptions struct {
	PageSize  int
	PageToken []byte
}

// Page is the result of a paged query. NextPageToken is set only when the
// result was truncated by PageSize.
type Page struct {
	Messages      []*message.Message
	NextPageToken []byte
}

// EncodePageToken renders a raw key as an opaque, transport-safe token.
func EncodePageToken(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(key)
}

// DecodePageToken parses a token produced by EncodePageToken.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	return base64.RawURLEncoding.DecodeString(token)
}

func pageSize(opts PageOptions, max uint32) int {
	if opts.PageSize <= 0 || opts.PageSize > int(max) {
		return int(max)
	}
	return opts.PageSize
}
