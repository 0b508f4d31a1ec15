package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MarshalCachedDocument serializes a CachedDocument to bytes.
// FetchedAt is stored as Unix microseconds.
func MarshalCachedDocument(doc *CachedDocument) []byte {
	fetchedAt := doc.FetchedAt.UnixMicro()
	size := ord.String.Size(doc.Body) +
		varint.Int.Size(doc.StatusCode) +
		raw.Int64.Size(fetchedAt)

	buf := make([]byte, size)
	n := ord.String.Marshal(doc.Body, buf)
	n += varint.Int.Marshal(doc.StatusCode, buf[n:])
	raw.Int64.Marshal(fetchedAt, buf[n:])
	return buf
}

// UnmarshalCachedDocument deserializes a CachedDocument from bytes.
func UnmarshalCachedDocument(data []byte) (*CachedDocument, error) {
	body, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	statusCode, m, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += m

	fetchedAt, _, err := raw.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}

	return &CachedDocument{
		Body:       body,
		StatusCode: statusCode,
		FetchedAt:  time.UnixMicro(fetchedAt).UTC(),
	}, nil
}
