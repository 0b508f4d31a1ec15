package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/curio/storage"
	badgercache "github.com/poiesic/curio/storage/badger"
)

func TestClassify(t *testing.T) {
	realPage := strings.Repeat("<p>catalog content</p>", 40)

	tests := []struct {
		name string
		doc  *storage.CachedDocument
		want Outcome
	}{
		{"forbidden", &storage.CachedDocument{StatusCode: 403, Body: realPage}, OutcomeBlocked},
		{"too many requests", &storage.CachedDocument{StatusCode: 429, Body: realPage}, OutcomeBlocked},
		{"not found status", &storage.CachedDocument{StatusCode: 404, Body: realPage}, OutcomeNotFound},
		{"server error", &storage.CachedDocument{StatusCode: 502, Body: realPage}, OutcomeTransport},
		{"tiny body", &storage.CachedDocument{StatusCode: 200, Body: "<html></html>"}, OutcomeNotFound},
		{"soft 404 marker", &storage.CachedDocument{StatusCode: 200, Body: realPage + "Page Not Found"}, OutcomeNotFound},
		{"real content", &storage.CachedDocument{StatusCode: 200, Body: realPage}, OutcomeContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.doc))
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "/objects/42", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>object page</html>"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL + "/objects/%d")
	doc, err := fetcher.Fetch(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Equal(t, "<html>object page</html>", doc.Body)
	assert.False(t, doc.FetchedAt.IsZero())
	assert.Contains(t, gotUA, "Mozilla/5.0", "presents a realistic client identity")
}

// stubFetcher serves canned documents and counts calls per object id.
type stubFetcher struct {
	docs  map[int64]*storage.CachedDocument
	calls map[int64]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		docs:  make(map[int64]*storage.CachedDocument),
		calls: make(map[int64]int),
	}
}

func (s *stubFetcher) Fetch(ctx context.Context, objectID int64) (*storage.CachedDocument, error) {
	s.calls[objectID]++
	doc, ok := s.docs[objectID]
	if !ok {
		return &storage.CachedDocument{StatusCode: 404, FetchedAt: time.Now().UTC()}, nil
	}
	return doc, nil
}

func TestCachingFetcher(t *testing.T) {
	cache, err := badgercache.OpenDocumentCache("", true, 0)
	require.NoError(t, err)
	defer cache.Close()

	contentDoc := &storage.CachedDocument{
		Body:       strings.Repeat("<p>catalog content</p>", 40),
		StatusCode: 200,
		FetchedAt:  time.Now().UTC(),
	}
	stub := newStubFetcher()
	stub.docs[1] = contentDoc
	stub.docs[2] = &storage.CachedDocument{Body: "x", StatusCode: 403, FetchedAt: time.Now().UTC()}

	fetcher := NewCachingFetcher(stub, cache)
	ctx := context.Background()

	// First fetch hits the origin, second is served from cache.
	doc, err := fetcher.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, contentDoc.Body, doc.Body)

	doc, err = fetcher.Fetch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, contentDoc.Body, doc.Body)
	assert.Equal(t, 1, stub.calls[1], "second fetch must not hit the origin")

	// Blocked responses are never cached.
	_, err = fetcher.Fetch(ctx, 2)
	require.NoError(t, err)
	_, err = fetcher.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls[2], "blocked responses are not cached")
}
