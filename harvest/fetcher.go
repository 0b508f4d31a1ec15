package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/curio/storage"
)

// Outcome classifies a fetch attempt. Only OutcomeContent proceeds to
// extraction; the rest are terminal for the item within a run.
type Outcome int

const (
	// OutcomeContent means the document looks like a real catalog page.
	OutcomeContent Outcome = iota
	// OutcomeNotFound means the origin answered with a not-found page.
	OutcomeNotFound
	// OutcomeBlocked means the origin is rate-limiting or bot-blocking the
	// whole client (403/429), so the run should pause, not retry the item.
	OutcomeBlocked
	// OutcomeTransport covers other HTTP errors and network failures.
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContent:
		return "content"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// minContentBytes is the smallest body that could plausibly be a catalog
// page; shorter responses are treated as not-found placeholders.
const minContentBytes = 512

// notFoundMarkers are substrings that identify a soft-404 page served with
// a 200 status.
var notFoundMarkers = []string{
	"page not found",
	"page you requested could not be found",
	"no longer available",
}

// defaultUserAgent presents a realistic browser identity; origins serve
// bot-protection pages to obviously synthetic clients.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const defaultFetchTimeout = 30 * time.Second

// Fetcher retrieves the external catalog document for an object id.
type Fetcher interface {
	Fetch(ctx context.Context, objectID int64) (*storage.CachedDocument, error)
}

// HTTPFetcher fetches catalog pages over HTTP. URLTemplate must contain one
// %d verb for the object id.
type HTTPFetcher struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher for the given URL template with its own
// transport timeout.
func NewHTTPFetcher(urlTemplate string) *HTTPFetcher {
	return &HTTPFetcher{
		client:      &http.Client{Timeout: defaultFetchTimeout},
		urlTemplate: urlTemplate,
		userAgent:   defaultUserAgent,
	}
}

// Fetch retrieves the document for an object id. Network failures surface as
// errors; HTTP-level failures surface in the returned status code.
func (f *HTTPFetcher) Fetch(ctx context.Context, objectID int64) (*storage.CachedDocument, error) {
	url := fmt.Sprintf(f.urlTemplate, objectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %d: %w", objectID, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching object %d: %w", objectID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body for object %d: %w", objectID, err)
	}

	return &storage.CachedDocument{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// CachingFetcher wraps a Fetcher with a document cache so repeated runs do
// not re-hit the origin within the cache TTL. Only content-bearing responses
// are cached; blocked and error responses must be retried on a later run.
type CachingFetcher struct {
	inner Fetcher
	cache storage.DocumentCache
}

var _ Fetcher = (*CachingFetcher)(nil)

// NewCachingFetcher wraps inner with cache.
func NewCachingFetcher(inner Fetcher, cache storage.DocumentCache) *CachingFetcher {
	return &CachingFetcher{inner: inner, cache: cache}
}

func (f *CachingFetcher) Fetch(ctx context.Context, objectID int64) (*storage.CachedDocument, error) {
	cached, err := f.cache.GetDocument(objectID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	doc, err := f.inner.Fetch(ctx, objectID)
	if err != nil {
		return nil, err
	}

	if Classify(doc) == OutcomeContent {
		// A cache write failure is not worth failing the fetch over.
		_ = f.cache.PutDocument(objectID, doc)
	}
	return doc, nil
}

// Classify maps a fetched document to an outcome per the response policy:
// 403/429 mean the client is being blocked, other non-2xx are transport
// errors, and 2xx bodies that are tiny or carry not-found markers are
// soft-404 pages.
func Classify(doc *storage.CachedDocument) Outcome {
	switch {
	case doc.StatusCode == http.StatusForbidden || doc.StatusCode == http.StatusTooManyRequests:
		return OutcomeBlocked
	case doc.StatusCode == http.StatusNotFound:
		return OutcomeNotFound
	case doc.StatusCode < 200 || doc.StatusCode >= 300:
		return OutcomeTransport
	}

	if len(doc.Body) < minContentBytes {
		return OutcomeNotFound
	}
	lower := strings.ToLower(doc.Body)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return OutcomeNotFound
		}
	}
	return OutcomeContent
}
