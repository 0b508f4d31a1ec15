package harvest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/curio/core"
	"github.com/poiesic/curio/storage"
	"github.com/poiesic/curio/storage/memory"
	"github.com/poiesic/curio/throttle"
)

func contentPage(artist string) string {
	return `<html><head>
<meta property="og:image" content="https://images.example.org/obj.jpg"/>
<meta property="og:description" content="A finely decorated ceremonial vessel from the early dynastic period."/>
</head><body>
<dt>Artist:</dt><dd>` + artist + `</dd>
<dt>Date:</dt><dd>ca. 1500</dd>
<dt>Medium:</dt><dd>Bronze</dd>
<dt>Culture:</dt><dd>Shang</dd>
<dt>Credit Line:</dt><dd>Bequest of a Collector</dd>
` + strings.Repeat("<p>filler filler filler</p>", 30) + `</body></html>`
}

func fastHarvester(repo storage.ArtifactRepository, fetcher Fetcher, opts ...Option) *Harvester {
	base := []Option{
		WithPacing(0, 0),
		WithLimiter(throttle.NewLimiter(0)),
		withSleep(func(context.Context, time.Duration) {}),
	}
	return NewHarvester(repo, fetcher, append(base, opts...)...)
}

func TestHarvester_UpdatesEmptyFields(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: 1, Title: "Vessel"}))

	stub := newStubFetcher()
	stub.docs[1] = &storage.CachedDocument{Body: contentPage("Unknown caster"), StatusCode: 200, FetchedAt: time.Now().UTC()}

	stats, err := fastHarvester(repo, stub).Run(ctx, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.Processed.Load())
	assert.Equal(t, int64(1), stats.Updated.Load())
	assert.Equal(t, int64(0), stats.Errored.Load())

	got, err := repo.GetArtifact(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Unknown caster", got.Artist)
	assert.Equal(t, "Bronze", got.Medium)
	assert.Contains(t, got.Description, "ceremonial vessel")
}

func TestHarvester_Idempotent(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: 1}))

	stub := newStubFetcher()
	stub.docs[1] = &storage.CachedDocument{Body: contentPage("Unknown caster"), StatusCode: 200, FetchedAt: time.Now().UTC()}
	harvester := fastHarvester(repo, stub)

	first, err := harvester.Run(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Updated.Load())

	// Second run over unchanged data writes nothing new.
	second, err := harvester.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Updated.Load())
}

func TestHarvester_NeverOverwritesPopulatedFields(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{
		ObjectID: 1,
		Artist:   "Documented Attribution",
	}))

	stub := newStubFetcher()
	stub.docs[1] = &storage.CachedDocument{Body: contentPage("Conflicting Name"), StatusCode: 200, FetchedAt: time.Now().UTC()}

	_, err := fastHarvester(repo, stub).Run(ctx, 0)
	require.NoError(t, err)

	got, err := repo.GetArtifact(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Documented Attribution", got.Artist, "populated fields are never replaced")
	assert.Equal(t, "Bronze", got.Medium, "empty fields are still filled")
}

func TestHarvester_NotFoundCountsSkipped(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: 5}))

	stub := newStubFetcher() // serves 404 for unknown ids

	stats, err := fastHarvester(repo, stub).Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Skipped.Load())
	assert.Equal(t, int64(0), stats.Updated.Load())
}

func TestHarvester_BlockedCountsErroredAndPausesRun(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: 1}))

	stub := newStubFetcher()
	stub.docs[1] = &storage.CachedDocument{Body: "blocked", StatusCode: 429, FetchedAt: time.Now().UTC()}

	var slept []time.Duration
	var mu sync.Mutex
	harvester := NewHarvester(repo, stub,
		WithPacing(0, 0),
		WithLimiter(throttle.NewLimiter(0)),
		withSleep(func(_ context.Context, d time.Duration) {
			mu.Lock()
			slept = append(slept, d)
			mu.Unlock()
		}))

	stats, err := harvester.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Errored.Load())
	assert.Contains(t, slept, throttle.BlockedCooldown)

	got, err := repo.GetArtifact(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.Artist, "blocked items get no field changes")
}

func TestHarvester_GateExtendedMidSleepWaitsAgain(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()

	var h *Harvester
	var slept []time.Duration
	h = NewHarvester(repo, newStubFetcher(),
		WithPacing(0, 0),
		WithLimiter(throttle.NewLimiter(0)),
		withSleep(func(_ context.Context, d time.Duration) {
			slept = append(slept, d)
			// A second blocked response lands while this worker sleeps.
			if len(slept) == 1 {
				h.pauseGate(500 * time.Millisecond)
			}
		}))

	h.pauseGate(100 * time.Millisecond)
	h.waitForGate(context.Background())

	require.Len(t, slept, 2, "extended deadline forces a second wait")
	assert.Greater(t, slept[1], slept[0])
}

func TestHarvester_DryRunWritesNothing(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: 1}))

	stub := newStubFetcher()
	stub.docs[1] = &storage.CachedDocument{Body: contentPage("Someone"), StatusCode: 200, FetchedAt: time.Now().UTC()}

	stats, err := fastHarvester(repo, stub, WithDryRun(true)).Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Updated.Load(), "dry run still reports intended changes")

	got, err := repo.GetArtifact(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.Artist, "dry run must not write")
	assert.Empty(t, got.Description)
}

// concurrencyProbe counts simultaneous in-flight fetches.
type concurrencyProbe struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	body     string
}

func (p *concurrencyProbe) Fetch(ctx context.Context, objectID int64) (*storage.CachedDocument, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()

	time.Sleep(5 * time.Millisecond) // hold the permit

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	return &storage.CachedDocument{Body: p.body, StatusCode: 200, FetchedAt: time.Now().UTC()}, nil
}

func TestHarvester_AtMostNConcurrentFetches(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	for id := int64(1); id <= 40; id++ {
		require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: id}))
	}

	probe := &concurrencyProbe{body: contentPage("Someone")}
	const limit = 4
	harvester := fastHarvester(repo, probe, WithConcurrency(limit))

	stats, err := harvester.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.Processed.Load())
	assert.LessOrEqual(t, probe.peak, limit, "in-flight fetches never exceed the configured bound")
	assert.Greater(t, probe.peak, 1, "work actually ran concurrently")
}

func TestHarvester_LimitCapsWorklist(t *testing.T) {
	repo := memory.NewRepository()
	defer repo.Close()
	ctx := context.Background()

	for id := int64(1); id <= 10; id++ {
		require.NoError(t, repo.AddArtifacts(ctx, &core.Artifact{ObjectID: id}))
	}

	stub := newStubFetcher()
	stats, err := fastHarvester(repo, stub).Run(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed.Load())
}
