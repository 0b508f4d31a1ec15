package embedgen

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports aggregate progress of a generation run: count,
// success rate, throughput and estimated time remaining. Purely
// observational; it never affects run outcomes.
type ProgressTracker struct {
	writer         io.Writer
	total          int
	succeeded      int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: total number of items to process
// reportInterval: report progress every N items
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if reportInterval <= 0 {
		reportInterval = 25
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.succeeded = 0
	p.failed = 0
	p.lastReported = 0
}

// RecordSuccess counts one successfully processed item.
func (p *ProgressTracker) RecordSuccess() {
	p.record(true)
}

// RecordFailure counts one failed item.
func (p *ProgressTracker) RecordFailure() {
	p.record(false)
}

func (p *ProgressTracker) record(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if success {
		p.succeeded++
	} else {
		p.failed++
	}

	current := p.succeeded + p.failed
	if current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = current
	}
}

// Finish prints the final progress line.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	current := p.succeeded + p.failed
	elapsed := time.Since(p.startTime)
	rate := float64(current) / elapsed.Seconds()

	successRate := 0.0
	if current > 0 {
		successRate = float64(p.succeeded) / float64(current) * 100.0
	}

	remaining := "?"
	if rate > 0 && p.total > current {
		eta := time.Duration(float64(p.total-current)/rate) * time.Second
		remaining = eta.Round(time.Second).String()
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d - %.1f items/s - %.1f%% ok - ETA %s",
		current, p.total, rate, successRate, remaining)
}
