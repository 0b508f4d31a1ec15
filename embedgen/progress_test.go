package embedgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 5)
	tracker.Start()

	for range 4 {
		tracker.RecordSuccess()
	}
	assert.Empty(t, buf.String(), "no report before the interval")

	tracker.RecordSuccess()
	assert.Contains(t, buf.String(), "5/10")
}

func TestProgressTracker_SuccessRate(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 4)
	tracker.Start()

	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.RecordFailure()

	assert.Contains(t, buf.String(), "75.0% ok")
}

func TestProgressTracker_IgnoresUpdatesBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.RecordSuccess()
	tracker.Finish()
	assert.Empty(t, buf.String())
}

func TestProgressTracker_FinishPrintsFinalLine(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 2, 100)
	tracker.Start()

	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.Finish()

	assert.Contains(t, buf.String(), "2/2")
}
