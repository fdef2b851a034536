package progress

import (
	"fmt"
	"math"
	"time"
)

// Snapshot is the derived state of a transfer after a chunk.
type Snapshot struct {
	Downloaded int64
	Total      int64
	Elapsed    time.Duration
	// Speed is the average rate since start in bytes per second.
	Speed float64
	// Remaining is the estimated seconds to completion, +Inf while Speed is zero.
	Remaining float64
	Percent   float64
}

// Line renders the snapshot the way the transfer log reports it.
func (s Snapshot) Line() string {
	remaining := "inf"
	if !math.IsInf(s.Remaining, 1) {
		remaining = fmt.Sprintf("%.2f", s.Remaining)
	}

	return fmt.Sprintf("Progress: %.2f%% | Speed: %.2f KB/s | Time Remaining: %ss",
		s.Percent, s.Speed/1024, remaining)
}

// Meter accumulates bytes against a known total and derives speed and ETA.
// It is not safe for concurrent use.
type Meter struct {
	total      int64
	downloaded int64
	start      time.Time
	now        func() time.Time
}

// NewMeter starts a meter for total bytes. now may be nil to use time.Now.
func NewMeter(total int64, now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}

	return &Meter{
		total: total,
		start: now(),
		now:   now,
	}
}

// Add records n more bytes and returns the recomputed snapshot.
func (m *Meter) Add(n int) Snapshot {
	m.downloaded += int64(n)

	elapsed := m.now().Sub(m.start)

	var speed float64
	if elapsed > 0 {
		speed = float64(m.downloaded) / elapsed.Seconds()
	}

	remaining := math.Inf(1)
	if speed > 0 {
		remaining = float64(m.total-m.downloaded) / speed
	}

	var percent float64
	if m.total > 0 {
		percent = float64(m.downloaded) / float64(m.total) * 100
	}

	return Snapshot{
		Downloaded: m.downloaded,
		Total:      m.total,
		Elapsed:    elapsed,
		Speed:      speed,
		Remaining:  remaining,
		Percent:    percent,
	}
}

// Downloaded returns the bytes recorded so far.
func (m *Meter) Downloaded() int64 {
	return m.downloaded
}

// Start returns the time the meter was created.
func (m *Meter) Start() time.Time {
	return m.start
}
