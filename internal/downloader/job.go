package downloader

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/transfer"
)

const maxLogLines = 100

// State is the lifecycle of a job as seen by observers.
type State string

const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is a point-in-time copy of a job.
type Status struct {
	ID         string     `json:"id"`
	URL        string     `json:"url"`
	Path       string     `json:"path"`
	State      State      `json:"state"`
	Percent    float64    `json:"percent"`
	Speed      float64    `json:"speed"`
	SpeedHuman string     `json:"speed_human"`
	ETA        *float64   `json:"eta,omitempty"`
	Bytes      int64      `json:"bytes,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Logs       []string   `json:"logs"`
}

// Job is one transfer started by a Downloader.
type Job struct {
	pause  *transfer.PauseControl
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	status Status
	err    error
}

func newJob(id, url, path string, pause *transfer.PauseControl, now time.Time) *Job {
	return &Job{
		pause:  pause,
		done:   make(chan struct{}),
		cancel: func() {},
		status: Status{
			ID:        id,
			URL:       url,
			Path:      path,
			State:     StateRunning,
			StartedAt: now,
			Logs:      []string{},
		},
	}
}

func (j *Job) ID() string {
	return j.status.ID
}

// Done is closed once the transfer has finished, successfully or not.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Err returns the failure of a finished job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.err
}

// Status returns a copy of the job status. A running job whose pause control
// is paused reports StatePaused.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := j.status
	s.Logs = append([]string(nil), j.status.Logs...)

	if s.ETA != nil {
		eta := *s.ETA
		s.ETA = &eta
	}

	if s.State == StateRunning && j.pause.IsPaused() {
		s.State = StatePaused
	}

	return s
}

func (j *Job) running() bool {
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

func (j *Job) appendLog(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status.Logs = append(j.status.Logs, message)
	if n := len(j.status.Logs); n > maxLogLines {
		j.status.Logs = append([]string(nil), j.status.Logs[n-maxLogLines:]...)
	}
}

func (j *Job) setProgress(percent, speed, eta float64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status.Percent = percent
	j.status.Speed = speed
	j.status.SpeedHuman = humanize.Bytes(uint64(speed)) + "/s"

	// JSON has no encoding for +Inf.
	if math.IsInf(eta, 0) || math.IsNaN(eta) {
		j.status.ETA = nil
	} else {
		j.status.ETA = &eta
	}
}

func (j *Job) complete(result *transfer.Result, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status.State = StateCompleted
	j.status.Bytes = result.Bytes
	j.status.FinishedAt = &now
}

func (j *Job) fail(err error, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	j.status.State = StateFailed
	j.status.Error = err.Error()
	j.status.ErrorKind = string(transfer.KindOf(err))
	j.status.FinishedAt = &now
}
