package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/storage"
	"github.com/italolelis/grabber/internal/transfer"
)

const (
	dirPerm     = 0755
	eventBuffer = 16
)

var (
	ErrDownloadInProgress = errors.New("a download is already in progress")
	ErrNoActiveDownload   = errors.New("no active download")
)

// Downloader runs at most one transfer at a time and records finished
// transfers in the history store.
type Downloader struct {
	engine    *transfer.Engine
	history   storage.HistoryRepository
	targetDir string
	pause     *transfer.PauseControl
	now       func() time.Time

	mu      sync.Mutex
	current *Job

	OnDownloadFinished chan *Job
	OnDownloadFailed   chan *Job
}

func NewDownloader(engine *transfer.Engine, history storage.HistoryRepository, targetDir string) *Downloader {
	return &Downloader{
		engine:             engine,
		history:            history,
		targetDir:          targetDir,
		pause:              transfer.NewPauseControl(),
		now:                time.Now,
		OnDownloadFinished: make(chan *Job, eventBuffer),
		OnDownloadFailed:   make(chan *Job, eventBuffer),
	}
}

// Start launches a transfer of url into dest. A relative dest is resolved
// under the target directory. The transfer outlives ctx cancellation; use
// Shutdown to stop it.
func (d *Downloader) Start(ctx context.Context, url, dest string) (*Job, error) {
	if url == "" {
		return nil, &transfer.InvalidInputError{URL: url, Reason: "URL is empty"}
	}

	if !transfer.IsValidURL(url) {
		return nil, &transfer.InvalidInputError{URL: url}
	}

	if strings.TrimSpace(dest) == "" {
		return nil, &transfer.InvalidInputError{URL: url, Reason: "destination path is empty"}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && d.current.running() {
		return nil, ErrDownloadInProgress
	}

	targetPath := d.resolve(dest)
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctx, logger := logctx.With(ctx, "transfer_id", id)

	if err := d.ensureTargetDir(targetPath, logger); err != nil {
		cancel()

		return nil, &transfer.StorageError{Path: targetPath, Err: err}
	}

	d.pause.Resume()

	job := newJob(id, url, targetPath, d.pause, d.now())

	if d.current != nil {
		d.current.cancel()
	}

	job.cancel = cancel
	d.current = job

	logger.Info("starting download", "url", url, "target", targetPath)

	go d.run(ctx, job)

	return job, nil
}

func (d *Downloader) run(ctx context.Context, job *Job) {
	defer close(job.done)

	logger := logctx.LoggerFromContext(ctx)
	status := job.Status()

	hooks := transfer.Hooks{
		OnLog: func(message string) {
			job.appendLog(message)
			logger.Debug("transfer log", "message", message)
		},
		OnProgress: job.setProgress,
	}

	result, err := d.engine.Download(ctx, transfer.Request{URL: status.URL, Destination: status.Path}, d.pause, hooks)
	if err != nil {
		logger.Error("download failed", "url", status.URL, "kind", transfer.KindOf(err), "err", err)
		job.fail(err, d.now())
		publish(d.OnDownloadFailed, job)

		return
	}

	if err := d.history.Append(ctx, storage.Record{URL: status.URL, FilePath: result.Path}); err != nil {
		logger.Error("failed to record download history", "url", status.URL, "err", err)
	}

	job.complete(result, d.now())

	logger.Info("download completed",
		"target", result.Path,
		"size", humanize.Bytes(uint64(result.Bytes)),
		"duration", result.Duration)

	publish(d.OnDownloadFinished, job)
}

func publish(ch chan *Job, job *Job) {
	select {
	case ch <- job:
	default:
	}
}

// Current returns the status of the most recent job.
func (d *Downloader) Current() (Status, bool) {
	d.mu.Lock()
	job := d.current
	d.mu.Unlock()

	if job == nil {
		return Status{}, false
	}

	return job.Status(), true
}

func (d *Downloader) active() (*Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil || !d.current.running() {
		return nil, ErrNoActiveDownload
	}

	return d.current, nil
}

// Pause asks the active transfer to stop before its next chunk.
func (d *Downloader) Pause() error {
	if _, err := d.active(); err != nil {
		return err
	}

	d.pause.Pause()

	return nil
}

func (d *Downloader) Resume() error {
	if _, err := d.active(); err != nil {
		return err
	}

	d.pause.Resume()

	return nil
}

// TogglePause flips the pause state and reports whether it is now paused.
func (d *Downloader) TogglePause() (bool, error) {
	if _, err := d.active(); err != nil {
		return false, err
	}

	return d.pause.Toggle(), nil
}

// Wait blocks until the active job finishes and returns its error. It returns
// nil immediately when nothing is running.
func (d *Downloader) Wait(ctx context.Context) error {
	d.mu.Lock()
	job := d.current
	d.mu.Unlock()

	if job == nil {
		return nil
	}

	select {
	case <-job.Done():
		return job.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown lets the active transfer run until ctx expires, then cancels it
// and waits for it to stop. It returns ctx.Err() when the transfer had to be
// cancelled.
func (d *Downloader) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	job := d.current
	d.mu.Unlock()

	if job == nil {
		return nil
	}

	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
	}

	job.cancel()
	<-job.Done()

	return ctx.Err()
}

// History returns every recorded download in insertion order.
func (d *Downloader) History(ctx context.Context) ([]storage.Record, error) {
	records, err := d.history.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return records, nil
}

func (d *Downloader) resolve(dest string) string {
	if filepath.IsAbs(dest) {
		return filepath.Clean(dest)
	}

	return filepath.Join(d.targetDir, dest)
}

func (d *Downloader) ensureTargetDir(targetPath string, logger *slog.Logger) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		logger.Error("failed to create target directory", "dir", dir, "err", err)

		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return nil
}
