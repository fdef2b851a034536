package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/progress"
	"github.com/italolelis/grabber/internal/telemetry"
)

const (
	DefaultUserAgent      = "Mozilla/5.0"
	DefaultConnectTimeout = 10 * time.Second
	DefaultChunkSize      = 1024

	filePerm = 0644
)

// Config tunes the engine.
type Config struct {
	UserAgent      string
	ConnectTimeout time.Duration
	ChunkSize      int
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		UserAgent:      DefaultUserAgent,
		ConnectTimeout: DefaultConnectTimeout,
		ChunkSize:      DefaultChunkSize,
	}
}

// Request describes one transfer. It is copied when a transfer starts.
type Request struct {
	URL         string
	Destination string
}

// Hooks are the observer callbacks of a transfer. Both are optional and are
// invoked synchronously on the transfer goroutine.
type Hooks struct {
	OnLog      func(message string)
	OnProgress func(percent, speed, eta float64)
}

func (h Hooks) log(message string) {
	if h.OnLog != nil {
		h.OnLog(message)
	}
}

func (h Hooks) progress(s progress.Snapshot) {
	if h.OnProgress != nil {
		h.OnProgress(s.Percent, s.Speed, s.Remaining)
	}
}

// Result summarizes a successful transfer.
type Result struct {
	Path     string
	Bytes    int64
	Duration time.Duration
}

// Engine streams a single HTTP resource to a file with cooperative pause
// support and per-chunk progress reporting.
type Engine struct {
	client    *http.Client
	cfg       Config
	telemetry *telemetry.Telemetry
	now       func() time.Time
	freeSpace func(path string) (uint64, error)
}

// NewEngine creates an engine. A nil client is replaced by NewHTTPClient and a
// nil telemetry by a disabled one.
func NewEngine(cfg Config, client *http.Client, tel *telemetry.Telemetry) *Engine {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if client == nil {
		client = NewHTTPClient(cfg.ConnectTimeout)
	}

	if tel == nil {
		tel = &telemetry.Telemetry{}
	}

	return &Engine{
		client:    client,
		cfg:       cfg,
		telemetry: tel,
		now:       time.Now,
		freeSpace: freeSpace,
	}
}

// Download performs the transfer described by req. It blocks until the body is
// fully written or the attempt fails. Failures are one of *InvalidInputError,
// *HTTPStatusError, *SizeUnknownError, *TransportError or *StorageError, and
// each is also reported through hooks.OnLog. Partial files are left in place.
func (e *Engine) Download(ctx context.Context, req Request, pause *PauseControl, hooks Hooks) (*Result, error) {
	var result *Result

	classify := func(err error) string { return string(KindOf(err)) }

	err := e.telemetry.InstrumentDownload(ctx, classify, func(ctx context.Context) error {
		var err error
		result, err = e.download(ctx, req, pause, hooks)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) download(ctx context.Context, req Request, pause *PauseControl, hooks Hooks) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx)

	if !IsValidURL(req.URL) {
		hooks.log(fmt.Sprintf("Error: Invalid URL '%s'", req.URL))

		return nil, &InvalidInputError{URL: req.URL}
	}

	// reqCtx is also cancelled by the idle timer when the body stalls.
	reqCtx, cancelReq := context.WithCancel(ctx)
	defer cancelReq()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		hooks.log(fmt.Sprintf("Error: %v", err))

		return nil, &InvalidInputError{URL: req.URL, Reason: err.Error()}
	}

	httpReq.Header.Set("User-Agent", e.cfg.UserAgent)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		hooks.log(fmt.Sprintf("Error: %v", err))

		return nil, &TransportError{Operation: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode, Status: resp.Status}
		hooks.log(fmt.Sprintf("Error: %v", statusErr))

		return nil, statusErr
	}

	total := resp.ContentLength
	if total <= 0 {
		hooks.log("Unable to determine the file size.")

		return nil, &SizeUnknownError{URL: req.URL}
	}

	if free, err := e.freeSpace(req.Destination); err != nil {
		logger.Debug("skipping free space check", "destination", req.Destination, "err", err)
	} else if uint64(total) > free {
		spaceErr := &StorageError{
			Path: req.Destination,
			Err:  fmt.Errorf("%w: need %s, %s available", ErrInsufficientSpace, humanize.Bytes(uint64(total)), humanize.Bytes(free)),
		}
		hooks.log(fmt.Sprintf("Error: %v", spaceErr))

		return nil, spaceErr
	}

	out, err := os.OpenFile(req.Destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		hooks.log(fmt.Sprintf("Error: %v", err))

		return nil, &StorageError{Path: req.Destination, Err: err}
	}
	defer out.Close()

	logger.Debug("streaming body",
		"destination", req.Destination,
		"file_size", humanize.Bytes(uint64(total)),
		"chunk_size", e.cfg.ChunkSize,
	)

	meter := progress.NewMeter(total, e.now)
	buf := make([]byte, e.cfg.ChunkSize)

	var stalled atomic.Bool

	idle := time.AfterFunc(e.cfg.ConnectTimeout, func() {
		stalled.Store(true)
		cancelReq()
	})
	idle.Stop()
	defer idle.Stop()

	for {
		if pause.IsPaused() {
			hooks.log("Download paused...")
			e.telemetry.RecordPause(ctx)

			if err := pause.Wait(ctx); err != nil {
				hooks.log(fmt.Sprintf("Error: %v", err))

				return nil, &TransportError{Operation: "pause", Err: err}
			}

			hooks.log("Download resumed...")
		}

		idle.Reset(e.cfg.ConnectTimeout)
		n, readErr := resp.Body.Read(buf)
		idle.Stop()

		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				hooks.log(fmt.Sprintf("Error: %v", err))

				return nil, &StorageError{Path: req.Destination, Err: err}
			}

			e.telemetry.RecordBytes(ctx, int64(n))

			snapshot := meter.Add(n)
			hooks.progress(snapshot)
			hooks.log(snapshot.Line())
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			if stalled.Load() {
				readErr = fmt.Errorf("%w: no data received for %s", ErrStalled, e.cfg.ConnectTimeout)
			}

			hooks.log(fmt.Sprintf("Error: %v", readErr))

			return nil, &TransportError{Operation: "stream", Err: readErr}
		}
	}

	if err := out.Sync(); err != nil {
		hooks.log(fmt.Sprintf("Error: %v", err))

		return nil, &StorageError{Path: req.Destination, Err: err}
	}

	hooks.log(fmt.Sprintf("Download completed and saved to '%s'.", req.Destination))

	return &Result{
		Path:     req.Destination,
		Bytes:    meter.Downloaded(),
		Duration: e.now().Sub(meter.Start()),
	}, nil
}

// Download runs one transfer with a default engine and reports success. It is
// the callback-style entry point for shells that only need a boolean outcome.
func Download(url, destination string, pause *PauseControl, onLog func(string), onProgress func(percent, speed, eta float64)) bool {
	engine := NewEngine(DefaultConfig(), nil, nil)

	_, err := engine.Download(context.Background(), Request{URL: url, Destination: destination}, pause, Hooks{
		OnLog:      onLog,
		OnProgress: onProgress,
	})

	return err == nil
}
