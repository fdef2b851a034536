package transfer

import (
	"context"
	"sync"
)

// PauseControl is a RUNNING/PAUSED flag shared between the controlling side and
// an in-flight transfer. The engine consults it once per chunk and blocks while
// it is paused. The zero value is not usable; a nil *PauseControl never pauses.
type PauseControl struct {
	mu      sync.Mutex
	paused  bool
	running chan struct{} // closed while RUNNING
}

// NewPauseControl returns a control in the RUNNING state.
func NewPauseControl() *PauseControl {
	running := make(chan struct{})
	close(running)

	return &PauseControl{running: running}
}

// Pause switches to PAUSED. It is a no-op when already paused.
func (p *PauseControl) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return
	}

	p.paused = true
	p.running = make(chan struct{})
}

// Resume switches to RUNNING and wakes any waiter.
func (p *PauseControl) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.paused {
		return
	}

	p.paused = false
	close(p.running)
}

// Toggle flips the state and reports whether the control is now paused.
func (p *PauseControl) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		p.paused = false
		close(p.running)
	} else {
		p.paused = true
		p.running = make(chan struct{})
	}

	return p.paused
}

// IsPaused reports the current state.
func (p *PauseControl) IsPaused() bool {
	if p == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.paused
}

// Wait blocks until the control is RUNNING or ctx is done.
func (p *PauseControl) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	select {
	case <-running:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
