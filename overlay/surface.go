package overlay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateFunc returns the render input as it is at call time
type StateFunc func() Input

// Surface owns the latest frame. Redraw requests are coalesced and served by a single goroutine
// that reads the state when it draws, so a newer snapshot supersedes a pending older one.
type Surface struct {
	state  StateFunc
	logger *zap.Logger
	now    func() time.Time

	drawMu     sync.Mutex
	mu         sync.RWMutex
	frame      Frame
	generation uint64

	pending chan struct{}

	subsMu      sync.RWMutex
	subscribers []func(Frame)
}

// NewSurface creates a surface drawing from state
func NewSurface(state StateFunc, logger *zap.Logger) *Surface {
	return &Surface{
		state:   state,
		logger:  logger,
		now:     time.Now,
		pending: make(chan struct{}, 1),
	}
}

// Subscribe registers fn to receive every completed frame. fn runs on the drawing goroutine.
func (s *Surface) Subscribe(fn func(Frame)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Invalidate requests a redraw without blocking. Requests made while one is pending are merged.
func (s *Surface) Invalidate() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

// Run serves redraw requests until ctx is cancelled
func (s *Surface) Run(ctx context.Context) {
	s.logger.Info("Overlay surface started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Overlay surface stopped")
			return
		case <-s.pending:
			s.Draw()
		}
	}
}

// Draw renders a frame synchronously, stores it and notifies subscribers
func (s *Surface) Draw() Frame {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()

	frame := Render(s.state())

	s.mu.Lock()
	s.generation++
	frame.Generation = s.generation
	frame.RenderedAt = s.now()
	s.frame = frame
	s.mu.Unlock()

	s.logger.Debug("Overlay redrawn",
		zap.Uint64("generation", frame.Generation),
		zap.Int("markers", len(frame.Markers)),
		zap.Bool("route", frame.Route != nil),
	)

	s.subsMu.RLock()
	subs := append([]func(Frame){}, s.subscribers...)
	s.subsMu.RUnlock()
	for _, fn := range subs {
		fn(frame)
	}

	return frame
}

// Frame returns the most recent frame; the zero Frame before the first draw
func (s *Surface) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Generation returns the number of frames drawn so far
func (s *Surface) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}
