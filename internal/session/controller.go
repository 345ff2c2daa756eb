package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yegors/clara/internal/analysis"
	"github.com/yegors/clara/internal/backend"
	"github.com/yegors/clara/internal/upload"
	"github.com/yegors/clara/pkg/logger"
)

const (
	// TranscriptionFailedMessage is shown for every transcription failure
	TranscriptionFailedMessage = "Failed to transcribe audio. Please ensure the backend server is running."
	// AnalysisFailedPrefix prefixes every analysis failure message
	AnalysisFailedPrefix = "Analysis failed: "
	// AnalysisFailedFallback is used when the backend gave no detail
	AnalysisFailedFallback = "Analysis failed"
)

// ErrBusy is returned when an action is triggered while a request is pending
var ErrBusy = errors.New("a request is already in progress")

// Transcriber turns an audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, file *upload.File) (string, error)
}

// Analyzer produces a call analysis from transcript text
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Result, error)
}

// Backend is the remote service the controller orchestrates
type Backend interface {
	Transcriber
	Analyzer
}

// Controller owns the state of one page session. Every transition replaces
// the current Snapshot; network calls run without holding the lock.
type Controller struct {
	id      string
	backend Backend
	logger  *logger.Logger

	mu          sync.Mutex
	gen         uint64 // bumped by every action; stale responses are dropped
	file        *upload.File
	state       Snapshot
	lastActive  time.Time
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewController creates a controller in the Idle state
func NewController(id string, backend Backend, log *logger.Logger) *Controller {
	now := time.Now().UTC()
	return &Controller{
		id:          id,
		backend:     backend,
		logger:      log.Named("session").With(logger.String("session_id", id)),
		state:       Snapshot{ID: id, Phase: PhaseIdle, UpdatedAt: now},
		lastActive:  now,
		subscribers: make(map[int]chan Snapshot),
	}
}

// ID returns the session identifier
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// File returns the currently selected file, if any
func (c *Controller) File() *upload.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

// SelectFile replaces the selected file, clears all previous results and
// transcribes the file. Backend failures end up in the snapshot's Error.
func (c *Controller) SelectFile(ctx context.Context, file *upload.File) (Snapshot, error) {
	c.mu.Lock()
	if c.state.busy() {
		snap := c.state
		c.mu.Unlock()
		return snap, ErrBusy
	}
	c.gen++
	gen := c.gen
	c.file = file
	c.apply(func(s *Snapshot) {
		s.FileName = file.Name
		s.Transcript = ""
		s.Analysis = nil
		s.AnalysisInvalid = false
		s.Error = ""
		s.Transcribing = true
	})
	c.mu.Unlock()

	c.logger.Info("Transcribing file",
		logger.String("file", file.Name),
		logger.Int("bytes", file.Size()))

	start := time.Now()
	text, err := c.backend.Transcribe(ctx, file)

	c.mu.Lock()
	defer c.mu.Unlock()

	// a reset during the request wins
	if c.gen != gen {
		c.logger.Debug("Dropping stale transcription result", logger.String("file", file.Name))
		return c.state, nil
	}

	if err != nil {
		c.logger.Error("Transcription failed", logger.Error(err), logger.String("file", file.Name))
		c.apply(func(s *Snapshot) {
			s.Transcribing = false
			s.Error = TranscriptionFailedMessage
		})
		return c.state, nil
	}

	c.logger.Info("Transcription complete",
		logger.String("file", file.Name),
		logger.Int("chars", len(text)),
		logger.Duration("duration", time.Since(start)))
	c.apply(func(s *Snapshot) {
		s.Transcribing = false
		s.Transcript = text
	})
	return c.state, nil
}

// Analyze requests an analysis of the current transcript. Without a
// transcript it does nothing.
func (c *Controller) Analyze(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state.Transcript == "" {
		snap := c.state
		c.mu.Unlock()
		return snap, nil
	}
	if c.state.busy() {
		snap := c.state
		c.mu.Unlock()
		return snap, ErrBusy
	}
	text := c.state.Transcript
	c.gen++
	gen := c.gen
	c.apply(func(s *Snapshot) {
		s.Analysis = nil
		s.AnalysisInvalid = false
		s.Error = ""
		s.Analyzing = true
	})
	c.mu.Unlock()

	c.logger.Info("Analyzing transcript", logger.Int("chars", len(text)))

	start := time.Now()
	result, err := c.backend.Analyze(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		c.logger.Debug("Dropping stale analysis result")
		return c.state, nil
	}

	switch {
	case errors.Is(err, analysis.ErrMalformed):
		c.logger.Error("Failed to parse analysis", logger.Error(err))
		c.apply(func(s *Snapshot) {
			s.Analyzing = false
			s.AnalysisInvalid = true
		})
	case err != nil:
		c.logger.Error("Analysis failed", logger.Error(err))
		reason := backend.DetailOf(err)
		if reason == "" {
			reason = AnalysisFailedFallback
		}
		c.apply(func(s *Snapshot) {
			s.Analyzing = false
			s.Error = AnalysisFailedPrefix + reason
		})
	default:
		c.logger.Info("Analysis complete",
			logger.String("sentiment", string(result.Sentiment)),
			logger.Duration("duration", time.Since(start)))
		c.apply(func(s *Snapshot) {
			s.Analyzing = false
			s.Analysis = result
		})
	}
	return c.state, nil
}

// Reset returns the session to its initial empty state. A request still
// in flight is abandoned: its response is ignored when it arrives.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.file = nil
	c.apply(func(s *Snapshot) {
		s.Transcribing = false
		s.Analyzing = false
		s.FileName = ""
		s.Transcript = ""
		s.Analysis = nil
		s.AnalysisInvalid = false
		s.Error = ""
	})
	c.logger.Debug("Session reset")
	return c.state
}

// Subscribe registers for state changes. The returned function must be
// called to unsubscribe. A slow subscriber misses intermediate snapshots
// but always receives the latest one.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Snapshot, 8)
	c.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// apply mutates a copy of the state, publishes it and notifies subscribers.
// Must be called with c.mu held.
func (c *Controller) apply(mutate func(s *Snapshot)) {
	next := c.state
	mutate(&next)
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	next.Phase = next.derivePhase()
	c.state = next
	c.lastActive = next.UpdatedAt

	for _, ch := range c.subscribers {
		select {
		case ch <- next:
		default:
			// full: drop the oldest queued snapshot. apply is the only
			// sender and runs under c.mu, so the retry finds a free slot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

// touch marks the session as recently used
func (c *Controller) touch() {
	c.touchAt(time.Now().UTC())
}

func (c *Controller) touchAt(t time.Time) {
	c.mu.Lock()
	if t.After(c.lastActive) {
		c.lastActive = t
	}
	c.mu.Unlock()
}

// idleSince reports whether the session has been idle since the cutoff
func (c *Controller) idleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.state.busy() && c.lastActive.Before(cutoff)
}

// close drops all subscribers
func (c *Controller) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}
