// Package session drives the bounded multi-frame attendance decision
// loop: it owns the capture device for the lifetime of one session, feeds
// frames through the recognition pipeline and turns per-frame candidates
// into a single accept or timeout outcome.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diemxuan/face-attendance/internal/capture"
	"github.com/diemxuan/face-attendance/internal/hr"
	"github.com/diemxuan/face-attendance/internal/match"
	"github.com/diemxuan/face-attendance/internal/metrics"
)

// ErrCancelled is returned by Run when the operator aborts the session.
// No attendance record is emitted and no decision state survives.
var ErrCancelled = errors.New("session cancelled")

// Phase is the decision loop state. Accepted and TimedOut are absorbing;
// the only way out is starting a new session.
type Phase int

const (
	PhaseWarmup Phase = iota
	PhaseTracking
	PhaseAccepted
	PhaseTimedOut
)

func (p Phase) String() string {
	switch p {
	case PhaseWarmup:
		return "warmup"
	case PhaseTracking:
		return "tracking"
	case PhaseAccepted:
		return "accepted"
	case PhaseTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Candidate is the per-frame recognition result. A zero ID means the
// frame resolved to Unknown, whatever the reason.
type Candidate struct {
	ID     string
	Name   string
	Box    [4]float64
	HasBox bool
}

// Known reports whether the candidate carries an accepted identity.
func (c Candidate) Known() bool {
	return c.ID != ""
}

// Unknown is the degraded candidate used for frames with no usable face.
func Unknown() Candidate {
	return Candidate{Name: match.UnknownLabel}
}

// Overlay is the per-frame payload handed to the presentation layer.
type Overlay struct {
	Frame  int
	Box    [4]float64
	HasBox bool
	Label  string
}

// Params bound the decision loop in frames, not wall-clock time.
type Params struct {
	WarmupFrames     int // frames discarded while the camera stabilizes
	AcceptCheckFrame int // frame index at which a known candidate accepts
	TimeoutFrame     int // frame index at which a still-unknown candidate fails
}

// DefaultParams returns the reference loop bounds: 34 warm-up frames,
// accept check 6 tracking frames later, timeout after 16.
func DefaultParams() Params {
	return Params{WarmupFrames: 34, AcceptCheckFrame: 40, TimeoutFrame: 50}
}

// NewParams derives loop bounds from the warm-up length and the two
// tracking offsets.
func NewParams(warmupFrames, acceptAfter, timeoutAfter int) Params {
	return Params{
		WarmupFrames:     warmupFrames,
		AcceptCheckFrame: warmupFrames + acceptAfter,
		TimeoutFrame:     warmupFrames + timeoutAfter,
	}
}

// DecisionState is the loop bookkeeping, threaded explicitly through
// every tick. It never leaks across sessions.
type DecisionState struct {
	Frame int
	Phase Phase
	Last  Candidate
}

// Outcome is the terminal result of a session.
type Outcome struct {
	Phase     Phase // PhaseAccepted or PhaseTimedOut
	Action    hr.Action
	Identity  string
	Name      string
	Timestamp time.Time
	Frames    int
	// Recorded is true when the attendance event reached the sink. An
	// accepted outcome with Recorded=false carries the SinkErr; the
	// recognition result itself still stands.
	Recorded bool
	SinkErr  error
}

// Recognizer turns one frame into a candidate. Implementations must
// degrade every internal failure to Unknown; a frame never aborts the
// session.
type Recognizer interface {
	Recognize(ctx context.Context, frame image.Image) Candidate
}

// Sink records accepted attendance events.
type Sink interface {
	PostAttendance(ctx context.Context, identity string, action hr.Action, ts time.Time, timezone string) error
}

// LoopConfig wires a decision loop.
type LoopConfig struct {
	Action     hr.Action
	Source     capture.Source
	Recognizer Recognizer
	Sink       Sink // optional; nil skips recording
	Timezone   string
	Params     Params
	Logger     *zap.Logger
	Now        func() time.Time // clock source, defaults to time.Now
	OnFrame    func(Overlay)    // presentation callback, optional
}

// Loop is one attendance session. Create with NewLoop, drive with Run.
type Loop struct {
	id  uuid.UUID
	cfg LoopConfig

	stateCh chan DecisionState // 1-buffered mailbox holding the latest state
}

// NewLoop builds a session loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Source == nil {
		return nil, errors.New("capture source is required")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	if cfg.Params == (Params{}) {
		cfg.Params = DefaultParams()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Loop{
		id:      uuid.New(),
		cfg:     cfg,
		stateCh: make(chan DecisionState, 1),
	}
	l.publish(DecisionState{Phase: PhaseWarmup})
	return l, nil
}

// ID returns the session identifier.
func (l *Loop) ID() uuid.UUID {
	return l.id
}

// State returns the most recently published decision state.
func (l *Loop) State() DecisionState {
	st := <-l.stateCh
	l.stateCh <- st
	return st
}

func (l *Loop) publish(st DecisionState) {
	select {
	case <-l.stateCh:
	default:
	}
	l.stateCh <- st
}

// Run executes the decision loop until it reaches a terminal phase or the
// context is cancelled. The capture device is acquired up front and
// released on every exit path. Only device acquisition failures and
// cancellation surface as errors; recognition trouble never does.
func (l *Loop) Run(ctx context.Context) (*Outcome, error) {
	if err := l.cfg.Source.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("session %s: %w", l.id, err)
	}
	defer func() {
		if err := l.cfg.Source.Release(); err != nil {
			l.cfg.Logger.Warn("failed to release capture device",
				zap.String("session_id", l.id.String()), zap.Error(err))
		}
	}()

	metrics.SessionsStarted.WithLabelValues(string(l.cfg.Action)).Inc()
	l.cfg.Logger.Info("session started",
		zap.String("session_id", l.id.String()),
		zap.String("action", string(l.cfg.Action)))

	state := DecisionState{Phase: PhaseWarmup}
	for {
		// The frame-acquire boundary is the cooperative suspension
		// point: cancellation is checked here, every tick.
		if ctx.Err() != nil {
			metrics.SessionsCompleted.WithLabelValues("cancelled").Inc()
			l.cfg.Logger.Info("session cancelled",
				zap.String("session_id", l.id.String()),
				zap.Int("frame", state.Frame))
			return nil, fmt.Errorf("session %s: %w", l.id, ErrCancelled)
		}

		frame, readErr := l.cfg.Source.ReadFrame(ctx)
		if ctx.Err() != nil {
			metrics.SessionsCompleted.WithLabelValues("cancelled").Inc()
			return nil, fmt.Errorf("session %s: %w", l.id, ErrCancelled)
		}
		metrics.FramesProcessed.Inc()

		if state.Frame >= l.cfg.Params.WarmupFrames {
			state.Phase = PhaseTracking

			cand := Unknown()
			if readErr != nil {
				metrics.FrameFailures.WithLabelValues("capture").Inc()
				l.cfg.Logger.Debug("frame read failed",
					zap.String("session_id", l.id.String()),
					zap.Int("frame", state.Frame), zap.Error(readErr))
			} else {
				cand = l.cfg.Recognizer.Recognize(ctx, frame)
			}
			// Only the most recently computed candidate counts; no
			// vote across the window. A single stray result on the
			// sampled frame can flip the outcome, which mirrors the
			// tuned device behavior.
			state.Last = cand
			l.emitOverlay(state)

			if state.Frame == l.cfg.Params.AcceptCheckFrame && state.Last.Known() {
				return l.accept(ctx, state), nil
			}
			if state.Frame >= l.cfg.Params.TimeoutFrame && !state.Last.Known() {
				return l.timeout(state), nil
			}
		}

		state.Frame++
		l.publish(state)
	}
}

func (l *Loop) emitOverlay(state DecisionState) {
	if l.cfg.OnFrame == nil {
		return
	}
	l.cfg.OnFrame(Overlay{
		Frame:  state.Frame,
		Box:    state.Last.Box,
		HasBox: state.Last.HasBox,
		Label:  state.Last.Name,
	})
}

func (l *Loop) accept(ctx context.Context, state DecisionState) *Outcome {
	state.Phase = PhaseAccepted
	l.publish(state)
	metrics.SessionsCompleted.WithLabelValues("accepted").Inc()

	out := &Outcome{
		Phase:     PhaseAccepted,
		Action:    l.cfg.Action,
		Identity:  state.Last.ID,
		Name:      state.Last.Name,
		Timestamp: l.cfg.Now(),
		Frames:    state.Frame + 1,
		Recorded:  true,
	}
	l.cfg.Logger.Info("session accepted",
		zap.String("session_id", l.id.String()),
		zap.String("identity", out.Identity),
		zap.Int("frame", state.Frame))

	if l.cfg.Sink == nil {
		out.Recorded = false
		return out
	}
	if err := l.cfg.Sink.PostAttendance(ctx, out.Identity, out.Action, out.Timestamp, l.cfg.Timezone); err != nil {
		metrics.SinkFailures.Inc()
		out.Recorded = false
		out.SinkErr = err
		l.cfg.Logger.Error("attendance post failed",
			zap.String("session_id", l.id.String()), zap.Error(err))
	}
	return out
}

func (l *Loop) timeout(state DecisionState) *Outcome {
	state.Phase = PhaseTimedOut
	l.publish(state)
	metrics.SessionsCompleted.WithLabelValues("timeout").Inc()

	l.cfg.Logger.Info("session timed out",
		zap.String("session_id", l.id.String()), zap.Int("frame", state.Frame))
	return &Outcome{
		Phase:  PhaseTimedOut,
		Action: l.cfg.Action,
		Name:   match.UnknownLabel,
		Frames: state.Frame + 1,
	}
}
