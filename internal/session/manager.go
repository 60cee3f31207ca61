package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusy is returned when a session or gallery sync is already running.
// The device has one camera; there is never a second concurrent session.
var ErrBusy = errors.New("device is busy")

// ErrNotFound is returned when no session with the given id is known.
var ErrNotFound = errors.New("session not found")

// Status is a point-in-time view of a managed session for API consumers.
type Status struct {
	ID       uuid.UUID
	Phase    Phase
	Frame    int
	Last     Candidate
	Done     bool
	Outcome  *Outcome // set once Done, nil for cancelled sessions
	RunError string   // acquisition failure or cancellation, empty otherwise
}

type running struct {
	loop    *Loop
	cancel  context.CancelFunc
	done    chan struct{}
	outcome *Outcome
	runErr  error
}

// Manager serializes access to the capture device: at most one decision
// loop or one gallery sync at a time. Finished sessions stay queryable
// until the next one starts.
type Manager struct {
	logger *zap.Logger

	mu      sync.Mutex
	active  *running
	syncing bool
}

// NewManager creates a session manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Start launches the loop in the background. It fails with ErrBusy while
// another session is still running or a gallery sync holds the device.
func (m *Manager) Start(ctx context.Context, loop *Loop) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.syncing {
		return uuid.Nil, ErrBusy
	}
	if m.active != nil {
		select {
		case <-m.active.done:
			// Previous session finished, its slot can be reused.
		default:
			return uuid.Nil, ErrBusy
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &running{loop: loop, cancel: cancel, done: make(chan struct{})}
	m.active = r

	go func() {
		defer close(r.done)
		defer cancel()
		out, err := loop.Run(runCtx)
		r.outcome = out
		r.runErr = err
		if err != nil && !errors.Is(err, ErrCancelled) {
			m.logger.Error("session run failed", zap.Error(err))
		}
	}()

	return loop.ID(), nil
}

// Status reports the current state of the session with the given id.
func (m *Manager) Status(id uuid.UUID) (Status, error) {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()

	if r == nil || r.loop.ID() != id {
		return Status{}, ErrNotFound
	}

	st := r.loop.State()
	out := Status{
		ID:    id,
		Phase: st.Phase,
		Frame: st.Frame,
		Last:  st.Last,
	}
	select {
	case <-r.done:
		out.Done = true
		out.Outcome = r.outcome
		if r.runErr != nil {
			out.RunError = r.runErr.Error()
		}
	default:
	}
	return out, nil
}

// Cancel aborts the session with the given id and waits for the loop to
// release the capture device.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()

	if r == nil || r.loop.ID() != id {
		return ErrNotFound
	}
	r.cancel()
	<-r.done
	return nil
}

// Wait blocks until the session with the given id finishes and returns
// its outcome. A cancelled session yields the cancellation error.
func (m *Manager) Wait(id uuid.UUID) (*Outcome, error) {
	m.mu.Lock()
	r := m.active
	m.mu.Unlock()

	if r == nil || r.loop.ID() != id {
		return nil, ErrNotFound
	}
	<-r.done
	return r.outcome, r.runErr
}

// BeginSync reserves the device for a gallery sync. The returned release
// function must be called when the sync finishes.
func (m *Manager) BeginSync() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.syncing {
		return nil, ErrBusy
	}
	if m.active != nil {
		select {
		case <-m.active.done:
		default:
			return nil, ErrBusy
		}
	}

	m.syncing = true
	return func() {
		m.mu.Lock()
		m.syncing = false
		m.mu.Unlock()
	}, nil
}
