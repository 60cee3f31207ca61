package session

import (
	"context"
	"image"
	"sync"
)

// AsyncRecognizer decouples recognition latency from the frame cadence.
// It wraps a Recognizer with a single worker goroutine: at most one
// recognition runs at a time, newer frames replace a not-yet-started
// pending frame, and a result whose frame was overtaken by a newer
// submission is discarded. Applied results therefore always move forward
// in frame order.
//
// Recognize never blocks on the wrapped recognizer. It submits the
// current frame and returns the most recently applied candidate, which
// starts out Unknown until the first result lands.
type AsyncRecognizer struct {
	rec Recognizer

	jobs    chan asyncJob
	results chan asyncResult

	mu      sync.Mutex
	seq     int64 // sequence of the newest submitted frame
	applied Candidate

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type asyncJob struct {
	seq   int64
	frame image.Image
}

type asyncResult struct {
	seq  int64
	cand Candidate
}

// NewAsyncRecognizer starts the worker. Close must be called when the
// session ends.
func NewAsyncRecognizer(ctx context.Context, rec Recognizer) *AsyncRecognizer {
	a := &AsyncRecognizer{
		rec:     rec,
		jobs:    make(chan asyncJob, 1),
		results: make(chan asyncResult, 2),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.applied = Unknown()
	go a.worker(ctx)
	return a
}

func (a *AsyncRecognizer) worker(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case <-ctx.Done():
			return
		case j := <-a.jobs:
			cand := a.rec.Recognize(ctx, j.frame)
			select {
			case a.results <- asyncResult{seq: j.seq, cand: cand}:
			case <-a.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// Recognize submits the frame for background recognition and returns the
// last applied candidate without waiting.
//
// Completed results are drained before the new frame bumps the sequence:
// a result that finished while no newer frame existed was not overtaken
// and must become the last candidate.
func (a *AsyncRecognizer) Recognize(_ context.Context, frame image.Image) Candidate {
	a.mu.Lock()
	a.drainLocked()
	a.seq++
	seq := a.seq
	cand := a.applied
	a.mu.Unlock()

	j := asyncJob{seq: seq, frame: frame}
	select {
	case a.jobs <- j:
	default:
		// Worker is busy and a frame is already queued. The queued
		// frame is stale now, replace it.
		select {
		case <-a.jobs:
		default:
		}
		select {
		case a.jobs <- j:
		default:
		}
	}

	return cand
}

// drainLocked applies completed results. A result computed for a frame
// that was overtaken before it finished never becomes the last
// candidate. Caller holds mu.
func (a *AsyncRecognizer) drainLocked() {
	for {
		select {
		case r := <-a.results:
			if r.seq < a.seq {
				continue
			}
			a.applied = r.cand
		default:
			return
		}
	}
}

// Close stops the worker and waits for it to exit.
func (a *AsyncRecognizer) Close() {
	a.stopOnce.Do(func() { close(a.stop) })
	<-a.done
}
