// File: internal/infra/worker/loop.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-music-bot/internal/domain"
	"telegram-music-bot/internal/infra/metrics"
)

type Task func(ctx context.Context) error

type job struct {
	id   string
	name string
	task Task
}

// Loop runs submitted tasks one at a time, in submission order, on a single
// goroutine. Everything that must not be touched concurrently (playback
// registry, voice client) is only ever reached from inside a Loop task.
type Loop struct {
	jobs        chan job
	quit        chan struct{}
	done        chan struct{}
	taskTimeout time.Duration
	log         *zerolog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewLoop creates a loop with a buffered queue of queueSize tasks.
// taskTimeout <= 0 disables the per-task deadline.
func NewLoop(queueSize int, taskTimeout time.Duration, log *zerolog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	l := log.With().Str("component", "worker").Logger()
	return &Loop{
		jobs:        make(chan job, queueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		taskTimeout: taskTimeout,
		log:         &l,
	}
}

// Start launches the loop goroutine. Calling it twice is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.stopped {
		return
	}
	l.started = true
	go l.run(ctx)
	l.log.Info().Int("queue_size", cap(l.jobs)).Msg("command loop started")
}

// Stop rejects new submissions, runs what is already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	started := l.started
	close(l.quit)
	l.mu.Unlock()

	if !started {
		close(l.done)
		return
	}
	<-l.done
	l.log.Info().Msg("command loop stopped")
}

// Submit enqueues task without blocking and returns its job id.
// A full queue drops the task rather than stall the caller.
func (l *Loop) Submit(name string, task Task) (string, error) {
	if task == nil {
		return "", fmt.Errorf("%w: nil task", domain.ErrInvalidArgument)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case l.stopped:
		return "", domain.ErrLoopStopped
	case !l.started:
		return "", domain.ErrLoopNotStarted
	}

	j := job{id: ulid.Make().String(), name: name, task: task}
	select {
	case l.jobs <- j:
		metrics.SetQueueDepth(len(l.jobs))
		return j.id, nil
	default:
		metrics.IncWorkerTask("dropped")
		l.log.Warn().Str("task", name).Msg("queue full, task dropped")
		return "", domain.ErrQueueFull
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.quit:
			l.drain(ctx)
			return
		case j := <-l.jobs:
			metrics.SetQueueDepth(len(l.jobs))
			l.exec(ctx, j)
		}
	}
}

func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case j := <-l.jobs:
			metrics.SetQueueDepth(len(l.jobs))
			l.exec(ctx, j)
		default:
			return
		}
	}
}

func (l *Loop) exec(parent context.Context, j job) {
	ctx := parent
	if l.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, l.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	err := l.safeRun(ctx, j)
	ev := l.log.Debug()
	status := "completed"
	switch {
	case errors.Is(err, errTaskPanicked):
		status = "panicked"
		ev = l.log.Error().Err(err)
	case err != nil:
		status = "failed"
		ev = l.log.Warn().Err(err)
	}
	metrics.IncWorkerTask(status)
	ev.Str("job_id", j.id).Str("task", j.name).Dur("duration", time.Since(start)).Msg("task " + status)
}

var errTaskPanicked = errors.New("task panicked")

func (l *Loop) safeRun(ctx context.Context, j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error().Str("job_id", j.id).Bytes("stack", debug.Stack()).Msg("recovered from task panic")
			err = fmt.Errorf("%w: %v", errTaskPanicked, rec)
		}
	}()
	return j.task(ctx)
}
