package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"vidshrink/internal/model"
	"vidshrink/internal/progress"
)

const (
	eventBuffer  = 256
	eventReserve = 4 // room for the terminal update and result
)

// Job is a running compression. It owns the job's cancellation and event
// stream; front-ends hold it instead of sharing any global state.
type Job struct {
	id     string
	events chan progress.Event
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	res  model.FinalResult
	err  error
}

// Start runs svc.CompressToTarget for req in a new goroutine.
func Start(ctx context.Context, svc *Service, req model.CompressionRequest) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		id:     uuid.NewString(),
		events: make(chan progress.Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	run := svc.with(
		WithJobID(j.id),
		WithReporter(progress.Multi{svc.reporter, progress.Chan{C: j.events, Reserve: eventReserve}}),
	)
	go func() {
		defer close(j.done)
		defer close(j.events)
		defer cancel()
		j.res, j.err = run.CompressToTarget(ctx, req)
	}()
	return j
}

// ID returns the job's unique identifier.
func (j *Job) ID() string { return j.id }

// Events streams progress, logs and exactly one final Result. The channel is
// closed when the job exits. Progress updates are dropped if the reader falls
// behind; the Result never is.
func (j *Job) Events() <-chan progress.Event { return j.events }

// Cancel requests cancellation. The running encoder is killed and partial
// output removed before Done is closed. Safe to call more than once.
func (j *Job) Cancel() { j.once.Do(j.cancel) }

// Done is closed once the job has fully exited.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job exits and returns its outcome.
func (j *Job) Wait() (model.FinalResult, error) {
	<-j.done
	return j.res, j.err
}
