package bot

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"
)

var ErrShuttingDown = xerrors.New("shutting down, not starting new tasks")

// Handle on a unit of work running in the background
type Task struct {
	Id     uuid.UUID
	Name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Closed when the task has finished
func (task *Task) Done() <-chan struct{} {
	return task.done
}

// Result of the task, only meaningful after Done is closed
func (task *Task) Err() error {
	return task.err
}

func (task *Task) Cancel() {
	task.cancel()
}

// Keeps count of the running tasks so shutdown can wait for them.
// Once Wait has been called no new task starts
type Tasks struct {
	mu       sync.Mutex
	closed   bool
	group    sync.WaitGroup
	inflight atomic.Int32
}

func (tasks *Tasks) Start(ctx context.Context, name string, work func(ctx context.Context, task *Task) error) (*Task, error) {

	tasks.mu.Lock()
	defer tasks.mu.Unlock()
	if tasks.closed || ctx.Err() != nil {
		log.Debug().Str("name", name).Msg("Refusing task during shutdown")
		return nil, ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{Id: uuid.New(), Name: name, cancel: cancel, done: make(chan struct{})}

	tasks.group.Add(1)
	tasks.inflight.Inc()
	log.Debug().Str("task", task.Id.String()).Str("name", name).Msg("Task started")

	go func() {
		defer tasks.group.Done()
		defer tasks.inflight.Dec()
		defer cancel()
		defer close(task.done)
		task.err = work(ctx, task)
		log.Debug().Str("task", task.Id.String()).Str("name", name).AnErr("error", task.err).Msg("Task finished")
	}()

	return task, nil
}

func (tasks *Tasks) Inflight() int32 {
	return tasks.inflight.Load()
}

// Block until every task has finished or ctx is done
func (tasks *Tasks) Wait(ctx context.Context) error {
	tasks.mu.Lock()
	tasks.closed = true
	tasks.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		tasks.group.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
