package task

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// memoryTaskStore is a TaskStore kept in maps, for tests.
type memoryTaskStore struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]Task
	statuses map[uuid.UUID]TaskStatus
	messages map[uuid.UUID]string
	saveErr  error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{
		tasks:    map[uuid.UUID]Task{},
		statuses: map[uuid.UUID]TaskStatus{},
		messages: map[uuid.UUID]string{},
	}
}

func (s *memoryTaskStore) SaveTask(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tasks[t.ID()] = t
	s.statuses[t.ID()] = t.Status()
	return nil
}

func (s *memoryTaskStore) UpdateTaskStatus(_ context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	s.messages[id] = msg
	return nil
}

func (s *memoryTaskStore) byStatus(status TaskStatus) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for id, st := range s.statuses {
		if st == status {
			out = append(out, s.tasks[id])
		}
	}
	return out
}

func (s *memoryTaskStore) GetPendingTasks(context.Context) ([]Task, error) {
	return s.byStatus(TaskStatusPending), nil
}

func (s *memoryTaskStore) GetProcessingTasks(context.Context, time.Duration) ([]Task, error) {
	return s.byStatus(TaskStatusProcessing), nil
}

func (s *memoryTaskStore) WithTx(*sql.Tx) TaskStore { return s }

func (s *memoryTaskStore) status(id uuid.UUID) (TaskStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id], s.messages[id]
}

// funcTask runs fn when executed.
type funcTask struct {
	*state
	fn func(ctx context.Context) error
}

func newFuncTask(fn func(ctx context.Context) error) *funcTask {
	return &funcTask{state: newState(uuid.Nil), fn: fn}
}

func (t *funcTask) Type() string    { return "func" }
func (t *funcTask) Payload() []byte { return []byte("{}") }

func (t *funcTask) Execute(ctx context.Context) error {
	return t.finish(t.fn(ctx))
}

// flakyLambdaStore fails the first failures writes with err.
type flakyLambdaStore struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	stored   *domain.UserLambda
}

func (s *flakyLambdaStore) GetUserLambda(context.Context, uuid.UUID) (*domain.UserLambda, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		return nil, store.ErrUserLambdaNotFound
	}
	cp := *s.stored
	return &cp, nil
}

func (s *flakyLambdaStore) SetUserLambda(_ context.Context, ul *domain.UserLambda) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		if s.err != nil {
			return s.err
		}
		return errors.New("backend unavailable")
	}
	cp := *ul
	s.stored = &cp
	return nil
}

// recordingSleeper captures requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}
