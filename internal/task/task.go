package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/events"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task types, shared with the events package.
const (
	TaskTypeLambdaSync       = events.TypeLambdaSync
	TaskTypeModelTraining    = events.TypeModelTraining
	TaskTypeLambdaEstimation = events.TypeLambdaEstimation
)

// Task represents a unit of background work to be processed
type Task interface {
	ID() uuid.UUID
	Type() string
	// Payload returns the JSON-encoded data needed to rebuild the task.
	Payload() []byte
	Status() TaskStatus
	Execute(ctx context.Context) error
}

// TaskStore defines the interface for persisting tasks
type TaskStore interface {
	// SaveTask persists a task to the database
	SaveTask(ctx context.Context, task Task) error

	// UpdateTaskStatus updates the status of a task
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// GetPendingTasks retrieves all tasks with "pending" status
	GetPendingTasks(ctx context.Context) ([]Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status. If
	// olderThan is non-zero, only tasks that have been processing longer
	// than that are returned.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// state carries the identity and status shared by every task implementation.
type state struct {
	mu     sync.RWMutex
	id     uuid.UUID
	status TaskStatus
}

func newState(id uuid.UUID) *state {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &state{id: id, status: TaskStatusPending}
}

// ID returns the task's unique identifier
func (s *state) ID() uuid.UUID {
	return s.id
}

// Status returns the current task status
func (s *state) Status() TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *state) setStatus(status TaskStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// finish records the outcome of Execute and passes err through.
func (s *state) finish(err error) error {
	if err != nil {
		s.setStatus(TaskStatusFailed)
		return err
	}
	s.setStatus(TaskStatusCompleted)
	return nil
}
