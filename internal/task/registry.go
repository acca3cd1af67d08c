package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTaskType is returned when no factory is registered for a task type.
var ErrUnknownTaskType = errors.New("unknown task type")

// Factory builds a task from its identifier and JSON payload. A nil ID means
// a new task.
type Factory func(id uuid.UUID, payload []byte) (Task, error)

// Registry maps task types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates taskType with f, replacing any previous factory.
func (r *Registry) Register(taskType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[taskType] = f
}

// Create builds a new task of the given type.
func (r *Registry) Create(taskType string, payload []byte) (Task, error) {
	return r.build(uuid.Nil, taskType, payload)
}

// Restore rebuilds a persisted task. It never returns nil: when the task
// cannot be rebuilt the result is a task whose Execute reports why, so the
// runner records it as failed instead of dropping it.
func (r *Registry) Restore(id uuid.UUID, taskType string, payload []byte) Task {
	t, err := r.build(id, taskType, payload)
	if err != nil {
		return &unrestorableTask{state: newState(id), taskType: taskType, payload: payload, err: err}
	}
	return t
}

func (r *Registry) build(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	r.mu.RLock()
	f, ok := r.factories[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}

	t, err := f(id, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s task: %w", taskType, err)
	}
	return t, nil
}

type unrestorableTask struct {
	*state
	taskType string
	payload  []byte
	err      error
}

func (t *unrestorableTask) Type() string    { return t.taskType }
func (t *unrestorableTask) Payload() []byte { return t.payload }

func (t *unrestorableTask) Execute(context.Context) error {
	return t.finish(fmt.Errorf("cannot restore task: %w", t.err))
}
