package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// Lambda sync retry defaults.
const (
	DefaultSyncAttempts = 3
	DefaultSyncBackoff  = 500 * time.Millisecond
)

// ErrSyncExhausted is returned when every attempt to push a rate failed.
var ErrSyncExhausted = errors.New("lambda sync attempts exhausted")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SyncOptions tunes the retry behaviour of LambdaSyncTask.
type SyncOptions struct {
	Attempts int
	Backoff  time.Duration
	Sleep    Sleeper
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.Attempts <= 0 {
		o.Attempts = DefaultSyncAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultSyncBackoff
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	return o
}

// LambdaSyncTask pushes one user's locally updated forgetting rate to the
// shared backend, retrying with doubling backoff.
type LambdaSyncTask struct {
	*state
	lambda  domain.UserLambda
	backend store.LambdaStore
	opts    SyncOptions
	logger  *slog.Logger
}

// NewLambdaSyncTask creates a sync task for ul.
func NewLambdaSyncTask(
	ul domain.UserLambda,
	backend store.LambdaStore,
	opts SyncOptions,
	logger *slog.Logger,
) (*LambdaSyncTask, error) {
	return newLambdaSyncTask(uuid.Nil, ul, backend, opts, logger)
}

func newLambdaSyncTask(
	id uuid.UUID,
	ul domain.UserLambda,
	backend store.LambdaStore,
	opts SyncOptions,
	logger *slog.Logger,
) (*LambdaSyncTask, error) {
	if backend == nil {
		return nil, errors.New("lambda store cannot be nil")
	}
	if err := ul.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := newState(id)
	return &LambdaSyncTask{
		state:   s,
		lambda:  ul,
		backend: backend,
		opts:    opts.withDefaults(),
		logger:  logger.With("task_type", TaskTypeLambdaSync, "task_id", s.id, "user_id", ul.UserID),
	}, nil
}

// LambdaSyncFactory builds sync tasks from a JSON-encoded domain.UserLambda.
func LambdaSyncFactory(backend store.LambdaStore, opts SyncOptions, logger *slog.Logger) Factory {
	return func(id uuid.UUID, payload []byte) (Task, error) {
		var ul domain.UserLambda
		if err := json.Unmarshal(payload, &ul); err != nil {
			return nil, fmt.Errorf("invalid lambda sync payload: %w", err)
		}
		return newLambdaSyncTask(id, ul, backend, opts, logger)
	}
}

// Type returns the task type identifier
func (t *LambdaSyncTask) Type() string {
	return TaskTypeLambdaSync
}

// Payload returns the JSON-encoded rate to push.
func (t *LambdaSyncTask) Payload() []byte {
	data, err := json.Marshal(t.lambda)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte("{}")
	}
	return data
}

// Execute writes the rate to the backend. Validation failures are not
// retried; other failures are retried until the attempts run out.
func (t *LambdaSyncTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	backoff := t.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= t.opts.Attempts; attempt++ {
		ul := t.lambda
		lastErr = t.backend.SetUserLambda(ctx, &ul)
		if lastErr == nil {
			t.logger.Debug("lambda synced", "attempt", attempt, "lambda", ul.Lambda)
			return t.finish(nil)
		}
		if errors.Is(lastErr, domain.ErrValidation) {
			return t.finish(fmt.Errorf("lambda sync rejected: %w", lastErr))
		}

		t.logger.Warn("lambda sync attempt failed",
			"attempt", attempt,
			"max_attempts", t.opts.Attempts,
			"error", lastErr)

		if attempt == t.opts.Attempts {
			break
		}
		if err := t.opts.Sleep(ctx, backoff); err != nil {
			return t.finish(fmt.Errorf("lambda sync interrupted: %w", err))
		}
		backoff *= 2
	}

	return t.finish(fmt.Errorf("%w after %d attempts: %w", ErrSyncExhausted, t.opts.Attempts, lastErr))
}
