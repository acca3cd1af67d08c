package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/studycycle-api/internal/events"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
)

func TestTaskRunnerSubmit(t *testing.T) {
	t.Parallel()

	t.Run("persists before queueing", func(t *testing.T) {
		t.Parallel()
		st := newMemoryTaskStore()
		runner := NewTaskRunner(st, DefaultTaskRunnerConfig(), logger.Discard())

		task := newFuncTask(func(context.Context) error { return nil })
		require.NoError(t, runner.Submit(context.Background(), task))

		status, _ := st.status(task.ID())
		assert.Equal(t, TaskStatusPending, status)
		assert.Equal(t, 1, runner.queue.Len())
	})

	t.Run("queue full", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultTaskRunnerConfig()
		cfg.QueueSize = 1
		runner := NewTaskRunner(newMemoryTaskStore(), cfg, logger.Discard())

		require.NoError(t, runner.Submit(context.Background(), newFuncTask(func(context.Context) error { return nil })))
		err := runner.Submit(context.Background(), newFuncTask(func(context.Context) error { return nil }))
		assert.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("store failure", func(t *testing.T) {
		t.Parallel()
		st := newMemoryTaskStore()
		st.saveErr = errors.New("db down")
		runner := NewTaskRunner(st, DefaultTaskRunnerConfig(), logger.Discard())

		err := runner.Submit(context.Background(), newFuncTask(func(context.Context) error { return nil }))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task")
		assert.Equal(t, 0, runner.queue.Len())
	})
}

func TestTaskRunnerExecutesAndRecordsOutcome(t *testing.T) {
	t.Parallel()

	st := newMemoryTaskStore()
	runner := NewTaskRunner(st, DefaultTaskRunnerConfig(), logger.Discard())

	var failed atomic.Int32
	runner.SetErrorHandler(func(Task, error) { failed.Add(1) })

	require.NoError(t, runner.Start())
	t.Cleanup(runner.Stop)

	ok := newFuncTask(func(context.Context) error { return nil })
	bad := newFuncTask(func(context.Context) error { return errors.New("boom") })

	require.NoError(t, runner.Submit(context.Background(), ok))
	require.NoError(t, runner.Submit(context.Background(), bad))

	require.Eventually(t, func() bool {
		okStatus, _ := st.status(ok.ID())
		badStatus, _ := st.status(bad.ID())
		return okStatus == TaskStatusCompleted && badStatus == TaskStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	_, msg := st.status(bad.ID())
	assert.Equal(t, "boom", msg)
	assert.Equal(t, int32(1), failed.Load())
}

func TestTaskRunnerRecover(t *testing.T) {
	t.Parallel()

	st := newMemoryTaskStore()
	pending := newFuncTask(func(context.Context) error { return nil })
	interrupted := newFuncTask(func(context.Context) error { return nil })
	require.NoError(t, st.SaveTask(context.Background(), pending))
	require.NoError(t, st.SaveTask(context.Background(), interrupted))
	require.NoError(t, st.UpdateTaskStatus(context.Background(), interrupted.ID(), TaskStatusProcessing, ""))

	runner := NewTaskRunner(st, DefaultTaskRunnerConfig(), logger.Discard())
	require.NoError(t, runner.Recover())

	assert.Equal(t, 2, runner.queue.Len())
	status, msg := st.status(interrupted.ID())
	assert.Equal(t, TaskStatusPending, status)
	assert.Equal(t, "reset after recovery", msg)
}

func TestRegistryRestoreUnknownType(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	restored := NewRegistry().Restore(id, "mystery", []byte("{}"))
	require.NotNil(t, restored)

	assert.Equal(t, id, restored.ID())
	assert.Equal(t, "mystery", restored.Type())

	err := restored.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
	assert.Equal(t, TaskStatusFailed, restored.Status())
}

func TestRegistryCreateUnknownType(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Create("mystery", nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)

	var nilRegistry *Registry
	_, err = nilRegistry.Create(TaskTypeLambdaSync, nil)
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestRegistryAndEventHandler(t *testing.T) {
	t.Parallel()

	st := newMemoryTaskStore()
	runner := NewTaskRunner(st, DefaultTaskRunnerConfig(), logger.Discard())

	registry := NewRegistry()
	registry.Register(TaskTypeLambdaSync, LambdaSyncFactory(&flakyLambdaStore{}, SyncOptions{}, logger.Discard()))

	handler := NewTaskFactoryEventHandler(registry, runner, logger.Discard())
	emitter := events.NewInMemoryEventEmitter(logger.Discard())
	emitter.RegisterHandler(handler)

	require.NoError(t, events.Emit(context.Background(), emitter, events.TypeLambdaSync, testLambda(t)))
	assert.Equal(t, 1, runner.queue.Len())

	require.NoError(t, events.Emit(context.Background(), emitter, "unregistered", nil))
	assert.Equal(t, 1, runner.queue.Len())

	err := events.Emit(context.Background(), emitter, events.TypeLambdaSync, map[string]any{"lambda": -1})
	assert.Error(t, err)
}
