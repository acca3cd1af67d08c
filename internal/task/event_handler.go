package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/studycycle-api/internal/events"
)

// Submitter accepts tasks for execution. TaskRunner implements it.
type Submitter interface {
	Submit(ctx context.Context, task Task) error
}

// TaskFactoryEventHandler turns task request events into tasks through the
// registry and submits them.
type TaskFactoryEventHandler struct {
	registry  *Registry
	submitter Submitter
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates a handler.
func NewTaskFactoryEventHandler(registry *Registry, submitter Submitter, logger *slog.Logger) *TaskFactoryEventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskFactoryEventHandler{
		registry:  registry,
		submitter: submitter,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)

// HandleEvent builds and submits the task. Events of unregistered types are ignored.
func (h *TaskFactoryEventHandler) HandleEvent(ctx context.Context, event *events.TaskRequestEvent) error {
	t, err := h.registry.Create(event.Type, event.Payload)
	if err != nil {
		if errors.Is(err, ErrUnknownTaskType) {
			h.logger.Debug("ignoring event with unsupported type",
				"event_type", event.Type,
				"event_id", event.ID)
			return nil
		}
		h.logger.Error("failed to create task", "error", err, "event_id", event.ID, "event_type", event.Type)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, t); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Debug("task submitted",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"event_id", event.ID)
	return nil
}
