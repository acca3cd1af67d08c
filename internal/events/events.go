package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task request types understood by the task package.
const (
	// TypeLambdaSync pushes a locally updated forgetting rate to the shared store.
	TypeLambdaSync = "lambda_sync"

	// TypeModelTraining retrains the memory model coefficients.
	TypeModelTraining = "model_training"

	// TypeLambdaEstimation re-estimates every user's forgetting rate from the event log.
	TypeLambdaEstimation = "lambda_estimation"
)

// TaskRequestEvent asks for a background task without depending on the task package.
type TaskRequestEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskRequestEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskRequestEvent creates an event of the given type with payload encoded as JSON.
func NewTaskRequestEvent(eventType string, payload any) (*TaskRequestEvent, error) {
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes task request events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskRequestEvent) error
}

// EventEmitter publishes task request events to whoever handles them.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskRequestEvent) error
}
