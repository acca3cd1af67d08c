package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

const reviewEventColumns = `id, user_id, item_id, ts, correctness, response_time_ms, n_reps,
		time_since_last_review_sec, created_at`

// PostgresReviewEventStore implements store.ReviewEventStore.
type PostgresReviewEventStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewEventStore creates a review event store. A nil logger uses the default.
func NewPostgresReviewEventStore(db store.DBTX, logger *slog.Logger) *PostgresReviewEventStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReviewEventStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_event_store")),
	}
}

var _ store.ReviewEventStore = (*PostgresReviewEventStore)(nil)

// LogReviewEvent implements store.ReviewEventStore. A missing ID or
// timestamp is filled in before the insert.
func (s *PostgresReviewEventStore) LogReviewEvent(
	ctx context.Context,
	event *domain.ReviewEvent,
) (*domain.ReviewEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := event.Validate(); err != nil {
		log.Warn("review event validation failed", slog.String("error", err.Error()))
		return nil, err
	}

	stored := *event
	now := time.Now().UTC()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = now
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	query := `
		INSERT INTO review_events (` + reviewEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		stored.ID,
		stored.UserID,
		stored.ItemID,
		stored.Timestamp,
		stored.Correctness,
		stored.ResponseTimeMs,
		stored.Reps,
		stored.TimeSinceLastReviewSec,
		stored.CreatedAt,
	)
	if err != nil {
		log.Error("failed to log review event",
			slog.String("error", err.Error()),
			slog.String("user_id", stored.UserID.String()),
			slog.String("item_id", stored.ItemID.String()))
		return nil, fmt.Errorf("failed to log review event: %w", MapError(err))
	}

	log.Debug("review event logged",
		slog.String("event_id", stored.ID.String()),
		slog.String("user_id", stored.UserID.String()),
		slog.Int("correctness", stored.Correctness))
	return &stored, nil
}

// GetReviewEventsForUser implements store.ReviewEventStore.
func (s *PostgresReviewEventStore) GetReviewEventsForUser(
	ctx context.Context,
	userID uuid.UUID,
) ([]domain.ReviewEvent, error) {
	query := `SELECT ` + reviewEventColumns + `
		FROM review_events
		WHERE user_id = $1
		ORDER BY ts ASC, created_at ASC
	`
	return s.query(ctx, "get review events for user", query, userID)
}

// GetReviewEventsForUserItem implements store.ReviewEventStore. The newest
// events are selected and returned oldest first.
func (s *PostgresReviewEventStore) GetReviewEventsForUserItem(
	ctx context.Context,
	userID, itemID uuid.UUID,
	limit int,
) ([]domain.ReviewEvent, error) {
	if limit <= 0 {
		query := `SELECT ` + reviewEventColumns + `
			FROM review_events
			WHERE user_id = $1 AND item_id = $2
			ORDER BY ts ASC, created_at ASC
		`
		return s.query(ctx, "get review events for user item", query, userID, itemID)
	}

	query := `SELECT ` + reviewEventColumns + ` FROM (
			SELECT ` + reviewEventColumns + `
			FROM review_events
			WHERE user_id = $1 AND item_id = $2
			ORDER BY ts DESC, created_at DESC
			LIMIT $3
		) recent
		ORDER BY ts ASC, created_at ASC
	`
	return s.query(ctx, "get review events for user item", query, userID, itemID, limit)
}

// GetAllReviewEvents implements store.ReviewEventStore.
func (s *PostgresReviewEventStore) GetAllReviewEvents(ctx context.Context) ([]domain.ReviewEvent, error) {
	query := `SELECT ` + reviewEventColumns + `
		FROM review_events
		ORDER BY ts ASC, created_at ASC
	`
	return s.query(ctx, "get all review events", query)
}

// WithTx implements store.ReviewEventStore.
func (s *PostgresReviewEventStore) WithTx(tx *sql.Tx) store.ReviewEventStore {
	return &PostgresReviewEventStore{db: tx, logger: s.logger}
}

func (s *PostgresReviewEventStore) query(
	ctx context.Context,
	op string,
	query string,
	args ...any,
) ([]domain.ReviewEvent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query review events", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to %s: %w", op, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	events := []domain.ReviewEvent{}
	for rows.Next() {
		var (
			e          domain.ReviewEvent
			respTime   sql.NullInt32
			reps       sql.NullInt32
			sinceLastS sql.NullFloat64
		)
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.ItemID,
			&e.Timestamp,
			&e.Correctness,
			&respTime,
			&reps,
			&sinceLastS,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review event: %w", err)
		}
		if respTime.Valid {
			v := int(respTime.Int32)
			e.ResponseTimeMs = &v
		}
		if reps.Valid {
			v := int(reps.Int32)
			e.Reps = &v
		}
		if sinceLastS.Valid {
			v := sinceLastS.Float64
			e.TimeSinceLastReviewSec = &v
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review events: %w", err)
	}

	return events, nil
}
