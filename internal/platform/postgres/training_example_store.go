package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// PostgresTrainingExampleStore implements store.TrainingExampleStore.
type PostgresTrainingExampleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTrainingExampleStore creates a training example store. A nil logger uses the default.
func NewPostgresTrainingExampleStore(db store.DBTX, logger *slog.Logger) *PostgresTrainingExampleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTrainingExampleStore{
		db:     db,
		logger: logger.With(slog.String("component", "training_example_store")),
	}
}

var _ store.TrainingExampleStore = (*PostgresTrainingExampleStore)(nil)

// LogTrainingExample implements store.TrainingExampleStore.
func (s *PostgresTrainingExampleStore) LogTrainingExample(ctx context.Context, ex *domain.TrainingExample) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO training_examples (id, user_id, item_id, difficulty, history, study_time,
			confidence, previous_interval_success, remembered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		ex.ID,
		ex.UserID,
		ex.ItemID,
		ex.Difficulty,
		ex.History,
		ex.StudyTime,
		ex.Confidence,
		ex.PreviousIntervalSuccess,
		ex.Remembered,
		ex.CreatedAt,
	)
	if err != nil {
		log.Error("failed to log training example", slog.String("error", err.Error()))
		return fmt.Errorf("failed to log training example: %w", MapError(err))
	}

	return nil
}

// ListTrainingExamples implements store.TrainingExampleStore.
func (s *PostgresTrainingExampleStore) ListTrainingExamples(ctx context.Context) ([]domain.TrainingExample, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, item_id, difficulty, history, study_time,
			confidence, previous_interval_success, remembered, created_at
		FROM training_examples
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list training examples", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list training examples: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	examples := []domain.TrainingExample{}
	for rows.Next() {
		var (
			ex     domain.TrainingExample
			userID uuid.NullUUID
			itemID uuid.NullUUID
		)
		if err := rows.Scan(
			&ex.ID,
			&userID,
			&itemID,
			&ex.Difficulty,
			&ex.History,
			&ex.StudyTime,
			&ex.Confidence,
			&ex.PreviousIntervalSuccess,
			&ex.Remembered,
			&ex.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}
		if userID.Valid {
			ex.UserID = &userID.UUID
		}
		if itemID.Valid {
			ex.ItemID = &itemID.UUID
		}
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training examples: %w", err)
	}

	return examples, nil
}
