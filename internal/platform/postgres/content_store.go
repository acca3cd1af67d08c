package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// PostgresContentStore implements store.ContentStore.
type PostgresContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresContentStore creates a content store. A nil logger uses the default.
func NewPostgresContentStore(db store.DBTX, logger *slog.Logger) *PostgresContentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "content_store")),
	}
}

var _ store.ContentStore = (*PostgresContentStore)(nil)

// GetContentItem implements store.ContentStore.
func (s *PostgresContentStore) GetContentItem(ctx context.Context, id uuid.UUID) (*domain.ContentItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, title, description, base_stability, difficulty, created_at
		FROM content_items
		WHERE id = $1
	`

	var item domain.ContentItem
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.BaseStability,
		&item.Difficulty,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("content item not found", slog.String("item_id", id.String()))
			return nil, store.ErrContentItemNotFound
		}
		log.Error("failed to get content item",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return nil, fmt.Errorf("failed to get content item: %w", MapError(err))
	}

	return &item, nil
}

// CreateContentItem implements store.ContentStore.
func (s *PostgresContentStore) CreateContentItem(ctx context.Context, item *domain.ContentItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		log.Warn("content item validation failed",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return err
	}

	query := `
		INSERT INTO content_items (id, title, description, base_stability, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.BaseStability,
		item.Difficulty,
		item.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrContentItemExists, err)
		}
		log.Error("failed to create content item",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return fmt.Errorf("failed to create content item: %w", MapError(err))
	}

	log.Info("content item created", slog.String("item_id", item.ID.String()))
	return nil
}

// WithTx implements store.ContentStore.
func (s *PostgresContentStore) WithTx(tx *sql.Tx) store.ContentStore {
	return &PostgresContentStore{db: tx, logger: s.logger}
}
