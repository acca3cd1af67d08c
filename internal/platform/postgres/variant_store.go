package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

const variantColumns = `id, item_id, author_id, type, content, metadata, last_used_by, created_at`

// PostgresVariantStore implements store.VariantStore. Content, metadata and
// per-user usage are stored as JSONB.
type PostgresVariantStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresVariantStore creates a variant store. A nil logger uses the default.
func NewPostgresVariantStore(db store.DBTX, logger *slog.Logger) *PostgresVariantStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresVariantStore{
		db:     db,
		logger: logger.With(slog.String("component", "variant_store")),
	}
}

var _ store.VariantStore = (*PostgresVariantStore)(nil)

// GetReviewVariantsForItem implements store.VariantStore.
func (s *PostgresVariantStore) GetReviewVariantsForItem(
	ctx context.Context,
	itemID uuid.UUID,
) ([]domain.ReviewVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM review_variants
		WHERE item_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return s.query(ctx, "get review variants for item", query, itemID)
}

// GetReviewVariant implements store.VariantStore.
func (s *PostgresVariantStore) GetReviewVariant(ctx context.Context, id uuid.UUID) (*domain.ReviewVariant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + variantColumns + ` FROM review_variants WHERE id = $1`
	v, err := scanVariant(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrVariantNotFound
		}
		log.Error("failed to get review variant",
			slog.String("error", err.Error()),
			slog.String("variant_id", id.String()))
		return nil, fmt.Errorf("failed to get review variant: %w", MapError(err))
	}
	return v, nil
}

// CreateReviewVariant implements store.VariantStore.
func (s *PostgresVariantStore) CreateReviewVariant(ctx context.Context, v *domain.ReviewVariant) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := v.Validate(); err != nil {
		log.Warn("review variant validation failed",
			slog.String("error", err.Error()),
			slog.String("variant_id", v.ID.String()))
		return err
	}

	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode variant metadata: %w", err)
	}
	lastUsed := v.LastUsedBy
	if lastUsed == nil {
		lastUsed = map[uuid.UUID]time.Time{}
	}
	usage, err := json.Marshal(lastUsed)
	if err != nil {
		return fmt.Errorf("failed to encode variant usage: %w", err)
	}

	query := `
		INSERT INTO review_variants (` + variantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		v.ID,
		v.ItemID,
		v.AuthorID,
		string(v.Type),
		[]byte(v.Content),
		metadata,
		usage,
		v.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create review variant",
			slog.String("error", err.Error()),
			slog.String("variant_id", v.ID.String()),
			slog.String("item_id", v.ItemID.String()))
		return fmt.Errorf("failed to create review variant: %w", MapError(err))
	}

	log.Debug("review variant created",
		slog.String("variant_id", v.ID.String()),
		slog.String("type", string(v.Type)))
	return nil
}

// MarkVariantUsed implements store.VariantStore.
func (s *PostgresVariantStore) MarkVariantUsed(ctx context.Context, variantID, userID uuid.UUID, at time.Time) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE review_variants
		SET last_used_by = last_used_by || jsonb_build_object($2::text, $3::text)
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, variantID, userID.String(), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		log.Error("failed to mark variant used",
			slog.String("error", err.Error()),
			slog.String("variant_id", variantID.String()))
		return fmt.Errorf("failed to mark variant used: %w", MapError(err))
	}

	return checkRowsAffected(result, store.ErrVariantNotFound)
}

// GetScheduledDueVariants implements store.VariantStore.
func (s *PostgresVariantStore) GetScheduledDueVariants(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
) ([]domain.ReviewVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM review_variants
		WHERE metadata->'schedule'->>'user_id' = $1
			AND (metadata->'schedule'->>'next_review_at')::timestamptz <= $2
		ORDER BY (metadata->'schedule'->>'next_review_at')::timestamptz ASC, id ASC
	`
	return s.query(ctx, "get scheduled due variants", query, userID.String(), now)
}

// WithTx implements store.VariantStore.
func (s *PostgresVariantStore) WithTx(tx *sql.Tx) store.VariantStore {
	return &PostgresVariantStore{db: tx, logger: s.logger}
}

func (s *PostgresVariantStore) query(
	ctx context.Context,
	op string,
	query string,
	args ...any,
) ([]domain.ReviewVariant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query review variants", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to %s: %w", op, MapError(err))
	}
	defer func() { _ = rows.Close() }()

	variants := []domain.ReviewVariant{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review variant: %w", err)
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review variants: %w", err)
	}

	return variants, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariant(row rowScanner) (*domain.ReviewVariant, error) {
	var (
		v        domain.ReviewVariant
		authorID uuid.NullUUID
		vType    string
		content  []byte
		metadata []byte
		usage    []byte
	)
	if err := row.Scan(&v.ID, &v.ItemID, &authorID, &vType, &content, &metadata, &usage, &v.CreatedAt); err != nil {
		return nil, err
	}

	if authorID.Valid {
		v.AuthorID = &authorID.UUID
	}
	v.Type = domain.VariantType(vType)
	v.Content = json.RawMessage(content)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode variant metadata: %w", err)
		}
	}
	v.LastUsedBy = map[uuid.UUID]time.Time{}
	if len(usage) > 0 {
		if err := json.Unmarshal(usage, &v.LastUsedBy); err != nil {
			return nil, fmt.Errorf("failed to decode variant usage: %w", err)
		}
	}

	return &v, nil
}
