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

// PostgresLambdaStore implements store.LambdaStore. It is the shared backend
// that local lambda caches synchronize to.
type PostgresLambdaStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLambdaStore creates a lambda store. A nil logger uses the default.
func NewPostgresLambdaStore(db store.DBTX, logger *slog.Logger) *PostgresLambdaStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLambdaStore{
		db:     db,
		logger: logger.With(slog.String("component", "lambda_store")),
	}
}

var _ store.LambdaStore = (*PostgresLambdaStore)(nil)

// GetUserLambda implements store.LambdaStore.
func (s *PostgresLambdaStore) GetUserLambda(ctx context.Context, userID uuid.UUID) (*domain.UserLambda, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, lambda, source, updated_at
		FROM user_lambdas
		WHERE user_id = $1
	`

	var (
		ul     domain.UserLambda
		source string
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&ul.UserID, &ul.Lambda, &source, &ul.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserLambdaNotFound
		}
		log.Error("failed to get user lambda",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to get user lambda: %w", MapError(err))
	}
	ul.Source = domain.LambdaSource(source)

	return &ul, nil
}

// SetUserLambda implements store.LambdaStore. The upsert overwrites whatever
// value is stored, so concurrent writers resolve as last-writer-wins.
func (s *PostgresLambdaStore) SetUserLambda(ctx context.Context, ul *domain.UserLambda) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ul.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO user_lambdas (user_id, lambda, source, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET lambda = EXCLUDED.lambda,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, ul.UserID, ul.Lambda, string(ul.Source), ul.UpdatedAt)
	if err != nil {
		log.Error("failed to set user lambda",
			slog.String("error", err.Error()),
			slog.String("user_id", ul.UserID.String()))
		return fmt.Errorf("failed to set user lambda: %w", MapError(err))
	}

	log.Debug("user lambda stored",
		slog.String("user_id", ul.UserID.String()),
		slog.Float64("lambda", ul.Lambda),
		slog.String("source", string(ul.Source)))
	return nil
}
