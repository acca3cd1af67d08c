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

// PostgresProfileStore implements store.ProfileStore.
type PostgresProfileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresProfileStore creates a profile store. A nil logger uses the default.
func NewPostgresProfileStore(db store.DBTX, logger *slog.Logger) *PostgresProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "profile_store")),
	}
}

var _ store.ProfileStore = (*PostgresProfileStore)(nil)

// GetUserProfile implements store.ProfileStore.
func (s *PostgresProfileStore) GetUserProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, memory_factor, performance_mean, beta, updated_at
		FROM user_profiles
		WHERE id = $1
	`

	var p domain.UserProfile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID,
		&p.MemoryFactor,
		&p.PerformanceMean,
		&p.Beta,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("user profile not found", slog.String("user_id", userID.String()))
			return nil, store.ErrUserProfileNotFound
		}
		log.Error("failed to get user profile",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, fmt.Errorf("failed to get user profile: %w", MapError(err))
	}

	return &p, nil
}

// SaveUserProfile implements store.ProfileStore with an upsert.
func (s *PostgresProfileStore) SaveUserProfile(ctx context.Context, profile *domain.UserProfile) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := profile.Validate(); err != nil {
		log.Warn("user profile validation failed",
			slog.String("error", err.Error()),
			slog.String("user_id", profile.ID.String()))
		return err
	}

	query := `
		INSERT INTO user_profiles (id, memory_factor, performance_mean, beta, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET memory_factor = EXCLUDED.memory_factor,
			performance_mean = EXCLUDED.performance_mean,
			beta = EXCLUDED.beta,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		profile.ID,
		profile.MemoryFactor,
		profile.PerformanceMean,
		profile.Beta,
		profile.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save user profile",
			slog.String("error", err.Error()),
			slog.String("user_id", profile.ID.String()))
		return fmt.Errorf("failed to save user profile: %w", MapError(err))
	}

	log.Debug("user profile saved", slog.String("user_id", profile.ID.String()))
	return nil
}

// WithTx implements store.ProfileStore.
func (s *PostgresProfileStore) WithTx(tx *sql.Tx) store.ProfileStore {
	return &PostgresProfileStore{db: tx, logger: s.logger}
}
