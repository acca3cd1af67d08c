package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/platform/logger"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// PostgresCoefficientStore implements store.CoefficientStore. Every save
// appends a row, so the table doubles as the training history.
type PostgresCoefficientStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCoefficientStore creates a coefficient store. A nil logger uses the default.
func NewPostgresCoefficientStore(db store.DBTX, logger *slog.Logger) *PostgresCoefficientStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCoefficientStore{
		db:     db,
		logger: logger.With(slog.String("component", "coefficient_store")),
	}
}

var _ store.CoefficientStore = (*PostgresCoefficientStore)(nil)

// LoadCoefficients implements store.CoefficientStore.
func (s *PostgresCoefficientStore) LoadCoefficients(ctx context.Context) (domain.ModelCoefficients, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT alpha1, alpha2, alpha3, alpha4, alpha5, beta
		FROM model_coefficients
		ORDER BY id DESC
		LIMIT 1
	`

	var c domain.ModelCoefficients
	err := s.db.QueryRowContext(ctx, query).Scan(&c.Alpha1, &c.Alpha2, &c.Alpha3, &c.Alpha4, &c.Alpha5, &c.Beta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ModelCoefficients{}, store.ErrCoefficientsNotFound
		}
		log.Error("failed to load coefficients", slog.String("error", err.Error()))
		return domain.ModelCoefficients{}, fmt.Errorf("failed to load coefficients: %w", MapError(err))
	}

	return c, nil
}

// SaveCoefficients implements store.CoefficientStore.
func (s *PostgresCoefficientStore) SaveCoefficients(ctx context.Context, coefs domain.ModelCoefficients) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := coefs.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO model_coefficients (alpha1, alpha2, alpha3, alpha4, alpha5, beta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		coefs.Alpha1, coefs.Alpha2, coefs.Alpha3, coefs.Alpha4, coefs.Alpha5, coefs.Beta)
	if err != nil {
		log.Error("failed to save coefficients", slog.String("error", err.Error()))
		return fmt.Errorf("failed to save coefficients: %w", MapError(err))
	}

	log.Info("coefficients saved")
	return nil
}
