package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/phrazzld/studycycle-api/internal/domain"
	"github.com/phrazzld/studycycle-api/internal/store"
)

// coefficientFile is the on-disk layout of a coefficient file.
type coefficientFile struct {
	Coefficients domain.ModelCoefficients `yaml:"coefficients"`
}

// CoefficientStore is a store.CoefficientStore backed by one YAML file.
// Saving replaces the file atomically through a temporary file and rename.
type CoefficientStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

var _ store.CoefficientStore = (*CoefficientStore)(nil)

// NewCoefficientStore creates a store for path. The file need not exist.
func NewCoefficientStore(path string, logger *slog.Logger) *CoefficientStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CoefficientStore{
		path:   path,
		logger: logger.With("component", "yaml_coefficient_store", "path", path),
	}
}

// LoadCoefficients reads the file. A missing file is store.ErrCoefficientsNotFound.
func (s *CoefficientStore) LoadCoefficients(_ context.Context) (domain.ModelCoefficients, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ModelCoefficients{}, store.ErrCoefficientsNotFound
	}
	if err != nil {
		return domain.ModelCoefficients{}, fmt.Errorf("failed to read coefficients: %w", err)
	}

	var file coefficientFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.ModelCoefficients{}, fmt.Errorf("failed to parse coefficients file %s: %w", s.path, err)
	}
	if err := file.Coefficients.Validate(); err != nil {
		return domain.ModelCoefficients{}, err
	}
	return file.Coefficients, nil
}

// SaveCoefficients writes coefs, replacing the previous set.
func (s *CoefficientStore) SaveCoefficients(_ context.Context, coefs domain.ModelCoefficients) error {
	if err := coefs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	data, err := yaml.Marshal(coefficientFile{Coefficients: coefs})
	if err != nil {
		return fmt.Errorf("failed to encode coefficients: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Info("coefficients saved")
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
