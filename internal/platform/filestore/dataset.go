package filestore

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phrazzld/studycycle-api/internal/domain"
)

// Dataset is a YAML file of labeled training examples:
//
//	examples:
//	  - difficulty: 0.4
//	    history: 0.6
//	    study_time: 0.5
//	    confidence: 0.7
//	    previous_interval_success: 0.8
//	    remembered: true
type Dataset struct {
	Examples []domain.TrainingExample `yaml:"examples"`
}

// ReadDataset decodes a dataset from r.
func ReadDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		if err == io.EOF {
			return Dataset{}, nil
		}
		return Dataset{}, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return ds, nil
}

// LoadDataset reads a dataset file.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := ReadDataset(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}
