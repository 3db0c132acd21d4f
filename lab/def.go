// package lab builds the models an experiment definition asks for. A
// definition is a JSON file naming the architecture plus its
// hyperparameters; Build turns one into a Model handle the harness can fit
// or train.
package lab

import (
	"encoding/json"
	"fmt"
	"os"
)

// Arch is the closed set of architecture families the harness
// distinguishes. Anything that is not a convolutional or belief network
// takes the generic iterative path.
type Arch int

const (
	ArchOther Arch = iota
	ArchCNN
	ArchDBN
)

func (a Arch) String() string {
	switch a {
	case ArchCNN:
		return "cnn"
	case ArchDBN:
		return "dbn"
	}
	return "other"
}

func parseArch(s string) Arch {
	switch s {
	case "cnn":
		return ArchCNN
	case "dbn":
		return ArchDBN
	}
	return ArchOther
}

// Definition is a parsed experiment definition. The first four fields are
// required in the JSON file; the hyperparameters default when absent.
type Definition struct {
	Name       string
	Type       string
	Arch       Arch
	Gyroscope  bool
	Preprocess bool

	Epochs       int
	BatchSize    int
	LearningRate float64
	Hidden       []int
	Filters      int
	Kernel       int
}

// ConfigError reports a missing or malformed experiment definition.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("lab: definition %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Hyperparameter defaults, used when the definition omits a key.
const (
	defaultEpochs       = 10
	defaultBatchSize    = 32
	defaultLearningRate = 0.01
	defaultFilters      = 8
	defaultKernel       = 5
)

var defaultHidden = []int{64}

// LoadDefinition parses the definition at path. The gyroscope, type, name
// and preprocess keys are required; a *ConfigError reports a missing file,
// invalid JSON, or a missing required key.
func LoadDefinition(path string) (*Definition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var raw struct {
		Gyroscope    *bool    `json:"gyroscope"`
		Type         *string  `json:"type"`
		Name         *string  `json:"name"`
		Preprocess   *bool    `json:"preprocess"`
		Epochs       *int     `json:"epochs"`
		BatchSize    *int     `json:"batch_size"`
		LearningRate *float64 `json:"learning_rate"`
		Hidden       []int    `json:"hidden"`
		Filters      *int     `json:"filters"`
		Kernel       *int     `json:"kernel"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	for key, present := range map[string]bool{
		"gyroscope":  raw.Gyroscope != nil,
		"type":       raw.Type != nil,
		"name":       raw.Name != nil,
		"preprocess": raw.Preprocess != nil,
	} {
		if !present {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("missing required key %q", key)}
		}
	}

	def := &Definition{
		Name:         *raw.Name,
		Type:         *raw.Type,
		Arch:         parseArch(*raw.Type),
		Gyroscope:    *raw.Gyroscope,
		Preprocess:   *raw.Preprocess,
		Epochs:       defaultEpochs,
		BatchSize:    defaultBatchSize,
		LearningRate: defaultLearningRate,
		Hidden:       append([]int(nil), defaultHidden...),
		Filters:      defaultFilters,
		Kernel:       defaultKernel,
	}
	if raw.Epochs != nil {
		def.Epochs = *raw.Epochs
	}
	if raw.BatchSize != nil {
		def.BatchSize = *raw.BatchSize
	}
	if raw.LearningRate != nil {
		def.LearningRate = *raw.LearningRate
	}
	if raw.Hidden != nil {
		def.Hidden = raw.Hidden
	}
	if raw.Filters != nil {
		def.Filters = *raw.Filters
	}
	if raw.Kernel != nil {
		def.Kernel = *raw.Kernel
	}

	if def.Epochs <= 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("epochs must be positive, got %d", def.Epochs)}
	}
	if def.BatchSize <= 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("batch_size must be positive, got %d", def.BatchSize)}
	}
	if def.LearningRate <= 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("learning_rate must be positive, got %v", def.LearningRate)}
	}
	return def, nil
}
