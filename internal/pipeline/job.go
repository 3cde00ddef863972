package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/schemalink/internal/linkage"
)

// Job is the YAML description of a run, as consumed by the CLI. File paths
// are resolved by the caller; the pipeline itself never touches the
// filesystem beyond loading the job document.
type Job struct {
	// Source and Target name the input files (CSV or JSON).
	Source string `yaml:"source"`
	Target string `yaml:"target"`

	// Procedure is the transform text; ProcedureFile names a file holding
	// it. Exactly one must be set.
	Procedure     string `yaml:"procedure"`
	ProcedureFile string `yaml:"procedureFile"`

	Mode         string   `yaml:"mode"` // "exact" or "fuzzy"
	MatchColumns []string `yaml:"matchColumns"`

	Fuzzy struct {
		Algorithm string  `yaml:"algorithm"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"fuzzy"`

	// RowTimeout uses Go duration syntax, e.g. "250ms".
	RowTimeout string `yaml:"rowTimeout"`
	Workers    int    `yaml:"workers"`
}

// LoadJob reads and validates a YAML job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job file: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the job for contract violations before any data is read.
func (j *Job) Validate() error {
	if j.Source == "" || j.Target == "" {
		return fmt.Errorf("job needs both source and target files")
	}
	if (j.Procedure == "") == (j.ProcedureFile == "") {
		return fmt.Errorf("job needs exactly one of procedure or procedureFile")
	}
	if len(j.MatchColumns) == 0 {
		return linkage.ErrInvalidJoinSpec
	}
	switch linkage.Mode(j.Mode) {
	case linkage.ModeExact, linkage.ModeFuzzy, "":
	default:
		return fmt.Errorf("unknown match mode %q", j.Mode)
	}
	if j.RowTimeout != "" {
		if _, err := time.ParseDuration(j.RowTimeout); err != nil {
			return fmt.Errorf("invalid rowTimeout %q: %w", j.RowTimeout, err)
		}
	}
	return nil
}

// RowTimeoutDuration parses the configured per-row timeout; zero when
// unset (the transformer default applies).
func (j *Job) RowTimeoutDuration() time.Duration {
	if j.RowTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(j.RowTimeout)
	if err != nil {
		return 0
	}
	return d
}

// ProcedureText returns the inline procedure or reads the referenced file.
func (j *Job) ProcedureText() (string, error) {
	if j.Procedure != "" {
		return j.Procedure, nil
	}
	data, err := os.ReadFile(j.ProcedureFile)
	if err != nil {
		return "", fmt.Errorf("read procedure file: %w", err)
	}
	return string(data), nil
}

// LinkOptions builds the linkage options described by the job.
func (j *Job) LinkOptions() linkage.Options {
	return linkage.Options{
		Mode:         linkage.Mode(j.Mode),
		MatchColumns: j.MatchColumns,
		Algorithm:    j.Fuzzy.Algorithm,
		Threshold:    j.Fuzzy.Threshold,
		Workers:      j.Workers,
	}
}
