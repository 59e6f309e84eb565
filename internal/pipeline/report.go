package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mvp-joe/class-shadow/internal/symtab"
)

// Report summarises one pass.
type Report struct {
	PassID         string        `yaml:"pass_id"`
	Library        string        `yaml:"library"`
	StartedAt      time.Time     `yaml:"started_at"`
	Duration       time.Duration `yaml:"-"`
	ElapsedSeconds float64       `yaml:"elapsed_seconds"`

	Sources   int `yaml:"sources"`
	Artifacts int `yaml:"artifacts"`
	Skipped   int `yaml:"skipped"`
	Dangling  int `yaml:"dangling"`

	Packages int  `yaml:"packages"`
	Classes  int  `yaml:"classes"`
	Fields   int  `yaml:"fields"`
	Emitted  bool `yaml:"emitted"`

	Failures    []Failure           `yaml:"failures,omitempty"`
	Diagnostics []symtab.Diagnostic `yaml:"diagnostics,omitempty"`
}

// Failure is one artifact that could not be read.
type Failure struct {
	Origin string `yaml:"origin"`
	Error  string `yaml:"error"`
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the report to path, creating parent directories.
func (r *Report) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", path, err)
	}
	if err := r.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadReport decodes a report written by WriteYAML.
func ReadReport(r io.Reader) (*Report, error) {
	var report Report
	if err := yaml.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	report.Duration = time.Duration(report.ElapsedSeconds * float64(time.Second))
	return &report, nil
}
