// Package config defines the declarative job file: the YAML equivalent of
// the command-line flag surface. A job file may be partial; flags supply
// whatever it leaves unset, so validation of the merged job happens at the
// command layer, not at parse time.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gridappend/compress"
	"gridappend/granule"
)

// Job describes one append run.
type Job struct {
	// Input names the granule source: an s3://bucket/prefix URL or a local
	// directory.
	Input string `yaml:"input"`
	// Store names the existing store: an S3 URL, a local directory, or a
	// SQLite file. Empty means first run.
	Store string `yaml:"store,omitempty"`
	// Output is the destination locator the merged store is written to.
	Output string `yaml:"output"`

	TimeDim  string `yaml:"time_dim,omitempty"`
	Pattern  string `yaml:"pattern,omitempty"`
	Duration string `yaml:"duration,omitempty"`

	Variables []string `yaml:"variables,omitempty"`
	Codec     string   `yaml:"codec,omitempty"`
	Level     int      `yaml:"level,omitempty"`
	Chunks    []int    `yaml:"chunks,omitempty"`

	Overwrite        bool   `yaml:"overwrite,omitempty"`
	WriteEmptyChunks bool   `yaml:"write_empty_chunks,omitempty"`
	LogLevel         string `yaml:"log_level,omitempty"`

	S3 S3 `yaml:"s3,omitempty"`
}

// S3 carries connection settings for staged inputs and stores. Credentials
// are optional; the default AWS chain applies when unset.
type S3 struct {
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty"`
}

// Parse parses a YAML job definition from bytes.
func Parse(data []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("job: invalid YAML: %w", err)
	}

	return &j, nil
}

// ParseFile parses a YAML job definition from a file path.
func ParseFile(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("job: cannot read %s: %w", path, err)
	}

	return Parse(data)
}

// Defaults fills the fields a run cannot do without.
func (j *Job) Defaults() {
	if j.TimeDim == "" {
		j.TimeDim = "time"
	}
	if j.Pattern == "" {
		j.Pattern = granule.DefaultPattern
	}
	if j.Codec == "" {
		j.Codec = compress.DefaultSpec().Type.String()
		if j.Level == 0 {
			j.Level = compress.DefaultSpec().Level
		}
	}
}

// Validate checks the merged job for completeness and well-formedness.
func (j *Job) Validate() error {
	if j.Input == "" {
		return fmt.Errorf("job: input is required")
	}
	if j.Output == "" {
		return fmt.Errorf("job: output is required")
	}
	if j.TimeDim == "" {
		return fmt.Errorf("job: time_dim is required")
	}

	if _, err := j.Compression(); err != nil {
		return fmt.Errorf("job: %w", err)
	}
	if _, err := j.MaxDuration(); err != nil {
		return fmt.Errorf("job: %w", err)
	}

	for i, c := range j.Chunks {
		if c <= 0 {
			return fmt.Errorf("job: chunks[%d] must be positive, got %d", i, c)
		}
	}

	switch j.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("job: log_level %q is not supported (valid: debug, info, warn, error)", j.LogLevel)
	}

	return nil
}

// Compression resolves the codec and level into a validated spec.
func (j *Job) Compression() (compress.Spec, error) {
	if j.Codec == "" {
		return compress.Spec{}, fmt.Errorf("codec is required")
	}
	typ, err := compress.ParseType(j.Codec)
	if err != nil {
		return compress.Spec{}, err
	}
	spec := compress.Spec{Type: typ, Level: j.Level}
	if err := spec.Validate(); err != nil {
		return compress.Spec{}, err
	}

	return spec, nil
}

// MaxDuration parses the retention window. Nil means unbounded.
func (j *Job) MaxDuration() (*time.Duration, error) {
	if j.Duration == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(j.Duration)
	if err != nil {
		return nil, fmt.Errorf("parse duration %q: %w", j.Duration, err)
	}

	return &d, nil
}
