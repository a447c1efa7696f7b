package recorder

import (
	"time"

	"github.com/yanun0323/errors"
)

const (
	defaultSegmentMaxBytes int64 = 64 << 20
	defaultBufferSize            = 64 * 1024
	defaultFilePrefix            = "bba"
	defaultExportInterval        = 10 * time.Second
	defaultBatchSize             = 500
)

var defaultSegmentMaxDuration = time.Hour

// Config controls the export loop.
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultConfig returns the baseline export settings.
func DefaultConfig() Config {
	return Config{
		Interval:  defaultExportInterval,
		BatchSize: defaultBatchSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = defaultExportInterval
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("invalid recorder config: Interval must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("invalid recorder config: BatchSize must be > 0")
	}
	return nil
}

// FileConfig controls the segment file sink.
type FileConfig struct {
	Dir                string
	SegmentMaxBytes    int64
	SegmentMaxDuration time.Duration
	BufferSize         int
	FilePrefix         string
	Sync               bool
}

// DefaultFileConfig returns a baseline configuration for the file sink.
func DefaultFileConfig(dir string) FileConfig {
	return FileConfig{
		Dir:                dir,
		SegmentMaxBytes:    defaultSegmentMaxBytes,
		SegmentMaxDuration: defaultSegmentMaxDuration,
		BufferSize:         defaultBufferSize,
		FilePrefix:         defaultFilePrefix,
	}
}

func (c FileConfig) withDefaults() FileConfig {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c FileConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid file sink config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return errors.New("invalid file sink config: SegmentMaxBytes must be > 0")
	}
	if c.SegmentMaxDuration < 0 {
		return errors.New("invalid file sink config: SegmentMaxDuration must be >= 0")
	}
	if c.BufferSize <= 0 {
		return errors.New("invalid file sink config: BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return errors.New("invalid file sink config: FilePrefix is empty")
	}
	return nil
}
