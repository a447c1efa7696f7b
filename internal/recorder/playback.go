package recorder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yanun0323/errors"
)

const segmentExt = ".bba"

// PlaybackConfig controls segment replay.
type PlaybackConfig struct {
	Dir             string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

func (c PlaybackConfig) withDefaults() PlaybackConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c PlaybackConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("invalid playback config: Dir is empty")
	}
	if c.MaxPayloadSize < 0 {
		return errors.New("invalid playback config: MaxPayloadSize must be >= 0")
	}
	return nil
}

// Replay reads every segment under the directory in file order and calls handler for
// each record.
func Replay(ctx context.Context, cfg PlaybackConfig, handler func(Record) error) error {
	if handler == nil {
		return errors.New("playback handler is nil")
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	files, err := collectFiles(cfg)
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := playFile(ctx, cfg, path, handler); err != nil {
			return err
		}
	}
	return nil
}

func collectFiles(cfg PlaybackConfig) ([]string, error) {
	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "read dir")
	}
	prefix := cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		files = append(files, filepath.Join(cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func playFile(ctx context.Context, cfg PlaybackConfig, path string, handler func(Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open segment")
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: cfg.DisableChecksum,
		MaxPayloadSize:  cfg.MaxPayloadSize,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrapf(err, "read %s", path)
		}
		if err := handler(rec); err != nil {
			return err
		}
	}
}
