package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/runsheet/internal/config"
	"github.com/nishad/runsheet/internal/errors"
)

// Sink stores an encoded runsheet and returns where it went.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Sink kinds accepted in the output config.
const (
	SinkLocal = "local"
	SinkS3    = "s3"
)

// Open builds the sink selected by cfg.
func Open(ctx context.Context, cfg config.OutputConfig) (Sink, error) {
	switch strings.ToLower(cfg.Sink) {
	case "", SinkLocal:
		return NewLocalSink(cfg.Directory), nil
	case SinkS3:
		return NewS3Sink(ctx, S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return nil, errors.E(errors.Op("writer.Open"), errors.KindConfig, fmt.Sprintf("unknown output sink %q", cfg.Sink))
	}
}

// LocalSink writes runsheets into a directory.
type LocalSink struct {
	Dir string
}

// NewLocalSink creates a sink for dir. An empty dir means the working
// directory.
func NewLocalSink(dir string) *LocalSink {
	if dir == "" {
		dir = "."
	}
	return &LocalSink{Dir: dir}
}

// Write creates the directory if needed and writes the file through a
// temporary file in the same directory.
func (s *LocalSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	const op errors.Op = "writer.LocalSink.Write"
	if err := checkName(name); err != nil {
		return "", errors.E(op, errors.KindConfig, err)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.E(op, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}

	path := filepath.Join(s.Dir, name)
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.E(op, errors.KindIO, err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.E(op, errors.KindIO, err)
	}
	return path, nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid runsheet filename %q", name)
	}
	return nil
}
