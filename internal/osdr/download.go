package osdr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/errors"
)

var isaArchivePattern = regexp.MustCompile(`-ISA\.zip$`)

// ISAArchive picks the ISA archive from a file listing.
func ISAArchive(files []File) (File, bool) {
	for _, f := range files {
		if isaArchivePattern.MatchString(f.Name) {
			return f, true
		}
	}
	return File{}, false
}

// Download fetches url into outputPath through a temporary file and returns
// the number of bytes written.
func (c *Client) Download(ctx context.Context, url, outputPath string) (int64, error) {
	const op errors.Op = "osdr.Download"

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, errors.E(op, errors.KindIO, err)
	}
	tmpPath := outputPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, errors.E(op, errors.KindIO, err)
	}
	defer os.Remove(tmpPath)
	defer out.Close()

	resp, err := c.get(ctx, url)
	if err != nil {
		return 0, errors.Wrap(op, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return 0, errors.E(op, errors.KindRemote, err, fmt.Sprintf("downloading %s", url))
	}
	if err := out.Close(); err != nil {
		return 0, errors.E(op, errors.KindIO, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return 0, errors.E(op, errors.KindIO, err)
	}
	c.logger.Info("downloaded file", zap.String("url", url), zap.String("path", outputPath), zap.Int64("bytes", n))
	return n, nil
}
