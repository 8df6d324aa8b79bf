package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishad/runsheet/internal/config"
	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/testutil"
)

func TestLocalSink(t *testing.T) {
	root, cleanup := testutil.TempDir(t)
	defer cleanup()
	dir := filepath.Join(root, "out", "nested")
	sink := NewLocalSink(dir)

	path, err := sink.Write(context.Background(), "OSD-1_bulkRNASeq_v3_runsheet.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "OSD-1_bulkRNASeq_v3_runsheet.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestLocalSinkRejectsPaths(t *testing.T) {
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()
	sink := NewLocalSink(dir)
	for _, name := range []string{"", "../x.csv", "a/b.csv"} {
		_, err := sink.Write(context.Background(), name, nil)
		require.Error(t, err, name)
		assert.True(t, errors.IsKind(err, errors.KindConfig))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.OutputConfig{Sink: "local", Directory: "out"})
	require.NoError(t, err)
	assert.Equal(t, &LocalSink{Dir: "out"}, s)

	_, err = Open(ctx, config.OutputConfig{Sink: "s3"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = Open(ctx, config.OutputConfig{Sink: "ftp"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}
