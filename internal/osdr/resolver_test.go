package osdr

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/testutil"
)

func TestResolveFileURL(t *testing.T) {
	srv := newFakeOSDR(t)
	r := NewResolver(srv.client(), ResolverOptions{})
	ctx := context.Background()

	u, err := r.ResolveFileURL(ctx, "OSD-194", "S1_R2_raw.fastq.gz")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/geode-py/ws/studies/OSD-194/download?file=S1_R2_raw.fastq.gz", u)

	_, err = r.ResolveFileURL(ctx, "OSD-194", "S9_R1_raw.fastq.gz")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindRemote))
	assert.Contains(t, err.Error(), "S9_R1_raw.fastq.gz")
	assert.Contains(t, err.Error(), "S1_R1_raw.fastq.gz")

	assert.Equal(t, int32(1), srv.fileCalls.Load(), "listing is fetched once per accession")
}

func TestResolverFetchesOnceConcurrently(t *testing.T) {
	srv := newFakeOSDR(t)
	r := NewResolver(srv.client(), ResolverOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ResolveFileURL(context.Background(), "OSD-194", "S1_R1_raw.fastq.gz")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), srv.fileCalls.Load())
}

func TestFindMatchingFilenames(t *testing.T) {
	r := NewResolver(newFakeOSDR(t).client(), ResolverOptions{})

	got, err := r.FindMatchingFilenames(context.Background(), "OSD-194", `_R\d_raw`)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1_R1_raw.fastq.gz", "S1_R2_raw.fastq.gz"}, got)

	_, err = r.FindMatchingFilenames(context.Background(), "OSD-194", `(`)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestResolverUsesStore(t *testing.T) {
	srv := newFakeOSDR(t)
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	store, err := OpenStore(filepath.Join(dir, "cache", "files.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	first := NewResolver(srv.client(), ResolverOptions{Store: store, TTL: time.Hour})
	_, err = first.Files(ctx, "OSD-194")
	require.NoError(t, err)

	second := NewResolver(srv.client(), ResolverOptions{Store: store, TTL: time.Hour})
	files, err := second.Files(ctx, "OSD-194")
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Equal(t, int32(1), srv.fileCalls.Load(), "second resolver is served from the store")
}

func TestFetchISA(t *testing.T) {
	srv := newFakeOSDR(t)
	dir, cleanup := testutil.TempDir(t)
	defer cleanup()

	path, err := NewResolver(srv.client(), ResolverOptions{}).FetchISA(context.Background(), "GLDS-194", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "OSD-194_metadata_OSD-194-ISA.zip"), path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
