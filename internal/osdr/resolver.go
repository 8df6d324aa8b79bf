package osdr

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nishad/runsheet/internal/errors"
)

// Lister fetches file listings.
type Lister interface {
	FileTable(ctx context.Context, accession string) ([]File, error)
}

// Resolver answers file questions for accessions. Each accession is fetched
// at most once at a time and then served from memory, and from the optional
// store across processes.
type Resolver struct {
	client *Client
	lister Lister
	cache  *Cache
	store  *Store
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// ResolverOptions configure NewResolver.
type ResolverOptions struct {
	Store  *Store // optional
	TTL    time.Duration
	Logger *zap.Logger
}

// NewResolver creates a resolver on top of client.
func NewResolver(client *Client, opts ResolverOptions) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Resolver{
		client: client,
		lister: client,
		cache:  NewCache(0, ttl),
		store:  opts.Store,
		ttl:    ttl,
		logger: logger,
	}
}

// Files returns the file listing of accession.
func (r *Resolver) Files(ctx context.Context, accession string) ([]File, error) {
	if files, ok := r.cache.Get(accession); ok {
		return files, nil
	}
	v, err, shared := r.group.Do(accession, func() (interface{}, error) {
		if files, ok := r.cache.Get(accession); ok {
			return files, nil
		}
		if r.store != nil {
			files, ok, err := r.store.Get(ctx, accession, r.ttl)
			if err != nil {
				r.logger.Warn("file listing cache unavailable", zap.String("accession", accession), zap.Error(err))
			} else if ok {
				r.logger.Debug("file listing served from cache", zap.String("accession", accession))
				r.cache.Set(accession, files)
				return files, nil
			}
		}
		files, err := r.lister.FileTable(ctx, accession)
		if err != nil {
			return nil, err
		}
		r.cache.Set(accession, files)
		if r.store != nil {
			if err := r.store.Put(ctx, accession, files); err != nil {
				r.logger.Warn("failed to persist file listing", zap.String("accession", accession), zap.Error(err))
			}
		}
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("file listing shared between callers", zap.String("accession", accession))
	}
	return v.([]File), nil
}

// ResolveFileURL returns the download URL of filename.
func (r *Resolver) ResolveFileURL(ctx context.Context, accession, filename string) (string, error) {
	const op errors.Op = "osdr.ResolveFileURL"
	files, err := r.Files(ctx, accession)
	if err != nil {
		return "", errors.Wrap(op, err)
	}
	for _, f := range files {
		if f.Name == filename {
			return r.client.FileURL(f), nil
		}
	}
	return "", errors.E(op, errors.KindRemote, fmt.Sprintf(
		"could not find filename %q, found filenames for %s: %v", filename, accession, names(files)))
}

// FindMatchingFilenames returns the listed filenames that pattern matches
// anywhere.
func (r *Resolver) FindMatchingFilenames(ctx context.Context, accession, pattern string) ([]string, error) {
	const op errors.Op = "osdr.FindMatchingFilenames"
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	files, err := r.Files(ctx, accession)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	var out []string
	for _, f := range files {
		if re.MatchString(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

// FetchISA downloads the ISA archive of accession into dir.
func (r *Resolver) FetchISA(ctx context.Context, accession, dir string) (string, error) {
	const op errors.Op = "osdr.FetchISA"
	files, err := r.Files(ctx, accession)
	if err != nil {
		return "", errors.Wrap(op, err)
	}
	f, ok := ISAArchive(files)
	if !ok {
		return "", errors.E(op, errors.KindRemote, fmt.Sprintf("no ISA archive found for %s", accession))
	}
	path := filepath.Join(dir, filepath.Base(f.Name))
	if _, err := r.client.Download(ctx, r.client.FileURL(f), path); err != nil {
		return "", errors.Wrap(op, err)
	}
	return path, nil
}

// AccessionMapping delegates to the client.
func (r *Resolver) AccessionMapping(ctx context.Context, accession string) (string, []string, error) {
	return r.client.AccessionMapping(ctx, accession)
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	sort.Strings(out)
	return out
}
