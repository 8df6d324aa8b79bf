package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nishad/runsheet/internal/convert"
	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/extract"
)

// Form fields of a conversion request.
const (
	fieldArchive   = "isa_archive"
	fieldAccession = "accession"
	fieldProfile   = "profile"
	fieldVersion   = "version"
	fieldInject    = "inject"
	fieldAssert    = "assert_factor_values"
)

// Run is a finished conversion as returned by the API.
type Run struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Result    *convert.Result `json:"result"`
}

// runStore keeps the most recent runs.
type runStore struct {
	mu    sync.Mutex
	limit int
	order []string
	runs  map[string]*Run
}

func newRunStore(limit int) *runStore {
	return &runStore{limit: limit, runs: make(map[string]*Run)}
}

func (s *runStore) add(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	s.order = append(s.order, run.ID)
	s.runs[run.ID] = run
}

func (s *runStore) get(id string) (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch errors.GetKind(err) {
	case errors.KindConfig, errors.KindParse:
		return http.StatusBadRequest
	case errors.KindStructure, errors.KindNoMatch, errors.KindColumn, errors.KindSuffix, errors.KindSchema:
		return http.StatusUnprocessableEntity
	case errors.KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Conversion handlers

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(fieldArchive)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fieldArchive+" file is required")
		return
	}
	defer file.Close()

	dir, err := os.MkdirTemp("", "runsheet-upload-*")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.RemoveAll(dir)

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "isa.zip"
	}
	path := filepath.Join(dir, name)
	if err := saveUpload(file, path); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}

	injections, err := extract.ParseInjections(r.MultipartForm.Value[fieldInject])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := convert.Request{
		Accession:      r.FormValue(fieldAccession),
		ArchivePath:    path,
		Profile:        r.FormValue(fieldProfile),
		ProfileVersion: r.FormValue(fieldVersion),
		Injections:     injections,
	}
	if v := r.FormValue(fieldAssert); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fieldAssert+" must be a boolean")
			return
		}
		req.AssertFactorValues = &b
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", id))
	deps := convert.Deps{
		Profiles: s.svc.Profiles,
		Schemas:  s.svc.Schemas,
		Sink:     s.svc.Sink,
		Logger:   logger,
	}
	if s.svc.Files != nil {
		deps.Resolver = s.svc.Files
	}

	res, err := convert.Run(r.Context(), req, deps)
	s.metrics.Observe(req.Profile, res, err, time.Since(start))
	if err != nil {
		logger.Warn("conversion failed", zap.String("accession", req.Accession), zap.Error(err))
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	run := &Run{ID: id, CreatedAt: time.Now().UTC(), Result: res}
	s.runs.add(run)
	s.writeJSON(w, http.StatusCreated, run)
}

func saveUpload(src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, ok := s.runs.get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// Profile handlers

type profileInfo struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions,omitempty"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	versioned, _ := s.svc.Profiles.(interface{ Versions(string) []string })

	names := s.svc.Profiles.Names()
	sort.Strings(names)
	out := make([]profileInfo, 0, len(names))
	for _, n := range names {
		info := profileInfo{Name: n}
		if versioned != nil {
			info.Versions = versioned.Versions(n)
		}
		out = append(out, info)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"profiles": out,
		"count":    len(out),
	})
}

// Remote file handlers

func (s *Server) handleAccession(w http.ResponseWriter, r *http.Request) {
	if s.svc.Files == nil {
		s.writeError(w, http.StatusServiceUnavailable, "remote lookups are disabled")
		return
	}
	accession := mux.Vars(r)["accession"]
	osd, glds, err := s.svc.Files.AccessionMapping(r.Context(), accession)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accession": accession,
		"osd":       osd,
		"glds":      glds,
	})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if s.svc.Files == nil {
		s.writeError(w, http.StatusServiceUnavailable, "remote lookups are disabled")
		return
	}
	accession := mux.Vars(r)["accession"]
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = ".*"
	}
	files, err := s.svc.Files.FindMatchingFilenames(r.Context(), accession, pattern)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"accession": accession,
		"pattern":   pattern,
		"files":     files,
		"count":     len(files),
	})
}
