// Package httpapi exposes the comparison service over HTTP: submit two
// documents, poll the job, fetch the result. All responses are JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/doccmp/convert"
	"github.com/hazyhaar/doccmp/idgen"
	"github.com/hazyhaar/doccmp/job"
)

// Config configures the API server.
type Config struct {
	// UploadDir is where submitted documents are stored until their job
	// finishes. Created on demand.
	UploadDir string
	// MaxUploadBytes bounds one request body (both files together).
	// Default: 110 MB, slightly above two maximum documents.
	MaxUploadBytes int64
	// IDGen mints job ids. Default: idgen.Default.
	IDGen idgen.Generator
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.UploadDir == "" {
		c.UploadDir = "data/uploads"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 110 * 1024 * 1024
	}
	if c.IDGen == nil {
		c.IDGen = idgen.Default
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server owns the HTTP surface. It talks to the registry only; the worker
// picks submitted jobs up on its own schedule.
type Server struct {
	cfg       Config
	registry  *job.Registry
	converter *convert.Converter
	logger    *slog.Logger
}

// NewServer creates a Server.
func NewServer(registry *job.Registry, converter *convert.Converter, cfg Config) *Server {
	cfg.defaults()
	return &Server{
		cfg:       cfg,
		registry:  registry,
		converter: converter,
		logger:    cfg.Logger,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/compare", s.handleCompare)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Delete("/jobs/{jobID}", s.handleCancel)
		r.Get("/results/{jobID}", s.handleResult)
		r.Get("/health", s.handleHealth)
	})

	return r
}

// submitResponse is the 202 body for an accepted comparison.
type submitResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	PollURL    string `json:"poll_url"`
	ResultsURL string `json:"results_url"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonErr(w, "invalid multipart request", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	source, sourceHdr, err := r.FormFile("file1")
	if err != nil {
		jsonErr(w, "file1 is required", http.StatusBadRequest)
		return
	}
	defer source.Close()
	target, targetHdr, err := r.FormFile("file2")
	if err != nil {
		jsonErr(w, "file2 is required", http.StatusBadRequest)
		return
	}
	defer target.Close()

	for _, hdr := range []*multipart.FileHeader{sourceHdr, targetHdr} {
		if _, err := s.converter.Detect(hdr.Filename); err != nil {
			jsonErr(w, fmt.Sprintf("unsupported document type: %s", hdr.Filename), http.StatusUnsupportedMediaType)
			return
		}
	}

	opts, err := parseOptions(r)
	if err != nil {
		jsonErr(w, err.Error(), http.StatusBadRequest)
		return
	}

	// A client-supplied id makes the submit idempotent across its retries.
	// It becomes the job's primary key and part of the storage name, so it
	// must be a well-formed UUID and nothing else.
	id := strings.TrimSpace(r.FormValue("job_id"))
	if id == "" {
		id = s.cfg.IDGen()
	} else if id, err = idgen.Parse(id); err != nil {
		jsonErr(w, "job_id must be a valid UUID", http.StatusBadRequest)
		return
	}

	sourcePath, err := s.saveUpload(id, "source", sourceHdr.Filename, source)
	if err != nil {
		s.logger.Error("saving upload failed", "error", err)
		jsonErr(w, "cannot store upload", http.StatusInternalServerError)
		return
	}
	targetPath, err := s.saveUpload(id, "target", targetHdr.Filename, target)
	if err != nil {
		s.logger.Error("saving upload failed", "error", err)
		jsonErr(w, "cannot store upload", http.StatusInternalServerError)
		return
	}

	req := job.Request{
		ID:         id,
		SourcePath: sourcePath,
		TargetPath: targetPath,
		SourceName: filepath.Base(sourceHdr.Filename),
		TargetName: filepath.Base(targetHdr.Filename),
		Options:    opts,
	}
	if err := s.registry.Submit(r.Context(), req); err != nil {
		// The registry kept the original job, so these uploads belong to
		// nobody. The first submission's files are untouched either way.
		os.Remove(sourcePath)
		os.Remove(targetPath)
		if errors.Is(err, job.ErrDuplicateJob) {
			// Same id, same answer: point the client at the existing job.
			writeJSON(w, http.StatusAccepted, submitResponse{
				JobID:      id,
				Status:     "already_submitted",
				PollURL:    "/api/v1/jobs/" + id,
				ResultsURL: "/api/v1/results/" + id,
			})
			return
		}
		s.logger.Error("submit failed", "job_id", id, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{
		JobID:      id,
		Status:     string(job.PhasePending),
		PollURL:    "/api/v1/jobs/" + id,
		ResultsURL: "/api/v1/results/" + id,
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	snap, err := s.registry.Snapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			jsonErr(w, "job not found", http.StatusNotFound)
			return
		}
		s.logger.Error("snapshot failed", "job_id", id, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	result, err := s.registry.Result(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			jsonErr(w, "job not found", http.StatusNotFound)
			return
		}
		s.logger.Error("result lookup failed", "job_id", id, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if result != nil {
		writeJSON(w, http.StatusOK, result)
		return
	}

	// No result yet: distinguish still-running from terminally failed.
	snap, err := s.registry.Snapshot(r.Context(), id)
	if err != nil {
		s.logger.Error("snapshot failed", "job_id", id, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if snap.Phase == job.PhaseFailed {
		writeJSON(w, http.StatusInternalServerError, snap)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	err := s.registry.RequestCancel(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": id,
			"status": "cancel_requested",
		})
	case errors.Is(err, job.ErrNotFound):
		jsonErr(w, "job not found", http.StatusNotFound)
	case errors.Is(err, job.ErrAlreadyComplete):
		jsonErr(w, "job already finished", http.StatusConflict)
	default:
		s.logger.Error("cancel failed", "job_id", id, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.registry.Counts(r.Context())
	if err != nil {
		jsonErr(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   counts,
	})
}

// parseOptions reads the optional form fields tuning a comparison.
func parseOptions(r *http.Request) (job.Options, error) {
	var opts job.Options

	if v := r.FormValue("include_unchanged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("include_unchanged: %w", err)
		}
		opts.IncludeUnchanged = b
	}
	if v := r.FormValue("use_analysis"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("use_analysis: %w", err)
		}
		opts.UseAnalysis = b
	}
	if v := r.FormValue("similarity_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return opts, fmt.Errorf("similarity_threshold must be in (0, 1]")
		}
		opts.SimilarityThreshold = f
	}
	if v := r.FormValue("context_lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 20 {
			return opts, fmt.Errorf("context_lines must be in [0, 20]")
		}
		opts.ContextLines = n
	}
	opts.AnalysisPrompt = r.FormValue("analysis_prompt")
	opts.DocContext = r.FormValue("doc_context")
	return opts, nil
}

// saveUpload stores one submitted file under the upload dir. The name keeps
// the job id for attribution but carries a random component, so a second
// submit reusing an id can never clobber the inputs of the job already
// stored under it.
func (s *Server) saveUpload(jobID, side, filename string, src multipart.File) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir upload dir: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	dst, err := os.CreateTemp(s.cfg.UploadDir, fmt.Sprintf("%s_%s_*%s", jobID, side, ext))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return dst.Name(), nil
}

// requestLogger logs one line per request with status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
