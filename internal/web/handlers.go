package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/feedwizard/internal/core"
	mw "github.com/JonMunkholm/feedwizard/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartMemory is how much of an upload is buffered in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// RunResponse is the body of POST /api/runs.
type RunResponse struct {
	core.Report

	// Error explains a fatal run in user terms.
	Error *core.UserMessage `json:"error,omitempty"`
}

// handleCreateRun ingests the uploaded feed and returns its report.
// The request blocks until the run finishes.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	src, cleanup, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	if err := s.deps.Limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	defer s.deps.Limiter.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()
	ctx = core.ContextWithRunID(ctx, uuid.NewString())

	report := s.deps.Runner.Run(ctx, src)
	mw.Annotate(r.Context(), report)

	resp := RunResponse{Report: report}
	status := http.StatusCreated
	if report.Err != nil {
		msg := core.MapError(report.Err)
		resp.Error = &msg
		status = http.StatusServiceUnavailable
		if core.IsFatalIngest(report.Err) {
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, resp)
}

// handlePreview reports what a run of the uploaded feed would do.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	src, cleanup, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	resp, err := s.deps.Runner.Preview(ctx, src)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload extracts the multipart "file" field. On failure the error
// response has been written and ok is false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (src core.FeedSource, cleanup func(), ok bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	if r.ContentLength > maxSize {
		s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, maxSize), 0)
		return src, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, tooLarge.Limit), 0)
			return src, nil, false
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return src, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		s.respondError(w, r, errNoFile, 0)
		return src, nil, false
	}

	src = core.FeedSource{
		Name:   header.Filename,
		Reader: file,
		Size:   header.Size,
	}
	cleanup = func() {
		file.Close()
		r.MultipartForm.RemoveAll()
	}
	return src, cleanup, true
}

// handleListRejects returns the rejected rows of a run in feed order.
func (s *Server) handleListRejects(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid run id %q", runID), http.StatusBadRequest)
		return
	}

	limit := parseIntParam(r, "limit", 0)
	rejects, err := s.deps.Catalog.ListRejected(r.Context(), runID, limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if rejects == nil {
		rejects = []core.RejectedRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  runID,
		"rejects": rejects,
	})
}

// handleGetProduct returns one stored product.
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCountProducts returns the number of stored products.
func (s *Server) handleCountProducts(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Catalog.CountProducts(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// handleRunStatus reports run slot usage.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Limiter.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
