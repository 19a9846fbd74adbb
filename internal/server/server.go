package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"matrixci/internal/config"
	"matrixci/internal/core"
	"matrixci/internal/storage"
)

// maxMetafileSize bounds POST /render bodies.
const maxMetafileSize = 4 << 20

// Server serves one generated universe read-only, and renders metafiles
// posted to it without keeping them.
type Server struct {
	mu     sync.RWMutex
	result *core.Result
	logger *logrus.Logger
}

func New(result *core.Result, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{result: result, logger: logger}
}

// Replace swaps the served universe, e.g. after the metafile was regenerated.
func (s *Server) Replace(result *core.Result) {
	s.mu.Lock()
	s.result = result
	s.mu.Unlock()
}

func (s *Server) current() *core.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/files", s.handleListFiles)
	r.Get("/files/*", s.handleGetFile)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Post("/render", s.handleRender)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	writeJSON(w, http.StatusOK, map[string]int{
		"jobs":   res.JobCount(),
		"errors": len(res.Errors),
	})
}

type fileInfo struct {
	Path string `json:"path"`
	Jobs int    `json:"jobs"`
}

// GET /files
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	res := s.current()
	files := make([]fileInfo, 0, len(res.Pipelines))
	for _, p := range res.Pipelines {
		files = append(files, fileInfo{Path: p.Path, Jobs: len(p.Jobs)})
	}
	writeJSON(w, http.StatusOK, files)
}

// GET /files/{path}: the rendered YAML of one pipeline file
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	p := s.current().Pipeline(path)
	if p == nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	data, err := storage.MarshalPipeline(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(data)
}

type jobResponse struct {
	File string    `json:"file"`
	Job  *core.Job `json:"job"`
}

// GET /jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, p := range s.current().Pipelines {
		if j := p.Job(id); j != nil {
			writeJSON(w, http.StatusOK, jobResponse{File: p.Path, Job: j})
			return
		}
	}
	http.Error(w, "job not found", http.StatusNotFound)
}

type renderResponse struct {
	Files    map[string]string `json:"files"`
	Errors   []string          `json:"errors,omitempty"`
	Dangling []string          `json:"dangling,omitempty"`
}

// POST /render?format=yaml|hcl|jsonc with a metafile body
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := config.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = config.FormatYAML
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMetafileSize))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	meta, err := config.ParseMetafile(data, format, "request."+string(format))
	if err != nil {
		http.Error(w, "invalid metafile: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := core.NewGenerator(meta, s.logger).Run(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := renderResponse{Files: map[string]string{}}
	for _, p := range res.Pipelines {
		out, err := storage.MarshalPipeline(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Files[p.Path] = string(out)
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	resp.Dangling = danglingRefs(core.CheckReferences(res.Pipelines))

	status := http.StatusOK
	if len(resp.Errors) > 0 || len(resp.Dangling) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func danglingRefs(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	for _, e := range joined.Unwrap() {
		var d *core.DanglingReferenceError
		if errors.As(e, &d) {
			out = append(out, d.Error())
		}
	}
	sort.Strings(out)
	return out
}
