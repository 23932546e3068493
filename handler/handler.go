// Package handler serves the processors over HTTP
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/pdffs/pkg/pipeline"
	"github.com/joeblew999/pdffs/runtime"
)

const Version = "0.1.0"

// Server routes requests to a processor registry and stores what they produce
type Server struct {
	registry    *pipeline.Registry
	rt          *runtime.Runtime
	jobs        *runtime.JobStore
	maxUpload   int64
	origins     []string
	workerState func() string
	log         *logrus.Entry
}

// Option configures a Server
type Option func(*Server)

// WithMaxUpload limits the multipart body size in bytes
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// WithAllowedOrigins limits CORS to the given origins. "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithJobTTL sets how long job status records are kept
func WithJobTTL(ttl time.Duration) Option {
	return func(s *Server) { s.jobs = s.rt.Jobs(ttl) }
}

// WithWorkerState reports the DOCX worker state on /health
func WithWorkerState(fn func() string) Option {
	return func(s *Server) { s.workerState = fn }
}

// New creates a server. rt may be nil, in which case outputs and job
// status are discarded.
func New(registry *pipeline.Registry, rt *runtime.Runtime, opts ...Option) *Server {
	s := &Server{
		registry:  registry,
		rt:        rt,
		jobs:      rt.Jobs(24 * time.Hour),
		maxUpload: 100 << 20,
		origins:   []string{"*"},
		log:       logrus.WithField("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with CORS and request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /operations", s.handleOperations)
	mux.HandleFunc("POST /process/{operation}", s.handleProcess)
	mux.HandleFunc("GET /outputs/{key...}", s.handleOutput)
	mux.HandleFunc("GET /status/{job}", s.handleStatus)
	mux.HandleFunc("GET /jobs/{job}/outputs", s.handleJobOutputs)
	mux.HandleFunc("DELETE /jobs/{job}", s.handleDeleteJob)
	return s.logged(s.cors(mux))
}

// cors wraps a handler with CORS headers
func (s *Server) cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.origins) == 0 || slices.Contains(s.origins, "*") {
		return "*"
	}
	if slices.Contains(s.origins, origin) {
		return origin
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logged(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Service: "pdffs",
		Version: Version,
		Endpoints: []string{
			"GET /health",
			"GET /operations",
			"POST /process/{operation}",
			"GET /outputs/{key}",
			"GET /status/{job}",
			"GET /jobs/{job}/outputs",
			"DELETE /jobs/{job}",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: Version}
	if s.workerState != nil {
		resp.Worker = s.workerState()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	ops := make([]OperationInfo, 0, len(names))
	for _, name := range names {
		p, _ := s.registry.Get(name)
		ops = append(ops, OperationInfo{Name: name, Description: pipeline.Describe(p)})
	}
	writeJSON(w, http.StatusOK, OperationsResponse{Operations: ops, Count: len(ops)})
}

// handleProcess runs one operation on multipart "file" parts with an
// optional "options" JSON field, then stores the outputs and a manifest
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("operation")
	proc, ok := s.registry.Get(op)
	if !ok {
		writeError(w, fmt.Sprintf("unknown operation %q", op), http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, fmt.Sprintf("invalid multipart body: %v", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, errs := readInput(r)
	if errs != nil {
		writeValidation(w, errs)
		return
	}

	ctx := r.Context()
	job, err := s.jobs.Create(ctx, op, in.Files[0].Name)
	if err != nil {
		writeError(w, fmt.Sprintf("create job: %v", err), http.StatusInternalServerError)
		return
	}
	log := s.log.WithFields(logrus.Fields{"job": job.ID, "operation": op})

	out := proc.Process(ctx, in, s.jobs.Tracker(ctx, job))

	resp := ProcessResponse{Output: out, JobID: job.ID}
	var manifest *runtime.Manifest
	if out.Success {
		manifest, err = runtime.StoreOutputs(ctx, s.rt.Output(), job, out)
		if err != nil {
			log.WithError(err).Error("storing outputs failed")
			failed := pipeline.Fail(pipeline.NewError(pipeline.KindProcessingFailed, "could not store outputs").WithDetail(err.Error()))
			if err := s.jobs.Finish(ctx, job, failed, nil); err != nil {
				log.WithError(err).Warn("job status not saved")
			}
			writeJSON(w, http.StatusInternalServerError, ProcessResponse{Output: failed, JobID: job.ID})
			return
		}
		resp.Manifest = manifest.Key
	} else {
		log.WithField("code", out.Error.Code).Warn("operation failed")
	}
	if err := s.jobs.Finish(ctx, job, out, manifest); err != nil {
		log.WithError(err).Warn("job status not saved")
	}

	if r.URL.Query().Get("data") == "false" {
		resp.Output = withoutData(out)
	}
	writeJSON(w, statusFor(out), resp)
}

func readInput(r *http.Request) (pipeline.Input, *Validator) {
	v := NewValidator()
	headers := r.MultipartForm.File["file"]
	v.RequireCount("file", len(headers), 1, 16)

	in := pipeline.Input{Options: pipeline.Options{}}
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Options); err != nil {
			v.errors = append(v.errors, fmt.Sprintf("options is not a JSON object: %v", err))
		}
	}

	for _, fh := range headers {
		v.RequireNoPathTraversal("filename", fh.Filename)
		f, err := fh.Open()
		if err != nil {
			v.errors = append(v.errors, fmt.Sprintf("open %s: %v", fh.Filename, err))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			v.errors = append(v.errors, fmt.Sprintf("read %s: %v", fh.Filename, err))
			continue
		}
		in.Files = append(in.Files, pipeline.File{
			Name:        path.Base(fh.Filename),
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	if !v.IsValid() {
		return pipeline.Input{}, v
	}
	return in, nil
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	v := NewValidator()
	v.RequireNonEmpty("key", key)
	v.RequireNoPathTraversal("key", key)
	if !v.IsValid() {
		writeValidation(w, v)
		return
	}

	rc, err := s.rt.Output().Get(r.Context(), key)
	if err != nil {
		if runtime.IsNotFound(err) {
			writeError(w, "output not found", http.StatusNotFound)
			return
		}
		writeError(w, fmt.Sprintf("read output: %v", err), http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		writeError(w, fmt.Sprintf("read output: %v", err), http.StatusInternalServerError)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(key))
	if ctype == "" {
		ctype = mimetype.Detect(data).String()
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job")
	job, err := s.jobs.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			writeError(w, fmt.Sprintf("job %s not found", id), http.StatusNotFound)
			return
		}
		writeError(w, fmt.Sprintf("load job: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobOutputs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job")
	if !s.validJobID(w, id) {
		return
	}
	keys, err := runtime.ListOutputs(r.Context(), s.rt.Output(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(keys) == 0 {
		writeError(w, fmt.Sprintf("no outputs for job %s", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, JobOutputsResponse{JobID: id, Keys: keys, Count: len(keys)})
}

// handleDeleteJob removes a job's stored outputs and its status record
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("job")
	if !s.validJobID(w, id) {
		return
	}
	ctx := r.Context()
	_, loadErr := s.jobs.Load(ctx, id)
	if loadErr != nil && !runtime.IsNotFound(loadErr) {
		writeError(w, fmt.Sprintf("load job: %v", loadErr), http.StatusInternalServerError)
		return
	}

	n, err := runtime.DeleteOutputs(ctx, s.rt.Output(), id)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runtime.IsNotFound(loadErr) && n == 0 {
		writeError(w, fmt.Sprintf("job %s not found", id), http.StatusNotFound)
		return
	}
	if err := s.jobs.Delete(ctx, id); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.WithFields(logrus.Fields{"job": id, "outputs": n}).Info("job deleted")
	writeJSON(w, http.StatusOK, DeleteJobResponse{JobID: id, Deleted: n})
}

func (s *Server) validJobID(w http.ResponseWriter, id string) bool {
	v := NewValidator()
	v.RequireNonEmpty("job", id)
	v.RequireNoPathTraversal("job", id)
	if !v.IsValid() {
		writeValidation(w, v)
		return false
	}
	return true
}

// statusFor maps an envelope onto an HTTP status
func statusFor(out *pipeline.Output) int {
	if out.Success {
		return http.StatusOK
	}
	switch out.Error.Code {
	case pipeline.KindInvalidOptions, pipeline.KindFileTypeInvalid, pipeline.KindInvalidPageRange:
		return http.StatusBadRequest
	case pipeline.KindPDFEncrypted:
		return http.StatusUnprocessableEntity
	case pipeline.KindProcessingCancelled:
		return http.StatusRequestTimeout
	case pipeline.KindWorkerFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func withoutData(out *pipeline.Output) *pipeline.Output {
	cp := *out
	cp.Result = make([]pipeline.Blob, len(out.Result))
	for i, b := range out.Result {
		b.Data = nil
		cp.Result[i] = b
	}
	return &cp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeValidation(w http.ResponseWriter, v *Validator) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: v.Errors()})
}
