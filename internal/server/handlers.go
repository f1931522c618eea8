package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/treeglot/treeglot/internal/jobs"
	"github.com/treeglot/treeglot/internal/models"
	"github.com/treeglot/treeglot/internal/repositories"
	"github.com/treeglot/treeglot/internal/shared"
)

// JobRunner starts a coordinator run for a job. Implemented by
// jobs.Coordinator via a closure in the CLI runner so the server does not own
// worker wiring.
type JobRunner func(jobID string, opts jobs.RunOptions)

// JobHandler serves the translation job API.
//
// POST /jobs           submits a document and starts a job asynchronously.
// GET  /jobs           lists jobs, newest first.
// GET  /jobs/{id}      returns job status and progress.
// GET  /jobs/{id}/document  returns the translated document.
type JobHandler struct {
	jobRepo *repositories.JobRepository
	run     JobRunner
	logger  *log.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(jobRepo *repositories.JobRepository, run JobRunner, logger *log.Logger) *JobHandler {
	return &JobHandler{jobRepo: jobRepo, run: run, logger: logger}
}

// Routes returns the method-qualified patterns this handler serves.
func (h *JobHandler) Routes() []string {
	return []string{
		"POST /jobs",
		"GET /jobs",
		"GET /jobs/{id}",
		"GET /jobs/{id}/document",
	}
}

// ServeHTTP dispatches to the endpoint implementations.
func (h *JobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/jobs":
		h.submit(w, r)
	case r.URL.Path == "/jobs":
		h.list(w, r)
	case r.PathValue("id") != "" && r.URL.Path == "/jobs/"+r.PathValue("id")+"/document":
		h.document(w, r)
	default:
		h.status(w, r)
	}
}

type submitRequest struct {
	SourceLang string          `json:"source_lang"`
	TargetLang string          `json:"target_lang"`
	Context    string          `json:"context,omitempty"`
	Paths      []string        `json:"paths,omitempty"`
	SkipCache  bool            `json:"skip_cache,omitempty"`
	CacheJobID string          `json:"cache_job_id,omitempty"`
	Document   json.RawMessage `json:"document"`
}

type jobResponse struct {
	ID              string     `json:"id"`
	SourceLang      string     `json:"source_lang"`
	TargetLang      string     `json:"target_lang"`
	Status          string     `json:"status"`
	TotalKeys       int        `json:"total_keys"`
	TranslatedKeys  int        `json:"translated_keys"`
	TotalChunks     int        `json:"total_chunks"`
	CompletedChunks int        `json:"completed_chunks"`
	FailedChunks    int        `json:"failed_chunks"`
	Percent         float64    `json:"percent"`
	Error           string     `json:"error,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toJobResponse(job *models.Job) jobResponse {
	return jobResponse{
		ID:              job.ID,
		SourceLang:      job.SourceLang,
		TargetLang:      job.TargetLang,
		Status:          string(job.Status),
		TotalKeys:       job.TotalKeys,
		TranslatedKeys:  job.TranslatedKeys,
		TotalChunks:     job.TotalChunks,
		CompletedChunks: job.CompletedChunks,
		FailedChunks:    job.FailedChunks,
		Percent:         job.Percent(),
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		CreatedAt:       job.CreatedAt,
	}
}

func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceLang == "" || req.TargetLang == "" {
		writeError(w, http.StatusBadRequest, "source_lang and target_lang are required")
		return
	}
	if len(req.Document) == 0 {
		writeError(w, http.StatusBadRequest, "document is required")
		return
	}

	job := &models.Job{
		SourceLang:     req.SourceLang,
		TargetLang:     req.TargetLang,
		Context:        req.Context,
		SourceDocument: string(req.Document),
	}
	if err := h.jobRepo.Create(job); err != nil {
		h.logger.Error("failed to create job", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.run(job.ID, jobs.RunOptions{Paths: req.Paths, SkipCache: req.SkipCache, CacheJobID: req.CacheJobID})

	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		criteria["status"] = status
	}

	listed, err := h.jobRepo.List(criteria)
	if err != nil {
		h.logger.Error("failed to list jobs", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	responses := make([]jobResponse, len(listed))
	for i, job := range listed {
		responses[i] = toJobResponse(job)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (h *JobHandler) status(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *JobHandler) document(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getJob(w, r)
	if !ok {
		return
	}

	if job.ResultDocument == "" {
		writeError(w, http.StatusConflict, "job has no result document yet")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(job.ResultDocument))
}

func (h *JobHandler) getJob(w http.ResponseWriter, r *http.Request) (*models.Job, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return nil, false
	}

	job, err := h.jobRepo.Get(id)
	if errors.Is(err, shared.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to get job", "job_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return nil, false
	}
	return job, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// LoggingMiddleware logs each request with method, path, and duration.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
