// Package api exposes the bulk scraping trigger and job status over HTTP.
//
// Routes:
//
//	POST /api/bulk-scraping/jobs        → start a run for {"config_id": "..."}
//	GET  /api/bulk-scraping/jobs/{id}   → current state of a run
//	GET  /health                        → liveness
//	GET  /metrics                       → prometheus metrics
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	"github.com/maxaizer/bulk-scraper/internal/services"
	log "github.com/sirupsen/logrus"
)

const maxRequestBodySize = 1 << 20

type jobRunner interface {
	Start(ctx context.Context, configID string) (*entities.JobRun, error)
	GetJobRun(ctx context.Context, id string) (*entities.JobRun, error)
}

type startJobRequest struct {
	ConfigID string `json:"config_id"`
}

type startJobResponse struct {
	Message string             `json:"message"`
	JobID   string             `json:"job_id"`
	Status  entities.JobStatus `json:"status"`
}

type Handler struct {
	runner jobRunner
}

func NewHandler(runner jobRunner) *Handler {
	return &Handler{runner: runner}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bulk-scraping/jobs", h.startJob)
	mux.HandleFunc("GET /api/bulk-scraping/jobs/{id}", h.getJob)
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("GET /metrics", metrics.Handler())
}

func (h *Handler) startJob(w http.ResponseWriter, r *http.Request) {
	var body startJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	run, err := h.runner.Start(r.Context(), body.ConfigID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrConfigIDRequired):
			jsonError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrConfigNotFound):
			jsonError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrInvalidConfig):
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			jsonError(w, "failed to start bulk scraping job", http.StatusInternalServerError)
		}
		return
	}

	jsonOK(w, startJobResponse{
		Message: "Bulk scraping job started",
		JobID:   run.ID,
		Status:  run.Status,
	})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	run, err := h.runner.GetJobRun(r.Context(), r.PathValue("id"))
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't get job run: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "job run not found", http.StatusNotFound)
		return
	}
	jsonOK(w, run)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{"status": "ok"})
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("couldn't write response: %v", err)
	}
}
