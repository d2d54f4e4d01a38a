package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipmark/clipmark-agent/internal/extract"
	"github.com/clipmark/clipmark-agent/internal/marks"
	"github.com/clipmark/clipmark-agent/internal/session"
	"github.com/clipmark/clipmark-agent/internal/usage"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(LoopbackOnlyMiddleware())
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Sessions, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/video", loadVideoHandler(cfg))

		r.Get("/timestamps", listTimestampsHandler(cfg))
		r.Post("/timestamps/start", startTimestampHandler(cfg))
		r.Post("/timestamps/{id}/end", endTimestampHandler(cfg))
		r.Patch("/timestamps/{id}", relabelTimestampHandler(cfg))
		r.Delete("/timestamps/{id}", removeTimestampHandler(cfg))

		r.Get("/export", exportHandler(cfg))

		r.Post("/extract", extractHandler(cfg))
		r.With(RequireTier(session.TierPro)).Post("/extract/batch", batchExtractHandler(cfg))
		r.Post("/extract/cancel", cancelExtractHandler(cfg))
		r.Post("/extract/retry", retryExtractHandler(cfg))
		r.Get("/extract/progress", progressHandler(cfg))

		r.Get("/jobs", listJobsHandler(cfg))
		r.Get("/usage", usageHandler(cfg))

		r.Get("/clips", listClipsHandler(cfg))
		r.Get("/clips/{filename}", serveClipHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "idle"
		if cfg.Queue.Running() {
			state = "extracting"
		}

		summary := cfg.Queue.Summary()
		resp := StatusResponse{
			State:          state,
			Video:          cfg.Marks.VideoName(),
			TimestampCount: cfg.Marks.Len(),
			ActiveMark:     cfg.Marks.ActiveID() != "",
			Profile:        cfg.Profile.Name,
			Queue: &QueueStatusResponse{
				Running:   cfg.Queue.Running(),
				Completed: summary.Completed,
				Failed:    summary.Failed,
				Cancelled: summary.Cancelled,
				Total:     summary.Total,
			},
		}

		capStatus := &CaptureStatus{
			CaptureStream: cfg.Caps.CaptureStream,
			MP4:           cfg.Caps.MP4,
		}
		if !cfg.Caps.ProbedAt.IsZero() {
			capStatus.LastProbeAt = cfg.Caps.ProbedAt.Format(time.RFC3339)
		}
		resp.Capture = capStatus

		WriteJSON(w, http.StatusOK, resp)
	}
}

func loadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		cfg.Marks.LoadVideo(name)
		cfg.Logger.Info("video loaded", "video", name)

		if user := UserFromContext(r.Context()); user != nil && cfg.Usage != nil {
			if err := cfg.Usage.Increment(r.Context(), user.ID, usage.Delta{VideosProcessed: 1}); err != nil {
				cfg.Logger.Warn("failed to record video usage", "user_id", user.ID, "error", err)
			}
		}

		WriteJSON(w, http.StatusOK, LoadVideoResponse{Video: name})
	}
}

func listTimestampsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := cfg.Marks.Entries()
		resp := TimestampsResponse{
			Video:      cfg.Marks.VideoName(),
			ActiveID:   cfg.Marks.ActiveID(),
			Timestamps: make([]TimestampResponse, len(entries)),
		}
		for i, ts := range entries {
			resp.Timestamps[i] = TimestampToResponse(ts)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func startTimestampHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MarkTimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id, err := cfg.Marks.StartEntry(req.Time)
		if errors.Is(err, marks.ErrInvalidState) {
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusCreated, StartMarkResponse{ID: id})
	}
}

func endTimestampHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req MarkTimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Marks.EndEntry(id, req.Time); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}

		ts, err := cfg.Marks.Get(id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, TimestampToResponse(ts))
	}
}

func relabelTimestampHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req RelabelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.Label) == "" {
			WriteError(w, http.StatusBadRequest, "label is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Marks.Relabel(id, req.Label); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}

		ts, _ := cfg.Marks.Get(id)
		WriteJSON(w, http.StatusOK, TimestampToResponse(ts))
	}
}

func removeTimestampHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Marks.Remove(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func extractHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.TimestampID == "" {
			WriteError(w, http.StatusBadRequest, "timestamp_id is required", "BAD_REQUEST")
			return
		}

		ts, err := cfg.Marks.Get(req.TimestampID)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if !ts.Closed() {
			WriteError(w, http.StatusConflict, "timestamp has no end time", "CONFLICT")
			return
		}

		position := 0
		for i, closed := range cfg.Marks.ClosedEntries() {
			if closed.ID == ts.ID {
				position = i + 1
				break
			}
		}

		jobs, err := cfg.Queue.SubmitOne(cfg.Marks.VideoName(), req.Container, ts, position)
		if err != nil {
			writeQueueError(w, err)
			return
		}

		startDrain(cfg, UserFromContext(r.Context()))
		WriteJSON(w, http.StatusAccepted, ExtractResponse{Jobs: JobsToResponse(jobs)})
	}
}

func batchExtractHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An empty body means "defaults"; extract-all needs no options.
		var req BatchExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		jobs, err := cfg.Queue.Submit(cfg.Marks.VideoName(), req.Container, cfg.Marks.ClosedEntries())
		if err != nil {
			writeQueueError(w, err)
			return
		}

		startDrain(cfg, UserFromContext(r.Context()))
		WriteJSON(w, http.StatusAccepted, ExtractResponse{Jobs: JobsToResponse(jobs)})
	}
}

func cancelExtractHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Queue.Cancel()
		w.WriteHeader(http.StatusAccepted)
	}
}

func retryExtractHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := cfg.Queue.RetryFailed()
		if err != nil {
			writeQueueError(w, err)
			return
		}

		startDrain(cfg, UserFromContext(r.Context()))
		WriteJSON(w, http.StatusAccepted, ExtractResponse{Jobs: JobsToResponse(jobs)})
	}
}

func progressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		completed, total := cfg.Queue.Progress()
		WriteJSON(w, http.StatusOK, ProgressResponse{
			Running:   cfg.Queue.Running(),
			Completed: completed,
			Total:     total,
			Jobs:      JobsToResponse(cfg.Queue.Jobs()),
		})
	}
}

func listJobsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.History == nil {
			WriteJSON(w, http.StatusOK, JobsResponse{Jobs: []JobResponse{}})
			return
		}

		jobs, err := cfg.History.List(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list jobs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, JobsResponse{Jobs: JobsToResponse(jobs)})
	}
}

func usageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || cfg.Usage == nil {
			WriteJSON(w, http.StatusOK, UsageResponse{})
			return
		}

		counters, err := cfg.Usage.Get(r.Context(), user.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load usage", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, UsageResponse{
			VideosProcessed: counters.VideosProcessed,
			ClipsCreated:    counters.ClipsCreated,
		})
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := cfg.Clips.List()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list clips", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"clips": entries})
	}
}

func serveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if err := cfg.Clips.ServeClip(w, r, filename); err != nil {
			cfg.Logger.Error("clip serve error", "error", err, "filename", filename)
		}
	}
}

// startDrain runs the queue in the background; the request returns 202
// and the caller polls /extract/progress.
func startDrain(cfg ServerConfig, user *session.User) {
	userID := ""
	if user != nil {
		userID = user.ID
	}
	go func() {
		if _, err := cfg.Queue.Run(context.Background(), userID); err != nil {
			cfg.Logger.Error("extraction run error", "error", err)
		}
	}()
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extract.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, extract.ErrEmptyBatch):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
