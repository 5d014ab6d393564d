// Package server exposes batch control and run history over a local JSON API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mt4110/vsplit/internal/config"
	"github.com/mt4110/vsplit/internal/encoding"
	"github.com/mt4110/vsplit/internal/history"
)

type Deps struct {
	Controller *Controller
	Store      RunStore
	// Base is copied for every split request; request fields override it.
	Base      *config.Config
	StartTime time.Time
	Version   string
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type SplitResponse struct {
	RunID string `json:"runId"`
}

type StopResponse struct {
	Stopping bool `json:"stopping"`
}

type RunsResponse struct {
	Runs []history.Run `json:"runs"`
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/health", healthHandler(d))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusHandler(d))
		r.Post("/split", splitHandler(d))
		r.Post("/stop", stopHandler(d))
		r.Get("/runs", listRunsHandler(d))
		r.Get("/runs/{id}", getRunHandler(d))
	})

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("%s %s %d %dms", r.Method, r.URL.Path, ww.Status(), time.Since(start).Milliseconds())
	})
}

func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: d.Version,
			UptimeS: int64(time.Since(d.StartTime).Seconds()),
		})
	}
}

func statusHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, d.Controller.Status())
	}
}

func splitHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Request fields override a private copy of the base config.
		cfg := d.Base.Clone()
		if err := json.NewDecoder(r.Body).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if name := r.URL.Query().Get("profile"); name != "" {
			if err := cfg.ApplyProfile(name); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
		}

		id, err := d.Controller.Start(cfg)
		switch {
		case errors.Is(err, ErrBusy):
			WriteError(w, http.StatusConflict, err.Error(), "BUSY")
			return
		case errors.Is(err, encoding.ErrInvalidInput):
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
			return
		case err != nil:
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SplitResponse{RunID: id.String()})
	}
}

func stopHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, StopResponse{Stopping: d.Controller.Stop()})
	}
}

func listRunsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			WriteJSON(w, http.StatusOK, RunsResponse{Runs: []history.Run{}})
			return
		}

		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		runs, err := d.Store.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list runs", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func getRunHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Store == nil {
			WriteError(w, http.StatusNotFound, "history is disabled", "NOT_FOUND")
			return
		}

		run, err := d.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, history.ErrNotFound) {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to get run", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, run)
	}
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
