package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/pipeline"
	"github.com/sells-group/bbb-scraper/internal/session"
	"github.com/sells-group/bbb-scraper/internal/store"
)

type scrapeRequest struct {
	SearchInput string         `json:"search_input"`
	Pages       *int           `json:"pages"`
	Proxy       *session.Proxy `json:"proxy"`
}

type errorResponse struct {
	Kind   model.ErrorKind `json:"kind"`
	Detail string          `json:"detail"`
}

type runDetail struct {
	model.Run
	Businesses []model.Business `json:"businesses"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	endpoints := map[string]string{
		"POST /scrape": "scrape search results and enrich principal contacts",
		"GET /health":  "health check",
		"GET /metrics": "prometheus metrics",
	}
	if s.store != nil {
		endpoints["GET /runs"] = "list recorded runs"
		endpoints["GET /runs/stats"] = "run statistics"
		endpoints["GET /runs/{id}"] = "run detail with businesses"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"service":   ServiceName,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, model.ErrorKindValidation, "invalid request body")
		return
	}

	req := pipeline.Request{SearchInput: body.SearchInput, Pages: s.defaultPages}
	if body.Pages != nil {
		req.Pages = *body.Pages
	}
	if body.Proxy != nil {
		req.Proxy = *body.Proxy
	}

	out, err := s.scraper.Scrape(r.Context(), req)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			respondError(w, http.StatusBadRequest, model.ErrorKindValidation, ve.Error())
			return
		}
		zap.L().Error("api: scrape failed", zap.String("search_input", req.SearchInput), zap.Error(err))
		respondError(w, http.StatusInternalServerError, model.ErrorKindInternal, "scrape failed")
		return
	}

	if out.RunID != "" {
		w.Header().Set("X-Run-ID", out.RunID)
	}
	respondJSON(w, http.StatusOK, out.Result)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, model.ErrorKindInternal, "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, model.ErrorKindValidation, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, model.ErrorKindInternal, "could not load run")
		return
	}

	businesses, err := s.store.ListBusinesses(r.Context(), id)
	if err != nil {
		zap.L().Error("api: list businesses", zap.String("run_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, model.ErrorKindInternal, "could not load businesses")
		return
	}
	if businesses == nil {
		businesses = []model.Business{}
	}
	respondJSON(w, http.StatusOK, runDetail{Run: *run, Businesses: businesses})
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: run stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, model.ErrorKindInternal, "could not collect stats")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func respondError(w http.ResponseWriter, code int, kind model.ErrorKind, detail string) {
	respondJSON(w, code, errorResponse{Kind: kind, Detail: detail})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
