package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SFZPL/lead-automation-system-sub000/internal/enrich"
	"github.com/SFZPL/lead-automation-system-sub000/internal/model"
	"github.com/SFZPL/lead-automation-system-sub000/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for enrichment requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			st:   env.Store,
			base: ctx,
			enrich: func(runCtx context.Context, recs []*model.LeadRecord) *model.PipelineSummary {
				// One orchestrator per request; progress counters are
				// per-run.
				return enrich.NewOrchestrator(env.Engine, cfg.Enrich, nil).Run(runCtx, recs)
			},
			after: func(runCtx context.Context, runID string, recs []*model.LeadRecord) {
				postRun(runCtx, env, runID, recs)
			},
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		// Accepted runs keep enriching after shutdown; wait for them so
		// their summaries land in the store.
		api.wg.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer exposes enrichment over HTTP. Runs are asynchronous: the enrich
// handler opens a run row, responds 202 with its id, and a goroutine settles
// it. Callers poll /api/v1/runs/{id}.
type apiServer struct {
	st   store.Store
	base context.Context

	enrich func(ctx context.Context, recs []*model.LeadRecord) *model.PipelineSummary
	after  func(ctx context.Context, runID string, recs []*model.LeadRecord)

	wg sync.WaitGroup
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/enrich", s.handleEnrich)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// leadInput is the request shape for one lead. lead_id carries the CRM id
// so settled results can be written back.
type leadInput struct {
	LeadID      string `json:"lead_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
	ProfileURL  string `json:"professional_profile_url"`
}

func (in leadInput) record() *model.LeadRecord {
	return &model.LeadRecord{
		ID:          strings.TrimSpace(in.LeadID),
		FullName:    strings.TrimSpace(in.FullName),
		Email:       strings.TrimSpace(in.Email),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Website:     strings.TrimSpace(in.Website),
		ProfileURL:  strings.TrimSpace(in.ProfileURL),
		Status:      model.StatusNotStarted,
	}
}

func (s *apiServer) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leads []leadInput `json:"leads"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Leads) == 0 {
		respondError(w, http.StatusBadRequest, "leads is required")
		return
	}

	recs := make([]*model.LeadRecord, 0, len(req.Leads))
	for _, in := range req.Leads {
		rec := in.record()
		if rec.Email == "" && rec.FullName == "" {
			respondError(w, http.StatusBadRequest, "each lead needs an email or a full_name")
			return
		}
		recs = append(recs, rec)
	}

	run, err := s.st.CreateRun(r.Context(), "api")
	if err != nil {
		zap.L().Error("create run failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create run")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary := s.enrich(s.base, recs)

		persist := context.WithoutCancel(s.base)
		if err := s.st.FinishRun(persist, run.ID, summary, nil); err != nil {
			zap.L().Error("persist run failed", zap.String("run", run.ID), zap.Error(err))
		}
		if s.after != nil {
			s.after(persist, run.ID, summary.Records)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"run_id": run.ID,
		"leads":  len(recs),
		"status": "accepted",
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Limit: 50}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = model.RunStatus(v)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.st.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.st.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("get run failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
