package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ontolink/ontolink/config"
	"github.com/ontolink/ontolink/dsl"
	"github.com/ontolink/ontolink/internal/logger"
	"github.com/ontolink/ontolink/store"
)

type Server struct {
	db       *sql.DB // nil when running on in-memory stores
	engine   *dsl.Engine
	rules    store.RuleStore
	macros   store.MacroStore
	sections dsl.SectionSource
	snapshot *store.SnapshotCache
	router   *chi.Mux
	log      *slog.Logger
}

// NewServer wires stores from the configuration: postgres when a database
// URL is set, in-memory otherwise (useful for local runs and tests).
func NewServer(cfg config.Config, log *slog.Logger) (*Server, error) {
	s := &Server{log: log}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		s.db = db
		s.rules = store.NewPostgresRuleStore(db)
		s.macros = store.NewPostgresMacroStore(db)
		s.sections = store.NewPostgresSectionSource(db)
	} else {
		log.Info("no database configured, using in-memory stores")
		s.rules = store.NewInMemoryRuleStore()
		s.macros = store.NewInMemoryMacroStore()
		s.sections = store.NewInMemorySectionSource(nil)
	}

	s.snapshot = store.NewSnapshotCache(s.macros, store.SnapshotCacheConfig{TTL: time.Duration(cfg.SnapshotTTL)})
	if err := s.snapshot.Refresh(); err != nil {
		return nil, fmt.Errorf("failed to load macro snapshot: %w", err)
	}

	s.engine = dsl.NewEngine(cfg.Guardrails.Limits(), s.snapshot, store.FamilyResolver{Rules: s.rules})
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/validate", s.handleValidate)
	r.Post("/api/v1/evaluate", s.handleEvaluate)
	r.Post("/api/v1/counterfactual", s.handleCounterfactual)

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Post("/validate", s.handleValidateForRule)
		})
	})

	r.Route("/api/v1/macros", func(r chi.Router) {
		r.Get("/", s.handleListMacros)
		r.Post("/", s.handleCreateMacro)
		r.Delete("/{name}", s.handleDeleteMacro)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleValidate runs the DSL pipeline with no family context. Malformed
// queries are a 200 with errors populated: diagnostics are data, not
// failures.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result := s.engine.Validate(req.Text)
	observeValidation(result)
	respondJSON(w, http.StatusOK, result)
}

// handleValidateForRule validates in the scope of the rule's family.
func (s *Server) handleValidateForRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := s.engine.ValidateForRule(ruleID, req.Text)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	observeValidation(result)
	respondJSON(w, http.StatusOK, result)
}

// handleEvaluate validates a query and, when it is clean, evaluates it
// against the supplied section text.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	validation := s.engine.ValidateForFamily(req.Text, req.FamilyID)
	observeValidation(validation)
	resp := EvaluateResponse{Validation: validation}
	if validation.Valid() {
		root := dsl.CombineFields(validation.Trees)
		if root != nil {
			ev := dsl.Evaluate(root, dsl.SectionDocument(req.Section.Heading, req.Section.Body))
			evaluationsTotal.WithLabelValues(string(ev.TrafficLight)).Inc()
			resp.Evaluation = &ev
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleCounterfactual scans the corpus with one node muted. A failing
// corpus store is a service-level error, unlike query diagnostics.
func (s *Server) handleCounterfactual(w http.ResponseWriter, r *http.Request) {
	var req CounterfactualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	validation := s.engine.ValidateForFamily(req.Text, req.FamilyID)
	if !validation.Valid() {
		respondJSON(w, http.StatusOK, CounterfactualResponse{Validation: validation})
		return
	}

	root := dsl.CombineFields(validation.Trees)
	if root == nil {
		respondError(w, http.StatusBadRequest, "query has no field expressions", nil)
		return
	}

	result, err := dsl.Counterfactual(r.Context(), root, req.MutedPath, s.sections)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			respondError(w, http.StatusRequestTimeout, "counterfactual scan cancelled", err)
			return
		}
		respondError(w, http.StatusServiceUnavailable, "counterfactual scan failed", err)
		return
	}
	counterfactualsTotal.Inc()
	respondJSON(w, http.StatusOK, CounterfactualResponse{Validation: validation, Result: &result})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.ListActive()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	resp := RulesListResponse{Rules: make([]RuleResponse, 0, len(rules))}
	for _, rule := range rules {
		resp.Rules = append(resp.Rules, toRuleResponse(rule))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" || req.Query == "" {
		respondError(w, http.StatusBadRequest, "name and query are required", nil)
		return
	}

	// A rule must at least lex and parse; guardrail or macro problems are
	// reported but do not block saving a draft.
	validation := s.engine.ValidateForFamily(req.Query, req.FamilyID)

	rule := &store.Rule{
		ID:       "rule-" + uuid.NewString(),
		FamilyID: req.FamilyID,
		Name:     req.Name,
		Query:    dsl.NormalizeQuery(req.Query),
		Active:   req.Active,
	}
	if err := s.rules.Add(rule); err != nil {
		respondError(w, http.StatusConflict, "failed to create rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, CreateRuleResponse{
		Rule:       toRuleResponse(rule),
		Validation: validation,
	})
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := s.rules.Get(ruleID)
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}

	rule := *existing
	if req.Name != "" {
		rule.Name = req.Name
	}
	if req.Query != "" {
		rule.Query = dsl.NormalizeQuery(req.Query)
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := s.rules.Update(&rule); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update rule", err)
		return
	}
	respondJSON(w, http.StatusOK, toRuleResponse(&rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Delete(chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMacros(w http.ResponseWriter, r *http.Request) {
	macros, err := s.macros.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list macros", err)
		return
	}
	resp := MacrosListResponse{Macros: make([]MacroResponse, 0, len(macros))}
	for _, m := range macros {
		resp.Macros = append(resp.Macros, toMacroResponse(m))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateMacro(w http.ResponseWriter, r *http.Request) {
	var req CreateMacroRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	m := &store.Macro{
		ID:       "macro-" + uuid.NewString(),
		Name:     req.Name,
		FamilyID: req.FamilyID,
		Body:     req.Body,
	}
	if err := store.ValidateMacro(m); err != nil {
		respondError(w, http.StatusBadRequest, "invalid macro", err)
		return
	}
	if err := s.macros.Create(m); err != nil {
		respondError(w, http.StatusConflict, "failed to create macro", err)
		return
	}
	// New snapshot so in-flight validations keep their old complete view
	// and the next one sees the new macro.
	s.snapshot.Invalidate()
	respondJSON(w, http.StatusCreated, toMacroResponse(m))
}

func (s *Server) handleDeleteMacro(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	familyID := r.URL.Query().Get("family_id")

	if err := s.macros.Delete(familyID, name); err != nil {
		respondError(w, http.StatusNotFound, "macro not found", err)
		return
	}
	s.snapshot.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	respondJSON(w, status, body)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel)

	server, err := NewServer(cfg, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server,
	}

	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
	if server.db != nil {
		server.db.Close()
	}
}
