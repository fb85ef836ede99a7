// nl2sql-server exposes the pipeline over HTTP.
//
//	POST /query   {"question": "...", "clarified_values": {...}}
//	GET  /healthz
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nl2sql/internal/pipeline"
)

type queryRequest struct {
	Question        string         `json:"question"`
	ClarifiedValues map[string]any `json:"clarified_values,omitempty"`
}

type server struct {
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

func main() {
	configPath := flag.String("config", "", "config YAML path (optional)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := pipeline.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	p, err := pipeline.Assemble(cfg, nil, nil, log)
	if err != nil {
		log.Fatal("assemble pipeline", zap.Error(err))
	}

	s := &server{pipeline: p, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout + 10*time.Second))

	r.Post("/query", s.handleQuery)
	r.Get("/healthz", s.handleHealthz)

	log.Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		httpError(w, http.StatusBadRequest, "question is required")
		return
	}

	result := s.pipeline.Run(r.Context(), req.Question, req.ClarifiedValues)

	w.Header().Set("Content-Type", "application/json")
	if !result.Success {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
