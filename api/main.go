package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmarkin/news-pulse/internal/analytics"
	"github.com/dmarkin/news-pulse/internal/config"
	"github.com/dmarkin/news-pulse/internal/logger"
	"github.com/dmarkin/news-pulse/internal/models"
	"github.com/dmarkin/news-pulse/internal/sentiment"
	"github.com/dmarkin/news-pulse/internal/store"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := store.NewElastic(cfg.ElasticsearchAddr, cfg.IndexPrefix, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	analyzer, err := buildAnalyzer(cfg.Analytics, log)
	if err != nil {
		log.Error("init sentiment analyzer", slog.Any("err", err))
		os.Exit(1)
	}

	pipeline, err := analytics.New(cfg.Analytics, esClient, esClient, esClient, analyzer, log)
	if err != nil {
		log.Error("init analytics pipeline", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{log: log, cfg: cfg, es: esClient, pipeline: pipeline}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/deduplicate", srv.handleDeduplicate)
	r.Get("/trending", srv.handleTrending)
	r.Get("/topics/{label}/timeline", srv.handleTopicTimeline)
	r.Get("/novelty/{id}", srv.handleNovelty)
	r.Get("/sentiment", srv.handleSentiment)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func buildAnalyzer(cfg config.Analytics, log *slog.Logger) (*sentiment.Analyzer, error) {
	lexicon := sentiment.NewLexicon()
	if cfg.SentimentLexiconPath != "" {
		loaded, err := sentiment.LoadLexicon(cfg.SentimentLexiconPath)
		if err != nil {
			return nil, err
		}
		lexicon = loaded
	}

	var primary sentiment.Classifier
	if cfg.SentimentDelegateURL != "" {
		primary = sentiment.NewDelegate(cfg.SentimentDelegateURL, cfg.SentimentDelegateTimeout)
	}

	return sentiment.NewAnalyzer(primary, lexicon, log), nil
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	es       *store.Elastic
	pipeline *analytics.Pipeline
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.es.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type deduplicateRequest struct {
	Start     string  `json:"start"`
	End       string  `json:"end"`
	Threshold float64 `json:"threshold"`
	Strategy  string  `json:"strategy"`
}

type deduplicateResponse struct {
	Clusters []models.DuplicateCluster `json:"clusters"`
	Count    int                       `json:"count"`
}

func (s *server) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req deduplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	strategy, ok := models.ParseMergeStrategy(req.Strategy)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown merge strategy"})
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "threshold must be in [0, 1]"})
		return
	}

	end := time.Now().UTC()
	if ts := parseTime(req.End); ts != nil {
		end = *ts
	}
	start := end.Add(-time.Duration(s.cfg.DedupBucketHours) * time.Hour)
	if ts := parseTime(req.Start); ts != nil {
		start = *ts
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "end must be after start"})
		return
	}

	clusters, err := s.pipeline.Deduplicate(ctx, start, end, req.Threshold, strategy)
	if err != nil {
		s.log.Error("deduplicate", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, deduplicateResponse{Clusters: clusters, Count: len(clusters)})
}

type trendingResponse struct {
	Topics []models.TopicRecord `json:"topics"`
	Count  int                  `json:"count"`
}

func (s *server) handleTrending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	windowDays := clampInt(r.URL.Query().Get("window_days"), 0, 365)
	limit := clampInt(r.URL.Query().Get("limit"), s.cfg.DefaultLimit, s.cfg.MaxLimit)
	minMentions := clampInt(r.URL.Query().Get("min_mentions"), 0, 100_000)

	topics, err := s.pipeline.Trending(ctx, windowDays, limit, minMentions)
	if err != nil {
		s.log.Error("trending", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, trendingResponse{Topics: topics, Count: len(topics)})
}

func (s *server) handleTopicTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	label := strings.TrimSpace(chi.URLParam(r, "label"))
	if label == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topic label required"})
		return
	}
	days := clampInt(r.URL.Query().Get("days"), 0, 365)

	timeline, err := s.pipeline.TopicTimeline(ctx, label, days)
	if err != nil {
		s.log.Error("topic timeline", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, timeline)
}

func (s *server) handleNovelty(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "article id required"})
		return
	}
	lookback := clampInt(r.URL.Query().Get("lookback_days"), 0, 365)

	score, err := s.pipeline.EvaluateNovelty(ctx, id, lookback)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
			return
		}
		s.log.Error("novelty", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, score)
}

func (s *server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	days := clampInt(r.URL.Query().Get("days"), 0, 365)

	summary, err := s.pipeline.SentimentTimeline(ctx, scope, days)
	if err != nil {
		s.log.Error("sentiment", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
