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
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"brand-radar/internal/adapters/authority"
	"brand-radar/internal/adapters/extractor"
	"brand-radar/internal/adapters/repo"
	"brand-radar/internal/adapters/sentiment"
	"brand-radar/internal/domain"
	"brand-radar/internal/infra/config"
	"brand-radar/internal/infra/db"
	httpinfra "brand-radar/internal/infra/http"
	"brand-radar/internal/infra/metrics"
	"brand-radar/internal/infra/queue"
	citationsusecase "brand-radar/internal/usecase/citations"
	"brand-radar/internal/usecase/scoring"
	"brand-radar/internal/usecase/tracking"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	classifier := authority.New()
	mentionExtractor := extractor.NewMentions()
	citationExtractor := extractor.NewCitations(classifier)
	sentimentAnalyzer := sentiment.NewLexicon()

	scoreQueue, err := queue.NewScoreQueue(cfg.Queues.Driver, cfg.RabbitURL, cfg.RedisAddr, cfg.Queues.Scores)
	if err != nil {
		log.Fatal().Err(err).Msg("api: не удалось инициализировать очередь расчётов")
	}
	defer scoreQueue.Close()

	trackingService := tracking.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, repoAdapter, repoAdapter, mentionExtractor, citationExtractor, classifier, sentimentAnalyzer, scoreQueue)
	trend := scoring.NewTrend(repoAdapter)
	ranking := scoring.NewRanking(repoAdapter, repoAdapter, repoAdapter, trend)
	citationsService := citationsusecase.NewService(citationExtractor, classifier, repoAdapter, repoAdapter, repoAdapter, extractor.DomainFromURL)

	server := httpinfra.NewServer(log.With().Str("component", "api").Logger())
	r := server.Router

	r.Route("/api/v1/tracking", func(r chi.Router) {
		r.Post("/upload", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			var body uploadRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if len(body.Conversations) == 0 {
				writeError(w, http.StatusBadRequest, "conversations are required")
				return
			}
			if len(body.Conversations) > cfg.Limits.UploadMaxConversations {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d conversations per batch", cfg.Limits.UploadMaxConversations))
				return
			}
			result, err := trackingService.UploadConversations(req.Context(), body.Conversations)
			if err != nil {
				log.Error().Err(err).Msg("api: загрузка диалогов")
				writeError(w, http.StatusInternalServerError, "failed to process conversations")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/visibility", func(w http.ResponseWriter, req *http.Request) {
			brand := strings.TrimSpace(req.URL.Query().Get("brand"))
			if brand == "" {
				writeError(w, http.StatusBadRequest, "brand is required")
				return
			}
			days := queryInt(req, "days", 30)
			var platform domain.Platform
			if raw := req.URL.Query().Get("platform"); raw != "" {
				platform = domain.ParsePlatform(raw)
			}
			end := time.Now().UTC()
			result, err := trackingService.GetVisibility(req.Context(), domain.VisibilityQuery{
				Brand:    brand,
				Start:    end.AddDate(0, 0, -days),
				End:      end,
				Platform: platform,
			})
			if err != nil {
				log.Error().Err(err).Str("brand", brand).Msg("api: видимость бренда")
				writeError(w, http.StatusInternalServerError, "failed to load visibility")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/ranking", func(w http.ResponseWriter, req *http.Request) {
			brand := strings.TrimSpace(req.URL.Query().Get("brand"))
			if brand == "" {
				writeError(w, http.StatusBadRequest, "brand is required")
				return
			}
			days := queryInt(req, "days", 30)
			limit := queryInt(req, "limit", cfg.Limits.RankingBrands)
			var competitors []string
			if raw := req.URL.Query().Get("competitors"); raw != "" {
				competitors = strings.Split(raw, ",")
			}
			end := time.Now().UTC()
			result, err := ranking.Build(req.Context(), domain.RankingQuery{
				Brand:       brand,
				Competitors: competitors,
				Start:       end.AddDate(0, 0, -days),
				End:         end,
				Limit:       limit,
			})
			if err != nil {
				log.Error().Err(err).Str("brand", brand).Msg("api: рейтинг бренда")
				writeError(w, http.StatusInternalServerError, "failed to build ranking")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/leaderboard", func(w http.ResponseWriter, req *http.Request) {
			days := queryInt(req, "days", 30)
			limit := queryInt(req, "limit", cfg.Limits.RankingBrands)
			end := time.Now().UTC()
			items, err := ranking.Leaderboard(req.Context(), end.AddDate(0, 0, -days), end, limit)
			if err != nil {
				log.Error().Err(err).Msg("api: сводный рейтинг")
				writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
				return
			}
			writeJSON(w, items)
		})

		r.Post("/brands", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			var body brandRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			brand, err := trackingService.RegisterBrand(req.Context(), domain.Brand{
				Name:         body.Name,
				Category:     body.Category,
				Description:  body.Description,
				Website:      body.Website,
				Aliases:      body.Aliases,
				IsCompetitor: body.IsCompetitor,
			})
			if err != nil {
				if errors.Is(err, tracking.ErrBrandNameRequired) {
					writeError(w, http.StatusBadRequest, "name is required")
					return
				}
				log.Error().Err(err).Msg("api: регистрация бренда")
				writeError(w, http.StatusInternalServerError, "failed to register brand")
				return
			}
			writeJSON(w, brand)
		})

		r.Get("/brands", func(w http.ResponseWriter, req *http.Request) {
			onlyActive := req.URL.Query().Get("all") == ""
			brands, err := trackingService.ListBrands(req.Context(), onlyActive)
			if err != nil {
				log.Error().Err(err).Msg("api: список брендов")
				writeError(w, http.StatusInternalServerError, "failed to list brands")
				return
			}
			if brands == nil {
				brands = []domain.Brand{}
			}
			writeJSON(w, brands)
		})

		r.Post("/calculate-scores", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			var body calculateScoresRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			date := time.Now().UTC()
			if body.Date != "" {
				parsed, err := time.Parse("2006-01-02", body.Date)
				if err != nil {
					writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
					return
				}
				date = parsed
			}
			var platform domain.Platform
			if body.Platform != "" {
				platform = domain.ParsePlatform(body.Platform)
			}
			job, err := trackingService.RequestScoreCalculation(req.Context(), date, platform, domain.ScoreCauseManual)
			if err != nil {
				log.Error().Err(err).Msg("api: постановка расчёта баллов")
				writeError(w, http.StatusInternalServerError, "failed to enqueue calculation")
				return
			}
			writeJSON(w, map[string]any{
				"status": "queued",
				"job":    job,
			})
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			stats, err := trackingService.Stats(req.Context())
			if err != nil {
				log.Error().Err(err).Msg("api: статистика отслеживания")
				writeError(w, http.StatusInternalServerError, "failed to load stats")
				return
			}
			writeJSON(w, stats)
		})
	})

	r.Route("/api/v1/citations", func(r chi.Router) {
		r.Post("/extract", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			var body extractRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			result, err := citationsService.ExtractFromText(req.Context(), body.Text, body.ConversationID)
			if err != nil {
				if errors.Is(err, citationsusecase.ErrEmptyText) {
					writeError(w, http.StatusBadRequest, "text is required")
					return
				}
				log.Error().Err(err).Msg("api: извлечение цитирований")
				writeError(w, http.StatusInternalServerError, "failed to extract citations")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/discover", func(w http.ResponseWriter, req *http.Request) {
			days := queryInt(req, "days", 30)
			limit := queryInt(req, "limit", cfg.Limits.SourcesPage)
			sourceType := domain.SourceType(req.URL.Query().Get("source_type"))
			result, err := citationsService.Discover(req.Context(), days, sourceType, limit)
			if err != nil {
				log.Error().Err(err).Msg("api: обзор источников")
				writeError(w, http.StatusInternalServerError, "failed to discover sources")
				return
			}
			writeJSON(w, result)
		})

		r.Post("/analyze-website", func(w http.ResponseWriter, req *http.Request) {
			defer req.Body.Close()
			var body analyzeWebsiteRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			result, err := citationsService.AnalyzeWebsite(req.Context(), body.URL, body.Force)
			if err != nil {
				if errors.Is(err, citationsusecase.ErrBadWebsiteURL) {
					writeError(w, http.StatusBadRequest, "url must contain a valid domain")
					return
				}
				log.Error().Err(err).Str("url", body.URL).Msg("api: анализ сайта")
				writeError(w, http.StatusInternalServerError, "failed to analyze website")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/analysis/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "id must be an integer")
				return
			}
			result, err := citationsService.Analysis(req.Context(), id)
			if err != nil {
				if errors.Is(err, citationsusecase.ErrAnalysisNotFound) {
					writeError(w, http.StatusNotFound, "analysis not found")
					return
				}
				log.Error().Err(err).Int64("id", id).Msg("api: чтение анализа")
				writeError(w, http.StatusInternalServerError, "failed to load analysis")
				return
			}
			writeJSON(w, result)
		})

		r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
			stats, err := citationsService.Stats(req.Context())
			if err != nil {
				log.Error().Err(err).Msg("api: статистика цитирований")
				writeError(w, http.StatusInternalServerError, "failed to load stats")
				return
			}
			writeJSON(w, stats)
		})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		log.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	log.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type uploadRequest struct {
	Conversations []tracking.ConversationUpload `json:"conversations"`
}

type brandRequest struct {
	Name         string   `json:"name"`
	Category     string   `json:"category,omitempty"`
	Description  string   `json:"description,omitempty"`
	Website      string   `json:"website,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	IsCompetitor bool     `json:"is_competitor,omitempty"`
}

type calculateScoresRequest struct {
	Date     string `json:"date,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type extractRequest struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type analyzeWebsiteRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force,omitempty"`
}

func queryInt(req *http.Request, name string, fallback int) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
