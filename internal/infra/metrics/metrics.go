package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ConversationsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conversations_ingested_total",
		Help: "Принятые диалоги по площадкам",
	}, []string{"platform"})
	ConversationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conversation_errors_total",
		Help: "Диалоги, отброшенные при обработке",
	})
	MentionsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "brand_mentions_extracted_total",
		Help: "Извлечённые упоминания брендов по типам",
	}, []string{"mention_type"})
	CitationsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "citations_extracted_total",
		Help: "Извлечённые цитирования по типам",
	}, []string{"citation_type"})

	ScoreBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "score_batch_seconds",
		Help:    "Время расчёта дневных баллов видимости",
		Buckets: prometheus.DefBuckets,
	})
	ScoreBatchBrands = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "score_batch_brands",
		Help:    "Количество брендов в одном расчёте баллов",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
	ScoreJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "score_jobs_total",
		Help: "Задания на расчёт баллов по источнику запуска",
	}, []string{"cause"})
	ScoreJobErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "score_job_errors_total",
		Help: "Задания на расчёт баллов, завершившиеся ошибкой",
	})

	WebsiteAnalysisSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "website_analysis_seconds",
		Help:    "Время анализа сайта",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 25, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ConversationsIngested,
		ConversationErrors,
		MentionsExtracted,
		CitationsExtracted,
		ScoreBatchSeconds,
		ScoreBatchBrands,
		ScoreJobsTotal,
		ScoreJobErrors,
		WebsiteAnalysisSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
