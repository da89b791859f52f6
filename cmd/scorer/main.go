package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"brand-radar/internal/adapters/repo"
	"brand-radar/internal/infra/config"
	"brand-radar/internal/infra/db"
	applog "brand-radar/internal/infra/log"
	"brand-radar/internal/infra/metrics"
	"brand-radar/internal/infra/queue"
	"brand-radar/internal/usecase/scoring"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scorer: нет подключения к БД")
	}
	defer pool.Close()

	repoAdapter := repo.NewPostgres(pool)
	calculator := scoring.NewCalculator(repoAdapter, repoAdapter, repoAdapter, repoAdapter)

	scoreQueue, err := queue.NewScoreQueue(cfg.Queues.Driver, cfg.RabbitURL, cfg.RedisAddr, cfg.Queues.Scores)
	if err != nil {
		logger.Fatal().Err(err).Msg("scorer: не удалось инициализировать очередь расчётов")
	}
	defer scoreQueue.Close()

	logger.Info().Str("queue", cfg.Queues.Scores).Msg("scorer: старт")
	for {
		job, ack, err := scoreQueue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("scorer: остановка")
				return
			}
			logger.Error().Err(err).Msg("scorer: ошибка чтения очереди")
			continue
		}

		saved, err := calculator.CalculateDailyScores(ctx, job.Date, job.Platform)
		if err != nil {
			metrics.ScoreJobErrors.Inc()
			logger.Error().Err(err).Str("job", job.ID).Time("date", job.Date).Msg("scorer: расчёт не удался")
			if ackErr := ack(false); ackErr != nil {
				logger.Error().Err(ackErr).Str("job", job.ID).Msg("scorer: не удалось вернуть задачу")
			}
			continue
		}

		if err := ack(true); err != nil {
			logger.Error().Err(err).Str("job", job.ID).Msg("scorer: не удалось подтвердить задачу")
		}
		logger.Info().
			Str("job", job.ID).
			Time("date", job.Date).
			Str("cause", string(job.Cause)).
			Int("brands", len(saved)).
			Msg("scorer: баллы рассчитаны")
	}
}
