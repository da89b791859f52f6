package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/cache"
	"brand-radar/internal/infra/config"
	"brand-radar/internal/infra/metrics"
	"brand-radar/internal/infra/queue"
)

func main() {
	cfg := config.Load()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scoreQueue, err := queue.NewScoreQueue(cfg.Queues.Driver, cfg.RabbitURL, cfg.RedisAddr, cfg.Queues.Scores)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler: не удалось инициализировать очередь расчётов")
	}
	defer scoreQueue.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	onceCache := cache.NewRedis(redisClient)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Scoring.DailyCron, func() {
		// Расчёт за вчерашний день: его данные уже полные.
		date := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
		if err := enqueueDailyJob(ctx, onceCache, scoreQueue, date); err != nil {
			log.Error().Err(err).Time("date", date).Msg("scheduler: не удалось поставить расчёт")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("cron", cfg.Scoring.DailyCron).Msg("scheduler: некорректное расписание")
	}

	metrics.StartServer(ctx, log.With().Str("component", "metrics").Logger(), ":9090")

	scheduler.Start()
	log.Info().Str("cron", cfg.Scoring.DailyCron).Msg("scheduler: старт")

	<-ctx.Done()
	log.Info().Msg("scheduler: остановка")
	<-scheduler.Stop().Done()
}

// enqueueDailyJob ставит расчёт за date в очередь. Две реплики планировщика
// не должны ставить один день дважды, поэтому постановка и счётчик выполняются
// только у реплики, занявшей ключ дня.
func enqueueDailyJob(ctx context.Context, once domain.Cache, q domain.ScoreQueue, date time.Time) error {
	key := fmt.Sprintf("score_jobs:daily:%s", date.Format("2006-01-02"))
	return once.Once(key, 48*time.Hour, func() error {
		job := domain.ScoreJob{
			Date:        date,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.ScoreCauseScheduled,
		}
		enqueueCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := q.Enqueue(enqueueCtx, job); err != nil {
			return err
		}
		metrics.ScoreJobsTotal.WithLabelValues(string(domain.ScoreCauseScheduled)).Inc()
		log.Info().Time("date", date).Msg("scheduler: расчёт поставлен в очередь")
		return nil
	})
}
