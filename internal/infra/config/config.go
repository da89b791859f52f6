package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Scores string `envconfig:"SCORE_QUEUE_KEY" default:"score_jobs"`
		// Драйвер очереди: rabbitmq или redis. Пустое значение выбирает
		// RabbitMQ при заданном RABBITMQ_URL, иначе Redis.
		Driver string `envconfig:"QUEUE_DRIVER"`
	} `envconfig:""`

	Limits struct {
		UploadMaxConversations int `envconfig:"UPLOAD_MAX_CONVERSATIONS" default:"100"`
		RankingBrands          int `envconfig:"RANKING_BRANDS_LIMIT" default:"10"`
		SourcesPage            int `envconfig:"SOURCES_PAGE_LIMIT" default:"50"`
	} `envconfig:""`

	Scoring struct {
		// Расписание ежедневного расчёта баллов в формате cron.
		DailyCron string `envconfig:"SCORE_DAILY_CRON" default:"0 2 * * *"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env, если он есть, подхватывается
// до чтения переменных.
func Load() AppConfig {
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
