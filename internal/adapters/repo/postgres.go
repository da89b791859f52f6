package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"brand-radar/internal/domain"
	"brand-radar/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.BrandRepo        = (*Postgres)(nil)
	_ domain.ConversationRepo = (*Postgres)(nil)
	_ domain.MentionRepo      = (*Postgres)(nil)
	_ domain.ScoreRepo        = (*Postgres)(nil)
	_ domain.CitationRepo     = (*Postgres)(nil)
	_ domain.SourceRepo       = (*Postgres)(nil)
	_ domain.AnalysisRepo     = (*Postgres)(nil)
	_ domain.StatsRepo        = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RegisterBrand реализует domain.BrandRepo. Повторная регистрация бренда
// с тем же нормализованным именем обновляет карточку.
func (p *Postgres) RegisterBrand(ctx context.Context, brand domain.Brand) (domain.Brand, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO brands (name, normalized_name, category, description, website, aliases, is_competitor, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
ON CONFLICT (normalized_name) DO UPDATE SET
    name = EXCLUDED.name,
    category = EXCLUDED.category,
    description = EXCLUDED.description,
    website = EXCLUDED.website,
    aliases = EXCLUDED.aliases,
    is_competitor = EXCLUDED.is_competitor,
    is_active = EXCLUDED.is_active,
    updated_at = now()
RETURNING id, created_at, updated_at
`, brand.Name, brand.NormalizedName, brand.Category, brand.Description, brand.Website, brand.Aliases, brand.IsCompetitor, brand.IsActive)
	err := row.Scan(&brand.ID, &brand.CreatedAt, &brand.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "brands_upsert", "brands", start, err)
	if err != nil {
		return domain.Brand{}, err
	}
	return brand, nil
}

// ListBrands реализует domain.BrandRepo.
func (p *Postgres) ListBrands(ctx context.Context, onlyActive bool) ([]domain.Brand, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, normalized_name, category, description, website, aliases, is_competitor, is_active, created_at, updated_at
FROM brands
WHERE NOT $1 OR is_active
ORDER BY name
`, onlyActive)
	metrics.ObserveNetworkRequest("postgres", "brands_list", "brands", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []domain.Brand
	for rows.Next() {
		var b domain.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.NormalizedName, &b.Category, &b.Description, &b.Website, &b.Aliases, &b.IsCompetitor, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// BrandDisplayName реализует domain.BrandRepo. Для незарегистрированного
// бренда возвращается пустая строка без ошибки.
func (p *Postgres) BrandDisplayName(ctx context.Context, normalized string) (string, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var name string
	err := p.pool.QueryRow(ctx, `SELECT name FROM brands WHERE normalized_name = $1`, normalized).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "brands_display_name", "brands", start, nil)
		return "", nil
	}
	metrics.ObserveNetworkRequest("postgres", "brands_display_name", "brands", start, err)
	if err != nil {
		return "", err
	}
	return name, nil
}

// TrackingTotals реализует domain.StatsRepo.
func (p *Postgres) TrackingTotals(ctx context.Context) (int, int, int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var conversations, messages, mentions int
	err := p.pool.QueryRow(ctx, `
SELECT
    (SELECT count(*) FROM conversations),
    (SELECT count(*) FROM messages),
    (SELECT count(*) FROM brand_mentions)
`).Scan(&conversations, &messages, &mentions)
	metrics.ObserveNetworkRequest("postgres", "tracking_totals", "conversations", start, err)
	if err != nil {
		return 0, 0, 0, err
	}
	return conversations, messages, mentions, nil
}

// PlatformBreakdown реализует domain.StatsRepo.
func (p *Postgres) PlatformBreakdown(ctx context.Context) (map[domain.Platform]int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT platform, count(*)
FROM conversations
GROUP BY platform
`)
	metrics.ObserveNetworkRequest("postgres", "platform_breakdown", "conversations", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := make(map[domain.Platform]int)
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		breakdown[domain.Platform(platform)] = count
	}
	return breakdown, rows.Err()
}

// CaptureDateRange реализует domain.StatsRepo.
func (p *Postgres) CaptureDateRange(ctx context.Context) (*time.Time, *time.Time, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var earliest, latest sql.NullTime
	err := p.pool.QueryRow(ctx, `SELECT min(captured_at), max(captured_at) FROM conversations`).Scan(&earliest, &latest)
	metrics.ObserveNetworkRequest("postgres", "capture_date_range", "conversations", start, err)
	if err != nil {
		return nil, nil, err
	}
	var earliestPtr, latestPtr *time.Time
	if earliest.Valid {
		earliestPtr = &earliest.Time
	}
	if latest.Valid {
		latestPtr = &latest.Time
	}
	return earliestPtr, latestPtr, nil
}
