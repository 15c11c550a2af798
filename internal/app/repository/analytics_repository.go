package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sifan077/LinkPulse/internal/app/model"
)

// Querier is the subset of pgxpool.Pool used by the analytics queries.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// AnalyticsRepository runs the read-only rollups over clicks joined with
// short_urls. Nothing here is cached; every call hits the database.
type AnalyticsRepository interface {
	// CountLinks counts links in scope created at or after since.
	// A zero since counts all links.
	CountLinks(ctx context.Context, scope model.Scope, since time.Time) (int64, error)
	// CountClicks counts clicks in scope recorded at or after since.
	// A zero since counts all clicks.
	CountClicks(ctx context.Context, scope model.Scope, since time.Time) (int64, error)
	TopLinks(ctx context.Context, scope model.Scope, limit int) ([]model.LinkClicks, error)
	ReferrerCounts(ctx context.Context, scope model.Scope, limit int) ([]model.ReferrerStat, error)
	// BrowserCounts leaves Percent unset.
	BrowserCounts(ctx context.Context, scope model.Scope) ([]model.BrowserStat, error)
	// DailyClicks returns click counts keyed by UTC calendar date (2006-01-02)
	// for clicks recorded at or after since. Days without clicks are absent.
	DailyClicks(ctx context.Context, scope model.Scope, since time.Time) (map[string]int64, error)
}

type analyticsRepository struct {
	db Querier
}

// NewAnalyticsRepository returns a pgx-backed AnalyticsRepository.
func NewAnalyticsRepository(db Querier) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

// scopeFilter expects the owner as $1 and the link id as $2, both against
// the short_urls alias s. Empty strings disable the corresponding filter.
const scopeFilter = `($1::text = '' OR s.owner = $1) AND ($2::text = '' OR s.id = $2)`

const (
	countLinksSQL = `
SELECT COUNT(*)
FROM short_urls s
WHERE ` + scopeFilter + `
  AND ($3::timestamptz IS NULL OR s.created_at >= $3)`

	countClicksSQL = `
SELECT COUNT(*)
FROM clicks c
JOIN short_urls s ON s.id = c.short_link_id
WHERE ` + scopeFilter + `
  AND ($3::timestamptz IS NULL OR c.created_at >= $3)`

	topLinksSQL = `
SELECT s.id, s.slug, s.url, s.owner, COUNT(c.id) AS clicks
FROM short_urls s
LEFT JOIN clicks c ON c.short_link_id = s.id
WHERE ` + scopeFilter + `
GROUP BY s.id, s.slug, s.url, s.owner
ORDER BY clicks DESC, s.id ASC
LIMIT $3`

	referrerCountsSQL = `
SELECT COALESCE(NULLIF(c.referrer, ''), 'Direct') AS referrer, COUNT(*) AS clicks
FROM clicks c
JOIN short_urls s ON s.id = c.short_link_id
WHERE ` + scopeFilter + `
GROUP BY 1
ORDER BY clicks DESC, referrer ASC
LIMIT $3`

	browserCountsSQL = `
SELECT COALESCE(NULLIF(c.browser, ''), 'unknown') AS browser, COUNT(*) AS clicks
FROM clicks c
JOIN short_urls s ON s.id = c.short_link_id
WHERE ` + scopeFilter + `
GROUP BY 1
ORDER BY clicks DESC, browser ASC`

	dailyClicksSQL = `
SELECT to_char(c.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS clicks
FROM clicks c
JOIN short_urls s ON s.id = c.short_link_id
WHERE ` + scopeFilter + `
  AND c.created_at >= $3
GROUP BY 1`
)

func sinceArg(since time.Time) any {
	if since.IsZero() {
		return nil
	}
	return since.UTC()
}

func (r *analyticsRepository) CountLinks(ctx context.Context, scope model.Scope, since time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, countLinksSQL, scope.Owner, scope.LinkID, sinceArg(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count links: %w", err)
	}
	return n, nil
}

func (r *analyticsRepository) CountClicks(ctx context.Context, scope model.Scope, since time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, countClicksSQL, scope.Owner, scope.LinkID, sinceArg(since)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

func (r *analyticsRepository) TopLinks(ctx context.Context, scope model.Scope, limit int) ([]model.LinkClicks, error) {
	rows, err := r.db.Query(ctx, topLinksSQL, scope.Owner, scope.LinkID, limit)
	if err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	defer rows.Close()

	result := make([]model.LinkClicks, 0, limit)
	for rows.Next() {
		var lc model.LinkClicks
		if err := rows.Scan(&lc.ID, &lc.Slug, &lc.URL, &lc.Owner, &lc.Clicks); err != nil {
			return nil, fmt.Errorf("top links: scan: %w", err)
		}
		result = append(result, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top links: %w", err)
	}
	return result, nil
}

func (r *analyticsRepository) ReferrerCounts(ctx context.Context, scope model.Scope, limit int) ([]model.ReferrerStat, error) {
	rows, err := r.db.Query(ctx, referrerCountsSQL, scope.Owner, scope.LinkID, limit)
	if err != nil {
		return nil, fmt.Errorf("referrer counts: %w", err)
	}
	defer rows.Close()

	result := make([]model.ReferrerStat, 0, limit)
	for rows.Next() {
		var rs model.ReferrerStat
		if err := rows.Scan(&rs.Referrer, &rs.Clicks); err != nil {
			return nil, fmt.Errorf("referrer counts: scan: %w", err)
		}
		result = append(result, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("referrer counts: %w", err)
	}
	return result, nil
}

func (r *analyticsRepository) BrowserCounts(ctx context.Context, scope model.Scope) ([]model.BrowserStat, error) {
	rows, err := r.db.Query(ctx, browserCountsSQL, scope.Owner, scope.LinkID)
	if err != nil {
		return nil, fmt.Errorf("browser counts: %w", err)
	}
	defer rows.Close()

	result := make([]model.BrowserStat, 0)
	for rows.Next() {
		var bs model.BrowserStat
		if err := rows.Scan(&bs.Browser, &bs.Clicks); err != nil {
			return nil, fmt.Errorf("browser counts: scan: %w", err)
		}
		result = append(result, bs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("browser counts: %w", err)
	}
	return result, nil
}

func (r *analyticsRepository) DailyClicks(ctx context.Context, scope model.Scope, since time.Time) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, dailyClicksSQL, scope.Owner, scope.LinkID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("daily clicks: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var (
			day    string
			clicks int64
		)
		if err := rows.Scan(&day, &clicks); err != nil {
			return nil, fmt.Errorf("daily clicks: scan: %w", err)
		}
		result[day] = clicks
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily clicks: %w", err)
	}
	return result, nil
}
