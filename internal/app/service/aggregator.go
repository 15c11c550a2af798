package service

import (
	"context"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dayLayout           = "2006-01-02"
	defaultQueryTimeout = 5 * time.Second
)

// Outcome is the result of an analytics read. When the backing store fails,
// Value holds the empty fallback, Degraded is set and Cause explains why.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Cause    error
}

// AnalyticsMetrics counts degraded reads.
type AnalyticsMetrics interface {
	QueryDegraded(query string)
}

type nopAnalyticsMetrics struct{}

func (nopAnalyticsMetrics) QueryDegraded(string) {}

// AggregatorDeps groups the collaborators of the aggregator.
type AggregatorDeps struct {
	Repo         repository.AnalyticsRepository
	Logger       *zap.Logger
	Metrics      AnalyticsMetrics
	QueryTimeout time.Duration
	// Now is the clock used for "today" and trailing windows. Defaults to time.Now.
	Now func() time.Time
}

// Aggregator computes read-only rollups over clicks and links. Calendar
// days are UTC days.
type Aggregator struct {
	repo    repository.AnalyticsRepository
	log     *zap.Logger
	metrics AnalyticsMetrics
	timeout time.Duration
	now     func() time.Time
}

// NewAggregator returns an Aggregator reading through deps.Repo.
func NewAggregator(deps AggregatorDeps) *Aggregator {
	a := &Aggregator{
		repo:    deps.Repo,
		log:     deps.Logger,
		metrics: deps.Metrics,
		timeout: deps.QueryTimeout,
		now:     deps.Now,
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.metrics == nil {
		a.metrics = nopAnalyticsMetrics{}
	}
	if a.timeout <= 0 {
		a.timeout = defaultQueryTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

func (a *Aggregator) startOfToday() time.Time {
	now := a.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// windowStart is midnight of the first day of a window of days calendar
// days ending today.
func (a *Aggregator) windowStart(days int) time.Time {
	return a.startOfToday().AddDate(0, 0, -(days - 1))
}

func (a *Aggregator) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func degrade[T any](a *Aggregator, query string, scope model.Scope, fallback T, err error) Outcome[T] {
	a.metrics.QueryDegraded(query)
	a.log.Warn("analytics query degraded",
		zap.String("query", query),
		zap.String("owner", scope.Owner),
		zap.String("link_id", scope.LinkID),
		zap.Error(err),
	)
	return Outcome[T]{
		Value:    fallback,
		Degraded: true,
		Cause:    newError(KindStorageUnavailable, query, err),
	}
}

// Totals counts links and clicks overall and for today.
func (a *Aggregator) Totals(ctx context.Context, scope model.Scope) Outcome[model.Totals] {
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	today := a.startOfToday()
	var t model.Totals
	var err error

	if t.Links, err = a.repo.CountLinks(ctx, scope, time.Time{}); err != nil {
		return degrade(a, "totals", scope, model.Totals{}, err)
	}
	if t.Clicks, err = a.repo.CountClicks(ctx, scope, time.Time{}); err != nil {
		return degrade(a, "totals", scope, model.Totals{}, err)
	}
	if t.LinksToday, err = a.repo.CountLinks(ctx, scope, today); err != nil {
		return degrade(a, "totals", scope, model.Totals{}, err)
	}
	if t.ClicksToday, err = a.repo.CountClicks(ctx, scope, today); err != nil {
		return degrade(a, "totals", scope, model.Totals{}, err)
	}
	t.AvgClicksPerLink = roundDiv(t.Clicks, t.Links)

	return Outcome[model.Totals]{Value: t}
}

// ClicksInWindow counts clicks over the trailing days calendar days,
// today included. A non-positive window counts nothing.
func (a *Aggregator) ClicksInWindow(ctx context.Context, scope model.Scope, days int) Outcome[int64] {
	if days <= 0 {
		return Outcome[int64]{}
	}
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	n, err := a.repo.CountClicks(ctx, scope, a.windowStart(days))
	if err != nil {
		return degrade(a, "clicks_in_window", scope, int64(0), err)
	}
	return Outcome[int64]{Value: n}
}

// MostPopularLink returns the link with the most clicks, ties broken by the
// lowest link id. The value is nil when the scope has no links.
func (a *Aggregator) MostPopularLink(ctx context.Context, scope model.Scope) Outcome[*model.LinkClicks] {
	top := a.topLinks(ctx, "most_popular_link", scope, 1)
	if top.Degraded || len(top.Value) == 0 {
		return Outcome[*model.LinkClicks]{Degraded: top.Degraded, Cause: top.Cause}
	}
	best := top.Value[0]
	return Outcome[*model.LinkClicks]{Value: &best}
}

// TopLinks returns up to limit links ordered by clicks descending, then by
// link id. Links without clicks are included.
func (a *Aggregator) TopLinks(ctx context.Context, scope model.Scope, limit int) Outcome[[]model.LinkClicks] {
	return a.topLinks(ctx, "top_links", scope, limit)
}

func (a *Aggregator) topLinks(ctx context.Context, query string, scope model.Scope, limit int) Outcome[[]model.LinkClicks] {
	if limit <= 0 {
		return Outcome[[]model.LinkClicks]{Value: []model.LinkClicks{}}
	}
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	links, err := a.repo.TopLinks(ctx, scope, limit)
	if err != nil {
		return degrade(a, query, scope, []model.LinkClicks{}, err)
	}
	return Outcome[[]model.LinkClicks]{Value: links}
}

// ReferrerStats groups clicks by referrer origin, Direct being its own bucket.
func (a *Aggregator) ReferrerStats(ctx context.Context, scope model.Scope, limit int) Outcome[[]model.ReferrerStat] {
	if limit <= 0 {
		return Outcome[[]model.ReferrerStat]{Value: []model.ReferrerStat{}}
	}
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	stats, err := a.repo.ReferrerCounts(ctx, scope, limit)
	if err != nil {
		return degrade(a, "referrer_stats", scope, []model.ReferrerStat{}, err)
	}
	return Outcome[[]model.ReferrerStat]{Value: stats}
}

// BrowserStats groups clicks by browser and annotates each bucket with its
// share of all clicks in scope, rounded half up to a whole percent.
func (a *Aggregator) BrowserStats(ctx context.Context, scope model.Scope) Outcome[[]model.BrowserStat] {
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	stats, err := a.repo.BrowserCounts(ctx, scope)
	if err != nil {
		return degrade(a, "browser_stats", scope, []model.BrowserStat{}, err)
	}

	var total int64
	for _, s := range stats {
		total += s.Clicks
	}
	for i := range stats {
		stats[i].Percent = int(roundDiv(stats[i].Clicks*100, total))
	}
	return Outcome[[]model.BrowserStat]{Value: stats}
}

// DailyTrend returns exactly days points, oldest first and ending today,
// with zero for days without clicks.
func (a *Aggregator) DailyTrend(ctx context.Context, scope model.Scope, days int) Outcome[[]model.TrendPoint] {
	if days <= 0 {
		return Outcome[[]model.TrendPoint]{Value: []model.TrendPoint{}}
	}
	ctx, cancel := a.queryContext(ctx)
	defer cancel()

	start := a.windowStart(days)
	counts, err := a.repo.DailyClicks(ctx, scope, start)
	if err != nil {
		return degrade(a, "daily_trend", scope, trendSeries(start, days, nil), err)
	}
	return Outcome[[]model.TrendPoint]{Value: trendSeries(start, days, counts)}
}

func trendSeries(start time.Time, days int, counts map[string]int64) []model.TrendPoint {
	points := make([]model.TrendPoint, days)
	for i := range points {
		day := start.AddDate(0, 0, i).Format(dayLayout)
		points[i] = model.TrendPoint{Date: day, Clicks: counts[day]}
	}
	return points
}

// DashboardOptions sizes the lists and the trend window of a dashboard.
type DashboardOptions struct {
	TrendDays     int
	TopLimit      int
	ReferrerLimit int
}

// Dashboard runs every rollup for scope concurrently. Each part degrades on
// its own; Degraded is set when any of them did.
func (a *Aggregator) Dashboard(ctx context.Context, scope model.Scope, opts DashboardOptions) model.DashboardStats {
	var (
		totals   Outcome[model.Totals]
		window   Outcome[int64]
		popular  Outcome[*model.LinkClicks]
		top      Outcome[[]model.LinkClicks]
		refs     Outcome[[]model.ReferrerStat]
		browsers Outcome[[]model.BrowserStat]
		trend    Outcome[[]model.TrendPoint]
	)

	var g errgroup.Group
	g.Go(func() error { totals = a.Totals(ctx, scope); return nil })
	g.Go(func() error { window = a.ClicksInWindow(ctx, scope, opts.TrendDays); return nil })
	g.Go(func() error { popular = a.MostPopularLink(ctx, scope); return nil })
	g.Go(func() error { top = a.TopLinks(ctx, scope, opts.TopLimit); return nil })
	g.Go(func() error { refs = a.ReferrerStats(ctx, scope, opts.ReferrerLimit); return nil })
	g.Go(func() error { browsers = a.BrowserStats(ctx, scope); return nil })
	g.Go(func() error { trend = a.DailyTrend(ctx, scope, opts.TrendDays); return nil })
	_ = g.Wait()

	return model.DashboardStats{
		Totals:       totals.Value,
		WindowClicks: window.Value,
		MostPopular:  popular.Value,
		TopLinks:     top.Value,
		Referrers:    refs.Value,
		Browsers:     browsers.Value,
		Trend:        trend.Value,
		Degraded: totals.Degraded || window.Degraded || popular.Degraded || top.Degraded ||
			refs.Degraded || browsers.Degraded || trend.Degraded,
	}
}

// roundDiv divides and rounds half up. Division by zero yields zero.
func roundDiv(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}
