package service

import (
	"context"
	"testing"

	"github.com/sifan077/LinkPulse/internal/app/cache"
	"github.com/sifan077/LinkPulse/internal/app/idgen"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"github.com/sifan077/LinkPulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_ClickFlowsIntoDashboard(t *testing.T) {
	pg := testutil.StartPostgres(t)
	ctx := context.Background()

	linkRepo := repository.NewLinkRepository(pg.Gorm)
	store := NewLinkStore(LinkStoreDeps{
		Repo:            linkRepo,
		Cache:           cache.New(),
		IDs:             idgen.New(),
		AdminPermission: "admin",
	})
	recorder := NewClickRecorder(ClickRecorderDeps{Repo: repository.NewClickEventRepository(pg.Gorm)})
	agg := NewAggregator(AggregatorDeps{Repo: repository.NewAnalyticsRepository(pg.Pool)})

	link, err := store.Create(ctx, CreateLinkInput{Slug: "abc", URL: "https://example.com", Owner: "alice"})
	require.NoError(t, err)
	assert.Len(t, link.ID, 64)

	resolved, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	recorder.Record(ctx, resolved.ID, "hashed", "Chrome", model.DirectReferrer)

	stats := agg.Dashboard(ctx, model.OwnerScope("alice"), DashboardOptions{TrendDays: 7, TopLimit: 5, ReferrerLimit: 5})
	require.False(t, stats.Degraded)

	assert.Equal(t, model.Totals{Links: 1, Clicks: 1, LinksToday: 1, ClicksToday: 1, AvgClicksPerLink: 1}, stats.Totals)
	assert.Equal(t, int64(1), stats.WindowClicks)
	require.NotNil(t, stats.MostPopular)
	assert.Equal(t, "abc", stats.MostPopular.Slug)
	assert.Equal(t, []model.BrowserStat{{Browser: "Chrome", Clicks: 1, Percent: 100}}, stats.Browsers)
	assert.Equal(t, []model.ReferrerStat{{Referrer: model.DirectReferrer, Clicks: 1}}, stats.Referrers)
	require.Len(t, stats.Trend, 7)
	assert.Equal(t, int64(1), stats.Trend[6].Clicks)

	bob := agg.Dashboard(ctx, model.OwnerScope("bob"), DashboardOptions{TrendDays: 7, TopLimit: 5, ReferrerLimit: 5})
	assert.Equal(t, model.Totals{}, bob.Totals)
	assert.Nil(t, bob.MostPopular)
	assert.Len(t, bob.Trend, 7)

	require.NoError(t, store.Delete(ctx, link.ID))

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	after := agg.Totals(ctx, model.GlobalScope())
	require.False(t, after.Degraded)
	assert.Equal(t, int64(0), after.Value.Clicks, "clicks go with their link")
}
