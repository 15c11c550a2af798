package model

// Scope narrows an aggregation. The zero value covers every link.
type Scope struct {
	Owner  string
	LinkID string
}

// GlobalScope covers all links of all owners.
func GlobalScope() Scope { return Scope{} }

// OwnerScope covers the links created by owner.
func OwnerScope(owner string) Scope { return Scope{Owner: owner} }

// LinkScope covers a single link.
func LinkScope(linkID string) Scope { return Scope{LinkID: linkID} }

// Totals is the headline block of a dashboard.
type Totals struct {
	Links            int64 `json:"links"`
	Clicks           int64 `json:"clicks"`
	LinksToday       int64 `json:"links_today"`
	ClicksToday      int64 `json:"clicks_today"`
	AvgClicksPerLink int64 `json:"avg_clicks_per_link"`
}

// LinkClicks is a link together with its click count.
type LinkClicks struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	URL    string `json:"url"`
	Owner  string `json:"owner"`
	Clicks int64  `json:"clicks"`
}

type ReferrerStat struct {
	Referrer string `json:"referrer"`
	Clicks   int64  `json:"clicks"`
}

// BrowserStat is one browser bucket. Percent is rounded per bucket, so the
// buckets of a scope need not add up to exactly 100.
type BrowserStat struct {
	Browser string `json:"browser"`
	Clicks  int64  `json:"clicks"`
	Percent int    `json:"percent"`
}

// TrendPoint is the click count of one UTC calendar day.
type TrendPoint struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// DashboardStats bundles every rollup shown for a scope.
type DashboardStats struct {
	Totals       Totals         `json:"totals"`
	// WindowClicks counts clicks over the same trailing days as Trend.
	WindowClicks int64          `json:"window_clicks"`
	MostPopular  *LinkClicks    `json:"most_popular,omitempty"`
	TopLinks     []LinkClicks   `json:"top_links"`
	Referrers    []ReferrerStat `json:"referrers"`
	Browsers     []BrowserStat  `json:"browsers"`
	Trend        []TrendPoint   `json:"trend"`
	Degraded     bool           `json:"degraded"`
}
