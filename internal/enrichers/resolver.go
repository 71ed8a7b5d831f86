package enrichers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"emojidb/internal/common/errors"
	"emojidb/internal/common/logging"
	"emojidb/internal/gateway"
	"emojidb/internal/models"
	"emojidb/internal/slug"
)

// Source names where a resolution found its detail data
type Source string

const (
	SourceCache     Source = "cache"
	SourceEmbedded  Source = "embedded"
	SourceDataRoute Source = "data_route"
	SourceQuery     Source = "query"
	SourceNone      Source = "none"
)

// Detail URL modes
const (
	DetailURLSlug  = "slug"
	DetailURLGlyph = "glyph"
)

// Backoff types
const (
	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

const (
	queryOperation = "emojiV1"
	queryLanguage  = "EN"
	queryClient    = "emojipedia.org"
	queryHash      = "bd776365e1829219baf2002a1be10f332c05434d"
)

// emojiQuery asks the query API for the same object the detail page embeds
const emojiQuery = `query emojiV1($slug: Slug!, $lang: Language) {
  emoji_v1(slug: $slug, lang: $lang) {
    id
    title
    code
    slug
    currentCldrName
    codepointsHex
    description
    modifiers
    appleName
    alsoKnownAs
    shortcodes {
      code
      source
    }
    vendorsAndPlatforms {
      slug
      title
      items {
        title
        image {
          source
        }
      }
    }
  }
}`

// RetryConfig for the primary detail path
type RetryConfig struct {
	Attempts    int           `json:"attempts" yaml:"attempts"`
	Delay       time.Duration `json:"delay" yaml:"delay"`
	BackoffType string        `json:"backoff_type" yaml:"backoff_type"` // fixed, exponential, linear
}

// Config configures a Resolver
type Config struct {
	SiteURL          string
	Retry            RetryConfig
	DetailURLMode    string
	ScrapeShortcodes bool
	UserAgent        string
}

// DefaultConfig returns the resolver settings of a normal run
func DefaultConfig() Config {
	return Config{
		SiteURL: "https://emojipedia.org",
		Retry: RetryConfig{
			Attempts:    5,
			Delay:       3 * time.Second,
			BackoffType: BackoffFixed,
		},
		DetailURLMode:    DetailURLSlug,
		ScrapeShortcodes: true,
		UserAgent:        gateway.DefaultUserAgent,
	}
}

// Result describes one resolution
type Result struct {
	Record   models.Record
	Source   Source
	Attempts int
	// Err is the reason the record was left unchanged, if it was
	Err error
}

// Enriched reports whether detail data was applied
func (r Result) Enriched() bool {
	return r.Source != SourceNone
}

// Resolver turns base records into enriched records.
//
// For each record it consults the cache, then the detail page with a bounded
// retry, then the query API as a fallback. Resolution never fails the caller:
// when no source yields data the record is returned as it came in.
type Resolver struct {
	config  Config
	gateway gateway.Gateway
	cache   CacheInterface
	logger  logging.Logger

	mu      sync.RWMutex
	buildID string
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(config Config, gw gateway.Gateway, cache CacheInterface, logger logging.Logger) (*Resolver, error) {
	if gw == nil {
		return nil, errors.ConfigError("gateway is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	defaults := DefaultConfig()
	if config.SiteURL == "" {
		config.SiteURL = defaults.SiteURL
	}
	config.SiteURL = strings.TrimRight(config.SiteURL, "/")
	if _, err := url.Parse(config.SiteURL); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid site URL %q", config.SiteURL))
	}
	if config.Retry.Attempts <= 0 {
		config.Retry.Attempts = defaults.Retry.Attempts
	}
	if config.Retry.Delay < 0 {
		config.Retry.Delay = 0
	}
	if config.Retry.BackoffType == "" {
		config.Retry.BackoffType = BackoffFixed
	}
	if config.DetailURLMode == "" {
		config.DetailURLMode = DetailURLSlug
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	return &Resolver{
		config:  config,
		gateway: gw,
		cache:   cache,
		logger:  logger,
	}, nil
}

// SetBuildID records the site build token used for data route lookups
func (r *Resolver) SetBuildID(buildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buildID = buildID
}

// BuildID returns the current build token
func (r *Resolver) BuildID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buildID
}

// Resolve returns the enriched record, or rec unchanged if nothing was found
func (r *Resolver) Resolve(ctx context.Context, rec models.Record) models.Record {
	return r.ResolveDetailed(ctx, rec).Record
}

// ResolveDetailed resolves rec and reports where the data came from
func (r *Resolver) ResolveDetailed(ctx context.Context, rec models.Record) Result {
	key := slug.TitleToSlug(rec.Title)
	segment := r.detailSegment(rec, key)
	logger := r.logger.WithContext(ctx).WithFields(
		logging.String("slug", key),
		logging.String("title", rec.Title),
	)

	if segment == "" {
		logger.Debug("Record has no title or glyph to look up, keeping base record")
		return Result{Record: rec, Source: SourceNone, Err: errors.ValidationError("record has no detail page identifier")}
	}

	// Entries are keyed by the page that was fetched, so two records share
	// one only when they would have fetched the same page
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, segment); ok {
			logger.Debug("Detail data served from cache", logging.String("cache_key", segment))
			return Result{Record: Apply(rec, data), Source: SourceCache}
		}
	}

	detailURL := r.config.SiteURL + "/" + segment + "/"
	var page *gateway.Page
	attempts := 0

	for attempt := 1; attempt <= r.config.Retry.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, r.calculateRetryDelay(attempt-1)); err != nil {
				return Result{Record: rec, Source: SourceNone, Attempts: attempts, Err: err}
			}
		}
		attempts = attempt

		fetched, err := r.gateway.FetchEmbedded(ctx, detailURL)
		if fetched != nil {
			page = fetched
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{Record: rec, Source: SourceNone, Attempts: attempts, Err: ctxErr}
			}
			if !errors.IsTransient(err) {
				logger.Warn("Detail page unavailable, keeping base record",
					logging.String("url", detailURL),
					logging.Err(err),
				)
				return Result{Record: rec, Source: SourceNone, Attempts: attempts, Err: err}
			}
			logger.Warn("Detail page has no embedded data",
				logging.Int("attempt", attempt),
				logging.Err(err),
			)
			continue
		}

		if data, source, ok := r.primary(ctx, fetched, logger); ok {
			return r.finish(ctx, rec, segment, data, page, source, attempts, logger)
		}

		logger.Warn("Detail data missing from page",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", r.config.Retry.Attempts),
		)
	}

	if err := ctx.Err(); err != nil {
		return Result{Record: rec, Source: SourceNone, Attempts: attempts, Err: err}
	}

	logger.Info("Falling back to query API", logging.Int("attempts", attempts))
	data, err := r.query(ctx, key, detailURL)
	if err != nil {
		logger.Warn("Query fallback failed, keeping base record", logging.Err(err))
		return Result{Record: rec, Source: SourceNone, Attempts: attempts, Err: err}
	}

	return r.finish(ctx, rec, segment, data, page, SourceQuery, attempts, logger)
}

// primary looks for detail data in the embedded page payload, then in the
// data route when a build token and route slug are known. Any failure of the
// data route counts as absent data.
func (r *Resolver) primary(ctx context.Context, page *gateway.Page, logger logging.Logger) (EmojiData, Source, bool) {
	if data, ok := fromDehydratedState(embeddedPageProps(page.NextData)); ok && data.Validate() == nil {
		return data, SourceEmbedded, true
	}

	buildID := r.BuildID()
	next, err := gateway.ParseNextData(page.NextData)
	if err != nil || buildID == "" {
		return EmojiData{}, SourceNone, false
	}
	routeSlug := next.QueryParam("emoji")
	if routeSlug == "" {
		return EmojiData{}, SourceNone, false
	}

	var route struct {
		PageProps json.RawMessage `json:"pageProps"`
	}
	routeURL := r.dataRouteURL(buildID, routeSlug)
	if err := r.gateway.FetchJSON(ctx, routeURL, &route); err != nil {
		logger.Debug("Data route lookup failed",
			logging.String("url", routeURL),
			logging.Err(err),
		)
		return EmojiData{}, SourceNone, false
	}

	if data, ok := fromDehydratedState(route.PageProps); ok && data.Validate() == nil {
		return data, SourceDataRoute, true
	}
	return EmojiData{}, SourceNone, false
}

// query asks the query API for the emoji
func (r *Resolver) query(ctx context.Context, key, detailURL string) (EmojiData, error) {
	req := gateway.QueryRequest{
		Query: emojiQuery,
		Variables: map[string]interface{}{
			"slug": key,
			"lang": queryLanguage,
		},
		OperationName: queryOperation,
	}

	var body json.RawMessage
	if err := r.gateway.Query(ctx, r.config.SiteURL+"/api/graphql", req, r.queryHeaders(detailURL), &body); err != nil {
		return EmojiData{}, err
	}

	data, ok := fromQueryResponse(body)
	if !ok {
		return EmojiData{}, errors.NotFoundError("query response data.emoji_v1")
	}
	if err := data.Validate(); err != nil {
		return EmojiData{}, err
	}
	return data, nil
}

func (r *Resolver) finish(ctx context.Context, rec models.Record, cacheKey string, data EmojiData, page *gateway.Page, source Source, attempts int, logger logging.Logger) Result {
	if len(data.Shortcodes) == 0 && r.config.ScrapeShortcodes && page != nil {
		data.Shortcodes = gateway.ScrapeShortcodes(page.HTML)
	}

	if r.cache != nil {
		r.cache.Set(ctx, cacheKey, data)
	}

	logger.Debug("Detail data applied",
		logging.String("source", string(source)),
		logging.Int("attempts", attempts),
	)
	return Result{Record: Apply(rec, data), Source: source, Attempts: attempts}
}

// detailSegment is the path segment of the record's detail page. It is also
// the record's cache key.
func (r *Resolver) detailSegment(rec models.Record, key string) string {
	if r.config.DetailURLMode == DetailURLGlyph && rec.Glyph != "" {
		return url.PathEscape(rec.Glyph)
	}
	return key
}

func (r *Resolver) dataRouteURL(buildID, routeSlug string) string {
	return fmt.Sprintf("%s/_next/data/%s/en/%s.json", r.config.SiteURL, url.PathEscape(buildID), url.PathEscape(routeSlug))
}

// queryHeaders returns the headers a browser on the detail page would send
func (r *Resolver) queryHeaders(referer string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Content-Type", "application/json")
	h.Set("Origin", r.origin())
	h.Set("Referer", referer)
	h.Set("Sec-Ch-Ua", `"Chromium";v="134", "Not:A-Brand";v="24", "Google Chrome";v="134"`)
	h.Set("Sec-Ch-Ua-Mobile", "?0")
	h.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("User-Agent", r.config.UserAgent)
	h.Set("X-Client", queryClient)
	h.Set("X-Query-Hash", queryHash)
	return h
}

func (r *Resolver) origin() string {
	u, err := url.Parse(r.config.SiteURL)
	if err != nil || u.Host == "" {
		return r.config.SiteURL
	}
	return u.Scheme + "://" + u.Host
}

// calculateRetryDelay calculates the delay before the next attempt
func (r *Resolver) calculateRetryDelay(attempt int) time.Duration {
	baseDelay := r.config.Retry.Delay

	switch r.config.Retry.BackoffType {
	case BackoffExponential:
		return baseDelay * time.Duration(1<<uint(attempt-1))
	case BackoffLinear:
		return baseDelay * time.Duration(attempt)
	default: // fixed
		return baseDelay
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
