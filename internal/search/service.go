// Package search orchestrates a round-trip fare search: it expands a travel
// window into date pairs, fans lookups out to the fare provider with bounded
// concurrency, and ranks the collected quotes.
package search

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/weekendfare/weekendfare/internal/fare"
	"github.com/weekendfare/weekendfare/internal/scoring"
)

const instrumentationName = "github.com/weekendfare/weekendfare/internal/search"

// Defaults for the service configuration.
const (
	// DefaultConcurrency bounds concurrent provider lookups. Fare sources
	// rate-limit per client, so the fan-out stays small.
	DefaultConcurrency = 4

	// DefaultLookupTimeout is the per-date-pair lookup budget.
	DefaultLookupTimeout = 25 * time.Second

	// DefaultCacheTTL is how long per-pair quotes are reused across searches.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCleanupInterval is how often expired cache entries are removed.
	DefaultCleanupInterval = 5 * time.Minute
)

// Failure reasons attached to FailedPair entries.
const (
	ReasonTimeout      = "timeout"
	ReasonLookupFailed = "lookup_failed"
)

var airportCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)

// ServiceConfig holds configuration for the search service.
type ServiceConfig struct {
	// Provider is the external fare data source (required).
	Provider fare.Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Concurrency bounds concurrent lookups (default: 4).
	Concurrency int

	// LookupTimeout is the per-pair lookup budget (default: 25s).
	LookupTimeout time.Duration

	// MaxDatePairs caps window expansion (default: fare.DefaultMaxDatePairs).
	MaxDatePairs int

	// ResultLimit is the default ranked result size (default: scoring.DefaultResultLimit).
	ResultLimit int

	// Scoring is the default scoring configuration for searches that do not
	// override weights.
	Scoring scoring.Config

	// CacheTTL is how long per-pair quotes are cached (default: 5 minutes;
	// negative disables caching).
	CacheTTL time.Duration

	// CleanupInterval is how often expired cache entries are removed
	// (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service runs fare searches against a single provider.
type Service struct {
	provider        fare.Provider
	logger          zerolog.Logger
	concurrency     int
	lookupTimeout   time.Duration
	maxDatePairs    int
	resultLimit     int
	scoring         scoring.Config
	cacheTTL        time.Duration
	cleanupInterval time.Duration

	tracer  trace.Tracer
	metrics *serviceMetrics

	mu          sync.RWMutex
	cache       map[string]cachedLookup
	lastCleanup time.Time
}

type cachedLookup struct {
	quotes    []fare.Quote
	expiresAt time.Time
}

// NewService creates a new search service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	lookupTimeout := cfg.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}

	maxDatePairs := cfg.MaxDatePairs
	if maxDatePairs <= 0 {
		maxDatePairs = fare.DefaultMaxDatePairs
	}

	resultLimit := cfg.ResultLimit
	if resultLimit <= 0 {
		resultLimit = scoring.DefaultResultLimit
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = DefaultCacheTTL
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		concurrency:     concurrency,
		lookupTimeout:   lookupTimeout,
		maxDatePairs:    maxDatePairs,
		resultLimit:     resultLimit,
		scoring:         cfg.Scoring,
		cacheTTL:        cacheTTL,
		cleanupInterval: cleanupInterval,
		tracer:          otel.Tracer(instrumentationName),
		metrics:         newServiceMetrics(cfg.Logger),
		cache:           make(map[string]cachedLookup),
	}
}

// Request describes one search.
type Request struct {
	// Origin and Destination are IATA airport codes.
	Origin      string
	Destination string

	// Window bounds the candidate date pairs.
	Window fare.TravelWindow

	// Scoring optionally overrides the service's scoring configuration.
	Scoring *scoring.Config

	// Limit optionally overrides the ranked result size.
	Limit int
}

// FailedPair records a date pair whose lookup did not produce quotes.
type FailedPair struct {
	Pair    fare.DatePair `json:"pair"`
	Reason  string        `json:"reason"`
	Message string        `json:"message,omitempty"`
}

// Result is the outcome of one search. Partial failure is a normal outcome:
// Failures lists the date pairs that could not be checked.
type Result struct {
	Origin      string
	Destination string
	Window      fare.TravelWindow

	// Ranked is the final ranking, highest score first.
	Ranked []scoring.ScoredItinerary

	// Pareto is the price/time-at-destination frontier within Ranked.
	Pareto []scoring.ScoredItinerary

	Failures      []FailedPair
	PairsSearched int
	QuotesFound   int
	Duration      time.Duration
}

// Run executes a search. Fatal errors (invalid airports, invalid or oversized
// window) are returned before any lookup is dispatched. Per-pair lookup
// failures are collected into Result.Failures and never abort the search.
// Cancelling ctx stops dispatching new lookups, abandons in-flight ones and
// returns ctx's error.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := validateAirport(req.Origin, "origin"); err != nil {
		return nil, err
	}
	if err := validateAirport(req.Destination, "destination"); err != nil {
		return nil, err
	}

	pairs, err := fare.ExpandWindow(req.Window, s.maxDatePairs)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "search.Run",
		trace.WithAttributes(
			attribute.String("search.origin", req.Origin),
			attribute.String("search.destination", req.Destination),
			attribute.Int("search.date_pairs", len(pairs)),
		))
	defer span.End()

	start := time.Now()

	s.logger.Info().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Int("date_pairs", len(pairs)).
		Int("concurrency", s.concurrency).
		Msg("starting fare search")

	quotes, failures := s.fanOut(ctx, req.Origin, req.Destination, pairs)
	if ctx.Err() != nil {
		s.logger.Warn().
			Str("origin", req.Origin).
			Str("destination", req.Destination).
			Msg("fare search cancelled")
		return nil, ctx.Err()
	}

	cfg := s.scoring
	if req.Scoring != nil {
		cfg = *req.Scoring
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.resultLimit
	}

	scored := scoring.ScoreBatch(quotes, req.Window, cfg)
	ranked := scoring.Aggregate(scored, limit)

	result := &Result{
		Origin:        req.Origin,
		Destination:   req.Destination,
		Window:        req.Window,
		Ranked:        ranked,
		Pareto:        scoring.ParetoFrontier(ranked),
		Failures:      failures,
		PairsSearched: len(pairs),
		QuotesFound:   len(quotes),
		Duration:      time.Since(start),
	}

	s.metrics.recordSearch(ctx, result)
	span.SetAttributes(
		attribute.Int("search.quotes", len(quotes)),
		attribute.Int("search.failures", len(failures)),
	)

	s.logger.Info().
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Int("pairs_searched", result.PairsSearched).
		Int("quotes", result.QuotesFound).
		Int("ranked", len(result.Ranked)).
		Int("failures", len(result.Failures)).
		Dur("duration", result.Duration).
		Msg("fare search completed")

	return result, nil
}

// pairResult is the outcome of one date-pair lookup.
type pairResult struct {
	pair    fare.DatePair
	quotes  []fare.Quote
	failure *FailedPair
}

// fanOut dispatches lookups for all pairs through a bounded worker pool and
// collects quotes and failures. Each pair is attempted exactly once.
func (s *Service) fanOut(ctx context.Context, origin, destination string, pairs []fare.DatePair) ([]fare.Quote, []FailedPair) {
	pairsChan := make(chan fare.DatePair, len(pairs))
	resultsChan := make(chan pairResult, len(pairs))

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pair := range pairsChan {
				select {
				case <-ctx.Done():
					return
				default:
					resultsChan <- s.lookupPair(ctx, origin, destination, pair)
				}
			}
		}()
	}

	for _, p := range pairs {
		pairsChan <- p
	}
	close(pairsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var quotes []fare.Quote
	var failures []FailedPair
	for pr := range resultsChan {
		if pr.failure != nil {
			failures = append(failures, *pr.failure)
			continue
		}
		quotes = append(quotes, pr.quotes...)
	}
	return quotes, failures
}

// lookupPair looks up one date pair, consulting the quote cache first.
func (s *Service) lookupPair(ctx context.Context, origin, destination string, pair fare.DatePair) pairResult {
	cacheKey := origin + ":" + destination + ":" + pair.String()

	if s.cacheTTL > 0 {
		s.mu.RLock()
		cached, ok := s.cache[cacheKey]
		s.mu.RUnlock()
		if ok && time.Now().Before(cached.expiresAt) {
			s.metrics.recordLookup(ctx, "cache_hit")
			return pairResult{pair: pair, quotes: cached.quotes}
		}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	quotes, err := s.provider.Lookup(lookupCtx, origin, destination, pair)
	if err != nil {
		// Classify on the lookup context as well as the error chain, so a
		// provider that swallows the deadline error still reports a timeout.
		reason := ReasonLookupFailed
		if ctx.Err() == nil &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded)) {
			reason = ReasonTimeout
		}

		s.metrics.recordLookup(ctx, reason)
		s.logger.Warn().
			Err(err).
			Str("pair", pair.String()).
			Str("reason", reason).
			Str("provider", s.provider.Name()).
			Msg("fare lookup failed")

		return pairResult{pair: pair, failure: &FailedPair{
			Pair:    pair,
			Reason:  reason,
			Message: err.Error(),
		}}
	}

	if s.cacheTTL > 0 {
		s.mu.Lock()
		s.cache[cacheKey] = cachedLookup{quotes: quotes, expiresAt: time.Now().Add(s.cacheTTL)}
		s.cleanupLocked()
		s.mu.Unlock()
	}

	s.metrics.recordLookup(ctx, "ok")
	return pairResult{pair: pair, quotes: quotes}
}

// cleanupLocked removes expired cache entries. Caller holds s.mu.
func (s *Service) cleanupLocked() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}
	s.lastCleanup = now

	expired := 0
	for key, cached := range s.cache {
		if now.After(cached.expiresAt) {
			delete(s.cache, key)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug().Int("expired_entries", expired).Msg("cleaned up expired quote cache entries")
	}
}

// InvalidateCache clears all cached quotes.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]cachedLookup)
}

// ProviderName returns the name of the underlying fare provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func validateAirport(code, field string) error {
	if !airportCodeRegex.MatchString(code) {
		return &fare.Error{
			Provider: "search",
			Code:     "INVALID_" + field,
			Message:  "invalid " + field + " airport code",
			Err:      fare.ErrInvalidAirport,
		}
	}
	return nil
}

// serviceMetrics holds the OpenTelemetry instruments for the search service.
type serviceMetrics struct {
	lookups        metric.Int64Counter
	searchDuration metric.Float64Histogram
}

func newServiceMetrics(logger zerolog.Logger) *serviceMetrics {
	meter := otel.Meter(instrumentationName)

	lookups, err := meter.Int64Counter(
		"fare.lookup.total",
		metric.WithDescription("Total number of per-pair fare lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create lookup counter")
	}

	searchDuration, err := meter.Float64Histogram(
		"fare.search.duration",
		metric.WithDescription("Duration of complete fare searches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to create search duration histogram")
	}

	return &serviceMetrics{lookups: lookups, searchDuration: searchDuration}
}

func (m *serviceMetrics) recordLookup(ctx context.Context, outcome string) {
	if m.lookups == nil {
		return
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *serviceMetrics) recordSearch(ctx context.Context, r *Result) {
	if m.searchDuration == nil {
		return
	}
	m.searchDuration.Record(ctx, r.Duration.Seconds(), metric.WithAttributes(
		attribute.String("origin", r.Origin),
		attribute.String("destination", r.Destination),
	))
}
