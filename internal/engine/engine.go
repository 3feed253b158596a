// internal/engine/engine.go

// Package engine implements the killmail surveillance matching engine: a
// coordinator owning compiled-profile generations, inverted indexes, the
// match cache, and the asynchronous match recorder.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solatis/killwatch/internal/filter"
	"github.com/solatis/killwatch/internal/index"
	"github.com/solatis/killwatch/internal/types"
)

/*
 * Coordinator.
 *
 * Match requests arrive concurrently, one per killmail. The current
 * (compiled profiles, indexes) generation is published through an atomic
 * pointer: Match loads a snapshot once and evaluates against it lock-free,
 * so the CPU-bound predicate work happens entirely outside any critical
 * section. Reload builds the next generation fully off to the side and
 * swaps the single pointer; in-flight matches never observe a mix of old
 * and new profile sets. Concurrent reloads serialize on a mutex.
 *
 * Failure policy is fail-safe, not fail-loud: per-candidate evaluation
 * errors degrade single results to "no match", an expired overall deadline
 * degrades the whole call to an empty set, and a reload that cannot reach
 * the profile store leaves the previous generation active.
 */

// ProfileSource is the external profile-store collaborator.
type ProfileSource interface {
	// ActiveProfiles returns every active profile definition.
	ActiveProfiles(ctx context.Context) ([]types.Profile, error)
}

// Config controls engine behavior. Zero values take defaults.
type Config struct {
	// FallbackCap bounds the candidate set on the full-scan fallback
	// path; truncation is frequency-prioritized.
	FallbackCap int

	// SequentialThreshold is the candidate count at or below which
	// evaluation stays on the calling goroutine.
	SequentialThreshold int

	// Workers bounds parallel evaluation concurrency.
	Workers int

	// ProfileTimeout converts one slow candidate to "no match".
	ProfileTimeout time.Duration

	// MatchTimeout bounds the whole Match call; past it the call returns
	// an empty set rather than blocking.
	MatchTimeout time.Duration

	// CacheTTL bounds fingerprint cache entry lifetime.
	CacheTTL time.Duration

	// CacheDisabled turns the fingerprint cache off (results-neutral).
	CacheDisabled bool

	// FlushInterval is the recorder's flush period.
	FlushInterval time.Duration

	// FrequencyDecay is the per-flush multiplier of recent-match counters.
	FrequencyDecay float64

	// RecorderBuffer is the bounded pending-match channel capacity.
	RecorderBuffer int
}

// Defaults applied by New for zero Config fields.
const (
	DefaultFallbackCap         = 100
	DefaultSequentialThreshold = 10
	DefaultWorkers             = 4
	DefaultProfileTimeout      = 50 * time.Millisecond
	DefaultMatchTimeout        = time.Second
	DefaultCacheTTL            = 10 * time.Second
	DefaultFlushInterval       = 5 * time.Second
	DefaultFrequencyDecay      = 0.9
	DefaultRecorderBuffer      = 4096
)

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.FallbackCap == 0 {
		c.FallbackCap = DefaultFallbackCap
	}
	if c.SequentialThreshold == 0 {
		c.SequentialThreshold = DefaultSequentialThreshold
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.ProfileTimeout == 0 {
		c.ProfileTimeout = DefaultProfileTimeout
	}
	if c.MatchTimeout == 0 {
		c.MatchTimeout = DefaultMatchTimeout
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FrequencyDecay == 0 {
		c.FrequencyDecay = DefaultFrequencyDecay
	}
	if c.RecorderBuffer == 0 {
		c.RecorderBuffer = DefaultRecorderBuffer
	}
	return c
}

// generation is one immutable compiled snapshot of the profile set.
type generation struct {
	indexes  *index.Indexes
	seq      uint64
	loadedAt time.Time
}

// Engine is the coordinator. Safe for concurrent use.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	source  ProfileSource
	alerter Alerter

	gen     atomic.Pointer[generation]
	genSeq  atomic.Uint64
	cache   *matchCache
	rec     *recorder
	eval    *evaluator
	metrics *metrics

	reloadMu sync.Mutex

	eventsProcessed atomic.Int64
	matchesFound    atomic.Int64
	cacheHits       atomic.Int64
}

// Stats is the administrative snapshot returned by Engine.Stats.
type Stats struct {
	ProfilesLoaded  int         `json:"profiles_loaded"`
	ProfilesFailed  int         `json:"profiles_failed"`
	GenerationSeq   uint64      `json:"generation_seq"`
	LoadedAt        time.Time   `json:"loaded_at"`
	EventsProcessed int64       `json:"events_processed"`
	MatchesFound    int64       `json:"matches_found"`
	CacheHits       int64       `json:"cache_hits"`
	CacheSize       int         `json:"cache_size"`
	PendingMatches  int         `json:"pending_matches"`
	FlushedMatches  int64       `json:"flushed_matches"`
	FlushFailures   int64       `json:"flush_failures"`
	DroppedMatches  int64       `json:"dropped_matches"`
	Index           index.Stats `json:"index"`
}

// New creates an engine. The source and sink collaborators are required;
// alerter may be nil (matches are then logged), as may reg.
func New(cfg Config, source ProfileSource, sink MatchSink, alerter Alerter, logger *slog.Logger, reg prometheus.Registerer) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = &LogAlerter{Logger: logger}
	}
	cfg = cfg.withDefaults()

	rec := newRecorder(sink, logger, cfg.RecorderBuffer, cfg.FlushInterval, cfg.FrequencyDecay)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		alerter: alerter,
		cache:   newMatchCache(cfg.CacheTTL, !cfg.CacheDisabled),
		rec:     rec,
		eval: &evaluator{
			sequentialThreshold: cfg.SequentialThreshold,
			workers:             cfg.Workers,
			profileTimeout:      cfg.ProfileTimeout,
		},
	}
	e.metrics = newMetrics(reg, rec)
	return e, nil
}

// Start loads the initial generation and launches the recorder and cache
// janitor. An unreachable profile store at startup is logged, not fatal:
// the engine serves empty results until a reload succeeds.
func (e *Engine) Start(ctx context.Context) {
	if err := e.Reload(ctx); err != nil {
		e.logger.Error("initial profile load failed", "error", err)
	}

	go e.rec.Run(ctx)
	go e.cacheJanitor(ctx)
}

// Shutdown blocks until the recorder has completed its final flush after
// the Start context was cancelled, or until ctx expires. Matches still
// buffered at cancellation are only durable once Shutdown returns nil.
func (e *Engine) Shutdown(ctx context.Context) error {
	select {
	case <-e.rec.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cacheJanitor purges expired cache entries on the TTL period.
func (e *Engine) cacheJanitor(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CacheTTL)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			e.cache.Purge(now)
		case <-ctx.Done():
			return
		}
	}
}

// Match returns the ids of every active profile whose filter matches the
// event. The result is an unordered set. Never returns an error: failures
// degrade to an empty set.
func (e *Engine) Match(ctx context.Context, ev *types.Event) []types.ProfileID {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.MatchTimeout)
	defer cancel()

	e.eventsProcessed.Add(1)
	e.metrics.eventsProcessed.Inc()

	gen := e.gen.Load()
	if gen == nil {
		e.logger.Debug("match before first generation load", "killmail_id", ev.KillmailID)
		return nil
	}

	now := time.Now()
	fp := Fingerprint(ev)
	if ids, ok := e.cache.Lookup(fp, now); ok {
		e.cacheHits.Add(1)
		e.metrics.cacheHits.Inc()
		return ids
	}

	candidates := gen.indexes.Select(ev, e.cfg.FallbackCap, e.rec.Score)
	e.metrics.candidates.Observe(float64(len(candidates)))

	matched := e.eval.Evaluate(ctx, candidates, ev)
	if ctx.Err() != nil {
		// Overall deadline passed: fail-safe empty result, nothing cached.
		e.logger.Warn("match timed out", "killmail_id", ev.KillmailID,
			"candidates", len(candidates))
		return []types.ProfileID{}
	}

	e.cache.Store(fp, matched, now)
	e.record(ctx, matched, ev)
	return matched
}

// record queues match records and alerts for every matched profile.
func (e *Engine) record(ctx context.Context, matched []types.ProfileID, ev *types.Event) {
	if len(matched) == 0 {
		return
	}
	e.matchesFound.Add(int64(len(matched)))
	e.metrics.matchesFound.Add(float64(len(matched)))

	now := time.Now().UTC()
	summary := types.SummaryOf(ev)
	for _, id := range matched {
		e.rec.Append(types.Match{
			ProfileID:  id,
			KillmailID: ev.KillmailID,
			KillTime:   ev.KillTime,
			Summary:    summary,
			TotalValue: ev.TotalValue,
			MatchedAt:  now,
		})
		e.alerter.Notify(ctx, id, ev)
	}
}

// Reload rebuilds the generation from the profile store and atomically
// swaps it in. On failure the previous generation stays active.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	profiles, err := e.source.ActiveProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	compiled := make([]filter.CompiledProfile, 0, len(profiles))
	failed := 0
	for _, p := range profiles {
		cp, cerr := filter.CompileProfile(p)
		if cerr != nil {
			// Fail-closed per profile, fail-open for the engine.
			failed++
			e.logger.Warn("profile failed to compile, excluded from matching",
				"profile_id", string(p.ProfileID), "error", cerr.Reason)
		}
		compiled = append(compiled, cp)
	}

	next := &generation{
		indexes:  index.Build(compiled),
		seq:      e.genSeq.Add(1),
		loadedAt: time.Now().UTC(),
	}
	e.gen.Store(next)
	e.cache.Clear()
	e.metrics.profilesLoaded.Set(float64(len(profiles) - failed))

	stats := next.indexes.Stats()
	e.logger.Info("profile generation loaded",
		"generation", next.seq,
		"profiles", len(profiles),
		"failed", failed,
		"unindexed", stats.Unindexed,
		"tag_keys", stats.TagKeys,
		"system_keys", stats.SystemKeys,
		"ship_type_keys", stats.ShipTypeKeys,
		"value_thresholds", stats.ValueThresholds,
	)
	return nil
}

// Stats returns the administrative snapshot.
func (e *Engine) Stats() Stats {
	s := Stats{
		EventsProcessed: e.eventsProcessed.Load(),
		MatchesFound:    e.matchesFound.Load(),
		CacheHits:       e.cacheHits.Load(),
		CacheSize:       e.cache.Size(),
		PendingMatches:  e.rec.PendingSize(),
		FlushedMatches:  e.rec.Flushed(),
		FlushFailures:   e.rec.FlushFailures(),
		DroppedMatches:  e.rec.Dropped(),
	}
	if gen := e.gen.Load(); gen != nil {
		s.Index = gen.indexes.Stats()
		s.ProfilesLoaded = s.Index.Profiles - s.Index.Failed
		s.ProfilesFailed = s.Index.Failed
		s.GenerationSeq = gen.seq
		s.LoadedAt = gen.loadedAt
	}
	return s
}
