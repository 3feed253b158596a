// internal/engine/metrics.go
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics exposes engine hot-path counters to Prometheus. Stats() remains
// the authoritative admin structure; these exist for scraping/alerting.
type metrics struct {
	eventsProcessed prometheus.Counter
	matchesFound    prometheus.Counter
	cacheHits       prometheus.Counter
	candidates      prometheus.Histogram
	profilesLoaded  prometheus.Gauge
	flushFailures   prometheus.CounterFunc
	droppedMatches  prometheus.CounterFunc
}

// newMetrics registers the engine's collectors. reg may be nil, in which
// case the default registerer is used.
func newMetrics(reg prometheus.Registerer, rec *recorder) *metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &metrics{
		eventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Name:      "events_processed_total",
			Help:      "Killmails run through the matching engine.",
		}),
		matchesFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Name:      "matches_total",
			Help:      "Profile matches produced.",
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "killwatch",
			Name:      "cache_hits_total",
			Help:      "Match calls answered from the fingerprint cache.",
		}),
		candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "killwatch",
			Name:      "candidates_per_event",
			Help:      "Candidate set size after index selection.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		profilesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "killwatch",
			Name:      "profiles_loaded",
			Help:      "Active profiles in the current generation.",
		}),
		flushFailures: factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "killwatch",
			Name:      "flush_failures_total",
			Help:      "Dropped match batches due to sink errors.",
		}, func() float64 { return float64(rec.FlushFailures()) }),
		droppedMatches: factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "killwatch",
			Name:      "dropped_matches_total",
			Help:      "Matches discarded because the recorder buffer was full.",
		}, func() float64 { return float64(rec.Dropped()) }),
	}
}
