package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus instruments on a private
// registry, keeping default Go runtime collectors out of the scrape.
type Collector struct {
	reg *prometheus.Registry

	UploadsProcessed prometheus.Counter
	UploadFailures   prometheus.Counter
	RoutesParsed     prometheus.Counter
	DeliveriesParsed prometheus.Counter

	GeocodeCalls     *prometheus.CounterVec // pass label: address|locationName
	GeocodeFailures  prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheSize        prometheus.Gauge
	GeocodeDuration  prometheus.Histogram
	OptimizationRuns *prometheus.CounterVec // outcome label: ok|error
}

// NewCollector creates and registers the service metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		UploadsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_uploads_processed_total",
			Help: "Total report uploads parsed and geocoded successfully.",
		}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_upload_failures_total",
			Help: "Total report uploads rejected or failed during processing.",
		}),
		RoutesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_routes_parsed_total",
			Help: "Total routes extracted from uploaded reports.",
		}),
		DeliveriesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_deliveries_parsed_total",
			Help: "Total delivery stops extracted from uploaded reports.",
		}),
		GeocodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_geocode_calls_total",
			Help: "Geocoding provider calls by pass.",
		}, []string{"pass"}),
		GeocodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_geocode_failures_total",
			Help: "Deliveries left unresolved after both geocoding passes.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_geocode_cache_hits_total",
			Help: "Geocode lookups served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stoplist_geocode_cache_misses_total",
			Help: "Geocode lookups that required a provider call.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stoplist_geocode_cache_entries",
			Help: "Entries currently held in the geocode cache.",
		}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stoplist_geocode_batch_duration_seconds",
			Help:    "Duration of full two-pass geocoding batches.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		OptimizationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stoplist_optimization_runs_total",
			Help: "Route optimization runs by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.UploadsProcessed, c.UploadFailures,
		c.RoutesParsed, c.DeliveriesParsed,
		c.GeocodeCalls, c.GeocodeFailures,
		c.CacheHits, c.CacheMisses, c.CacheSize,
		c.GeocodeDuration, c.OptimizationRuns,
	)
	return c
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// RecordBatch updates the geocoding counters from a finished batch.
func (c *Collector) RecordBatch(failed, cacheHits, cacheMisses, cacheSize int) {
	c.GeocodeFailures.Add(float64(failed))
	c.CacheHits.Add(float64(cacheHits))
	c.CacheMisses.Add(float64(cacheMisses))
	c.CacheSize.Set(float64(cacheSize))
}
