package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_fetched_total",
		Help: "Total number of page bodies successfully fetched",
	})
	BytesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_bytes_fetched_total",
		Help: "Total bytes downloaded",
	})
	Truncated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_bodies_truncated_total",
		Help: "Page bodies cut at max_body_bytes",
	})
	PagesCrawled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_pages_crawled_total",
		Help: "Pages accepted and persisted",
	})
	FetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_fetch_failures_total",
		Help: "Failed head/body requests by outcome",
	}, []string{"stage", "outcome"})
	Rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_rejected_total",
		Help: "URLs skipped by policy, by reason",
	}, []string{"reason"})
	RobotsFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crawler_robots_fetches_total",
		Help: "robots.txt lookups by result",
	}, []string{"result"})
	FrontierPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crawler_frontier_pruned_total",
		Help: "Held URLs discarded by the relevance cutoff",
	})
	FrontierSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_frontier_size",
		Help: "URLs queued or held for a later wave",
	})
	CurrentWave = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_current_wave",
		Help: "Wave of the URL being crawled",
	})
	Discovered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "crawler_discovered_urls",
		Help: "Distinct canonical URLs discovered so far",
	})
)

func init() {
	prometheus.MustRegister(
		PagesFetched, BytesFetched, Truncated, PagesCrawled,
		FetchFailures, Rejected, RobotsFetches,
		FrontierPruned, FrontierSize, CurrentWave, Discovered,
	)
}
