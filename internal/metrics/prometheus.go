package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	processedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_processed_total",
		Help: "Frontier ids processed",
	})

	nodesResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_nodes_resolved_total",
		Help: "Nodes added to the node cache",
	})

	nodesDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_nodes_discovered_total",
		Help: "Ids queued for the next depth",
	})

	edgesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_edges_recorded_total",
		Help: "Follow edges stored",
	})

	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_api_requests_total",
		Help: "API calls made",
	})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_rate_limited_total",
		Help: "Fetches answered with a rate limit",
	})

	quarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_quarantined_total",
		Help: "Ids excluded after a permanent failure",
	})

	checkpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weaver_checkpoints_total",
		Help: "Checkpoints saved",
	})

	currentDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "weaver_current_depth",
		Help: "Depth being crawled",
	})

	frontierSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "weaver_frontier_size",
		Help: "Ids waiting in a frontier",
	}, []string{"frontier"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "weaver_fetch_duration_seconds",
		Help:    "API call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})
)

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("Metrics server shutdown: %v", err)
		}
	}()

	logrus.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
