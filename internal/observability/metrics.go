package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the paper retrieval service,
// organized by subsystem: upstream searches, artifact downloads, and the
// persistent index.
type Metrics struct {
	// SearchRequests counts search requests issued to the upstream catalog,
	// including retried attempts.
	SearchRequests prometheus.Counter

	// SearchRetries counts retry attempts triggered by rate-limit responses.
	SearchRetries prometheus.Counter

	// SearchFailures counts searches that ended in a terminal upstream error.
	SearchFailures prometheus.Counter

	// SearchDuration observes end-to-end search duration in seconds,
	// including backoff sleeps.
	SearchDuration prometheus.Histogram

	// PapersRetrieved counts papers returned by completed retrieval runs.
	PapersRetrieved prometheus.Counter

	// ArtifactDownloads counts artifacts downloaded successfully.
	ArtifactDownloads prometheus.Counter

	// ArtifactDownloadFailures counts per-item download failures. These are
	// absorbed, so the counter is the only aggregate failure signal.
	ArtifactDownloadFailures prometheus.Counter

	// IndexEntriesAdded counts entries newly merged into the index store.
	IndexEntriesAdded prometheus.Counter

	// IndexRecordsSkipped counts records skipped during merge, labeled by
	// reason ("duplicate" or "ineligible").
	IndexRecordsSkipped *prometheus.CounterVec

	// IndexQueries counts similarity queries against the index store.
	IndexQueries prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer
// under the given namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SearchRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total search requests issued to the upstream catalog, including retries.",
		}),
		SearchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_retries_total",
			Help:      "Total search retry attempts triggered by rate-limit responses.",
		}),
		SearchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_failures_total",
			Help:      "Total searches that ended in a terminal upstream error.",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds, including backoff sleeps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		PapersRetrieved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Total papers returned by completed retrieval runs.",
		}),
		ArtifactDownloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_downloads_total",
			Help:      "Total artifacts downloaded successfully.",
		}),
		ArtifactDownloadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_download_failures_total",
			Help:      "Total per-item artifact download failures.",
		}),
		IndexEntriesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_entries_added_total",
			Help:      "Total entries newly merged into the index store.",
		}),
		IndexRecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_records_skipped_total",
			Help:      "Total records skipped during merge, by reason.",
		}, []string{"reason"}),
		IndexQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_queries_total",
			Help:      "Total similarity queries against the index store.",
		}),
	}
}
