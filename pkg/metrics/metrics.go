package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lease acquisition latency - histogram to track p50/p90/p99
	// covers the whole fan-out, quorum decision and fencing token
	// labels: status (granted/quorum_not_met/validity_expired/fencing_token_unavailable)
	AcquireDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorumlock_acquire_duration_seconds",
			Help:    "time taken by one acquisition attempt",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"status"},
	)

	// acquisition counter - counts grants vs failure reasons
	// use this to calculate success rate: granted / total
	AcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorumlock_acquire_total",
			Help: "total number of acquisition attempts",
		},
		[]string{"status"},
	)

	// acknowledgements per attempt - how close attempts come to quorum
	// a distribution sitting right at quorum means stores are flaky or contended
	AcquireAcknowledged = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quorumlock_acquire_acknowledged_stores",
			Help:    "number of stores that accepted the set in one attempt",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)

	// release counter - complete vs incomplete
	// incomplete releases heal on ttl expiry but a steady rate means a store is down
	ReleaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorumlock_release_total",
			Help: "total number of releases",
		},
		[]string{"status"},
	)

	// fencing tokens issued, failures make acquisitions fail
	FencingTokenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorumlock_fencing_token_total",
			Help: "total number of fencing token requests",
		},
		[]string{"status"},
	)

	// per store call latency
	// labels: store, op (set/delete/get)
	StoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorumlock_store_call_duration_seconds",
			Help:    "time taken by one call to a lock store",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"store", "op"},
	)

	// per store call results
	// labels: store, op, status (ok/rejected/timeout/error)
	// timeouts and errors on one store point at that store, not at contention
	StoreCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorumlock_store_call_total",
			Help: "total number of calls to lock stores",
		},
		[]string{"store", "op", "status"},
	)

	// keys removed by the expiry sweep on a store node
	KeysExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quorumlock_keys_expired_total",
			Help: "total number of keys removed after ttl expiry",
		},
	)

	// raft leader status - 1 if this node is leader, 0 if follower
	// exactly one node in a replicated store should have this = 1
	RaftIsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quorumlock_raft_is_leader",
			Help: "whether this node is the raft leader (1 = leader, 0 = follower)",
		},
	)

	// service uptime - always 1 when running
	// scrape failure = 0 in prometheus (service down)
	Up = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quorumlock_up",
			Help: "whether the service is up (always 1 when running)",
		},
	)
)

func init() {
	// set uptime gauge to 1 on startup
	Up.Set(1)
}
