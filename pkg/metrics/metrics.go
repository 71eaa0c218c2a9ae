package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProfilesBootstrapped counts profiles created for new or reconciled users.
	ProfilesBootstrapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniauth_profiles_bootstrapped_total",
			Help: "Total number of user profiles created by the identity linking service",
		},
		[]string{"trigger"}, // create|reconcile
	)

	// VerifiedEmailsSeeded counts verified linked emails seeded from a new user's address.
	VerifiedEmailsSeeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniauth_verified_emails_seeded_total",
			Help: "Total number of verified linked emails seeded at user creation",
		},
	)

	// TemporaryUsersSwept counts temporary accounts removed by the retention sweep.
	TemporaryUsersSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uniauth_tmp_users_swept_total",
			Help: "Total number of temporary users deleted by the retention sweep",
		},
	)

	// SweepRuns records retention sweep executions by result (success|failure|skipped).
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uniauth_tmp_sweep_runs_total",
			Help: "Total number of temporary account retention sweeps",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uniauth_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
