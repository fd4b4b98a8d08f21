package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Deployment metrics
	DeploymentsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_deployments_active",
			Help: "Number of live deployments in the deployment tree",
		},
	)

	VerticlesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_verticles_active",
			Help: "Number of running verticle instances",
		},
	)

	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_deployments_total",
			Help: "Total number of deployment attempts by result",
		},
		[]string{"result"},
	)

	UndeploymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_undeployments_total",
			Help: "Total number of completed undeployments",
		},
	)

	DeployDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_deploy_duration_seconds",
			Help:    "Time taken to deploy a module or verticle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Module metrics
	ModuleInstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_module_installs_total",
			Help: "Total number of module install attempts by result",
		},
		[]string{"result"},
	)

	ModuleResolutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_module_resolution_duration_seconds",
			Help:    "Time taken to resolve a module dependency graph in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JarCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_jar_collisions_total",
			Help: "Total number of duplicate jar basenames seen during resolution",
		},
	)

	// Timer metrics
	TimeoutsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_timeouts_scheduled_total",
			Help: "Total number of timeouts scheduled on the wheel",
		},
	)

	TimeoutsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_timeouts_fired_total",
			Help: "Total number of timeouts that expired and were dispatched",
		},
	)

	TimeoutsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_timeouts_cancelled_total",
			Help: "Total number of timeouts cancelled before firing",
		},
	)

	// Redeployer metrics
	RedeploysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_redeploys_total",
			Help: "Total number of automatic redeploy cycles triggered",
		},
	)

	WatchedModules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_watched_modules",
			Help: "Number of module directories watched for changes",
		},
	)
)

func init() {
	// Register all metrics with Prometheus
	prometheus.MustRegister(
		DeploymentsActive,
		VerticlesActive,
		DeploymentsTotal,
		UndeploymentsTotal,
		DeployDuration,
		ModuleInstallsTotal,
		ModuleResolutionDuration,
		JarCollisionsTotal,
		TimeoutsScheduled,
		TimeoutsFired,
		TimeoutsCancelled,
		RedeploysTotal,
		WatchedModules,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
