// Package metrics holds the Prometheus instruments shared by the tenancy
// packages. Collectors register with the default registry, so serving
// promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DirectoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_directory_lookups_total",
			Help: "Tenant existence checks by cache result (hit, miss).",
		}, []string{"result"})

	LoaderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_loader_calls_total",
			Help: "External tenant loader invocations by outcome (found, absent, error).",
		}, []string{"outcome"})

	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_requests_total",
			Help: "Requests seen by the tenant interceptor by outcome.",
		}, []string{"outcome"})

	OpenEngines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenancy_open_engines",
			Help: "Database engines currently cached by session routers.",
		})

	Migrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenancy_migrations_total",
			Help: "Per-tenant migration runs by outcome (ok, failed).",
		}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		DirectoryLookups,
		LoaderCalls,
		Requests,
		OpenEngines,
		Migrations,
	)
}
