package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var TotalRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Number of requests served by the health server.",
	},
	[]string{"path"},
)

var ProviderRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ddns_provider_requests_total",
		Help: "Number of public ip lookups per ip provider.",
	},
	[]string{"provider"},
)

var DNSAPIRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ddns_dns_api_requests_total",
		Help: "Number of calls to the dns provider api by operation and status code.",
	},
	[]string{"provider", "op", "code"},
)

var RecordUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ddns_record_updates_total",
		Help: "Number of A record updates attempted.",
	},
	[]string{"result"},
)

var ReconcileRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ddns_reconcile_runs_total",
		Help: "Number of reconciliation passes.",
	},
	[]string{"result"},
)

func InitMetrics() {
	prometheus.Register(TotalRequests)
	prometheus.Register(ProviderRequests)
	prometheus.Register(DNSAPIRequests)
	prometheus.Register(RecordUpdates)
	prometheus.Register(ReconcileRuns)
}

func IncrementProvider(provider string) {
	ProviderRequests.WithLabelValues(provider).Inc()
}

// ObserveAPICall counts one provider api call. A code of 0 means the call never got a response.
func ObserveAPICall(provider, op string, code int) {
	DNSAPIRequests.WithLabelValues(provider, op, strconv.Itoa(code)).Inc()
}

func IncrementUpdate(err error) {
	RecordUpdates.WithLabelValues(result(err)).Inc()
}

func IncrementRun(err error) {
	ReconcileRuns.WithLabelValues(result(err)).Inc()
}

func IncrementReqs(r *http.Request) {
	TotalRequests.WithLabelValues(r.URL.Path).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
