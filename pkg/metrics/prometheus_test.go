package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gotest.tools/v3/assert"
)

func TestIncrementProvider(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequests.WithLabelValues("ipify"))
	IncrementProvider("ipify")
	assert.Equal(t, before+1, testutil.ToFloat64(ProviderRequests.WithLabelValues("ipify")))
}

func TestObserveAPICall(t *testing.T) {
	c := DNSAPIRequests.WithLabelValues("cloudflare", "list zones", "200")
	before := testutil.ToFloat64(c)
	ObserveAPICall("cloudflare", "list zones", 200)
	ObserveAPICall("cloudflare", "list zones", 200)
	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestIncrementUpdate_SplitsByResult(t *testing.T) {
	ok := testutil.ToFloat64(RecordUpdates.WithLabelValues("success"))
	failed := testutil.ToFloat64(RecordUpdates.WithLabelValues("error"))

	IncrementUpdate(nil)
	IncrementUpdate(errors.New("boom"))
	IncrementUpdate(errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(RecordUpdates.WithLabelValues("success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(RecordUpdates.WithLabelValues("error")))
}

func TestIncrementReqs(t *testing.T) {
	req := httptest.NewRequest("GET", "/health/alive", nil)
	before := testutil.ToFloat64(TotalRequests.WithLabelValues("/health/alive"))
	IncrementReqs(req)
	assert.Equal(t, before+1, testutil.ToFloat64(TotalRequests.WithLabelValues("/health/alive")))
}
