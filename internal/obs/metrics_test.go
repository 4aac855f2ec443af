package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRateLookupsCounter(t *testing.T) {
	before := testutil.ToFloat64(RateLookups.WithLabelValues(LookupManual))
	RateLookups.WithLabelValues(LookupManual).Inc()
	if got := testutil.ToFloat64(RateLookups.WithLabelValues(LookupManual)); got != before+1 {
		t.Fatalf("RateLookups(manual) = %v, want %v", got, before+1)
	}
}
