package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Callbacks.WithLabelValues("duplicate"))
	Callbacks.WithLabelValues("duplicate").Inc()
	if got := testutil.ToFloat64(Callbacks.WithLabelValues("duplicate")); got != before+1 {
		t.Errorf("callbacks = %v, want %v", got, before+1)
	}
}
