package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)

	SetBuildInfo("1.2.3")
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("1.2.3")); v != 1 {
		t.Fatalf("build info: %v", v)
	}

	before := testutil.ToFloat64(dispatchTotal.WithLabelValues("other", "error"))
	RecordDispatch("resources/list", false)
	if v := testutil.ToFloat64(dispatchTotal.WithLabelValues("other", "error")); v != before+1 {
		t.Fatalf("dispatch other: %v", v)
	}

	beforeCall := testutil.ToFloat64(dispatchTotal.WithLabelValues("tools/call", "ok"))
	RecordDispatch("tools/call", true)
	if v := testutil.ToFloat64(dispatchTotal.WithLabelValues("tools/call", "ok")); v != beforeCall+1 {
		t.Fatalf("dispatch tools/call: %v", v)
	}

	beforeDropped := testutil.ToFloat64(bridgeDeliveries.WithLabelValues("dropped"))
	RecordPublish(2, 1)
	if v := testutil.ToFloat64(bridgeDeliveries.WithLabelValues("dropped")); v != beforeDropped+1 {
		t.Fatalf("dropped deliveries: %v", v)
	}

	active := testutil.ToFloat64(streamActive)
	SessionOpened()
	SessionClosed("closed_timeout")
	if v := testutil.ToFloat64(streamActive); v != active {
		t.Fatalf("active sessions: %v", v)
	}

	SetRegisteredClients(4)
	if v := testutil.ToFloat64(registeredClients); v != 4 {
		t.Fatalf("registered clients: %v", v)
	}
}
