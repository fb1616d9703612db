package middleware

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/huddle/pkg/protocol"
	"github.com/vango-dev/huddle/pkg/server"
	"github.com/vango-dev/huddle/pkg/session"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	return m.GetCounter().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func newCtx(req *protocol.Request) *server.RequestCtx {
	return server.NewRequestCtx(context.Background(), server.RequestInfo{
		Session: "S", SessionID: "01J0", Client: "alice", ConnID: "c1",
	}, req)
}

func TestPrometheusRecordsSuccessAndError(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()
	mw := Prometheus(WithRegistry(reg))

	send := newCtx(&protocol.Request{Op: protocol.OpSend, Target: "C", Value: []byte("hello")})
	if err := mw.Handle(send, func() error { return nil }); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	join := newCtx(&protocol.Request{Op: protocol.OpJoinChannel, Target: "nope"})
	err := mw.Handle(join, func() error {
		return &session.OpError{Op: "join channel", Resource: "nope", Err: session.ErrNoSuchChannel}
	})
	if err == nil {
		t.Fatal("Handle() swallowed the handler error")
	}

	m := globalMetrics
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("Send", "success")); got != 1 {
		t.Errorf("Send success = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.payloadBytes.WithLabelValues("Send")); got != 5 {
		t.Errorf("Send payload bytes = %v, want 5", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("JoinChannel", "error")); got != 1 {
		t.Errorf("JoinChannel error = %v, want 1", got)
	}
	code := protocol.ErrNoSuchChannel.String()
	if got := metricCounterValue(t, m.requestErrors.WithLabelValues("JoinChannel", code)); got != 1 {
		t.Errorf("JoinChannel %s = %v, want 1", code, got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("Send")); got != 1 {
		t.Errorf("Send duration samples = %d, want 1", got)
	}
}

func TestPrometheusSingleton(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	mw := Prometheus(WithRegistry(reg), WithNamespace("first"))
	mw.Handle(newCtx(&protocol.Request{Op: protocol.OpListClients}), func() error { return nil })
	first := globalMetrics
	// A second call must not re-register (which would panic) or replace
	// the collectors.
	Prometheus(WithRegistry(reg), WithNamespace("second"))
	if globalMetrics != first {
		t.Fatal("second Prometheus() call replaced the metrics")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families gathered")
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "first_") {
			t.Errorf("unexpected family %s", f.GetName())
		}
	}
}
