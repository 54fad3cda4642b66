package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gavin/internal/guide"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveFrame("0")
	m.ObserveFrame("0")
	m.ObserveFrame("1")
	m.ObserveSent("0", 1000)
	m.ClientConnected("0")
	m.ClientConnected("0")
	m.ClientDisconnected("0")
	m.ObserveStatus(guide.StatusConnected)

	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("0")); got != 2 {
		t.Errorf("frames_total{channel=0} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BytesSentTotal); got != 1000 {
		t.Errorf("bytes_sent_total = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(m.Clients.WithLabelValues("0")); got != 1 {
		t.Errorf("clients{channel=0} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DeviceConnected); got != 1 {
		t.Errorf("device_connected = %v, want 1", got)
	}

	m.ObserveStatus(guide.StatusDisconnected)
	if got := testutil.ToFloat64(m.DeviceConnected); got != 0 {
		t.Errorf("device_connected = %v, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveFrame("2")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `gavin_frames_total{channel="2"} 1`) {
		t.Errorf("metrics output missing frames counter:\n%s", body)
	}
}
