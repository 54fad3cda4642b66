// Package metrics はPrometheus形式のメトリクスを提供する
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gavin/internal/guide"
)

const namespace = "gavin"

// Metrics はアプリケーションのコレクターをまとめたもの
type Metrics struct {
	registry *prometheus.Registry

	FramesTotal     *prometheus.CounterVec
	FramesSentTotal *prometheus.CounterVec
	BytesSentTotal  prometheus.Counter
	Clients         *prometheus.GaugeVec
	DeviceConnected prometheus.Gauge
}

// New は専用のレジストリにコレクターを登録する
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames received from the camera per channel.",
		}, []string{"channel"}),
		FramesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "JPEG frames delivered to MJPEG clients per channel.",
		}, []string{"channel"}),
		BytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to MJPEG clients.",
		}),
		Clients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients",
			Help:      "Connected MJPEG clients per channel.",
		}, []string{"channel"}),
		DeviceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 while the SDK reports the device as connected.",
		}),
	}

	m.registry.MustRegister(
		m.FramesTotal,
		m.FramesSentTotal,
		m.BytesSentTotal,
		m.Clients,
		m.DeviceConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry はレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler は /metrics 用のハンドラーを返す
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFrame はカメラからのフレーム受信を記録する
func (m *Metrics) ObserveFrame(channel string) {
	m.FramesTotal.WithLabelValues(channel).Inc()
}

// ObserveStatus はデバイスの接続状態を記録する
func (m *Metrics) ObserveStatus(status guide.DeviceStatus) {
	if status == guide.StatusConnected {
		m.DeviceConnected.Set(1)
	} else {
		m.DeviceConnected.Set(0)
	}
}

// ObserveSent はクライアントへのフレーム送信を記録する
func (m *Metrics) ObserveSent(channel string, bytes int) {
	m.FramesSentTotal.WithLabelValues(channel).Inc()
	m.BytesSentTotal.Add(float64(bytes))
}

// ClientConnected はクライアントの接続を記録する
func (m *Metrics) ClientConnected(channel string) {
	m.Clients.WithLabelValues(channel).Inc()
}

// ClientDisconnected はクライアントの切断を記録する
func (m *Metrics) ClientDisconnected(channel string) {
	m.Clients.WithLabelValues(channel).Dec()
}
