// ABOUTME: Prometheus metrics for the bridge hub
// ABOUTME: Served on the bridge HTTP mux at /metrics
package bridge

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds bridge collectors
type Metrics struct {
	reg *prometheus.Registry

	Clients       prometheus.Gauge
	AudioFrames   prometheus.Counter
	LogFrames     prometheus.Counter
	RelayedFrames prometheus.Counter
	DroppedFrames prometheus.Counter
	UplinkErrors  prometheus.Counter
}

// NewMetrics registers bridge collectors with reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reg: reg,

		Clients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicechat_bridge_clients",
			Help: "Connected devices",
		}),
		AudioFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_bridge_audio_frames_total",
			Help: "Audio frames received from devices",
		}),
		LogFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_bridge_log_frames_total",
			Help: "Diagnostic log frames received from devices",
		}),
		RelayedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_bridge_relayed_frames_total",
			Help: "Audio frames queued to other devices",
		}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_bridge_dropped_frames_total",
			Help: "Audio frames dropped because a device fell behind or the frame was too large",
		}),
		UplinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_bridge_uplink_errors_total",
			Help: "Uplink desyncs and invalid frame headers",
		}),
	}
}

// Handler exposes the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
