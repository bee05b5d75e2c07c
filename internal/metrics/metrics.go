// ABOUTME: Prometheus metrics for the device and the bridge
// ABOUTME: Device counters are fed as deltas from periodic stats snapshots
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/songbird-audio/voicechat-go/internal/device"
)

// Metrics contains the device metrics
type Metrics struct {
	registry *prometheus.Registry

	// Link metrics
	FramesReceived *prometheus.CounterVec
	FramesDropped  prometheus.Counter
	BytesReceived  prometheus.Counter
	BytesSent      prometheus.Counter
	FilesReceived  prometheus.Counter
	FilesSent      prometheus.Counter
	LinkConnected  prometheus.Gauge

	// Codec metrics
	PacketsEncoded prometheus.Counter
	PacketsDecoded prometheus.Counter

	// Playback metrics
	MessagesPlayed  prometheus.Counter
	MessagesSkipped prometheus.Counter
	MessagesDeleted prometheus.Counter

	// Recording metrics
	RecordingFailures prometheus.Counter
	SendFailures      prometheus.Counter
	MicOverruns       prometheus.Counter

	RosterSize prometheus.Gauge

	last device.Stats
}

// New creates and registers the metrics on reg
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FramesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voicechat_frames_received_total",
			Help: "Frames received from the bridge by kind",
		}, []string{"kind"}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_frames_dropped_total",
			Help: "Frames rejected or discarded by the receiver",
		}),
		BytesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_link_bytes_received_total",
			Help: "Bytes received from the bridge",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_link_bytes_sent_total",
			Help: "Bytes sent to the bridge",
		}),
		FilesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_files_received_total",
			Help: "Messages stored from the bridge",
		}),
		FilesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_files_sent_total",
			Help: "Recordings sent to the bridge",
		}),
		LinkConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicechat_link_connected",
			Help: "1 while the bridge link is live",
		}),
		PacketsEncoded: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_packets_encoded_total",
			Help: "Opus packets encoded",
		}),
		PacketsDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_packets_decoded_total",
			Help: "Opus packets decoded",
		}),
		MessagesPlayed: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_messages_played_total",
			Help: "Messages finished playing",
		}),
		MessagesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_messages_skipped_total",
			Help: "Messages skipped by the user",
		}),
		MessagesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_messages_deleted_total",
			Help: "Messages removed from the card",
		}),
		RecordingFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_recording_failures_total",
			Help: "Recordings that failed to start or were aborted",
		}),
		SendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_send_failures_total",
			Help: "Recordings that could not be sent",
		}),
		MicOverruns: f.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_mic_overruns_total",
			Help: "Captured blocks dropped because the queue was full",
		}),
		RosterSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "voicechat_roster_users",
			Help: "Users present on the bridge",
		}),
	}
}

func addDelta(c prometheus.Counter, cur, last uint64) {
	if cur > last {
		c.Add(float64(cur - last))
	}
}

// Observe folds a stats snapshot into the metrics
func (m *Metrics) Observe(s device.Stats) {
	l := m.last

	addDelta(m.FramesReceived.WithLabelValues("audio"), s.Link.AudioFrames, l.Link.AudioFrames)
	addDelta(m.FramesReceived.WithLabelValues("control"), s.Link.ControlFrames, l.Link.ControlFrames)
	addDelta(m.FramesReceived.WithLabelValues("log"), s.Link.LogFrames, l.Link.LogFrames)
	addDelta(m.FramesDropped, s.Link.InvalidFrames+s.Link.DiscardedFiles, l.Link.InvalidFrames+l.Link.DiscardedFiles)
	addDelta(m.BytesReceived, s.Link.BytesReceived, l.Link.BytesReceived)
	addDelta(m.BytesSent, s.Link.BytesSent, l.Link.BytesSent)
	addDelta(m.FilesReceived, s.Link.FilesReceived, l.Link.FilesReceived)
	addDelta(m.FilesSent, s.Link.FilesSent, l.Link.FilesSent)

	addDelta(m.PacketsEncoded, s.PacketsEncoded, l.PacketsEncoded)
	addDelta(m.PacketsDecoded, s.PacketsDecoded, l.PacketsDecoded)

	addDelta(m.MessagesPlayed, s.Playback.Played, l.Playback.Played)
	addDelta(m.MessagesSkipped, s.Playback.Skipped, l.Playback.Skipped)
	addDelta(m.MessagesDeleted, s.Playback.Deleted, l.Playback.Deleted)

	addDelta(m.RecordingFailures, s.RecordingFailures, l.RecordingFailures)
	addDelta(m.SendFailures, s.SendFailures, l.SendFailures)
	addDelta(m.MicOverruns, s.MicOverruns, l.MicOverruns)

	m.RosterSize.Set(float64(s.Users))
	if s.Connected {
		m.LinkConnected.Set(1)
	} else {
		m.LinkConnected.Set(0)
	}

	m.last = s
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes the metrics on addr until the listener fails
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Printf("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server error: %v", err)
	}
}
