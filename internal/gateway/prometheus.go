package gateway

import (
	"fmt"
	"io"
	"strings"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
)

// MetricsSnapshot is the data behind one /metrics scrape.
type MetricsSnapshot struct {
	Channel       *channel.Status
	Hub           HubStats
	RepliesOK     int64
	RepliesFailed int64
}

// MetricsSource provides metrics data for the exporter.
type MetricsSource interface {
	Snapshot() MetricsSnapshot
}

// Snapshot collects the server's current metrics.
func (s *Server) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Hub:           s.hub.Stats(),
		RepliesOK:     s.repliesOK.Load(),
		RepliesFailed: s.repliesFailed.Load(),
	}
	if src := s.statusSource(); src != nil {
		st := src.Status()
		snap.Channel = &st
	}
	return snap
}

// PrometheusExporter formats metrics for Prometheus scraping.
type PrometheusExporter struct {
	metricsSource MetricsSource
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{metricsSource: source}
}

// WritePrometheus writes metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WritePrometheus(w io.Writer) error {
	snap := e.metricsSource.Snapshot()

	// --- Channel gauges (absent when no channel is attached) ---
	if st := snap.Channel; st != nil {
		writeHelp(w, "nanoclaw_channel_connected", "Whether the Linear channel is connected")
		writeType(w, "nanoclaw_channel_connected", "gauge")
		writeGauge(w, "nanoclaw_channel_connected", boolGauge(st.Connected))

		writeHelp(w, "nanoclaw_tracked_issues", "Issues in the processed-issue record")
		writeType(w, "nanoclaw_tracked_issues", "gauge")
		writeGauge(w, "nanoclaw_tracked_issues", float64(st.TrackedIssues))

		writeHelp(w, "nanoclaw_dedup_comments", "Comment ids held for deduplication by set")
		writeType(w, "nanoclaw_dedup_comments", "gauge")
		writeGaugeLabeled(w, "nanoclaw_dedup_comments", float64(st.SeenComments), "set", "seen")
		writeGaugeLabeled(w, "nanoclaw_dedup_comments", float64(st.BotComments), "set", "bot")

		writeHelp(w, "nanoclaw_last_poll_timestamp_seconds", "Unix time of the last completed poll pass")
		writeType(w, "nanoclaw_last_poll_timestamp_seconds", "gauge")
		var last float64
		if !st.LastPollAt.IsZero() {
			last = float64(st.LastPollAt.Unix())
		}
		writeGauge(w, "nanoclaw_last_poll_timestamp_seconds", last)

		writeHelp(w, "nanoclaw_last_poll_failed", "Whether the last poll pass failed")
		writeType(w, "nanoclaw_last_poll_failed", "gauge")
		writeGauge(w, "nanoclaw_last_poll_failed", boolGauge(st.LastPollErr != ""))
	}

	// --- Gateway ---
	writeHelp(w, "nanoclaw_ws_subscribers", "Connected websocket subscribers")
	writeType(w, "nanoclaw_ws_subscribers", "gauge")
	writeGauge(w, "nanoclaw_ws_subscribers", float64(snap.Hub.Subscribers))

	writeHelp(w, "nanoclaw_deliveries_total", "Channel deliveries broadcast by kind")
	writeType(w, "nanoclaw_deliveries_total", "counter")
	writeCounter(w, "nanoclaw_deliveries_total", snap.Hub.Messages, "kind", "message")
	writeCounter(w, "nanoclaw_deliveries_total", snap.Hub.Metadata, "kind", "metadata")

	writeHelp(w, "nanoclaw_ws_send_failures_total", "Websocket sends that failed")
	writeType(w, "nanoclaw_ws_send_failures_total", "counter")
	writeCounter(w, "nanoclaw_ws_send_failures_total", snap.Hub.SendFailure)

	writeHelp(w, "nanoclaw_replies_total", "Replies posted through the gateway by result")
	writeType(w, "nanoclaw_replies_total", "counter")
	writeCounter(w, "nanoclaw_replies_total", snap.RepliesOK, "result", "success")
	writeCounter(w, "nanoclaw_replies_total", snap.RepliesFailed, "result", "failed")

	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// writeHelp writes a HELP line for a metric.
func writeHelp(w io.Writer, name, help string) {
	_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
}

// writeType writes a TYPE line for a metric.
func writeType(w io.Writer, name, metricType string) {
	_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
}

// writeCounter writes a counter metric line.
func writeCounter(w io.Writer, name string, value int64, labelPairs ...string) {
	if len(labelPairs) == 0 {
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
		return
	}
	_, _ = fmt.Fprintf(w, "%s{%s} %d\n", name, formatLabels(labelPairs), value)
}

// writeGauge writes a gauge metric line.
func writeGauge(w io.Writer, name string, value float64) {
	_, _ = fmt.Fprintf(w, "%s %g\n", name, value)
}

// writeGaugeLabeled writes a gauge metric with labels.
func writeGaugeLabeled(w io.Writer, name string, value float64, labelPairs ...string) {
	_, _ = fmt.Fprintf(w, "%s{%s} %g\n", name, formatLabels(labelPairs), value)
}

// formatLabels formats label key-value pairs for Prometheus output.
func formatLabels(pairs []string) string {
	var b strings.Builder
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(",")
		}
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		fmt.Fprintf(&b, "%s=\"%s\"", pairs[i], escapeLabel(value))
	}
	return b.String()
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// escapeLabel escapes special characters in label values.
func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}
