package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// FormatPrometheus formats metrics in Prometheus text format.
// See: https://prometheus.io/docs/instrumenting/exposition_formats/
func FormatPrometheus(snap Snapshot) string {
	var sb strings.Builder

	writeHeader(&sb, "chatrelay_uptime_seconds", "gauge", "Time since the relay started")
	sb.WriteString(fmt.Sprintf("chatrelay_uptime_seconds %d\n\n", snap.Uptime))

	writeLabeled(&sb, "chatrelay_requests_total", "counter", "Total number of requests by endpoint", "endpoint", snap.TotalRequests, false)
	writeLabeled(&sb, "chatrelay_request_errors_total", "counter", "Total number of error responses by endpoint", "endpoint", snap.RequestErrors, false)
	writeLabeled(&sb, "chatrelay_requests_in_progress", "gauge", "Current number of requests being processed", "endpoint", snap.RequestsInProgress, true)
	writeLabeled(&sb, "chatrelay_request_duration_ms_total", "counter", "Total request duration in milliseconds", "endpoint", snap.TotalRequestsDur, false)
	writeLabeled(&sb, "chatrelay_relays_total", "counter", "Finished relays by outcome", "outcome", snap.RelayOutcomes, false)
	writeLabeled(&sb, "chatrelay_relays_by_model_total", "counter", "Finished relays by upstream model", "model", snap.RelaysByModel, false)

	writeHeader(&sb, "chatrelay_upstream_connect_errors_total", "counter", "Relays that failed before the event stream started")
	sb.WriteString(fmt.Sprintf("chatrelay_upstream_connect_errors_total %d\n\n", snap.UpstreamErrors))

	writeHeader(&sb, "chatrelay_fragments_total", "counter", "Text fragments forwarded to callers")
	sb.WriteString(fmt.Sprintf("chatrelay_fragments_total %d\n\n", snap.Fragments))

	writeHeader(&sb, "chatrelay_fragment_bytes_total", "counter", "Bytes of generated text forwarded to callers")
	sb.WriteString(fmt.Sprintf("chatrelay_fragment_bytes_total %d\n\n", snap.Chars))

	writeHeader(&sb, "chatrelay_skipped_lines_total", "counter", "Upstream lines dropped because they did not parse as JSON")
	sb.WriteString(fmt.Sprintf("chatrelay_skipped_lines_total %d\n\n", snap.SkippedLines))

	writeHeader(&sb, "chatrelay_upstream_first_byte_ms", "summary", "Time from upstream request to first body byte")
	sb.WriteString(fmt.Sprintf("chatrelay_upstream_first_byte_ms_sum %d\n", snap.FirstByteMSSum))
	sb.WriteString(fmt.Sprintf("chatrelay_upstream_first_byte_ms_count %d\n", snap.FirstByteCount))

	return sb.String()
}

func writeHeader(sb *strings.Builder, name, kind, help string) {
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, kind))
}

func writeLabeled(sb *strings.Builder, name, kind, help, label string, values map[string]int64, skipZero bool) {
	writeHeader(sb, name, kind, help)
	for _, key := range sortedKeys(values) {
		v := values[key]
		if skipZero && v == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s{%s=\"%s\"} %d\n", name, label, escapeLabel(key), v))
	}
	sb.WriteString("\n")
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return strings.ReplaceAll(v, "\n", `\n`)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
