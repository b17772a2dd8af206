package channel

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is ISO-8601 with millisecond precision, always UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ProcessedIssues maps issue id to the updatedAt last seen for it.
type ProcessedIssues map[string]time.Time

// normalizeTime truncates to the precision the record persists.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTimestamp renders t the way the record and messages carry it.
func FormatTimestamp(t time.Time) string {
	return normalizeTime(t).Format(timestampLayout)
}

// Encode serializes the record as a JSON object of id to timestamp.
func (p ProcessedIssues) Encode() (string, error) {
	raw := make(map[string]string, len(p))
	for id, ts := range p {
		raw[id] = FormatTimestamp(ts)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode processed issues: %w", err)
	}
	return string(data), nil
}

// DecodeProcessedIssues parses a persisted record. An empty string is an
// empty record.
func DecodeProcessedIssues(s string) (ProcessedIssues, error) {
	p := ProcessedIssues{}
	if s == "" {
		return p, nil
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return ProcessedIssues{}, fmt.Errorf("failed to decode processed issues: %w", err)
	}
	for id, v := range raw {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return ProcessedIssues{}, fmt.Errorf("failed to decode timestamp for %s: %w", id, err)
		}
		p[id] = normalizeTime(ts)
	}
	return p, nil
}
