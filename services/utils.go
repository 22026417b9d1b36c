package services

import (
	"encoding/json"
	"sort"
)

// BodySummary describes a generation body for logs without its image data.
type BodySummary struct {
	Keys       []string
	ImageCount int
	Model      string
}

// SummarizeBody never fails; an undecodable body yields a zero summary.
func SummarizeBody(body []byte) BodySummary {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return BodySummary{}
	}

	summary := BodySummary{Keys: make([]string, 0, len(fields))}
	for key := range fields {
		summary.Keys = append(summary.Keys, key)
	}
	sort.Strings(summary.Keys)

	var images []json.RawMessage
	if raw, ok := fields["image"]; ok && json.Unmarshal(raw, &images) == nil {
		summary.ImageCount = len(images)
	}
	if raw, ok := fields["model"]; ok {
		_ = json.Unmarshal(raw, &summary.Model)
	}
	return summary
}
