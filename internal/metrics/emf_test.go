package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestFlushEmitsSingleLineEMF(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf).
		Dimension("Operation", "create").
		Metric("Duration", 123.4, UnitMilliseconds).
		Count("ImageIngested").
		Property("albumId", "album/u1/trip").
		Flush()

	out := buf.String()
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("EMF must be exactly one line, got %q", out)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if doc["Operation"] != "create" {
		t.Errorf("dimension value missing: %v", doc["Operation"])
	}
	if doc["Duration"] != 123.4 {
		t.Errorf("Duration = %v", doc["Duration"])
	}
	if doc["ImageIngested"] != 1.0 {
		t.Errorf("ImageIngested = %v", doc["ImageIngested"])
	}
	if doc["albumId"] != "album/u1/trip" {
		t.Errorf("property missing: %v", doc["albumId"])
	}

	aws, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive")
	}
	cwm, ok := aws["CloudWatchMetrics"].([]any)
	if !ok || len(cwm) != 1 {
		t.Fatalf("CloudWatchMetrics = %v", aws["CloudWatchMetrics"])
	}
	directive := cwm[0].(map[string]any)
	if directive["Namespace"] != Namespace {
		t.Errorf("Namespace = %v", directive["Namespace"])
	}
	metricsList, _ := directive["Metrics"].([]any)
	if len(metricsList) != 2 {
		t.Errorf("Metrics = %v, want 2 entries", metricsList)
	}
}

func TestFlushWithoutMetricsIsSilent(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf).
		Dimension("Operation", "create").
		Property("albumId", "a").
		Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
