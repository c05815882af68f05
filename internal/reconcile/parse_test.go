package reconcile

import (
	"testing"
)

func TestParseMessagesSplitsValidAndFailed(t *testing.T) {
	msgs := []QueueMessage{
		{ID: "m1", ReceiptHandle: "rh1", Body: `{"sourceKey": "album/u1/a.jpg", "avifEncoding": {"crf": 30}}`},
		{ID: "m2", ReceiptHandle: "rh2", Body: `not json`},
		{ID: "m3", ReceiptHandle: "rh3", Body: `{"sourceKey": "album/u1/b.jpg", "avifEncoding": {"crf": "28", "lossless": false}}`},
	}

	report := ParseMessages(msgs)

	if len(report.Jobs) != 2 || len(report.DeleteCandidates) != 2 {
		t.Fatalf("jobs = %d, candidates = %d, want 2 each", len(report.Jobs), len(report.DeleteCandidates))
	}
	if len(report.Failed) != 1 || report.Failed[0].MessageID != "m2" {
		t.Fatalf("failed = %+v", report.Failed)
	}

	// Jobs and delete candidates stay index-aligned: position i of both
	// lists refers to the same message.
	if report.Jobs[0].SourceKey != "album/u1/a.jpg" || report.DeleteCandidates[0].ID != "m1" {
		t.Errorf("index 0 misaligned: %+v / %+v", report.Jobs[0], report.DeleteCandidates[0])
	}
	if report.Jobs[1].SourceKey != "album/u1/b.jpg" || report.DeleteCandidates[1].ID != "m3" {
		t.Errorf("index 1 misaligned: %+v / %+v", report.Jobs[1], report.DeleteCandidates[1])
	}

	for i, job := range report.Jobs {
		if job.JobID == "" {
			t.Errorf("job %d has no generated ID", i)
		}
	}
	if report.Failed[0].Body != "not json" {
		t.Errorf("failed message should carry its original body: %+v", report.Failed[0])
	}
}

func TestParseBodyEnvelope(t *testing.T) {
	// Producers that wrap the payload in a MessageBody envelope are
	// unwrapped transparently.
	body := `{"MessageBody": {"sourceKey": "album/u1/a.jpg", "avifEncoding": {"crf": 30}}}`
	spec, err := parseBody(body)
	if err != nil {
		t.Fatal(err)
	}
	if spec.SourceKey != "album/u1/a.jpg" {
		t.Errorf("SourceKey = %q", spec.SourceKey)
	}
}

func TestParseBodyValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not JSON", "hello"},
		{"JSON array", `[1, 2, 3]`},
		{"missing sourceKey", `{"avifEncoding": {"crf": 30}}`},
		{"empty sourceKey", `{"sourceKey": "", "avifEncoding": {"crf": 30}}`},
		{"missing avifEncoding", `{"sourceKey": "album/u1/a.jpg"}`},
		{"avifEncoding not an object", `{"sourceKey": "album/u1/a.jpg", "avifEncoding": "crf=30"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseBody(tc.body); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStringifyEncoding(t *testing.T) {
	raw := []byte(`{"crf": 30, "speed": "6", "lossless": false, "quality": 30.5, "extra": {"a": 1}}`)
	got, err := stringifyEncoding(raw)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"crf":      "30", // integer stays "30", never "30.0"
		"speed":    "6",
		"lossless": "false",
		"quality":  "30.5",
		"extra":    `{"a":1}`,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}
