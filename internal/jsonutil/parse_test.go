package jsonutil

import (
	"strings"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"whitespace around fence", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripMarkdownFences(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "object embedded in prose",
			in:   `Here you go: {"a": 1} hope that helps!`,
			want: `{"a": 1}`,
		},
		{
			name: "nested objects",
			in:   `{"outer": {"inner": {"deep": true}}}`,
			want: `{"outer": {"inner": {"deep": true}}}`,
		},
		{
			name: "braces inside string values",
			in:   `{"text": "a } brace and a { brace"} trailing`,
			want: `{"text": "a } brace and a { brace"}`,
		},
		{
			name: "escaped quote inside string",
			in:   `{"text": "she said \"}\" loudly"}`,
			want: `{"text": "she said \"}\" loudly"}`,
		},
		{
			name:    "no object at all",
			in:      "nothing here",
			wantErr: true,
		},
		{
			name:    "truncated object",
			in:      `{"a": {"b": 1}`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractObject(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	raw := "The result is:\n```json\n{\"name\": \"trip\", \"count\": 3}\n```"
	got, err := ParseObject[payload](raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "trip" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestParseObjectInvalidJSON(t *testing.T) {
	type payload struct{ Name string }
	_, err := ParseObject[payload](`{"name": }`)
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("err = %v", err)
	}
}
