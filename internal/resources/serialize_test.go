package resources_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gambtho/container-assist/internal/resources"
	"github.com/gambtho/container-assist/pkg/models"
)

func TestSerializeJSON(t *testing.T) {
	out, err := resources.Serialize(map[string]any{"name": "app", "port": 8080}, resources.MimeJSON)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Serialize() produced invalid JSON: %v", err)
	}
	if back["name"] != "app" {
		t.Errorf("round trip name = %v, want app", back["name"])
	}
}

func TestSerializeYAML(t *testing.T) {
	out, err := resources.Serialize(map[string]any{"replicas": 3}, resources.MimeYAML)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !strings.Contains(string(out), "replicas: 3") {
		t.Errorf("Serialize() yaml = %q, want replicas: 3", out)
	}
}

func TestSerializeDockerfilePassthrough(t *testing.T) {
	dockerfile := "FROM alpine:3.20\nRUN apk add --no-cache ca-certificates\n"
	out, err := resources.Serialize(dockerfile, resources.MimeDockerfile)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if string(out) != dockerfile {
		t.Errorf("Serialize() altered text content:\n%s", out)
	}
}

func TestSerializeMalformedMimeType(t *testing.T) {
	_, err := resources.Serialize("data", "notamime")
	var unsupported *models.UnsupportedMimeTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Serialize() error = %v, want *UnsupportedMimeTypeError", err)
	}
}

func TestSerializeUnknownTypeFallsBackToJSON(t *testing.T) {
	out, err := resources.Serialize(map[string]any{"k": "v"}, "application/x-custom")
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !json.Valid(out) {
		t.Errorf("Serialize() fallback output is not JSON: %s", out)
	}
}

func TestShouldInlineBoundary(t *testing.T) {
	data := strings.Repeat("a", 100)
	raw, _ := json.Marshal(data) // 102 bytes with quotes

	if !resources.ShouldInline(data, len(raw)) {
		t.Errorf("ShouldInline() at exactly the limit = false, want true")
	}
	if resources.ShouldInline(data, len(raw)-1) {
		t.Errorf("ShouldInline() one byte over the limit = true, want false")
	}
}

func TestDescribeContent(t *testing.T) {
	tests := []struct {
		data any
		want string
	}{
		{"one\ntwo\nthree", "text content (3 lines)"},
		{[]any{1, 2, 3, 4}, "array with 4 items"},
		{map[string]any{"a": 1, "b": 2}, "object with 2 properties"},
	}
	for _, tt := range tests {
		if got := resources.DescribeContent(tt.data); got != tt.want {
			t.Errorf("DescribeContent(%v) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
