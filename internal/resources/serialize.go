package resources

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gambtho/container-assist/pkg/models"
)

// Supported mime types. The set is extensible: any well-formed mime type
// serializes (unknown ones fall back to JSON), these are just the ones
// with dedicated handling.
const (
	MimeJSON       = "application/json"
	MimeYAML       = "application/yaml"
	MimeText       = "text/plain"
	MimeDockerfile = "text/x-dockerfile"
	MimeLog        = "text/x-log"
)

// Serialize renders data for storage under the given mime type.
//
// application/json gets pretty-printed JSON; YAML types marshal via
// yaml.v3; other textual types coerce to a raw string; anything else
// falls back to JSON. A malformed mime type (no "/") is rejected with
// *models.UnsupportedMimeTypeError.
func Serialize(data any, mimeType string) ([]byte, error) {
	if !strings.Contains(mimeType, "/") {
		return nil, &models.UnsupportedMimeTypeError{MimeType: mimeType}
	}

	switch {
	case mimeType == MimeJSON:
		return marshalJSON(data)

	case mimeType == MimeYAML || strings.HasSuffix(mimeType, "+yaml"):
		if s, ok := data.(string); ok {
			return []byte(s), nil
		}
		out, err := yaml.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("yaml marshal: %w", err)
		}
		return out, nil

	case strings.HasPrefix(mimeType, "text/"):
		return []byte(coerceString(data)), nil

	default:
		// Unknown types fall back to JSON.
		return marshalJSON(data)
	}
}

func marshalJSON(data any) ([]byte, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}
	return out, nil
}

func coerceString(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ShouldInline reports whether data fits within maxInlineSize when
// serialized as JSON. Exactly maxInlineSize bytes inlines; one byte more
// externalizes. It is a pure function with no side effects.
func ShouldInline(data any, maxInlineSize int) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		// Unserializable data cannot be externalized either; inline it.
		return true
	}
	return len(raw) <= maxInlineSize
}

// DescribeContent produces a short human-readable description of data for
// use alongside an externalized reference: an item count for arrays, a
// property count for objects, a line count for text.
func DescribeContent(data any) string {
	switch v := data.(type) {
	case string:
		return fmt.Sprintf("text content (%d lines)", strings.Count(v, "\n")+1)
	case []byte:
		return fmt.Sprintf("text content (%d lines)", strings.Count(string(v), "\n")+1)
	case []any:
		return fmt.Sprintf("array with %d items", len(v))
	case map[string]any:
		return fmt.Sprintf("object with %d properties", len(v))
	default:
		return fmt.Sprintf("%T value", data)
	}
}
