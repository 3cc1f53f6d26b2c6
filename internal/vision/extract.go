package vision

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of free-form model text. Code fences
// are stripped first; if the remainder is not an object on its own, the span
// from the first '{' to the last '}' is tried.
func ExtractJSON(text string) (map[string]any, error) {
	cleaned := stripFences(strings.TrimSpace(text))
	if cleaned == "" {
		return nil, ErrNoJSON
	}

	if obj, ok := decodeObject([]byte(cleaned)); ok {
		return obj, nil
	}

	raw := []byte(cleaned)
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	if obj, ok := decodeObject(raw[start : end+1]); ok {
		return obj, nil
	}
	return nil, ErrNoJSON
}

func decodeObject(b []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an optional language tag on the opening fence.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		tag := strings.TrimSpace(s[:nl])
		if tag == "" || !strings.ContainsAny(tag, "{}[]\"") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
