package genai

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model answer. It accepts
// bare JSON, JSON wrapped in ``` or ```json fences, and JSON surrounded by
// prose. ok is false when no syntactically valid object is found.
func ExtractJSON(text string) (payload string, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}

	if start := strings.Index(s, "```"); start >= 0 {
		inner := s[start+3:]
		// Drop the language tag on the opening fence line.
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.Contains(inner[:nl], "{") {
			inner = inner[nl+1:]
		}
		if end := strings.Index(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		s = strings.TrimSpace(inner)
	}

	open := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if open < 0 || last <= open {
		return "", false
	}

	candidate := s[open : last+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// DecodeJSON extracts the JSON object from text and unmarshals it into v.
// It reports false on any failure and never panics.
func DecodeJSON(text string, v any) bool {
	payload, ok := ExtractJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(payload), v) == nil
}
