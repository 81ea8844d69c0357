// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON decodes a model response into T. Models wrap JSON in code
// fences or prose often enough that three readings are tried in order:
// the text as is, the body of the first code fence, and the span from the
// first '{' to the last '}'.
func ParseJSON[T any](text string) (T, error) {
	var v T
	text = strings.TrimSpace(text)

	candidates := []string{text}
	if body, ok := fenceBody(text); ok {
		candidates = append(candidates, body)
	}
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	var firstErr error
	for _, c := range candidates {
		var out T
		err := json.Unmarshal([]byte(c), &out)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return v, fmt.Errorf("parsing model JSON: %w", firstErr)
}

// fenceBody returns the content of the first ``` fence in s.
func fenceBody(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	// Drop the info string ("json") on the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
