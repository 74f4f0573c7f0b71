// Package llmutil extracts structured data from free-form model output.
package llmutil

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoJSONObject is returned when a response holds no complete JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in LLM response")

// ExtractJSONObject returns the first balanced {...} in response. Braces inside
// string literals are ignored, so markdown fences and surrounding prose are
// skipped without special handling.
func ExtractJSONObject(response string) (string, error) {
	start := strings.IndexByte(response, '{')
	for start != -1 {
		if end := matchObject(response[start:]); end > 0 {
			return response[start : start+end], nil
		}
		next := strings.IndexByte(response[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSONObject
}

// matchObject returns the length of the object opening at s[0], or 0 when it never closes.
func matchObject(s string) int {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}

// ParseJSONResponse extracts the first JSON object from response and decodes it into T.
func ParseJSONResponse[T any](response string) (*T, error) {
	raw, err := ExtractJSONObject(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncateString(strings.TrimSpace(response), 200))
	}

	var result T
	if err := json.UnmarshalFromString(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(raw, 500))
	}
	return &result, nil
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Simple truncation; does not account for rune boundaries but sufficient for error logging.
	return s[:maxLen] + "..."
}
