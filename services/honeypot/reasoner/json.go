// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reasoner

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractBalancedJSON returns the outermost balanced {...} object embedded
// in raw, honoring string literals and escapes. Models occasionally wrap
// their JSON in prose or markdown fences; this recovers the object without
// trusting anything outside it.
func ExtractBalancedJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", errors.New("no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
				return raw[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON object")
}

// decodeModelJSON parses the model's text output into out, applying
// balanced-brace recovery when a direct parse fails.
func decodeModelJSON(kind, raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}
	inner, err := ExtractBalancedJSON(trimmed)
	if err != nil {
		return &ParseError{Kind: kind, Raw: raw, Err: err}
	}
	if err := json.Unmarshal([]byte(inner), out); err != nil {
		return &ParseError{Kind: kind, Raw: raw, Err: err}
	}
	return nil
}
