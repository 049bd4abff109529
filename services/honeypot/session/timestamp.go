// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"strconv"
	"strings"
	"time"
)

// Epoch values at or above this are treated as milliseconds. The cutover
// corresponds to March 2001 in milliseconds and year 33658 in seconds, so
// real traffic is never ambiguous.
const epochMillisCutover = 1_000_000_000_000

// Accepted ISO-8601 layouts, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp canonicalizes an inbound timestamp value.
//
// Description:
//
//	Accepts ISO-8601 strings, epoch seconds, epoch milliseconds (as
//	numbers or numeric strings), or absence, and returns a canonical
//	RFC 3339 UTC string. Unparseable values normalize to now.
//
// Inputs:
//   - v: The raw timestamp: string, float64, int, int64, or nil.
//   - now: The time to substitute for absent or unparseable values.
func NormalizeTimestamp(v any, now time.Time) string {
	switch t := v.(type) {
	case nil:
		return canonical(now)
	case string:
		return normalizeString(t, now)
	case float64:
		return canonical(fromEpoch(int64(t)))
	case int64:
		return canonical(fromEpoch(t))
	case int:
		return canonical(fromEpoch(int64(t)))
	default:
		return canonical(now)
	}
}

func normalizeString(raw string, now time.Time) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return canonical(now)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return canonical(t)
		}
	}
	if epoch, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return canonical(fromEpoch(epoch))
	}
	return canonical(now)
}

func fromEpoch(v int64) time.Time {
	if v >= epochMillisCutover {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}

func canonical(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
