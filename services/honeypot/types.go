// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package honeypot exposes the scam-engagement engine over HTTP.
package honeypot

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexTimestamp accepts a timestamp as a JSON string or number. Senders
// variously post ISO-8601 strings, epoch seconds, and epoch milliseconds;
// all are carried through as their textual form and canonicalized by the
// session layer.
type FlexTimestamp string

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexTimestamp) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*t = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = FlexTimestamp(s)
		return nil
	}
	// Numeric epoch. Keep integer forms verbatim; floats lose their
	// fraction since epoch precision below one unit carries no meaning
	// here.
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*t = FlexTimestamp(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return err
	}
	*t = FlexTimestamp(strconv.FormatInt(int64(f), 10))
	return nil
}

// InboundMessage is one message of the request envelope.
type InboundMessage struct {
	Sender    string        `json:"sender"`
	Text      string        `json:"text"`
	Timestamp FlexTimestamp `json:"timestamp"`
}

// MessageRequest is the POST /api/message envelope.
type MessageRequest struct {
	SessionID           string           `json:"sessionId" binding:"required"`
	Message             *InboundMessage  `json:"message" binding:"required"`
	ConversationHistory []InboundMessage `json:"conversationHistory"`
	Metadata            map[string]any   `json:"metadata"`
}

// MessageResponse is the body of every turn response.
type MessageResponse struct {
	Status  string `json:"status"`
	Reply   string `json:"reply"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Status  string `json:"status"`
	Reply   string `json:"reply"`
	Message string `json:"message"`
}
