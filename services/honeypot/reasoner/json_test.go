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
	"errors"
	"testing"
)

func TestExtractBalancedJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, false},
		{"markdown fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"prose around", `Sure! Here is the JSON: {"a":1} Hope that helps.`, `{"a":1}`, false},
		{"nested objects", `{"a":{"b":{"c":3}}}`, `{"a":{"b":{"c":3}}}`, false},
		{"brace inside string", `{"a":"{not a brace}"}`, `{"a":"{not a brace}"}`, false},
		{"escaped quote inside string", `{"a":"he said \"hi\" {"}`, `{"a":"he said \"hi\" {"}`, false},
		{"unbalanced", `{"a":1`, "", true},
		{"no object", "no json here", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractBalancedJSON(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var out struct {
		Reply string `json:"reply"`
	}

	if err := decodeModelJSON("agent_reply", `  {"reply":"ok"} `, &out); err != nil {
		t.Fatalf("direct parse failed: %v", err)
	}
	if out.Reply != "ok" {
		t.Errorf("Reply = %q", out.Reply)
	}

	out.Reply = ""
	raw := "The model says:\n```json\n{\"reply\":\"recovered\"}\n```"
	if err := decodeModelJSON("agent_reply", raw, &out); err != nil {
		t.Fatalf("recovery parse failed: %v", err)
	}
	if out.Reply != "recovered" {
		t.Errorf("Reply = %q", out.Reply)
	}

	err := decodeModelJSON("agent_reply", "not json at all", &out)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if parseErr.Kind != "agent_reply" {
		t.Errorf("Kind = %q", parseErr.Kind)
	}
}
