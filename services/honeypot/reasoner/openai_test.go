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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

func modelText(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func TestOpenAIClassifyRequestShape(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		out := modelText(t, datatypes.Assessment{
			ScamLikely: true, ScamType: "upi_fraud", Confidence: 0.9,
			ReasonCodes: []string{"PAYMENT_REQUEST"},
		})
		json.NewEncoder(w).Encode(map[string]any{"output_text": out})
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	got, err := r.Classify(context.Background(), ClassifyInput{
		SessionID: "s-1",
		Messages:  []datatypes.Message{{Sender: datatypes.SenderScammer, Text: "pay via upi now"}},
	})
	require.NoError(t, err)

	assert.True(t, got.ScamLikely)
	assert.Equal(t, "upi_fraud", got.ScamType)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.NotEmpty(t, captured.Input)
	assert.Equal(t, "json_schema", captured.Text.Format.Type)
	assert.Equal(t, "scam_classification", captured.Text.Format.Name)
	assert.True(t, captured.Text.Format.Strict)
	assert.NotEmpty(t, captured.Text.Format.Schema)
}

func TestOpenAIRetriesTransientStatus(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		out := modelText(t, datatypes.EndDecision{EndConversation: false, Reason: "keep going"})
		json.NewEncoder(w).Encode(map[string]any{"output_text": out})
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	got, err := r.ShouldEnd(context.Background(), EndInput{SessionID: "s-1"})
	require.NoError(t, err)

	assert.False(t, got.EndConversation)
	assert.Equal(t, int32(2), requests.Load())
}

func TestOpenAIDoesNotRetryClientError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad schema", http.StatusBadRequest)
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	_, err := r.Classify(context.Background(), ClassifyInput{})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.Status)
	assert.False(t, provErr.Transient)
	assert.Equal(t, int32(1), requests.Load(), "client errors must fail without retrying")
}

func TestOpenAIExhaustsRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "try later", http.StatusTooManyRequests)
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	_, err := r.Classify(context.Background(), ClassifyInput{})
	require.Error(t, err)
	// maxRetries=2 means three attempts in total.
	assert.Equal(t, int32(3), requests.Load())
}

func TestOpenAIReadsMessageContentParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := modelText(t, datatypes.AgentReply{
			Reply: "Which UPI ID should I use?", IntentTag: "ASK_UPI",
		})
		json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{"type": "reasoning"},
				{"type": "message", "content": []map[string]any{
					{"type": "output_text", "text": out},
				}},
			},
		})
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	got, err := r.Reply(context.Background(), ReplyInput{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "Which UPI ID should I use?", got.Reply)
}

func TestOpenAIExtractNullableSignals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output_text": `{
				"extractedIntelligence": {
					"bankAccounts": [], "upiIds": ["fraud@ybl"], "emailAddresses": [],
					"phishingLinks": [], "phoneNumbers": [], "suspiciousKeywords": [],
					"caseIds": [], "policyNumbers": [], "orderNumbers": [],
					"staffIds": [], "agentNames": []
				},
				"scamSignals": {
					"claimedOrganization": null,
					"claimedDepartment": "Fraud Desk",
					"scamType": "upi_fraud",
					"tactics": ["urgency"]
				},
				"agentNotes": "upi handle captured"
			}`,
		})
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	got, err := r.Extract(context.Background(), ExtractInput{SessionID: "s-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"fraud@ybl"}, got.Intelligence.UpiIDs)
	assert.Empty(t, got.Signals.ClaimedOrganization)
	assert.Equal(t, "Fraud Desk", got.Signals.ClaimedDepartment)
	assert.Equal(t, "upi_fraud", got.Signals.ScamType)
	assert.Equal(t, "upi handle captured", got.AgentNotes)
}

func TestOpenAIReplyRejectsEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"output_text": `{"reply":"","intentTag":"STALL"}`})
	}))
	defer server.Close()

	r := NewOpenAIReasonerWithConfig("test-key", "gpt-4o-mini", server.URL, nil)
	_, err := r.Reply(context.Background(), ReplyInput{})
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "agent_reply", parseErr.Kind)
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIReasoner(config.Default(), nil)
	if err == nil {
		t.Fatal("NewOpenAIReasoner accepted an empty API key")
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ProviderError{Status: 502, Transient: true, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("Unwrap does not expose the inner error")
	}
	if err.Error() == "" {
		t.Error("empty Error() string")
	}
}
