// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// =============================================================================
// Payload assembly
// =============================================================================

func TestBuildFloorsEngagementDuration(t *testing.T) {
	p := Build(BuildInput{
		SessionID:     "s-1",
		TotalMessages: 20,
		Engagement:    45 * time.Second,
		MinEngagement: 181 * time.Second,
	})
	assert.Equal(t, int64(181), p.EngagementDurationSeconds)
	assert.Equal(t, int64(181), p.EngagementMetrics.EngagementDurationSeconds)

	p = Build(BuildInput{Engagement: 400 * time.Second, MinEngagement: 181 * time.Second})
	assert.Equal(t, int64(400), p.EngagementDurationSeconds)
}

func TestBuildScamTypePreference(t *testing.T) {
	in := BuildInput{
		Signals:    datatypes.ScamSignals{ScamType: "phishing"},
		Assessment: datatypes.Assessment{ScamType: "upi_fraud", Confidence: 0.9},
	}
	assert.Equal(t, "phishing", Build(in).ScamType, "observed signal wins over classification")

	in.Signals.ScamType = ""
	assert.Equal(t, "upi_fraud", Build(in).ScamType)

	in.Assessment.ScamType = ""
	assert.Equal(t, "unknown", Build(in).ScamType)
}

func TestBuildStatusAndConfidence(t *testing.T) {
	p := Build(BuildInput{Assessment: datatypes.Assessment{Confidence: 0.85}})
	assert.Equal(t, "success", p.Status)
	assert.True(t, p.ScamDetected)
	assert.InDelta(t, 0.85, p.ConfidenceLevel, 1e-9)
}

func TestBuildFoldsSecondaryIntelIntoNotes(t *testing.T) {
	p := Build(BuildInput{
		AgentNotes: "Captured primary identifiers.",
		Intelligence: intel.Intelligence{
			CaseIDs:       []string{"REF-2024/17"},
			PolicyNumbers: []string{"POL99"},
			AgentNames:    []string{"Rahul Kumar"},
		},
		Signals: datatypes.ScamSignals{
			ClaimedOrganization: "State Bank",
			ClaimedDepartment:   "Fraud Desk",
		},
	})

	want := "Captured primary identifiers. Case IDs: REF-2024/17 " +
		"Policy Numbers: POL99 Names: Rahul Kumar " +
		"Claimed org: State Bank Claimed dept: Fraud Desk"
	assert.Equal(t, want, p.AgentNotes)
}

func TestBuildSerializesEmptyArrays(t *testing.T) {
	raw, err := json.Marshal(Build(BuildInput{SessionID: "s-1"}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "null", "intelligence arrays must serialize as []")
}

func TestLegacyPayloadShape(t *testing.T) {
	legacy := toLegacy(Build(BuildInput{
		SessionID:     "s-1",
		TotalMessages: 12,
		Intelligence:  intel.Intelligence{UpiIDs: []string{"fraud@ybl"}},
	}))

	raw, err := json.Marshal(legacy)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "status")
	assert.NotContains(t, decoded, "engagementMetrics")
	assert.NotContains(t, decoded, "engagementDurationSeconds")
	assert.Contains(t, decoded, "extractedIntelligence")

	il := decoded["extractedIntelligence"].(map[string]any)
	assert.NotContains(t, il, "caseIds", "legacy intelligence keeps the six-category shape")
	assert.Equal(t, []any{"fraud@ybl"}, il["upiIds"])
}

// =============================================================================
// Delivery
// =============================================================================

func testReporter(url string) *Reporter {
	cfg := config.Default()
	cfg.CallbackURL = url
	cfg.CallbackMaxAttempts = 3
	r := NewReporter(cfg, nil)
	r.backoff = time.Millisecond
	return r
}

func TestDeliverFirstAttempt(t *testing.T) {
	var requests atomic.Int32
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	payload := Build(BuildInput{SessionID: "s-1", TotalMessages: 15})
	require.NoError(t, testReporter(server.URL).Deliver(context.Background(), payload))
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, "s-1", got.SessionID)
}

func TestDeliverLegacyFallbackOn4xx(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)

		var decoded map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&decoded))
		if _, extended := decoded["status"]; extended {
			assert.Equal(t, int32(1), n, "extended payload first")
			http.Error(w, "unknown field", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testReporter(server.URL).Deliver(context.Background(), Build(BuildInput{SessionID: "s-1"}))
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestDeliverNoLegacyFallbackOn5xx(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	err := testReporter(server.URL).Deliver(context.Background(), Build(BuildInput{SessionID: "s-1"}))
	require.Error(t, err)

	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 3, deliveryErr.Attempts)
	assert.Equal(t, http.StatusBadGateway, deliveryErr.LastStatus)
	// Three extended attempts, no legacy retries.
	assert.Equal(t, int32(3), requests.Load())
}

func TestDeliverCapturesBeforePosting(t *testing.T) {
	captureFile := filepath.Join(t.TempDir(), "results", "capture.jsonl")
	var sawCapture atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(captureFile); err == nil {
			sawCapture.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.CallbackURL = server.URL
	cfg.CallbackCaptureFile = captureFile
	r := NewReporter(cfg, nil)
	r.backoff = time.Millisecond

	require.NoError(t, r.Deliver(context.Background(), Build(BuildInput{SessionID: "s-1"})))
	require.NoError(t, r.Deliver(context.Background(), Build(BuildInput{SessionID: "s-2"})))
	assert.True(t, sawCapture.Load(), "capture file must be written before the first POST")

	f, err := os.Open(captureFile)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var p Payload
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &p))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines, "one JSONL line per delivery")
}
