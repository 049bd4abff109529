// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reasoner provides the four conversational reasoning capabilities
// the engine consumes each turn: scam classification, reply generation,
// intelligence extraction, and the end decision.
//
// Two implementations exist: OpenAIReasoner calls a remote model, and
// RuleBased answers deterministically from the embedded rule vocabularies.
// WithFallback composes them so that every capability degrades to the
// deterministic path instead of failing the turn.
package reasoner

import (
	"context"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/dialog"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
	"github.com/AleutianAI/honeypot/services/honeypot/termination"
)

// ClassifyInput carries the evidence for scam classification: the full
// history with the newest inbound message last.
type ClassifyInput struct {
	SessionID string
	Messages  []datatypes.Message
}

// ReplyInput carries everything reply generation may condition on.
//
// ForcedTarget is the planner's choice of what to ask for next; the repair
// pipeline enforces it afterwards regardless of what the reasoner produced.
type ReplyInput struct {
	SessionID    string
	Messages     []datatypes.Message
	Assessment   datatypes.Assessment
	Signals      datatypes.ScamSignals
	Intelligence intel.Intelligence
	ForcedTarget dialog.Target
	AskedCounts  map[string]int
	AgentNotes   string
}

// ExtractInput carries the history to sweep for intelligence.
type ExtractInput struct {
	SessionID string
	Messages  []datatypes.Message
	Signals   datatypes.ScamSignals
}

// Extraction is the result of a full-history extraction pass.
type Extraction struct {
	Intelligence intel.Intelligence
	Signals      datatypes.ScamSignals
	AgentNotes   string
}

// EndInput carries the evidence for the end decision. Signals are the
// deterministic stop conditions already computed; the reasoner may weigh
// them but the deterministic fallback answers Signals.Any().
type EndInput struct {
	SessionID    string
	Messages     []datatypes.Message
	Intelligence intel.Intelligence
	Signals      termination.Signals
}

// Reasoner is the set of per-turn reasoning capabilities.
//
// Implementations must be safe for concurrent use; the engine serializes
// calls per session but not across sessions.
type Reasoner interface {
	// Classify assesses whether the conversation is a scam attempt.
	Classify(ctx context.Context, in ClassifyInput) (datatypes.Assessment, error)

	// Reply proposes the next outgoing message.
	Reply(ctx context.Context, in ReplyInput) (datatypes.AgentReply, error)

	// Extract sweeps the full history for fraud intelligence.
	Extract(ctx context.Context, in ExtractInput) (Extraction, error)

	// ShouldEnd decides whether to wind the conversation down.
	ShouldEnd(ctx context.Context, in EndInput) (datatypes.EndDecision, error)
}
