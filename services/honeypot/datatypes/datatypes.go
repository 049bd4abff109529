// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire-level types shared between the honeypot
// engine, the reasoner gateway, and the callback reporter. Keeping them in
// one leaf package avoids import cycles between the domain packages.
package datatypes

// Message senders. Inbound traffic is attributed to the scammer unless the
// caller says otherwise; engine-authored replies are attributed to the user
// persona the honeypot plays.
const (
	SenderScammer = "scammer"
	SenderUser    = "user"
)

// Message is one turn of conversation text.
//
// Timestamp is always a canonical RFC 3339 string once a message has been
// stored; inbound envelopes may carry ISO-8601 strings, epoch seconds, or
// epoch milliseconds, which the session store normalizes on ingest.
type Message struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Key returns the deduplication key for a message. Two messages with the
// same sender, text, and timestamp are considered the same message.
func (m Message) Key() string {
	return m.Sender + "\x1f" + m.Text + "\x1f" + m.Timestamp
}

// Assessment is the result of scam classification. It is set at most once
// per session; the first classification sticks.
type Assessment struct {
	ScamLikely         bool     `json:"scamLikely"`
	ScamType           string   `json:"scamType"`
	Confidence         float64  `json:"confidence"`
	TriggerPhrases     []string `json:"triggerPhrases"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
	ReasonCodes        []string `json:"reasonCodes"`
}

// ScamSignals carries identity claims the counterparty made about itself.
// String fields are overwritten only by non-empty incoming values; Tactics
// is merged as a set.
type ScamSignals struct {
	ClaimedOrganization string   `json:"claimedOrganization"`
	ClaimedDepartment   string   `json:"claimedDepartment"`
	ScamType            string   `json:"scamType"`
	Tactics             []string `json:"tactics"`
}

// AgentReply is the reasoner's proposed next outgoing message, before the
// planner's validation/repair pipeline has run.
type AgentReply struct {
	Reply             string   `json:"reply"`
	IntentTag         string   `json:"intentTag"`
	ExtractionTargets []string `json:"extractionTargets"`
}

// EndDecision is the reasoner's (or the deterministic bypass's) answer to
// "has this conversation run its course?".
type EndDecision struct {
	EndConversation bool   `json:"endConversation"`
	Reason          string `json:"reason"`
}
