// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report builds the final-result payload for an ended engagement
// and delivers it to the external collector with retries and a legacy
// format fallback.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// =============================================================================
// Payload Shapes
// =============================================================================

// EngagementMetrics summarizes engagement volume and duration.
type EngagementMetrics struct {
	TotalMessagesExchanged    int   `json:"totalMessagesExchanged"`
	EngagementDurationSeconds int64 `json:"engagementDurationSeconds"`
}

// Payload is the extended final-result shape.
type Payload struct {
	Status                    string             `json:"status"`
	SessionID                 string             `json:"sessionId"`
	ScamDetected              bool               `json:"scamDetected"`
	TotalMessagesExchanged    int                `json:"totalMessagesExchanged"`
	EngagementDurationSeconds int64              `json:"engagementDurationSeconds"`
	ExtractedIntelligence     intel.Intelligence `json:"extractedIntelligence"`
	EngagementMetrics         EngagementMetrics  `json:"engagementMetrics"`
	ScamType                  string             `json:"scamType"`
	ConfidenceLevel           float64            `json:"confidenceLevel"`
	AgentNotes                string             `json:"agentNotes"`
}

// legacyIntelligence is the original six-category intelligence shape.
type legacyIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UpiIDs             []string `json:"upiIds"`
	EmailAddresses     []string `json:"emailAddresses"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// legacyPayload is the original collector contract, kept as a compatibility
// fallback for collectors that reject unknown fields.
type legacyPayload struct {
	SessionID              string             `json:"sessionId"`
	ScamDetected           bool               `json:"scamDetected"`
	TotalMessagesExchanged int                `json:"totalMessagesExchanged"`
	ExtractedIntelligence  legacyIntelligence `json:"extractedIntelligence"`
	AgentNotes             string             `json:"agentNotes"`
}

func toLegacy(p Payload) legacyPayload {
	return legacyPayload{
		SessionID:              p.SessionID,
		ScamDetected:           p.ScamDetected,
		TotalMessagesExchanged: p.TotalMessagesExchanged,
		ExtractedIntelligence: legacyIntelligence{
			BankAccounts:       emptied(p.ExtractedIntelligence.BankAccounts),
			UpiIDs:             emptied(p.ExtractedIntelligence.UpiIDs),
			EmailAddresses:     emptied(p.ExtractedIntelligence.EmailAddresses),
			PhishingLinks:      emptied(p.ExtractedIntelligence.PhishingLinks),
			PhoneNumbers:       emptied(p.ExtractedIntelligence.PhoneNumbers),
			SuspiciousKeywords: emptied(p.ExtractedIntelligence.SuspiciousKeywords),
		},
		AgentNotes: p.AgentNotes,
	}
}

// emptied keeps array fields serializing as [] rather than null.
func emptied(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

// =============================================================================
// Payload Assembly
// =============================================================================

// BuildInput is everything the payload builder reads from the session.
type BuildInput struct {
	SessionID     string
	TotalMessages int
	Engagement    time.Duration
	MinEngagement time.Duration
	Intelligence  intel.Intelligence
	Signals       datatypes.ScamSignals
	Assessment    datatypes.Assessment
	AgentNotes    string
}

// Build assembles the extended final-result payload.
//
// Description:
//
//	The reported engagement duration is floored at MinEngagement. The scam
//	type prefers the extraction-observed signal over the initial
//	classification. Secondary identifiers (case/policy/order/staff IDs,
//	names, claimed org and department) are folded into agentNotes so that
//	legacy collectors without those fields still receive them.
func Build(in BuildInput) Payload {
	duration := in.Engagement
	if duration < in.MinEngagement {
		duration = in.MinEngagement
	}
	seconds := int64(duration.Seconds())

	scamType := in.Signals.ScamType
	if scamType == "" {
		scamType = in.Assessment.ScamType
	}
	if scamType == "" {
		scamType = "unknown"
	}

	metrics := EngagementMetrics{
		TotalMessagesExchanged:    in.TotalMessages,
		EngagementDurationSeconds: seconds,
	}
	return Payload{
		Status:                    "success",
		SessionID:                 in.SessionID,
		ScamDetected:              true,
		TotalMessagesExchanged:    in.TotalMessages,
		EngagementDurationSeconds: seconds,
		ExtractedIntelligence:     normalized(in.Intelligence),
		EngagementMetrics:         metrics,
		ScamType:                  scamType,
		ConfidenceLevel:           in.Assessment.Confidence,
		AgentNotes:                buildAgentNotes(in),
	}
}

func normalized(il intel.Intelligence) intel.Intelligence {
	il.BankAccounts = emptied(il.BankAccounts)
	il.UpiIDs = emptied(il.UpiIDs)
	il.EmailAddresses = emptied(il.EmailAddresses)
	il.PhishingLinks = emptied(il.PhishingLinks)
	il.PhoneNumbers = emptied(il.PhoneNumbers)
	il.SuspiciousKeywords = emptied(il.SuspiciousKeywords)
	il.CaseIDs = emptied(il.CaseIDs)
	il.PolicyNumbers = emptied(il.PolicyNumbers)
	il.OrderNumbers = emptied(il.OrderNumbers)
	il.StaffIDs = emptied(il.StaffIDs)
	il.AgentNames = emptied(il.AgentNames)
	return il
}

func buildAgentNotes(in BuildInput) string {
	var parts []string
	if in.AgentNotes != "" {
		parts = append(parts, in.AgentNotes)
	}
	appendList := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", label, strings.Join(values, ", ")))
		}
	}
	appendList("Case IDs", in.Intelligence.CaseIDs)
	appendList("Policy Numbers", in.Intelligence.PolicyNumbers)
	appendList("Order Numbers", in.Intelligence.OrderNumbers)
	appendList("Staff IDs", in.Intelligence.StaffIDs)
	appendList("Names", in.Intelligence.AgentNames)
	if in.Signals.ClaimedOrganization != "" {
		parts = append(parts, "Claimed org: "+in.Signals.ClaimedOrganization)
	}
	if in.Signals.ClaimedDepartment != "" {
		parts = append(parts, "Claimed dept: "+in.Signals.ClaimedDepartment)
	}
	return strings.Join(parts, " ")
}
