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
	"strings"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/dialog"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// neutralAcknowledgement is the reply when no extraction target remains to
// ask for.
const neutralAcknowledgement = "Thanks, I noted that. Is there any other official detail I should keep for verification?"

// RuleBased answers every capability deterministically from the embedded
// rule vocabularies. It never returns an error and never calls out, which
// makes it the universal fallback behind WithFallback and a usable reasoner
// on its own when no provider is configured.
//
// Thread Safety: RuleBased is safe for concurrent use.
type RuleBased struct {
	rules     *config.Rules
	extractor *intel.Extractor
	planner   *dialog.Planner
}

// NewRuleBased creates the deterministic reasoner.
func NewRuleBased(rules *config.Rules, extractor *intel.Extractor, planner *dialog.Planner) *RuleBased {
	return &RuleBased{rules: rules, extractor: extractor, planner: planner}
}

// Classify implements Reasoner with keyword scoring over the newest
// message. Two or more keyword hits flip scamLikely.
func (r *RuleBased) Classify(_ context.Context, in ClassifyInput) (datatypes.Assessment, error) {
	var text string
	if n := len(in.Messages); n > 0 {
		text = in.Messages[n-1].Text
	}
	lower := strings.ToLower(text)

	var keywords, codes []string
	seenCode := make(map[string]bool)
	for _, rule := range r.rules.Classifier.Keywords {
		if !strings.Contains(lower, rule.Keyword) {
			continue
		}
		keywords = append(keywords, rule.Keyword)
		if !seenCode[rule.Code] {
			seenCode[rule.Code] = true
			codes = append(codes, rule.Code)
		}
	}

	score := len(keywords)
	scamLikely := score >= r.rules.Classifier.Threshold

	scamType := "unknown"
	switch {
	case strings.Contains(lower, "upi"):
		scamType = "upi_fraud"
	case strings.Contains(lower, "http://"), strings.Contains(lower, "https://"):
		scamType = "phishing"
	case strings.Contains(lower, "bank"), strings.Contains(lower, "otp"):
		scamType = "bank_fraud"
	case scamLikely:
		scamType = "other"
	}

	confidence := 0.25
	if scamLikely {
		confidence = 0.45 + float64(score)*0.08
		if confidence > 0.95 {
			confidence = 0.95
		}
	}
	if len(codes) == 0 {
		codes = []string{"OTHER"}
	}

	return datatypes.Assessment{
		ScamLikely:         scamLikely,
		ScamType:           scamType,
		Confidence:         confidence,
		TriggerPhrases:     keywords,
		SuspiciousKeywords: keywords,
		ReasonCodes:        codes,
	}, nil
}

// Reply implements Reasoner with the canned question for the forced target,
// or a neutral acknowledgement when nothing is left to ask.
func (r *RuleBased) Reply(_ context.Context, in ReplyInput) (datatypes.AgentReply, error) {
	if in.ForcedTarget == dialog.TargetNone {
		return datatypes.AgentReply{
			Reply:     neutralAcknowledgement,
			IntentTag: "STALL",
		}, nil
	}
	return datatypes.AgentReply{
		Reply:             r.planner.CannedQuestion(in.ForcedTarget),
		IntentTag:         "ASK_CLARIFY",
		ExtractionTargets: []string{string(in.ForcedTarget)},
	}, nil
}

// Extract implements Reasoner with a regex sweep over scammer messages.
func (r *RuleBased) Extract(_ context.Context, in ExtractInput) (Extraction, error) {
	// Signals stay empty so a regex sweep never overwrites identity claims
	// a model pass already captured.
	return Extraction{
		Intelligence: r.extractor.FromHistory(in.Messages),
		AgentNotes:   "Fallback extraction used due to temporary model failure. Intelligence captured from regex parsing.",
	}, nil
}

// ShouldEnd implements Reasoner: end exactly when any deterministic stop
// signal holds.
func (r *RuleBased) ShouldEnd(_ context.Context, in EndInput) (datatypes.EndDecision, error) {
	if in.Signals.Any() {
		return datatypes.EndDecision{
			EndConversation: true,
			Reason:          "Fallback end decision after model failure",
		}, nil
	}
	return datatypes.EndDecision{EndConversation: false, Reason: "Engagement still productive"}, nil
}
