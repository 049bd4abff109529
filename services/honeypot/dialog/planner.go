// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dialog

import (
	"strings"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// State is the planner's view of one session at the start of a turn.
type State struct {
	// Have marks targets whose value is already known, either from the
	// merged intelligence sets or from a re-scan of raw history.
	Have map[Target]bool

	// AskedCounts is the per-target ask counter (see AskedKey).
	AskedCounts map[string]int

	// LastIntentTags is the bounded ring of recent intent tags.
	LastIntentTags []string

	// ScamType reorders the target priority when known.
	ScamType string
}

// RepairResult is the outcome of the reply validation/repair pipeline.
type RepairResult struct {
	// Reply is the final outgoing reply text.
	Reply datatypes.AgentReply

	// MergedTargets is the union of targets the final reply solicits and
	// the satisfied forced target; asked counts are bumped for these.
	MergedTargets []Target

	// UsedStall reports that the generic stall phrasing was used because
	// no target remained. The termination engine's exhausted-dialog
	// signal keys off this.
	UsedStall bool
}

// Planner chooses what to ask next and repairs proposed replies.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Planner struct {
	rules     *config.Rules
	extractor *intel.Extractor
}

// NewPlanner creates a Planner with the given rule vocabularies and
// extraction heuristics.
func NewPlanner(rules *config.Rules, extractor *intel.Extractor) *Planner {
	return &Planner{rules: rules, extractor: extractor}
}

// =============================================================================
// Derived state
// =============================================================================

// BuildState derives the planner's view from canonical session state.
//
// Description:
//
//	Have is the OR of two signals: values present in the merged
//	intelligence sets, and a cheap re-scan of the scammer-authored
//	history using the same extraction heuristics. The re-scan recognizes
//	a target as satisfied even before the next full extraction pass has
//	covered the message that satisfied it.
func (p *Planner) BuildState(il intel.Intelligence, signals datatypes.ScamSignals,
	assessment *datatypes.Assessment, askedCounts map[string]int,
	lastIntentTags []string, messages []datatypes.Message) State {

	observed := p.extractor.FromHistory(messages)
	scammerText := scammerTextOf(messages)

	have := map[Target]bool{
		TargetUPIID:        len(il.UpiIDs) > 0 || len(observed.UpiIDs) > 0,
		TargetBankAccount:  len(il.BankAccounts) > 0 || len(observed.BankAccounts) > 0,
		TargetPhishingLink: len(il.PhishingLinks) > 0 || len(observed.PhishingLinks) > 0,
		TargetPhoneNumber:  len(il.PhoneNumbers) > 0 || len(observed.PhoneNumbers) > 0,
		TargetEmailAddress: len(il.EmailAddresses) > 0 || len(observed.EmailAddresses) > 0,
		TargetCaseID:       len(il.CaseIDs) > 0 || len(observed.CaseIDs) > 0,
		TargetPolicyNumber: len(il.PolicyNumbers) > 0 || len(observed.PolicyNumbers) > 0,
		TargetOrderNumber:  len(il.OrderNumbers) > 0 || len(observed.OrderNumbers) > 0,
		TargetAgentName:    len(il.AgentNames) > 0 || agentNameHintRe.MatchString(scammerText),
		TargetClaimedOrg:   signals.ClaimedOrganization != "" || claimedOrgHintRe.MatchString(scammerText),
	}

	scamType := signals.ScamType
	if scamType == "" || scamType == "unknown" {
		if assessment != nil && assessment.ScamType != "" {
			scamType = assessment.ScamType
		}
	}

	return State{
		Have:           have,
		AskedCounts:    askedCounts,
		LastIntentTags: lastIntentTags,
		ScamType:       scamType,
	}
}

func scammerTextOf(messages []datatypes.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if msg.Sender != datatypes.SenderScammer {
			continue
		}
		b.WriteString(msg.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// =============================================================================
// Forced target selection
// =============================================================================

// ChooseForcedTarget picks the single target to pursue this turn.
//
// Description:
//
//	Walks a fixed priority ordering, reordered by the session's scam type
//	when a specific ordering exists for it. A target is skipped once its
//	value is known or it has been asked about twice. Returns TargetNone
//	when all targets are known or exhausted. The determinism here is
//	load-bearing: it is what prevents repetition loops regardless of
//	reasoner output.
func (p *Planner) ChooseForcedTarget(st State) Target {
	if order, ok := p.rules.Targets.ScamTypePriority[st.ScamType]; ok {
		if t := p.firstAskable(order, st); t != TargetNone {
			return t
		}
	}
	return p.firstAskable(p.rules.Targets.DefaultPriority, st)
}

func (p *Planner) firstAskable(order []string, st State) Target {
	for _, name := range order {
		t := Target(name)
		if st.Have[t] {
			continue
		}
		if st.AskedCounts[AskedKey(t)] >= 2 {
			continue
		}
		return t
	}
	return TargetNone
}

// KnownOrExhausted reports whether a target needs no further asking.
func (st State) KnownOrExhausted(t Target) bool {
	if t == TargetNone {
		return false
	}
	return st.Have[t] || st.AskedCounts[AskedKey(t)] >= 2
}

// =============================================================================
// Reply inspection
// =============================================================================

// InferTargets lists the targets a reply appears to solicit. A reply that
// is not phrased as a question solicits nothing.
func InferTargets(reply string) []Target {
	if !strings.Contains(reply, "?") && !questionLikeRe.MatchString(reply) {
		return nil
	}
	var out []Target
	for _, t := range inferOrder {
		if inferPatterns[t].MatchString(reply) {
			out = append(out, t)
		}
	}
	return out
}

// MentionsTarget reports whether the reply references the target at all.
func MentionsTarget(reply string, t Target) bool {
	if t == TargetNone {
		return true
	}
	re, ok := mentionPatterns[t]
	if !ok {
		return true
	}
	return re.MatchString(reply)
}

// CannedQuestion returns the fixed question for a target, or "" for
// TargetNone.
func (p *Planner) CannedQuestion(t Target) string {
	return p.rules.Targets.Questions[string(t)]
}

// StallReply picks the next generic stall phrasing.
//
// Description:
//
//	The variant index advances with each stall already present in the
//	outgoing history, so consecutive stalls never repeat verbatim until
//	the variants are spent (the last variant then repeats).
func (p *Planner) StallReply(messages []datatypes.Message) string {
	used := 0
	for _, msg := range messages {
		if msg.Sender != datatypes.SenderUser {
			continue
		}
		for _, variant := range p.rules.StallVariants {
			if strings.Contains(msg.Text, variant) {
				used++
				break
			}
		}
	}
	if used >= len(p.rules.StallVariants) {
		used = len(p.rules.StallVariants) - 1
	}
	return p.rules.StallVariants[used]
}

// Disengagement returns the post-report sign-off line.
func (p *Planner) Disengagement() string {
	return p.rules.Disengagement
}

// =============================================================================
// Red-flag acknowledgement
// =============================================================================

// AcknowledgeRedFlag prefixes the reply with a short acknowledgement of
// the most salient red flag in the incoming message, unless the reply
// already references red-flag vocabulary. This enforces that every
// outgoing turn demonstrably reacts to the incoming one.
func (p *Planner) AcknowledgeRedFlag(reply, incomingText string) string {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || redFlagVocabRe.MatchString(trimmed) {
		return trimmed
	}
	for i := range p.rules.RedFlagCues {
		if p.rules.RedFlagCues[i].Matches(incomingText) {
			return p.rules.RedFlagCues[i].Cue + " " + trimmed
		}
	}
	return trimmed
}

// =============================================================================
// Repair pipeline
// =============================================================================

// Repair validates and, where necessary, replaces the proposed reply.
//
// Description:
//
//	Applies the pipeline in order: (a) infer which targets the reply
//	solicits; (b) if any inferred target is already known or exhausted,
//	replace the reply with the canned question for the forced target, or
//	with a non-repeating stall when no target remains; (c) if a forced
//	target exists but the reply fails to mention it, or is not phrased
//	as a question, replace it with the canned question; (d) prefix a
//	red-flag acknowledgement when the reply does not already react to
//	the incoming message.
func (p *Planner) Repair(proposed datatypes.AgentReply, st State, forced Target,
	incomingText string, history []datatypes.Message) RepairResult {

	final := strings.TrimSpace(proposed.Reply)
	intentTag := proposed.IntentTag
	usedStall := false
	replyTargets := InferTargets(final)

	blocked := false
	for _, t := range replyTargets {
		if st.KnownOrExhausted(t) {
			blocked = true
			break
		}
	}
	if blocked || final == "" {
		fallbackTarget := forced
		if fallbackTarget == TargetNone || st.KnownOrExhausted(fallbackTarget) {
			fallbackTarget = p.ChooseForcedTarget(st)
		}
		if fallbackTarget != TargetNone {
			final = p.CannedQuestion(fallbackTarget)
		} else {
			final = p.StallReply(history)
			intentTag = "STALL"
			usedStall = true
		}
		replyTargets = InferTargets(final)
	}

	if forced != TargetNone && !MentionsTarget(final, forced) {
		if canned := p.CannedQuestion(forced); canned != "" {
			final = canned
			replyTargets = InferTargets(final)
		}
	}
	if forced != TargetNone && final != "" && !strings.Contains(final, "?") {
		if canned := p.CannedQuestion(forced); canned != "" {
			final = canned
			replyTargets = InferTargets(final)
		}
	}

	final = p.AcknowledgeRedFlag(final, incomingText)

	merged := make([]Target, 0, len(replyTargets)+1)
	seen := make(map[Target]bool, len(replyTargets)+1)
	for _, t := range replyTargets {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	if forced != TargetNone && MentionsTarget(final, forced) && !seen[forced] {
		merged = append(merged, forced)
	}

	targets := make([]string, 0, len(merged))
	for _, t := range merged {
		targets = append(targets, string(t))
	}

	return RepairResult{
		Reply: datatypes.AgentReply{
			Reply:             final,
			IntentTag:         intentTag,
			ExtractionTargets: targets,
		},
		MergedTargets: merged,
		UsedStall:     usedStall,
	}
}

// AskedKeys maps targets to their asked-count keys.
func AskedKeys(targets []Target) []string {
	keys := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == TargetNone {
			continue
		}
		keys = append(keys, AskedKey(t))
	}
	return keys
}
