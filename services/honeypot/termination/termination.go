// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package termination decides when an engagement has run its course.
//
// Every signal here is computed from counters alone; the hard-stop and
// max-turns paths in particular guarantee termination even when every
// external reasoner call fails.
package termination

import "github.com/AleutianAI/honeypot/services/honeypot/config"

// Stats is the counter snapshot the engine takes after each turn's
// bookkeeping, from which every stop signal is derived.
type Stats struct {
	TotalMessages   int
	ScammerMessages int
	ExtractionRuns  int

	// HasExtractionRun is true once any extraction pass has covered the
	// history.
	HasExtractionRun bool

	// HasPrimary: at least one primary category captured.
	// HasAllPrimary: UPI handle, phone number, and bank account all
	// captured.
	HasPrimary    bool
	HasAllPrimary bool

	// LinkEvidence: a phishing link was captured, or one was asked for,
	// or the outgoing history already solicited a link.
	LinkEvidence bool

	// Capture bookmarks; -1 while primary intel is incomplete.
	CaptureTotalMessages   int
	CaptureScammerMessages int

	// NoNewIntelScammerTurns counts scammer turns since the intelligence
	// fingerprint last grew.
	NoNewIntelScammerTurns int

	// StallUsed reports that this turn's reply was a generic stall
	// because the planner ran out of targets.
	StallUsed bool
}

// Signals is the set of independent stop conditions. The conversation
// moves to ENDING when any of them holds.
type Signals struct {
	// EndGate: all minimum engagement floors are met.
	EndGate bool

	// EarlyStop: primary intelligence is complete and has stabilized.
	EarlyStop bool

	// HardStop: the absolute message ceiling was reached.
	HardStop bool

	// MaxTurns: the scammer-turn ceiling was reached.
	MaxTurns bool

	// ExhaustedDialog: nothing left to ask and the volume floors are met.
	ExhaustedDialog bool
}

// Evaluate computes every stop signal from the turn snapshot.
func Evaluate(s Stats, cfg config.Config) Signals {
	var sig Signals

	sig.EndGate = s.TotalMessages >= cfg.MinTotalMessages &&
		s.ScammerMessages >= cfg.MinScammerMessages &&
		s.ExtractionRuns >= cfg.MinExtractionRuns &&
		(!cfg.RequirePrimaryIntel || s.HasPrimary)

	primaryCaptured := s.HasAllPrimary && s.LinkEvidence
	stabilized := s.CaptureTotalMessages >= 0 &&
		s.CaptureScammerMessages >= 0 &&
		s.TotalMessages-s.CaptureTotalMessages >= cfg.PostPrimaryGraceTotalMessages &&
		s.ScammerMessages-s.CaptureScammerMessages >= cfg.PostPrimaryGraceScammerMessages
	stalled := s.NoNewIntelScammerTurns >= cfg.NoNewIntelScammerTurns
	sig.EarlyStop = s.HasExtractionRun &&
		primaryCaptured &&
		stabilized &&
		stalled &&
		s.TotalMessages >= cfg.EarlyStopMinTotalMessages &&
		s.ScammerMessages >= cfg.EarlyStopMinScammerMessages

	sig.HardStop = s.TotalMessages >= cfg.HardStopMessageCap()
	sig.MaxTurns = s.ScammerMessages >= cfg.MaxScammerTurns

	sig.ExhaustedDialog = s.StallUsed &&
		s.HasExtractionRun &&
		primaryCaptured &&
		s.TotalMessages >= relaxedFloor(12, cfg.MinTotalMessages-2) &&
		s.ScammerMessages >= relaxedFloor(6, cfg.MinScammerMessages-2)

	return sig
}

// ShouldEvaluateEnd reports whether any stop signal fired and an end
// decision is due.
func (sig Signals) ShouldEvaluateEnd() bool {
	return sig.HardStop || sig.MaxTurns || sig.EarlyStop || sig.ExhaustedDialog || sig.EndGate
}

// Bypass reports whether the end decision is deterministic: the hard-stop
// and max-turns ceilings end the conversation without consulting the
// reasoner at all.
func (sig Signals) Bypass() bool {
	return sig.HardStop || sig.MaxTurns
}

// Any reports whether any deterministic stop signal holds. When the end
// reasoner call fails, the fallback decision is exactly this.
func (sig Signals) Any() bool {
	return sig.ShouldEvaluateEnd()
}

// Reason names the strongest signal, for logging and the end decision.
func (sig Signals) Reason() string {
	switch {
	case sig.MaxTurns:
		return "Max scammer turns reached"
	case sig.HardStop:
		return "Hard stop reached"
	case sig.EarlyStop:
		return "Primary intelligence captured and stable"
	case sig.ExhaustedDialog:
		return "Dialog targets exhausted"
	case sig.EndGate:
		return "Engagement floors met"
	default:
		return ""
	}
}

func relaxedFloor(absolute, relative int) int {
	if relative > absolute {
		return relative
	}
	return absolute
}
