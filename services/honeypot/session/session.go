// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns per-session mutable state and its lifecycle.
//
// A Session is shared mutable state; all processing for one session id is
// serialized by locking the session for the full turn. Unrelated sessions
// proceed fully in parallel with no shared state beyond the store map.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// =============================================================================
// Lifecycle State
// =============================================================================

// State is the session's position in the termination lifecycle.
type State int

const (
	// StateActive is the normal engagement state.
	StateActive State = iota
	// StateEnding means a stop signal fired and an end decision is pending.
	StateEnding
	// StateEnded means the conversation is over but no report has landed.
	StateEnded
	// StateReported is terminal: the final report was delivered.
	StateReported
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateEnding:
		return "ENDING"
	case StateEnded:
		return "ENDED"
	case StateReported:
		return "REPORTED"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// Session
// =============================================================================

// DialogState tracks what the planner has asked for and how often.
type DialogState struct {
	// AskedCounts is monotonically non-decreasing per target key and is
	// clamped at 2, the exhaustion threshold.
	AskedCounts map[string]int `json:"askedCounts"`

	// LastIntentTags is a bounded ring of the last three intent tags.
	LastIntentTags []string `json:"lastIntentTags"`
}

// Session is the full state of one engagement, keyed by an opaque id.
// Created lazily, it lives for the process lifetime and is never deleted.
//
// Thread Safety: Callers must hold the session lock (Lock/Unlock) across a
// whole turn; every mutating method assumes the lock is held.
type Session struct {
	mu sync.Mutex

	ID        string              `json:"sessionId"`
	Messages  []datatypes.Message `json:"messages"`
	StartedAt time.Time           `json:"startedAt"`

	// Assessment is set at most once; the first classification sticks.
	Assessment *datatypes.Assessment `json:"scamAssessment"`

	Intelligence intel.Intelligence    `json:"extractedIntelligence"`
	Signals      datatypes.ScamSignals `json:"scamSignals"`
	AgentNotes   string                `json:"agentNotes"`
	Dialog       DialogState           `json:"dialogState"`
	Metadata     map[string]any        `json:"metadata"`

	// Extraction coverage bookkeeping.
	ExtractionRuns            int `json:"extractionRuns"`
	LastExtractedMessageCount int `json:"lastExtractedMessageCount"`

	// Capture-time bookmarks for the termination engine's stabilization
	// test. The capture bookmarks are -1 until primary intel is complete.
	PrimaryCaptureTotalMessages   int    `json:"primaryCaptureTotalMessages"`
	PrimaryCaptureScammerMessages int    `json:"primaryCaptureScammerMessages"`
	LastIntelFingerprint          string `json:"-"`
	LastIntelGrowthScammerTurns   int    `json:"lastIntelGrowthScammerMessages"`

	// One-way latches.
	EndConversation bool `json:"endConversation"`
	CallbackSent    bool `json:"callbackSent"`

	LifecycleState State `json:"state"`

	// ResponseTimesMs is append-only, for observability.
	ResponseTimesMs []int64 `json:"-"`


	msgKeys map[string]bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:                            id,
		StartedAt:                     now,
		Metadata:                      make(map[string]any),
		Dialog:                        DialogState{AskedCounts: make(map[string]int)},
		PrimaryCaptureTotalMessages:   -1,
		PrimaryCaptureScammerMessages: -1,
		LifecycleState:                StateActive,
		msgKeys:                       make(map[string]bool),
	}
}

// Lock serializes turn processing for this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// =============================================================================
// Message history
// =============================================================================

// AppendIfMissing appends a message unless an identical (sender, text,
// timestamp) message is already stored. Returns whether it appended.
func (s *Session) AppendIfMissing(msg datatypes.Message) bool {
	key := msg.Key()
	if s.msgKeys[key] {
		return false
	}
	s.msgKeys[key] = true
	s.Messages = append(s.Messages, msg)
	return true
}

// AppendReply appends an engine-authored reply with the current time.
func (s *Session) AppendReply(text string, now time.Time) {
	msg := datatypes.Message{
		Sender:    datatypes.SenderUser,
		Text:      text,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	s.msgKeys[msg.Key()] = true
	s.Messages = append(s.Messages, msg)
}

// Reconcile replaces the stored history with a deduplicated, normalized
// version of an externally supplied transcript when the two differ.
//
// Description:
//
//	The incoming transcript is normalized (sender defaulting, timestamp
//	canonicalization) and deduplicated on the (sender, text, timestamp)
//	key. If the result matches the stored history key-for-key, nothing
//	changes. Otherwise the stored history is replaced and
//	LastExtractedMessageCount is capped to the new length, so a shrunk
//	transcript cannot claim extraction coverage it no longer has.
//
// Outputs:
//   - bool: Whether the stored history changed.
func (s *Session) Reconcile(transcript []datatypes.Message, now time.Time) bool {
	if len(transcript) == 0 {
		return false
	}

	keys := make(map[string]bool, len(transcript))
	normalized := make([]datatypes.Message, 0, len(transcript))
	for _, raw := range transcript {
		msg := datatypes.Message{
			Sender:    raw.Sender,
			Text:      raw.Text,
			Timestamp: NormalizeTimestamp(raw.Timestamp, now),
		}
		if msg.Sender == "" {
			msg.Sender = datatypes.SenderScammer
		}
		if msg.Text == "" {
			continue
		}
		key := msg.Key()
		if keys[key] {
			continue
		}
		keys[key] = true
		normalized = append(normalized, msg)
	}

	if len(normalized) == len(s.Messages) {
		same := true
		for i := range normalized {
			if normalized[i].Key() != s.Messages[i].Key() {
				same = false
				break
			}
		}
		if same {
			return false
		}
	}

	s.Messages = normalized
	s.msgKeys = keys
	if s.LastExtractedMessageCount > len(s.Messages) {
		s.LastExtractedMessageCount = len(s.Messages)
	}
	return true
}

// ScammerMessageCount returns the number of scammer-authored messages.
func (s *Session) ScammerMessageCount() int {
	count := 0
	for _, msg := range s.Messages {
		if msg.Sender == datatypes.SenderScammer {
			count++
		}
	}
	return count
}

// =============================================================================
// Assessment, metadata, timing
// =============================================================================

// SetInitialAssessment stores the classification result if none is set.
// The first classification sticks; later calls are ignored.
func (s *Session) SetInitialAssessment(a *datatypes.Assessment) {
	if s.Assessment == nil && a != nil {
		s.Assessment = a
	}
}

// MergeMetadata shallow-merges the incoming key/value overlay.
func (s *Session) MergeMetadata(metadata map[string]any) {
	for k, v := range metadata {
		s.Metadata[k] = v
	}
}

// RecordResponseTime appends one turn latency measurement.
func (s *Session) RecordResponseTime(d time.Duration) {
	s.ResponseTimesMs = append(s.ResponseTimesMs, d.Milliseconds())
}

// EngagementDuration returns how long the session has been running.
func (s *Session) EngagementDuration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	d := now.Sub(s.StartedAt)
	if d < time.Second {
		return time.Second
	}
	return d
}

// =============================================================================
// Intelligence merging
// =============================================================================

// HandleClassifier re-decides whether a stored handle is a UPI VPA, an
// email address, or neither, given the text it was captured from.
// intel.Extractor.ClassifyHandleInContext satisfies it.
type HandleClassifier func(candidate, source string) intel.HandleKind

// MergeIntelligence unions incoming intelligence into the session.
//
// Description:
//
//	Bank-account candidates pass the plausibility filter before merging.
//	All merges are set unions; no category ever loses a value, with one
//	exception: after every merge a reclassification pass moves values
//	between upiIds, emailAddresses, and phishingLinks when the classifier
//	disagrees with the category an earlier pass chose. The pass is
//	idempotent, so a value settles in its corrected category and stays.
func (s *Session) MergeIntelligence(incoming intel.Intelligence, classify HandleClassifier) {
	filtered := make([]string, 0, len(incoming.BankAccounts))
	for _, v := range incoming.BankAccounts {
		if intel.LikelyBankAccount(v) {
			filtered = append(filtered, v)
		}
	}
	incoming.BankAccounts = filtered
	s.Intelligence.Merge(incoming)

	if classify != nil {
		s.reclassifyHandles(classify)
	}
}

// reclassifyHandles moves values between the UPI, email, and link
// categories when the classifier disagrees with the category recorded
// earlier. Values are judged against the scammer transcript, so a handle
// captured with context keeps its context-decided category. Runs after
// every merge; deterministic, so settled values do not bounce.
func (s *Session) reclassifyHandles(classify HandleClassifier) {
	transcript := s.scammerTranscript()

	keepUPI := s.Intelligence.UpiIDs[:0:0]
	for _, v := range s.Intelligence.UpiIDs {
		switch {
		case isLink(v):
			s.Intelligence.PhishingLinks = intel.MergeUnique(s.Intelligence.PhishingLinks, []string{v})
		case classify(v, transcript) == intel.HandleEmail:
			s.Intelligence.EmailAddresses = intel.MergeUnique(s.Intelligence.EmailAddresses, []string{v})
		default:
			keepUPI = append(keepUPI, v)
		}
	}
	s.Intelligence.UpiIDs = keepUPI

	keepEmail := s.Intelligence.EmailAddresses[:0:0]
	for _, v := range s.Intelligence.EmailAddresses {
		switch {
		case isLink(v):
			s.Intelligence.PhishingLinks = intel.MergeUnique(s.Intelligence.PhishingLinks, []string{v})
		case classify(v, transcript) == intel.HandleUPI:
			s.Intelligence.UpiIDs = intel.MergeUnique(s.Intelligence.UpiIDs, []string{v})
		default:
			keepEmail = append(keepEmail, v)
		}
	}
	s.Intelligence.EmailAddresses = keepEmail
}

// scammerTranscript joins the scammer-authored messages; it is the source
// text handles are classified against.
func (s *Session) scammerTranscript() string {
	var b strings.Builder
	for _, m := range s.Messages {
		if m.Sender != datatypes.SenderScammer {
			continue
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func isLink(v string) bool {
	lower := v
	return len(lower) > 8 && (lower[:7] == "http://" || lower[:8] == "https://")
}

// MergeSignals applies incoming identity signals: string fields overwrite
// only with non-empty values, tactics merge as a set.
func (s *Session) MergeSignals(incoming datatypes.ScamSignals) {
	if incoming.ClaimedOrganization != "" {
		s.Signals.ClaimedOrganization = incoming.ClaimedOrganization
	}
	if incoming.ClaimedDepartment != "" {
		s.Signals.ClaimedDepartment = incoming.ClaimedDepartment
	}
	if incoming.ScamType != "" {
		s.Signals.ScamType = incoming.ScamType
	}
	s.Signals.Tactics = intel.MergeUnique(s.Signals.Tactics, incoming.Tactics)
}

// MarkExtractionRun records that an extraction pass covered the current
// message history.
func (s *Session) MarkExtractionRun() {
	s.LastExtractedMessageCount = len(s.Messages)
	s.ExtractionRuns++
}

// ObserveIntel maintains the capture-time bookmarks: it records the turn
// primary intelligence was first fully captured and the last scammer turn
// on which the intelligence fingerprint grew.
func (s *Session) ObserveIntel(totalMessages, scammerMessages int, primaryCapturedNow bool) {
	fingerprint := intel.Fingerprint(s.Intelligence, s.Signals)
	if s.LastIntelFingerprint != fingerprint {
		s.LastIntelFingerprint = fingerprint
		s.LastIntelGrowthScammerTurns = scammerMessages
	}
	if primaryCapturedNow && s.PrimaryCaptureTotalMessages < 0 {
		s.PrimaryCaptureTotalMessages = totalMessages
		s.PrimaryCaptureScammerMessages = scammerMessages
	}
}

// =============================================================================
// Dialog state
// =============================================================================

// BumpAskedCounts increments the asked count for each target key, clamped
// at the exhaustion threshold of 2 so counts stay monotone and bounded.
func (s *Session) BumpAskedCounts(targetKeys []string) {
	for _, key := range targetKeys {
		if key == "" {
			continue
		}
		if s.Dialog.AskedCounts[key] < 2 {
			s.Dialog.AskedCounts[key]++
		}
	}
}

// PushIntentTag records an intent tag in the 3-slot ring buffer.
func (s *Session) PushIntentTag(tag string) {
	if tag == "" {
		return
	}
	s.Dialog.LastIntentTags = append(s.Dialog.LastIntentTags, tag)
	if n := len(s.Dialog.LastIntentTags); n > 3 {
		s.Dialog.LastIntentTags = s.Dialog.LastIntentTags[n-3:]
	}
}

// SetAgentNotes overwrites the free-form analyst notes.
func (s *Session) SetAgentNotes(notes string) {
	if notes != "" {
		s.AgentNotes = notes
	}
}

// =============================================================================
// Latches
// =============================================================================

// MarkEnding moves the session into its wind-down phase, where the final
// extraction pass and report assembly happen.
func (s *Session) MarkEnding() {
	if s.LifecycleState < StateEnding {
		s.LifecycleState = StateEnding
	}
}

// SetEnded latches the end-of-conversation flag. It never resets.
func (s *Session) SetEnded() {
	s.EndConversation = true
	if s.LifecycleState < StateEnded {
		s.LifecycleState = StateEnded
	}
}

// SetCallbackSent latches the report-delivered flag and moves the session
// to its terminal state. It never resets.
func (s *Session) SetCallbackSent() {
	s.CallbackSent = true
	s.LifecycleState = StateReported
}
