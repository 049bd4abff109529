// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/dialog"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
	"github.com/AleutianAI/honeypot/services/honeypot/reasoner"
	"github.com/AleutianAI/honeypot/services/honeypot/report"
	"github.com/AleutianAI/honeypot/services/honeypot/session"
)

// =============================================================================
// Stubs
// =============================================================================

// stubReasoner scripts every capability. Reply always proposes the same
// UPI question, so the planner's repair pipeline is exercised on every turn.
type stubReasoner struct {
	extractor   *intel.Extractor
	scamLikely  bool
	classifyErr error
	endAllowed  bool

	classifyCalls int
	endCalls      int
}

func (s *stubReasoner) Classify(_ context.Context, in reasoner.ClassifyInput) (datatypes.Assessment, error) {
	s.classifyCalls++
	if s.classifyErr != nil {
		return datatypes.Assessment{}, s.classifyErr
	}
	return datatypes.Assessment{
		ScamLikely: s.scamLikely,
		ScamType:   "upi_fraud",
		Confidence: 0.9,
	}, nil
}

func (s *stubReasoner) Reply(context.Context, reasoner.ReplyInput) (datatypes.AgentReply, error) {
	return datatypes.AgentReply{Reply: "Which UPI ID should I use?", IntentTag: "ASK_UPI"}, nil
}

func (s *stubReasoner) Extract(_ context.Context, in reasoner.ExtractInput) (reasoner.Extraction, error) {
	return reasoner.Extraction{
		Intelligence: s.extractor.FromHistory(in.Messages),
		AgentNotes:   "verification identifiers collected",
	}, nil
}

func (s *stubReasoner) ShouldEnd(context.Context, reasoner.EndInput) (datatypes.EndDecision, error) {
	s.endCalls++
	return datatypes.EndDecision{
		EndConversation: s.endAllowed,
		Reason:          "scripted decision",
	}, nil
}

// downReasoner fails every capability, simulating a full provider outage.
type downReasoner struct{}

func (downReasoner) Classify(context.Context, reasoner.ClassifyInput) (datatypes.Assessment, error) {
	return datatypes.Assessment{}, errors.New("upstream timeout")
}

func (downReasoner) Reply(context.Context, reasoner.ReplyInput) (datatypes.AgentReply, error) {
	return datatypes.AgentReply{}, errors.New("upstream timeout")
}

func (downReasoner) Extract(context.Context, reasoner.ExtractInput) (reasoner.Extraction, error) {
	return reasoner.Extraction{}, errors.New("upstream timeout")
}

func (downReasoner) ShouldEnd(context.Context, reasoner.EndInput) (datatypes.EndDecision, error) {
	return datatypes.EndDecision{}, errors.New("upstream timeout")
}

// stubDeliverer records payloads and fails the first failUntil deliveries.
type stubDeliverer struct {
	payloads  []report.Payload
	failUntil int
	calls     int
}

func (d *stubDeliverer) Deliver(_ context.Context, payload report.Payload) error {
	d.calls++
	if d.calls <= d.failUntil {
		return errors.New("collector unavailable")
	}
	d.payloads = append(d.payloads, payload)
	return nil
}

// =============================================================================
// Harness
// =============================================================================

var engineNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinTotalMessages = 6
	cfg.MinScammerMessages = 3
	cfg.MinExtractionRuns = 1
	cfg.GraceMessages = 2 // hard stop at 8 messages
	cfg.MaxScammerTurns = 5
	cfg.ExtractEveryMessages = 3
	return cfg
}

func newTestEngine(t *testing.T, rsn reasoner.Reasoner, del Deliverer, cfg config.Config) (*Engine, *session.Store) {
	t.Helper()
	rules := config.MustRules()
	extractor := intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords)
	planner := dialog.NewPlanner(rules, extractor)
	store := session.NewStoreWithClock(func() time.Time { return engineNow })
	eng := New(store, rsn, del, planner, extractor, cfg, nil).
		WithClock(func() time.Time { return engineNow })
	return eng, store
}

func turn(i int, text string) TurnInput {
	return TurnInput{
		SessionID: "s-engine",
		Message: datatypes.Message{
			Sender:    datatypes.SenderScammer,
			Text:      text,
			Timestamp: fmt.Sprintf("2025-06-01T12:00:%02dZ", i),
		},
	}
}

// scamScript feeds the primary identifiers one per turn.
var scamScript = []string{
	"Your KYC is pending, pay to fraud@ybl urgent",
	"Also call 9876543210 now, urgent",
	"Transfer to account number 1234567890 or pay the fee",
	"Quote case id REF-77 when you pay, urgent",
	"Why the delay? Act now or account blocked",
	"Last warning, pay immediately",
}

// =============================================================================
// Tests
// =============================================================================

func TestProcessTurnNonScam(t *testing.T) {
	rsn := &stubReasoner{scamLikely: false, extractor: intel.DefaultExtractor()}
	eng, _ := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())

	res, err := eng.ProcessTurn(context.Background(), turn(0, "hi, lunch tomorrow?"))
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if res.Note != "Message is not likely a scam." {
		t.Errorf("Note = %q", res.Note)
	}
	if res.Reply != "" {
		t.Errorf("Reply = %q, want silence for non-scam traffic", res.Reply)
	}

	// The first classification sticks; later turns skip the reasoner.
	if _, err := eng.ProcessTurn(context.Background(), turn(1, "sure, noon works")); err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if rsn.classifyCalls != 1 {
		t.Errorf("classifyCalls = %d, want 1", rsn.classifyCalls)
	}
}

func TestProcessTurnClassificationErrorPropagates(t *testing.T) {
	rsn := &stubReasoner{classifyErr: context.Canceled, extractor: intel.DefaultExtractor()}
	eng, _ := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())

	if _, err := eng.ProcessTurn(context.Background(), turn(0, "anything")); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestConversationTerminatesAndReportsOnce(t *testing.T) {
	rules := config.MustRules()
	rsn := &stubReasoner{
		scamLikely: true,
		endAllowed: false, // the reasoner never agrees to stop
		extractor:  intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords),
	}
	del := &stubDeliverer{}
	eng, store := newTestEngine(t, rsn, del, testConfig())
	ctx := context.Background()

	var ended bool
	for i, text := range scamScript {
		res, err := eng.ProcessTurn(ctx, turn(i, text))
		if err != nil {
			t.Fatalf("turn %d error = %v", i, err)
		}
		if res.Reply == "" {
			t.Fatalf("turn %d produced no reply", i)
		}
		if res.Reply == rules.Disengagement {
			ended = true
			break
		}
	}
	if !ended {
		t.Fatal("conversation never reached the ceiling despite the reasoner refusing to end")
	}
	if rsn.endCalls == 0 {
		t.Error("end reasoner never consulted before the ceiling")
	}
	if len(del.payloads) != 1 {
		t.Fatalf("deliveries = %d, want exactly one", len(del.payloads))
	}

	payload := del.payloads[0]
	if payload.SessionID != "s-engine" {
		t.Errorf("payload.SessionID = %q", payload.SessionID)
	}
	if !payload.ScamDetected {
		t.Error("payload.ScamDetected = false")
	}
	if payload.EngagementDurationSeconds != 181 {
		t.Errorf("duration = %d, want the 181s floor", payload.EngagementDurationSeconds)
	}
	if len(payload.ExtractedIntelligence.UpiIDs) == 0 ||
		len(payload.ExtractedIntelligence.PhoneNumbers) == 0 ||
		len(payload.ExtractedIntelligence.BankAccounts) == 0 {
		t.Errorf("primary intelligence incomplete: %+v", payload.ExtractedIntelligence)
	}

	sess := store.Get("s-engine")
	if sess.LifecycleState != session.StateReported {
		t.Errorf("LifecycleState = %v, want REPORTED", sess.LifecycleState)
	}
	for key, count := range sess.Dialog.AskedCounts {
		if count > 2 {
			t.Errorf("AskedCounts[%s] = %d, exceeds the clamp", key, count)
		}
	}

	// Every further message gets the same sign-off and no new delivery.
	res, err := eng.ProcessTurn(ctx, turn(30, "hello? are you there?"))
	if err != nil {
		t.Fatalf("post-report turn error = %v", err)
	}
	if res.Reply != rules.Disengagement {
		t.Errorf("post-report reply = %q, want disengagement line", res.Reply)
	}
	if del.calls != 1 {
		t.Errorf("deliverer calls = %d after post-report turn, want 1", del.calls)
	}
}

func TestReportRetriedAfterDeliveryFailure(t *testing.T) {
	rules := config.MustRules()
	rsn := &stubReasoner{
		scamLikely: true,
		extractor:  intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords),
	}
	del := &stubDeliverer{failUntil: 1}
	eng, store := newTestEngine(t, rsn, del, testConfig())
	ctx := context.Background()

	var sawDisengagement bool
	for i, text := range scamScript {
		res, err := eng.ProcessTurn(ctx, turn(i, text))
		if err != nil {
			t.Fatalf("turn %d error = %v", i, err)
		}
		if res.Reply == rules.Disengagement {
			sawDisengagement = true
			break
		}
	}
	if !sawDisengagement {
		t.Fatal("conversation never ended")
	}

	sess := store.Get("s-engine")
	if sess.CallbackSent {
		t.Fatal("CallbackSent latched despite the delivery failure")
	}
	if !sess.EndConversation {
		t.Fatal("EndConversation not latched at the ceiling")
	}

	// The next scammer message re-runs the pipeline and retries delivery.
	res, err := eng.ProcessTurn(ctx, turn(20, "so is it done or not? urgent"))
	if err != nil {
		t.Fatalf("retry turn error = %v", err)
	}
	if res.Reply != rules.Disengagement {
		t.Errorf("retry reply = %q, want disengagement line", res.Reply)
	}
	if len(del.payloads) != 1 {
		t.Fatalf("successful deliveries = %d, want 1", len(del.payloads))
	}
	if !store.Get("s-engine").CallbackSent {
		t.Error("CallbackSent not latched after the successful retry")
	}
}

func TestInlineExtractionIsMonotone(t *testing.T) {
	rules := config.MustRules()
	rsn := &stubReasoner{
		scamLikely: true,
		extractor:  intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords),
	}
	eng, store := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())
	ctx := context.Background()

	if _, err := eng.ProcessTurn(ctx, turn(0, "Pay to fraud@ybl urgent, your kyc expires")); err != nil {
		t.Fatalf("turn error = %v", err)
	}
	sess := store.Get("s-engine")
	if len(sess.Intelligence.UpiIDs) != 1 {
		t.Fatalf("upiIds = %v after inline extraction", sess.Intelligence.UpiIDs)
	}

	if _, err := eng.ProcessTurn(ctx, turn(1, "did you pay yet?")); err != nil {
		t.Fatalf("turn error = %v", err)
	}
	if len(sess.Intelligence.UpiIDs) != 1 {
		t.Errorf("upiIds = %v, capture lost on an empty turn", sess.Intelligence.UpiIDs)
	}
}

func TestHistoryHydration(t *testing.T) {
	rules := config.MustRules()
	rsn := &stubReasoner{
		scamLikely: true,
		extractor:  intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords),
	}
	eng, store := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())

	in := turn(5, "any questions?")
	in.History = []datatypes.Message{
		{Sender: datatypes.SenderScammer, Text: "send to fraud@ybl", Timestamp: "2025-06-01T11:59:00Z"},
		{Sender: datatypes.SenderScammer, Text: "or call 9876543210", Timestamp: "2025-06-01T11:59:30Z"},
	}
	if _, err := eng.ProcessTurn(context.Background(), in); err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}

	sess := store.Get("s-engine")
	if len(sess.Intelligence.UpiIDs) != 1 || len(sess.Intelligence.PhoneNumbers) != 1 {
		t.Errorf("hydrated intelligence = %+v, want handle and phone from history", sess.Intelligence)
	}
}

func TestLinkEvidence(t *testing.T) {
	rules := config.MustRules()
	extractor := intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords)
	rsn := &stubReasoner{scamLikely: true, extractor: extractor}
	eng, store := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())

	if _, err := eng.ProcessTurn(context.Background(), turn(0, "open https://evil.example/verify urgent")); err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if !eng.hasLinkEvidence(store.Get("s-engine")) {
		t.Error("link evidence missed after a captured phishing link")
	}
}

func TestMetadataMerged(t *testing.T) {
	rsn := &stubReasoner{scamLikely: false, extractor: intel.DefaultExtractor()}
	eng, store := newTestEngine(t, rsn, &stubDeliverer{}, testConfig())

	in := turn(0, "hello")
	in.Metadata = map[string]any{"channel": "sms", "locale": "en-IN"}
	if _, err := eng.ProcessTurn(context.Background(), in); err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if got := store.Get("s-engine").Metadata["channel"]; got != "sms" {
		t.Errorf("Metadata[channel] = %v", got)
	}
}

func TestProviderOutageTerminatesNeverAnsweringSession(t *testing.T) {
	rules := config.MustRules()
	extractor := intel.NewExtractor(rules.UPISuffixes, rules.SuspiciousKeywords)
	planner := dialog.NewPlanner(rules, extractor)
	secondary := reasoner.NewRuleBased(rules, extractor, planner)
	rsn := reasoner.WithFallback(downReasoner{}, secondary, nil)
	del := &stubDeliverer{}
	cfg := config.Default()
	eng, store := newTestEngine(t, rsn, del, cfg)

	// Fifty turns of pressure with no identifier ever provided.
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		res, err := eng.ProcessTurn(ctx, turn(i, "Your bank account blocked, share OTP urgent"))
		if err != nil {
			t.Fatalf("turn %d error = %v", i, err)
		}
		if res.Reply == "" {
			t.Fatalf("turn %d produced no reply", i)
		}
	}

	sess := store.Get("s-engine")
	if !sess.CallbackSent {
		t.Fatal("conversation never terminated under provider outage")
	}
	if del.calls != 1 {
		t.Errorf("Deliver calls = %d, want exactly one report", del.calls)
	}
	if ceiling := cfg.HardStopMessageCap() + 1; len(sess.Messages) > ceiling {
		t.Errorf("len(Messages) = %d, exceeds the ceiling plus sign-off (%d)", len(sess.Messages), ceiling)
	}
	for key, count := range sess.Dialog.AskedCounts {
		if count > 2 {
			t.Errorf("AskedCounts[%s] = %d, exceeds the clamp", key, count)
		}
	}
	if len(del.payloads) == 1 && !del.payloads[0].ScamDetected {
		t.Error("report does not flag the scam")
	}
}
