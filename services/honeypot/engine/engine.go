// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine runs the per-turn conversation pipeline: classification,
// reply planning and repair, intelligence extraction, termination
// evaluation, and final-result delivery.
package engine

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/dialog"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
	"github.com/AleutianAI/honeypot/services/honeypot/reasoner"
	"github.com/AleutianAI/honeypot/services/honeypot/report"
	"github.com/AleutianAI/honeypot/services/honeypot/session"
	"github.com/AleutianAI/honeypot/services/honeypot/termination"
)

// linkAskRe backstops link-evidence detection when the reasoner forgot to
// tag extractionTargets on an outgoing link request.
var linkAskRe = regexp.MustCompile(`(?i)(official\s+link|website|url|portal|site)`)

// Deliverer posts a final-result payload to the external collector.
type Deliverer interface {
	Deliver(ctx context.Context, payload report.Payload) error
}

// TurnInput is one inbound message plus its envelope context.
type TurnInput struct {
	SessionID string
	Message   datatypes.Message
	History   []datatypes.Message
	Metadata  map[string]any
}

// TurnResult is the engine's answer to one turn.
//
// Reply is the outgoing message text, empty when the engine stays silent.
// Note carries the human-readable note for non-scam traffic.
type TurnResult struct {
	Reply string
	Note  string
}

// Engine orchestrates the turn pipeline over canonical session state.
//
// Description:
//
//	Each turn runs under the session's lock, so concurrent requests for
//	the same session serialize while distinct sessions proceed in
//	parallel. Every reasoner capability is expected to degrade rather
//	than fail (see reasoner.WithFallback); the only error ProcessTurn
//	returns is caller cancellation.
//
// Thread Safety: Engine is safe for concurrent use.
type Engine struct {
	store     *session.Store
	reasoner  reasoner.Reasoner
	reporter  Deliverer
	planner   *dialog.Planner
	extractor *intel.Extractor
	cfg       config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine.
func New(store *session.Store, rsn reasoner.Reasoner, reporter Deliverer,
	planner *dialog.Planner, extractor *intel.Extractor,
	cfg config.Config, logger *slog.Logger) *Engine {

	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		reasoner:  rsn,
		reporter:  reporter,
		planner:   planner,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ProcessTurn runs the full pipeline for one inbound message.
//
// Description:
//
//	Reconciles the provided history into canonical state, classifies the
//	session on first contact, and for scam-positive sessions produces the
//	next engagement reply, runs periodic extraction, evaluates the stop
//	signals, and on an end decision delivers the final report at most
//	once per session.
//
// Outputs:
//   - TurnResult: The reply (or non-scam note) for the caller.
//   - error: Non-nil only when ctx was cancelled mid-turn.
func (e *Engine) ProcessTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	ctx, span := otel.Tracer("honeypot/engine").Start(ctx, "engine.ProcessTurn")
	span.SetAttributes(attribute.String("session.id", in.SessionID))
	defer span.End()

	start := e.now()
	sess := e.store.GetOrCreate(in.SessionID)
	sess.Lock()
	defer sess.Unlock()
	defer func() {
		elapsed := e.now().Sub(start)
		sess.RecordResponseTime(elapsed)
		turnLatency.Observe(elapsed.Seconds())
	}()
	turnsTotal.Inc()

	// A reported session answers every further message with the same
	// sign-off and touches no more state.
	if sess.CallbackSent {
		return TurnResult{Reply: e.planner.Disengagement()}, nil
	}

	msg := e.normalize(in.Message)
	sess.MergeMetadata(in.Metadata)
	changed := sess.Reconcile(in.History, e.now())
	sess.AppendIfMissing(msg)

	// A replayed or merged history may contain intelligence no extraction
	// pass has seen yet. Hydrate only when nothing was captured so a
	// cheap regex sweep never races a richer model extraction.
	if changed && sess.Intelligence.IsEmpty() {
		if observed := e.extractor.FromHistory(sess.Messages); observed.HasAny() {
			sess.MergeIntelligence(observed, e.extractor.ClassifyHandleInContext)
		}
	}

	if sess.Assessment == nil {
		assessment, err := e.reasoner.Classify(ctx, reasoner.ClassifyInput{
			SessionID: in.SessionID,
			Messages:  sess.Messages,
		})
		if err != nil {
			return TurnResult{}, err
		}
		sess.SetInitialAssessment(&assessment)
		e.logger.Info("session classified",
			"session_id", in.SessionID,
			"scam_likely", assessment.ScamLikely,
			"scam_type", assessment.ScamType,
			"confidence", assessment.Confidence)
	}

	if !sess.Assessment.ScamLikely {
		return TurnResult{Note: "Message is not likely a scam."}, nil
	}

	return e.engage(ctx, sess, msg)
}

// engage runs the scam-positive half of the pipeline. The session lock is
// held by the caller.
func (e *Engine) engage(ctx context.Context, sess *session.Session, msg datatypes.Message) (TurnResult, error) {
	if msg.Sender == datatypes.SenderScammer {
		if inline := e.extractor.Extract(msg.Text); inline.HasAny() {
			sess.MergeIntelligence(inline, e.extractor.ClassifyHandleInContext)
		}
	}

	st := e.planner.BuildState(sess.Intelligence, sess.Signals, sess.Assessment,
		sess.Dialog.AskedCounts, sess.Dialog.LastIntentTags, sess.Messages)
	forced := e.planner.ChooseForcedTarget(st)

	proposed, err := e.reasoner.Reply(ctx, reasoner.ReplyInput{
		SessionID:    sess.ID,
		Messages:     sess.Messages,
		Assessment:   *sess.Assessment,
		Signals:      sess.Signals,
		Intelligence: sess.Intelligence,
		ForcedTarget: forced,
		AskedCounts:  sess.Dialog.AskedCounts,
		AgentNotes:   sess.AgentNotes,
	})
	if err != nil {
		return TurnResult{}, err
	}

	repaired := e.planner.Repair(proposed, st, forced, msg.Text, sess.Messages)
	sess.AppendReply(repaired.Reply.Reply, e.now())
	sess.BumpAskedCounts(dialog.AskedKeys(repaired.MergedTargets))
	sess.PushIntentTag(repaired.Reply.IntentTag)
	reply := repaired.Reply.Reply

	if len(sess.Messages)-sess.LastExtractedMessageCount >= e.cfg.ExtractEveryMessages {
		if err := e.runExtraction(ctx, sess); err != nil {
			return TurnResult{}, err
		}
	}

	total := len(sess.Messages)
	scammer := sess.ScammerMessageCount()
	linkEvidence := e.hasLinkEvidence(sess)
	primaryCapturedNow := sess.Intelligence.HasAllPrimary() && linkEvidence
	sess.ObserveIntel(total, scammer, primaryCapturedNow)

	stats := termination.Stats{
		TotalMessages:          total,
		ScammerMessages:        scammer,
		ExtractionRuns:         sess.ExtractionRuns,
		HasExtractionRun:       sess.LastExtractedMessageCount > 0,
		HasPrimary:             sess.Intelligence.HasPrimary(),
		HasAllPrimary:          sess.Intelligence.HasAllPrimary(),
		LinkEvidence:           linkEvidence,
		CaptureTotalMessages:   sess.PrimaryCaptureTotalMessages,
		CaptureScammerMessages: sess.PrimaryCaptureScammerMessages,
		NoNewIntelScammerTurns: scammer - sess.LastIntelGrowthScammerTurns,
		StallUsed:              repaired.UsedStall,
	}
	signals := termination.Evaluate(stats, e.cfg)
	if !signals.ShouldEvaluateEnd() {
		return TurnResult{Reply: reply}, nil
	}

	var decision datatypes.EndDecision
	if signals.Bypass() {
		// Ceilings end the conversation unconditionally; no model call.
		decision = datatypes.EndDecision{EndConversation: true, Reason: signals.Reason()}
	} else {
		decision, err = e.reasoner.ShouldEnd(ctx, reasoner.EndInput{
			SessionID:    sess.ID,
			Messages:     sess.Messages,
			Intelligence: sess.Intelligence,
			Signals:      signals,
		})
		if err != nil {
			return TurnResult{}, err
		}
	}
	if !decision.EndConversation {
		return TurnResult{Reply: reply}, nil
	}

	e.logger.Info("conversation ending",
		"session_id", sess.ID,
		"reason", decision.Reason,
		"total_messages", total,
		"scammer_messages", scammer)
	sess.MarkEnding()

	// Sweep any messages the last extraction pass missed before the
	// report freezes the intelligence.
	if sess.LastExtractedMessageCount < len(sess.Messages) {
		if err := e.runExtraction(ctx, sess); err != nil {
			return TurnResult{}, err
		}
	}
	sess.SetEnded()

	if sess.Assessment.ScamLikely && !sess.CallbackSent {
		disengagement := e.planner.Disengagement()
		sess.AppendReply(disengagement, e.now())
		reply = disengagement

		payload := report.Build(report.BuildInput{
			SessionID:     sess.ID,
			TotalMessages: len(sess.Messages),
			Engagement:    sess.EngagementDuration(e.now()),
			MinEngagement: time.Duration(e.cfg.MinReportedEngagementSeconds) * time.Second,
			Intelligence:  sess.Intelligence,
			Signals:       sess.Signals,
			Assessment:    *sess.Assessment,
			AgentNotes:    sess.AgentNotes,
		})
		if err := e.reporter.Deliver(ctx, payload); err != nil {
			// Non-fatal: the latch stays open so a later turn retries.
			e.logger.Error("final report delivery failed",
				"session_id", sess.ID,
				"error", err)
		} else {
			sess.SetCallbackSent()
			sessionsReported.Inc()
		}
	}
	return TurnResult{Reply: reply}, nil
}

// runExtraction performs one full-history extraction pass and folds the
// result into the session. The session lock is held by the caller.
func (e *Engine) runExtraction(ctx context.Context, sess *session.Session) error {
	extraction, err := e.reasoner.Extract(ctx, reasoner.ExtractInput{
		SessionID: sess.ID,
		Messages:  sess.Messages,
		Signals:   sess.Signals,
	})
	if err != nil {
		return err
	}
	sess.MergeIntelligence(extraction.Intelligence, e.extractor.ClassifyHandleInContext)
	sess.MergeSignals(extraction.Signals)
	sess.SetAgentNotes(extraction.AgentNotes)
	sess.MarkExtractionRun()
	return nil
}

// hasLinkEvidence reports whether a phishing link was captured, asked for,
// or solicited in the outgoing history.
func (e *Engine) hasLinkEvidence(sess *session.Session) bool {
	if len(sess.Intelligence.PhishingLinks) > 0 {
		return true
	}
	if sess.Dialog.AskedCounts["link"] > 0 {
		return true
	}
	for _, msg := range sess.Messages {
		if msg.Sender == datatypes.SenderUser && linkAskRe.MatchString(msg.Text) {
			return true
		}
	}
	return false
}

// normalize applies the sender default and canonicalizes the timestamp.
func (e *Engine) normalize(msg datatypes.Message) datatypes.Message {
	if msg.Sender == "" {
		msg.Sender = datatypes.SenderScammer
	}
	msg.Timestamp = session.NormalizeTimestamp(msg.Timestamp, e.now())
	return msg
}
