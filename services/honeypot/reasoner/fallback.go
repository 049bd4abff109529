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
	"errors"
	"log/slog"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// FallbackReasoner degrades every capability of a primary reasoner to a
// deterministic secondary when the primary fails.
//
// Description:
//
//	A failed primary call is logged with its stage and answered by the
//	secondary instead, so a provider outage degrades reply quality but
//	never fails a turn. Context cancellation is the exception: the caller
//	is gone and no answer is owed.
//
// Thread Safety: Safe for concurrent use if both wrapped reasoners are.
type FallbackReasoner struct {
	primary   Reasoner
	secondary Reasoner
	logger    *slog.Logger
}

// WithFallback wraps primary so that failures degrade to secondary.
func WithFallback(primary, secondary Reasoner, logger *slog.Logger) *FallbackReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackReasoner{primary: primary, secondary: secondary, logger: logger}
}

// Classify implements Reasoner.
func (f *FallbackReasoner) Classify(ctx context.Context, in ClassifyInput) (datatypes.Assessment, error) {
	out, err := f.primary.Classify(ctx, in)
	if err == nil {
		return out, nil
	}
	if f.abort(ctx, err) {
		return datatypes.Assessment{}, err
	}
	f.degrade("scam_classification", in.SessionID, err)
	return f.secondary.Classify(ctx, in)
}

// Reply implements Reasoner.
func (f *FallbackReasoner) Reply(ctx context.Context, in ReplyInput) (datatypes.AgentReply, error) {
	out, err := f.primary.Reply(ctx, in)
	if err == nil {
		return out, nil
	}
	if f.abort(ctx, err) {
		return datatypes.AgentReply{}, err
	}
	f.degrade("agent_reply", in.SessionID, err)
	return f.secondary.Reply(ctx, in)
}

// Extract implements Reasoner.
func (f *FallbackReasoner) Extract(ctx context.Context, in ExtractInput) (Extraction, error) {
	out, err := f.primary.Extract(ctx, in)
	if err == nil {
		return out, nil
	}
	if f.abort(ctx, err) {
		return Extraction{}, err
	}
	f.degrade("intelligence_extraction", in.SessionID, err)
	return f.secondary.Extract(ctx, in)
}

// ShouldEnd implements Reasoner.
func (f *FallbackReasoner) ShouldEnd(ctx context.Context, in EndInput) (datatypes.EndDecision, error) {
	out, err := f.primary.ShouldEnd(ctx, in)
	if err == nil {
		return out, nil
	}
	if f.abort(ctx, err) {
		return datatypes.EndDecision{}, err
	}
	f.degrade("conversation_end", in.SessionID, err)
	return f.secondary.ShouldEnd(ctx, in)
}

// abort reports whether the failure came from the caller abandoning the
// request, in which case no fallback answer is produced.
func (f *FallbackReasoner) abort(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}

func (f *FallbackReasoner) degrade(stage, sessionID string, err error) {
	fallbacksTotal.WithLabelValues(stage).Inc()
	f.logger.Warn("reasoner fallback",
		"stage", stage,
		"session_id", sessionID,
		"error", err)
}
