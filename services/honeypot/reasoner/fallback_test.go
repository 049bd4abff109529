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
	"testing"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// scriptedReasoner returns fixed values, or err on every capability.
type scriptedReasoner struct {
	err        error
	assessment datatypes.Assessment
	reply      datatypes.AgentReply
	extraction Extraction
	decision   datatypes.EndDecision
	calls      int
}

func (s *scriptedReasoner) Classify(context.Context, ClassifyInput) (datatypes.Assessment, error) {
	s.calls++
	return s.assessment, s.err
}

func (s *scriptedReasoner) Reply(context.Context, ReplyInput) (datatypes.AgentReply, error) {
	s.calls++
	return s.reply, s.err
}

func (s *scriptedReasoner) Extract(context.Context, ExtractInput) (Extraction, error) {
	s.calls++
	return s.extraction, s.err
}

func (s *scriptedReasoner) ShouldEnd(context.Context, EndInput) (datatypes.EndDecision, error) {
	s.calls++
	return s.decision, s.err
}

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &scriptedReasoner{assessment: datatypes.Assessment{ScamLikely: true, ScamType: "phishing"}}
	secondary := &scriptedReasoner{}
	f := WithFallback(primary, secondary, nil)

	out, err := f.Classify(context.Background(), ClassifyInput{})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !out.ScamLikely || out.ScamType != "phishing" {
		t.Errorf("Classify() = %+v, want primary's answer", out)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times with a healthy primary", secondary.calls)
	}
}

func TestFallbackDegradesOnPrimaryFailure(t *testing.T) {
	primary := &scriptedReasoner{err: errors.New("provider down")}
	secondary := &scriptedReasoner{
		reply:    datatypes.AgentReply{Reply: "fallback question?", IntentTag: "ASK_CLARIFY"},
		decision: datatypes.EndDecision{EndConversation: true, Reason: "Fallback end decision after model failure"},
	}
	f := WithFallback(primary, secondary, nil)
	ctx := context.Background()

	reply, err := f.Reply(ctx, ReplyInput{})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply.Reply != "fallback question?" {
		t.Errorf("Reply() = %+v, want secondary's answer", reply)
	}

	if _, err := f.Classify(ctx, ClassifyInput{}); err != nil {
		t.Errorf("Classify() error = %v", err)
	}
	if _, err := f.Extract(ctx, ExtractInput{}); err != nil {
		t.Errorf("Extract() error = %v", err)
	}
	decision, err := f.ShouldEnd(ctx, EndInput{})
	if err != nil {
		t.Fatalf("ShouldEnd() error = %v", err)
	}
	if !decision.EndConversation {
		t.Error("ShouldEnd() did not take the secondary's decision")
	}
	if secondary.calls != 4 {
		t.Errorf("secondary calls = %d, want 4", secondary.calls)
	}
}

func TestFallbackSkippedOnCancellation(t *testing.T) {
	primary := &scriptedReasoner{err: context.Canceled}
	secondary := &scriptedReasoner{}
	f := WithFallback(primary, secondary, nil)

	if _, err := f.Classify(context.Background(), ClassifyInput{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Classify() error = %v, want context.Canceled", err)
	}
	if secondary.calls != 0 {
		t.Error("secondary consulted after the caller abandoned the request")
	}
}

func TestFallbackSkippedOnDeadContext(t *testing.T) {
	primary := &scriptedReasoner{err: errors.New("request aborted")}
	secondary := &scriptedReasoner{}
	f := WithFallback(primary, secondary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Reply(ctx, ReplyInput{}); err == nil {
		t.Fatal("Reply() error = nil on a cancelled context")
	}
	if secondary.calls != 0 {
		t.Error("secondary consulted on a cancelled context")
	}
}
