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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/intel"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/responses"

type openaiRequest struct {
	Model       string           `json:"model"`
	Input       string           `json:"input"`
	Temperature float32          `json:"temperature"`
	Text        openaiTextFormat `json:"text"`
}

type openaiTextFormat struct {
	Format openaiFormat `json:"format"`
}

type openaiFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type openaiResponse struct {
	OutputText string             `json:"output_text"`
	Output     []openaiOutputItem `json:"output"`
	Error      *openaiError       `json:"error,omitempty"`
}

type openaiOutputItem struct {
	Type    string             `json:"type"`
	Content []openaiOutputPart `json:"content"`
}

type openaiOutputPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// text returns the first text payload in the response, preferring the
// flattened output_text field.
func (r openaiResponse) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if (part.Type == "output_text" || part.Type == "text") && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIReasoner implements Reasoner against the OpenAI Responses REST API
// using raw net/http with strict structured outputs.
//
// Description:
//
//	Every capability is one request: prompt in, schema-constrained JSON out.
//	Transient failures (retryable HTTP statuses and transport errors) are
//	retried with exponential backoff and jitter; the final error is returned
//	to the caller, which typically wraps this client with WithFallback.
//
// Thread Safety: OpenAIReasoner is safe for concurrent use.
type OpenAIReasoner struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOpenAIReasoner creates an OpenAIReasoner from the engine configuration.
//
// Outputs:
//   - *OpenAIReasoner: The configured client.
//   - error: Non-nil if the API key is missing.
func NewOpenAIReasoner(cfg config.Config, logger *slog.Logger) (*OpenAIReasoner, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY not configured")
	}
	r := NewOpenAIReasonerWithConfig(cfg.OpenAIAPIKey, cfg.OpenAIModel, defaultOpenAIBaseURL, logger)
	r.httpClient.Timeout = cfg.OpenAITimeout
	r.maxRetries = cfg.OpenAIMaxRetries
	if cfg.ReasonerRatePerMin > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(float64(cfg.ReasonerRatePerMin)/60.0), cfg.ReasonerRatePerMin)
	}
	return r, nil
}

// NewOpenAIReasonerWithConfig creates an OpenAIReasoner with explicit
// configuration. Useful for testing with mock servers.
func NewOpenAIReasonerWithConfig(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIReasoner {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIReasoner{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		maxRetries: 2,
		logger:     logger,
	}
}

// Classify implements Reasoner.
func (r *OpenAIReasoner) Classify(ctx context.Context, in ClassifyInput) (datatypes.Assessment, error) {
	var out datatypes.Assessment
	err := r.generateJSON(ctx, "scam_classification", classificationSchema, buildClassifyPrompt(in), &out)
	if err != nil {
		return datatypes.Assessment{}, err
	}
	return out, nil
}

// Reply implements Reasoner.
func (r *OpenAIReasoner) Reply(ctx context.Context, in ReplyInput) (datatypes.AgentReply, error) {
	var out datatypes.AgentReply
	err := r.generateJSON(ctx, "agent_reply", agentReplySchema, buildReplyPrompt(in), &out)
	if err != nil {
		return datatypes.AgentReply{}, err
	}
	if out.Reply == "" {
		return datatypes.AgentReply{}, &ParseError{Kind: "agent_reply", Err: errors.New("empty reply")}
	}
	return out, nil
}

// extractionWire mirrors the extraction schema. claimedOrganization and
// claimedDepartment are nullable on the wire.
type extractionWire struct {
	ExtractedIntelligence intel.Intelligence `json:"extractedIntelligence"`
	ScamSignals           struct {
		ClaimedOrganization *string  `json:"claimedOrganization"`
		ClaimedDepartment   *string  `json:"claimedDepartment"`
		ScamType            string   `json:"scamType"`
		Tactics             []string `json:"tactics"`
	} `json:"scamSignals"`
	AgentNotes string `json:"agentNotes"`
}

// Extract implements Reasoner.
func (r *OpenAIReasoner) Extract(ctx context.Context, in ExtractInput) (Extraction, error) {
	var wire extractionWire
	err := r.generateJSON(ctx, "intelligence_extraction", extractionSchema, buildExtractPrompt(in), &wire)
	if err != nil {
		return Extraction{}, err
	}
	out := Extraction{
		Intelligence: wire.ExtractedIntelligence,
		AgentNotes:   wire.AgentNotes,
	}
	if wire.ScamSignals.ClaimedOrganization != nil {
		out.Signals.ClaimedOrganization = *wire.ScamSignals.ClaimedOrganization
	}
	if wire.ScamSignals.ClaimedDepartment != nil {
		out.Signals.ClaimedDepartment = *wire.ScamSignals.ClaimedDepartment
	}
	out.Signals.ScamType = wire.ScamSignals.ScamType
	out.Signals.Tactics = wire.ScamSignals.Tactics
	return out, nil
}

// ShouldEnd implements Reasoner.
func (r *OpenAIReasoner) ShouldEnd(ctx context.Context, in EndInput) (datatypes.EndDecision, error) {
	var out datatypes.EndDecision
	err := r.generateJSON(ctx, "conversation_end", conversationEndSchema, buildEndPrompt(in), &out)
	if err != nil {
		return datatypes.EndDecision{}, err
	}
	return out, nil
}

// =============================================================================
// Request Loop
// =============================================================================

// generateJSON sends the prompt with the given structured-output schema and
// decodes the model's JSON into out.
//
// Description:
//
//	Attempts up to maxRetries+1 requests. Retryable HTTP statuses and
//	transport errors back off 250ms*2^attempt plus up to 120ms of jitter;
//	everything else fails immediately. Context cancellation aborts the loop
//	without further attempts.
func (r *OpenAIReasoner) generateJSON(ctx context.Context, schemaName string, schema json.RawMessage, prompt string, out any) error {
	ctx, span := otel.Tracer("honeypot/reasoner").Start(ctx, "reasoner.generateJSON")
	span.SetAttributes(attribute.String("reasoner.schema", schemaName))
	defer span.End()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return &ProviderError{Err: err}
		}
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		start := time.Now()
		raw, err := r.requestOnce(ctx, schemaName, schema, prompt)
		observeProviderCall(schemaName, err, time.Since(start))
		if err == nil {
			return decodeModelJSON(schemaName, raw, out)
		}
		lastErr = err

		var provErr *ProviderError
		retryable := errors.As(err, &provErr) && provErr.Transient
		if !retryable || attempt >= r.maxRetries {
			break
		}
		delay := time.Duration(250*(1<<attempt))*time.Millisecond +
			time.Duration(rand.Intn(120))*time.Millisecond
		r.logger.Warn("reasoner retry",
			"schema", schemaName,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay)
		select {
		case <-ctx.Done():
			return &ProviderError{Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	r.logger.Error("reasoner request failed",
		"schema", schemaName,
		"model", r.model,
		"error", lastErr)
	return lastErr
}

// requestOnce performs a single Responses API call and returns the model's
// text output.
func (r *OpenAIReasoner) requestOnce(ctx context.Context, schemaName string, schema json.RawMessage, prompt string) (string, error) {
	body := openaiRequest{
		Model:       r.model,
		Input:       prompt,
		Temperature: 0.1,
		Text: openaiTextFormat{
			Format: openaiFormat{
				Type:   "json_schema",
				Name:   schemaName,
				Strict: true,
				Schema: schema,
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Context cancellation is not transient; everything else on the
		// transport (timeouts included) is worth one more try. A dead
		// context stops the retry loop before the next attempt anyway.
		return "", &ProviderError{Transient: !errors.Is(err, context.Canceled), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &ProviderError{Transient: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{
			Status:    resp.StatusCode,
			Transient: retryableStatuses[resp.StatusCode],
			Err:       fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(string(raw), 512)),
		}
	}

	var parsed openaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &ProviderError{Err: fmt.Errorf("provider error %s: %s", parsed.Error.Type, parsed.Error.Message)}
	}
	text := parsed.text()
	if text == "" {
		return "", &ProviderError{Transient: true, Err: errors.New("empty model output")}
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
