// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/honeypot/services/honeypot/config"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "honeypot_report_deliveries_total",
	Help: "Final-result delivery attempts by outcome.",
}, []string{"outcome"})

// DeliveryError reports that every delivery attempt was exhausted.
type DeliveryError struct {
	Attempts   int
	LastStatus int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("report delivery failed after %d attempts (last status %d): %v",
		e.Attempts, e.LastStatus, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Reporter delivers final-result payloads to the external collector.
//
// Description:
//
//	Every payload is appended to the local capture file (when configured)
//	before any network attempt, so a collector outage never loses the
//	result. Delivery makes up to MaxAttempts POSTs with linear backoff;
//	a 4xx rejection of the extended payload triggers one retry in the
//	legacy format before the attempt counts as failed.
//
// Thread Safety: Reporter is safe for concurrent use; the capture file is
// serialized by an internal mutex.
type Reporter struct {
	httpClient  *http.Client
	url         string
	maxAttempts int
	backoff     time.Duration
	captureFile string
	logger      *slog.Logger

	captureMu sync.Mutex
}

// NewReporter creates a Reporter from the engine configuration.
func NewReporter(cfg config.Config, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		httpClient:  &http.Client{Timeout: cfg.CallbackTimeout},
		url:         cfg.CallbackURL,
		maxAttempts: cfg.CallbackMaxAttempts,
		backoff:     300 * time.Millisecond,
		captureFile: cfg.CallbackCaptureFile,
		logger:      logger,
	}
}

// Deliver captures and posts the final-result payload.
//
// Outputs:
//   - error: A *DeliveryError when every attempt failed. A capture-file
//     failure alone is logged, not returned.
func (r *Reporter) Deliver(ctx context.Context, payload Payload) error {
	if err := r.capture(payload); err != nil {
		r.logger.Error("report capture failed",
			"session_id", payload.SessionID,
			"file", r.captureFile,
			"error", err)
	}

	legacy := toLegacy(payload)
	var lastErr error
	var lastStatus int
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		status, err := r.post(ctx, payload)
		if err == nil {
			deliveriesTotal.WithLabelValues("ok").Inc()
			return nil
		}
		lastErr, lastStatus = err, status
		r.logger.Warn("report delivery attempt failed",
			"session_id", payload.SessionID,
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"status", status,
			"error", err)

		// Collectors predating the extended shape reject it with a 4xx;
		// fall back to the original contract once per attempt.
		if status >= 400 && status < 500 {
			legacyStatus, legacyErr := r.post(ctx, legacy)
			if legacyErr == nil {
				deliveriesTotal.WithLabelValues("ok_legacy").Inc()
				return nil
			}
			r.logger.Warn("legacy payload delivery failed",
				"session_id", payload.SessionID,
				"status", legacyStatus,
				"error", legacyErr)
		}

		if attempt < r.maxAttempts {
			select {
			case <-ctx.Done():
				deliveriesTotal.WithLabelValues("error").Inc()
				return &DeliveryError{Attempts: attempt, LastStatus: lastStatus, Err: ctx.Err()}
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
	}
	deliveriesTotal.WithLabelValues("error").Inc()
	return &DeliveryError{Attempts: r.maxAttempts, LastStatus: lastStatus, Err: lastErr}
}

// post sends one JSON POST and returns the HTTP status (0 on transport
// failure).
func (r *Reporter) post(ctx context.Context, body any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("collector status %d: %s", resp.StatusCode, snippet)
	}
	return resp.StatusCode, nil
}

// capture appends the payload as one JSONL line to the capture file.
func (r *Reporter) capture(payload Payload) error {
	if r.captureFile == "" {
		return nil
	}
	r.captureMu.Lock()
	defer r.captureMu.Unlock()

	path := r.captureFile
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		path = filepath.Join(wd, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
