// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the honeypot engine configuration from environment
// variables and the engagement rule vocabularies from an embedded YAML file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the conversation engine. All fields have
// working defaults; FromEnv applies environment overrides.
//
// Thread Safety: Immutable after FromEnv; safe for concurrent use.
type Config struct {
	// Inbound HTTP surface.
	Port   int
	APIKey string

	// Termination floors and ceilings.
	MinTotalMessages                int
	MinScammerMessages              int
	MinExtractionRuns               int
	GraceMessages                   int
	RequirePrimaryIntel             bool
	PostPrimaryGraceTotalMessages   int
	PostPrimaryGraceScammerMessages int
	NoNewIntelScammerTurns          int
	MaxScammerTurns                 int
	EarlyStopMinTotalMessages       int
	EarlyStopMinScammerMessages     int

	// ExtractEveryMessages is the coverage gap that triggers a periodic
	// full extraction pass.
	ExtractEveryMessages int

	// MinReportedEngagementSeconds floors the engagement duration written
	// into the final payload.
	MinReportedEngagementSeconds int

	// Reasoner provider settings.
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAITimeout    time.Duration
	OpenAIMaxRetries int
	// ReasonerRatePerMin caps remote reasoner calls per minute. Zero
	// disables the limiter.
	ReasonerRatePerMin int

	// Callback collector settings.
	CallbackURL         string
	CallbackTimeout     time.Duration
	CallbackMaxAttempts int
	CallbackCaptureFile string
}

// Default returns the configuration with all defaults and no environment
// overrides applied.
func Default() Config {
	return Config{
		Port:                            8080,
		MinTotalMessages:                18,
		MinScammerMessages:              10,
		MinExtractionRuns:               3,
		GraceMessages:                   4,
		RequirePrimaryIntel:             false,
		PostPrimaryGraceTotalMessages:   4,
		PostPrimaryGraceScammerMessages: 2,
		NoNewIntelScammerTurns:          2,
		MaxScammerTurns:                 10,
		EarlyStopMinTotalMessages:       14,
		EarlyStopMinScammerMessages:     8,
		ExtractEveryMessages:            3,
		MinReportedEngagementSeconds:    181,
		OpenAIModel:                     "gpt-4o-mini",
		OpenAITimeout:                   8 * time.Second,
		OpenAIMaxRetries:                2,
		ReasonerRatePerMin:              0,
		CallbackURL:                     "https://hackathon.guvi.in/api/updateHoneyPotFinalResult",
		CallbackTimeout:                 5 * time.Second,
		CallbackMaxAttempts:             3,
	}
}

// FromEnv builds a Config from environment variables, falling back to the
// defaults above for anything unset or unparseable.
//
// Outputs:
//   - Config: The resolved configuration.
func FromEnv() Config {
	cfg := Default()

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.APIKey = os.Getenv("API_KEY")

	cfg.MinTotalMessages = envInt("MIN_TOTAL_MESSAGES", cfg.MinTotalMessages)
	cfg.MinScammerMessages = envInt("MIN_SCAMMER_MESSAGES", cfg.MinScammerMessages)
	cfg.MinExtractionRuns = envInt("MIN_EXTRACTION_RUNS", cfg.MinExtractionRuns)
	cfg.GraceMessages = envInt("GRACE_MESSAGES", cfg.GraceMessages)
	cfg.RequirePrimaryIntel = envBool("REQUIRE_PRIMARY_INTEL", cfg.RequirePrimaryIntel)
	cfg.PostPrimaryGraceTotalMessages = envInt("POST_PRIMARY_GRACE_TOTAL_MESSAGES", cfg.PostPrimaryGraceTotalMessages)
	cfg.PostPrimaryGraceScammerMessages = envInt("POST_PRIMARY_GRACE_SCAMMER_MESSAGES", cfg.PostPrimaryGraceScammerMessages)
	cfg.NoNewIntelScammerTurns = envInt("NO_NEW_INTEL_SCAMMER_TURNS", cfg.NoNewIntelScammerTurns)
	cfg.MaxScammerTurns = envInt("MAX_SCAMMER_TURNS", cfg.MaxScammerTurns)
	cfg.EarlyStopMinTotalMessages = envInt("EARLY_STOP_MIN_TOTAL_MESSAGES", cfg.EarlyStopMinTotalMessages)
	cfg.EarlyStopMinScammerMessages = envInt("EARLY_STOP_MIN_SCAMMER_MESSAGES", cfg.EarlyStopMinScammerMessages)
	cfg.ExtractEveryMessages = envInt("EXTRACT_EVERY_MESSAGES", cfg.ExtractEveryMessages)
	cfg.MinReportedEngagementSeconds = envInt("MIN_REPORTED_ENGAGEMENT_SECONDS", cfg.MinReportedEngagementSeconds)

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAIModel = model
	}
	cfg.OpenAITimeout = envDurationMs("OPENAI_TIMEOUT_MS", cfg.OpenAITimeout)
	cfg.OpenAIMaxRetries = envInt("OPENAI_MAX_RETRIES", cfg.OpenAIMaxRetries)
	cfg.ReasonerRatePerMin = envInt("REASONER_RATE_PER_MIN", cfg.ReasonerRatePerMin)

	if url := os.Getenv("CALLBACK_URL"); url != "" {
		cfg.CallbackURL = url
	}
	cfg.CallbackTimeout = envDurationMs("CALLBACK_TIMEOUT_MS", cfg.CallbackTimeout)
	cfg.CallbackMaxAttempts = envInt("CALLBACK_MAX_ATTEMPTS", cfg.CallbackMaxAttempts)
	cfg.CallbackCaptureFile = os.Getenv("CALLBACK_CAPTURE_FILE")

	return cfg
}

// HardStopMessageCap returns the absolute message ceiling: the lesser of
// the end-gate floor plus grace window and the max-turns-derived cap.
func (c Config) HardStopMessageCap() int {
	cap := c.MinTotalMessages + c.GraceMessages
	if derived := c.MaxScammerTurns * 2; derived < cap {
		cap = derived
	}
	return cap
}

// envInt reads an integer environment variable with a default value.
func envInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// envBool reads a boolean environment variable with a default value.
func envBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// envDurationMs reads a millisecond-valued environment variable with a
// default value.
func envDurationMs(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	ms, err := strconv.Atoi(val)
	if err != nil || ms <= 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}
