// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Engagement Rules
// =============================================================================

//go:embed rules.yaml
var defaultRulesYAML []byte

// =============================================================================
// Rule Types
// =============================================================================

// KeywordRule maps a lowercase keyword to a classification reason code.
type KeywordRule struct {
	Keyword string `yaml:"keyword"`
	Code    string `yaml:"code"`
}

// ClassifierRules configures the rule-based scam classifier used when the
// remote reasoner is unavailable.
type ClassifierRules struct {
	// Threshold is the number of keyword matches at which scamLikely
	// flips to true.
	Threshold int `yaml:"threshold"`

	// Keywords is the keyword-to-reason-code table.
	Keywords []KeywordRule `yaml:"keywords"`
}

// TargetRules configures the dialog planner's forced-target selection and
// canned phrasing.
type TargetRules struct {
	// DefaultPriority is the deterministic target ordering.
	DefaultPriority []string `yaml:"default_priority"`

	// ScamTypePriority reorders targets for specific scam types.
	ScamTypePriority map[string][]string `yaml:"scam_type_priority"`

	// Questions maps each target to its canned question.
	Questions map[string]string `yaml:"questions"`
}

// RedFlagCue pairs a red-flag pattern with the acknowledgement sentence
// prefixed to replies that do not already react to the incoming message.
type RedFlagCue struct {
	Pattern string `yaml:"pattern"`
	Cue     string `yaml:"cue"`

	re *regexp.Regexp
}

// Matches reports whether the cue's pattern matches the given text.
func (c *RedFlagCue) Matches(text string) bool {
	return c.re != nil && c.re.MatchString(text)
}

// Rules is the full engagement rule set.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Rules struct {
	Classifier         ClassifierRules `yaml:"classifier"`
	UPISuffixes        []string        `yaml:"upi_suffixes"`
	SuspiciousKeywords []string        `yaml:"suspicious_keywords"`
	Targets            TargetRules     `yaml:"targets"`
	StallVariants      []string        `yaml:"stall_variants"`
	Disengagement      string          `yaml:"disengagement"`
	RedFlagCues        []RedFlagCue    `yaml:"red_flag_cues"`
}

// =============================================================================
// Loading
// =============================================================================

var (
	rulesMu   sync.RWMutex
	rulesOnce sync.Once
	rules     *Rules
	rulesErr  error
)

// GetRules returns the engagement rules, loading them on first use.
//
// Description:
//
//	Loads the embedded rules.yaml, or the file named by HONEYPOT_RULES_FILE
//	when set. A load failure is returned once and cached; callers should
//	treat it as fatal at startup.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetRules() (*Rules, error) {
	rulesOnce.Do(func() {
		raw := defaultRulesYAML
		if path := os.Getenv("HONEYPOT_RULES_FILE"); path != "" {
			content, err := os.ReadFile(path)
			if err != nil {
				rulesErr = fmt.Errorf("config: reading rules file %q: %w", path, err)
				return
			}
			slog.Info("Loaded engagement rules override", "path", path)
			raw = content
		}
		rulesMu.Lock()
		defer rulesMu.Unlock()
		rules, rulesErr = parseRules(raw)
	})
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	return rules, rulesErr
}

// MustRules returns the engagement rules or panics. Intended for tests and
// for main, where a broken embedded rule file is unrecoverable.
func MustRules() *Rules {
	r, err := GetRules()
	if err != nil {
		panic(err)
	}
	return r
}

// ResetRulesForTest clears the cached rules so a test can reload with a
// different HONEYPOT_RULES_FILE.
func ResetRulesForTest() {
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rulesOnce = sync.Once{}
	rules = nil
	rulesErr = nil
}

func parseRules(raw []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("config: parsing rules yaml: %w", err)
	}
	if r.Classifier.Threshold <= 0 {
		r.Classifier.Threshold = 2
	}
	if len(r.Targets.DefaultPriority) == 0 {
		return nil, fmt.Errorf("config: rules missing targets.default_priority")
	}
	if len(r.StallVariants) == 0 {
		return nil, fmt.Errorf("config: rules missing stall_variants")
	}
	for i := range r.RedFlagCues {
		re, err := regexp.Compile(r.RedFlagCues[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("config: red flag pattern %q: %w", r.RedFlagCues[i].Pattern, err)
		}
		r.RedFlagCues[i].re = re
	}
	return &r, nil
}
