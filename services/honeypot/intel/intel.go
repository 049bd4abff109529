// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intel implements the deterministic intelligence extractor: pure
// regex/heuristic parsing of raw message text into typed fraud-intelligence
// categories. It never calls out and never fails; absence of matches is not
// an error.
package intel

import (
	"encoding/json"
	"sort"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// Intelligence maps each category to its set of unique captured strings.
// Category sets only ever grow; merges are set unions.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UpiIDs             []string `json:"upiIds"`
	EmailAddresses     []string `json:"emailAddresses"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
	CaseIDs            []string `json:"caseIds"`
	PolicyNumbers      []string `json:"policyNumbers"`
	OrderNumbers       []string `json:"orderNumbers"`
	StaffIDs           []string `json:"staffIds"`
	AgentNames         []string `json:"agentNames"`
}

// MergeUnique appends the incoming values to target, skipping empties and
// values already present. Insertion order is preserved.
func MergeUnique(target, incoming []string) []string {
	seen := make(map[string]bool, len(target))
	for _, v := range target {
		seen[v] = true
	}
	for _, v := range incoming {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		target = append(target, v)
	}
	return target
}

// Merge unions every category of incoming into il. Values are never
// removed; this is the only mutation path and it is monotone.
func (il *Intelligence) Merge(incoming Intelligence) {
	il.BankAccounts = MergeUnique(il.BankAccounts, incoming.BankAccounts)
	il.UpiIDs = MergeUnique(il.UpiIDs, incoming.UpiIDs)
	il.EmailAddresses = MergeUnique(il.EmailAddresses, incoming.EmailAddresses)
	il.PhishingLinks = MergeUnique(il.PhishingLinks, incoming.PhishingLinks)
	il.PhoneNumbers = MergeUnique(il.PhoneNumbers, incoming.PhoneNumbers)
	il.SuspiciousKeywords = MergeUnique(il.SuspiciousKeywords, incoming.SuspiciousKeywords)
	il.CaseIDs = MergeUnique(il.CaseIDs, incoming.CaseIDs)
	il.PolicyNumbers = MergeUnique(il.PolicyNumbers, incoming.PolicyNumbers)
	il.OrderNumbers = MergeUnique(il.OrderNumbers, incoming.OrderNumbers)
	il.StaffIDs = MergeUnique(il.StaffIDs, incoming.StaffIDs)
	il.AgentNames = MergeUnique(il.AgentNames, incoming.AgentNames)
}

// IsEmpty reports whether no category holds any value.
func (il Intelligence) IsEmpty() bool {
	return len(il.BankAccounts) == 0 &&
		len(il.UpiIDs) == 0 &&
		len(il.EmailAddresses) == 0 &&
		len(il.PhishingLinks) == 0 &&
		len(il.PhoneNumbers) == 0 &&
		len(il.SuspiciousKeywords) == 0 &&
		len(il.CaseIDs) == 0 &&
		len(il.PolicyNumbers) == 0 &&
		len(il.OrderNumbers) == 0 &&
		len(il.StaffIDs) == 0 &&
		len(il.AgentNames) == 0
}

// HasAny reports whether any category holds a value. Inline extraction
// results gate a merge on this.
func (il Intelligence) HasAny() bool {
	return !il.IsEmpty()
}

// HasPrimary reports whether at least one primary category (UPI handle,
// phone number, phishing link, bank account) has been captured.
func (il Intelligence) HasPrimary() bool {
	return len(il.UpiIDs) > 0 ||
		len(il.PhoneNumbers) > 0 ||
		len(il.PhishingLinks) > 0 ||
		len(il.BankAccounts) > 0
}

// HasAllPrimary reports whether all three payment-side primary categories
// (UPI handle, phone number, bank account) have been captured. Link
// evidence is tracked separately by the termination engine.
func (il Intelligence) HasAllPrimary() bool {
	return len(il.UpiIDs) > 0 &&
		len(il.PhoneNumbers) > 0 &&
		len(il.BankAccounts) > 0
}

// Fingerprint returns a canonical string over the intelligence sets and
// identity signals. Two sessions with the same captured facts produce the
// same fingerprint regardless of capture order; the termination engine
// uses fingerprint changes to detect intelligence growth.
func Fingerprint(il Intelligence, signals datatypes.ScamSignals) string {
	canonical := struct {
		BankAccounts        []string `json:"bankAccounts"`
		UpiIDs              []string `json:"upiIds"`
		EmailAddresses      []string `json:"emailAddresses"`
		PhishingLinks       []string `json:"phishingLinks"`
		PhoneNumbers        []string `json:"phoneNumbers"`
		CaseIDs             []string `json:"caseIds"`
		PolicyNumbers       []string `json:"policyNumbers"`
		OrderNumbers        []string `json:"orderNumbers"`
		StaffIDs            []string `json:"staffIds"`
		AgentNames          []string `json:"agentNames"`
		ClaimedOrganization string   `json:"claimedOrganization"`
		ClaimedDepartment   string   `json:"claimedDepartment"`
	}{
		BankAccounts:        uniqueSorted(il.BankAccounts),
		UpiIDs:              uniqueSorted(il.UpiIDs),
		EmailAddresses:      uniqueSorted(il.EmailAddresses),
		PhishingLinks:       uniqueSorted(il.PhishingLinks),
		PhoneNumbers:        uniqueSorted(il.PhoneNumbers),
		CaseIDs:             uniqueSorted(il.CaseIDs),
		PolicyNumbers:       uniqueSorted(il.PolicyNumbers),
		OrderNumbers:        uniqueSorted(il.OrderNumbers),
		StaffIDs:            uniqueSorted(il.StaffIDs),
		AgentNames:          uniqueSorted(il.AgentNames),
		ClaimedOrganization: signals.ClaimedOrganization,
		ClaimedDepartment:   signals.ClaimedDepartment,
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		// Marshalling plain string slices cannot fail.
		return ""
	}
	return string(raw)
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
