// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dialog implements the dialog planner: deterministic selection of
// the next intelligence target to pursue, and the validation/repair
// pipeline applied to every proposed reply before it goes out.
package dialog

import "regexp"

// Target is an intelligence category the planner can pursue.
type Target string

// The pursuable targets. TargetNone means every target is either already
// known or has been asked about twice.
const (
	TargetUPIID        Target = "upiId"
	TargetBankAccount  Target = "bankAccount"
	TargetPhishingLink Target = "phishingLink"
	TargetPhoneNumber  Target = "phoneNumber"
	TargetEmailAddress Target = "emailAddress"
	TargetCaseID       Target = "caseId"
	TargetPolicyNumber Target = "policyNumber"
	TargetOrderNumber  Target = "orderNumber"
	TargetAgentName    Target = "agentName"
	TargetClaimedOrg   Target = "claimedOrg"
	TargetNone         Target = "NONE"
)

// AskedKey returns the asked-counts key for a target. The link target
// keeps its historical short key, which the termination engine also reads
// as link-solicitation evidence.
func AskedKey(t Target) string {
	if t == TargetPhishingLink {
		return "link"
	}
	return string(t)
}

// mentionPatterns decide whether a reply references a target at all.
var mentionPatterns = map[Target]*regexp.Regexp{
	TargetUPIID:        regexp.MustCompile(`(?i)\bupi\b|@`),
	TargetBankAccount:  regexp.MustCompile(`(?i)\baccount\b|\bbank\b`),
	TargetPhishingLink: regexp.MustCompile(`(?i)\b(link|website|url|portal)\b`),
	TargetPhoneNumber:  regexp.MustCompile(`(?i)\b(call|contact|number|helpline)\b`),
	TargetEmailAddress: regexp.MustCompile(`(?i)\b(email|mail)\b`),
	TargetAgentName:    regexp.MustCompile(`(?i)\bname\b`),
	TargetCaseID:       regexp.MustCompile(`(?i)\b(case|reference)\b`),
	TargetPolicyNumber: regexp.MustCompile(`(?i)\bpolicy\b`),
	TargetOrderNumber:  regexp.MustCompile(`(?i)\b(order|tracking)\b`),
	TargetClaimedOrg:   regexp.MustCompile(`(?i)\b(organization|org|department|company)\b`),
}

// inferPatterns decide which targets a question-like reply solicits. They
// are narrower than mentionPatterns: an acknowledgement that merely
// references an account is not a solicitation.
var inferPatterns = map[Target]*regexp.Regexp{
	TargetUPIID:        regexp.MustCompile(`(?i)\bupi\b|@\w`),
	TargetBankAccount:  regexp.MustCompile(`(?i)\bbank account\b|\baccount number\b|\ba/c\b`),
	TargetPhishingLink: regexp.MustCompile(`(?i)\b(website|link|url|portal)\b`),
	TargetPhoneNumber:  regexp.MustCompile(`(?i)\b(helpline|phone number|contact number|call)\b`),
	TargetEmailAddress: regexp.MustCompile(`(?i)\b(email|mail)\b`),
	TargetCaseID:       regexp.MustCompile(`(?i)\bcase\s*id\b|\breference\b`),
	TargetPolicyNumber: regexp.MustCompile(`(?i)\bpolicy\s*(id|number|no\.?)\b`),
	TargetOrderNumber:  regexp.MustCompile(`(?i)\b(order|tracking)\s*(id|number|no\.?)\b`),
	TargetAgentName:    regexp.MustCompile(`(?i)\bagent\b|\bname\b`),
	TargetClaimedOrg:   regexp.MustCompile(`(?i)\b(organization|org|department|company)\b`),
}

// inferOrder fixes the iteration order over inferPatterns so inference is
// deterministic.
var inferOrder = []Target{
	TargetUPIID, TargetBankAccount, TargetPhishingLink, TargetPhoneNumber,
	TargetEmailAddress, TargetCaseID, TargetPolicyNumber, TargetOrderNumber,
	TargetAgentName, TargetClaimedOrg,
}

var questionLikeRe = regexp.MustCompile(`(?i)\b(could|can|which|what|where|who)\b`)

// redFlagVocabRe is the vocabulary a reply must touch to count as reacting
// to the incoming message's red flag.
var redFlagVocabRe = regexp.MustCompile(`(?i)\b(urgent|immediate|otp|blocked|suspend|freeze|threat|warning|link|website|payment|fee|transfer)\b`)

// Raw-history detectors for the two targets the extractor has no category
// for: a self-introduced agent name and a claimed organization.
var (
	agentNameHintRe  = regexp.MustCompile(`(?i)\b(i am|my name is|agent|mr\.?|mrs\.?|ms\.?)\b`)
	claimedOrgHintRe = regexp.MustCompile(`(?i)\b(bank|sbi|customer care|support|security team|verification team|fraud prevention)\b`)
)
