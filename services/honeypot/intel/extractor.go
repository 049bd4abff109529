// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intel

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
)

// =============================================================================
// Patterns
// =============================================================================

var (
	handleRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]{2,}@[a-zA-Z0-9.-]{2,}\b`)
	linkRe   = regexp.MustCompile(`https?://\S+`)
	bankRe   = regexp.MustCompile(`(?i)(account|acct|a/c|bank)\s*(number|no\.?|id)?\s*[:#-]?\s*([0-9Xx*\s\-_/]{9,24})`)
	phoneRe  = regexp.MustCompile(`\+?\d[\d\s-]{6,}\d`)
	digitRe  = regexp.MustCompile(`\d`)

	caseRe   = regexp.MustCompile(`(?i)\b(?:case|reference|ref)\s*(?:id|no\.?|number)?\s*(?:is|:|#|-)?\s*([A-Za-z0-9][A-Za-z0-9\-/]{2,})\b`)
	policyRe = regexp.MustCompile(`(?i)\bpolicy\s*(?:id|no\.?|number)?\s*(?:is|:|#|-)?\s*([A-Za-z0-9][A-Za-z0-9\-/]{2,})\b`)
	orderRe  = regexp.MustCompile(`(?i)\b(?:order|tracking|shipment)\s*(?:id|no\.?|number)?\s*(?:is|:|#|-)?\s*([A-Za-z0-9][A-Za-z0-9\-/]{2,})\b`)

	dottedTLDRe = regexp.MustCompile(`\.[a-zA-Z]{2,}$`)
	handleShape = regexp.MustCompile(`^[a-zA-Z0-9._%+-]{2,}@[a-zA-Z0-9.-]{2,}$`)

	// Context cues around a handle occurrence outrank the domain shape.
	// Email cues are checked first.
	emailCueRe = regexp.MustCompile(`\bemail|mail\b`)
	upiCueRe   = regexp.MustCompile(`\bupi|vpa|handle|gpay|phonepe|paytm|bhim\b`)

	// Characters stripped from the edges of captured handles and IDs.
	trailingPunct = ".,;:!?"
)

// Default vocabularies. The config package's rules.yaml carries the same
// values; NewExtractor lets the caller substitute its loaded copy.
var (
	defaultUPISuffixes = []string{
		"upi", "ybl", "ibl", "axl", "apl",
		"oksbi", "okhdfc", "okicici", "okaxis", "okbizaxis", "paytm",
	}
	defaultSuspiciousKeywords = []string{
		"urgent", "verify", "otp", "upi", "account blocked", "locked", "kyc",
	}
)

// =============================================================================
// Extractor
// =============================================================================

// HandleKind is the classification of a local@domain handle candidate.
type HandleKind int

const (
	// HandleInvalid marks a candidate that is not a plausible handle.
	HandleInvalid HandleKind = iota
	// HandleUPI marks a UPI virtual payment address.
	HandleUPI
	// HandleEmail marks an email address.
	HandleEmail
)

// Extractor performs deterministic extraction with a fixed vocabulary.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Extractor struct {
	upiSuffixes map[string]bool
	keywords    []string
}

// NewExtractor creates an Extractor with explicit vocabularies. Empty
// slices fall back to the built-in defaults.
func NewExtractor(upiSuffixes, suspiciousKeywords []string) *Extractor {
	if len(upiSuffixes) == 0 {
		upiSuffixes = defaultUPISuffixes
	}
	if len(suspiciousKeywords) == 0 {
		suspiciousKeywords = defaultSuspiciousKeywords
	}
	suffixes := make(map[string]bool, len(upiSuffixes))
	for _, s := range upiSuffixes {
		suffixes[strings.ToLower(s)] = true
	}
	return &Extractor{upiSuffixes: suffixes, keywords: suspiciousKeywords}
}

// DefaultExtractor returns an Extractor with the built-in vocabularies.
func DefaultExtractor() *Extractor {
	return NewExtractor(nil, nil)
}

// Extract parses one message text into typed intelligence.
//
// Description:
//
//	Applies the extraction heuristics in a fixed order: handle candidates
//	(split UPI vs email by the words around the occurrence, then by domain
//	shape), links, anchored bank accounts,
//	phone numbers (excluding digit runs already claimed as bank accounts),
//	anchored case/policy/order identifiers, and suspicious keywords. All
//	output fields are present as possibly empty sets; extraction cannot
//	fail.
//
// Inputs:
//   - text: Raw message text.
//
// Outputs:
//   - Intelligence: The captured values.
func (e *Extractor) Extract(text string) Intelligence {
	var out Intelligence
	lower := strings.ToLower(text)

	for _, candidate := range uniqueMatches(handleRe, text) {
		switch e.ClassifyHandleInContext(candidate, text) {
		case HandleUPI:
			out.UpiIDs = MergeUnique(out.UpiIDs, []string{NormalizeHandle(candidate)})
		case HandleEmail:
			out.EmailAddresses = MergeUnique(out.EmailAddresses, []string{NormalizeHandle(candidate)})
		}
	}

	for _, raw := range uniqueMatches(linkRe, text) {
		if link := trimLink(raw); link != "" {
			out.PhishingLinks = MergeUnique(out.PhishingLinks, []string{link})
		}
	}

	bankDigits := make(map[string]bool)
	for _, m := range bankRe.FindAllStringSubmatch(text, -1) {
		value := strings.TrimSpace(m[3])
		if !LikelyBankAccount(value) {
			continue
		}
		out.BankAccounts = MergeUnique(out.BankAccounts, []string{value})
		bankDigits[digitsOf(value)] = true
	}

	for _, candidate := range uniqueMatches(phoneRe, text) {
		digits := digitsOf(candidate)
		if len(digits) < 8 || len(digits) > 13 {
			continue
		}
		// A digit run already claimed as a bank account is not a phone.
		if bankDigits[digits] {
			continue
		}
		out.PhoneNumbers = MergeUnique(out.PhoneNumbers, []string{candidate})
	}

	out.CaseIDs = anchoredIDs(caseRe, text)
	out.PolicyNumbers = anchoredIDs(policyRe, text)
	out.OrderNumbers = anchoredIDs(orderRe, text)

	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			out.SuspiciousKeywords = MergeUnique(out.SuspiciousKeywords, []string{kw})
		}
	}

	return out
}

// FromHistory runs Extract over every scammer-authored message and merges
// the results. This is the bulk recovery path used when the remote
// extraction call fails.
func (e *Extractor) FromHistory(messages []datatypes.Message) Intelligence {
	var out Intelligence
	for _, msg := range messages {
		if msg.Sender != datatypes.SenderScammer {
			continue
		}
		out.Merge(e.Extract(msg.Text))
	}
	return out
}

// ClassifyHandleInContext decides whether a local@domain candidate is a
// UPI VPA or an email address, using its surroundings in source first.
//
// Description:
//
//	A 30-character window on each side of the candidate's occurrence in
//	source is checked for email cues, then payment-handle cues; when the
//	candidate is absent from source the whole text is the window. Only
//	when neither cue appears does the domain shape decide.
func (e *Extractor) ClassifyHandleInContext(candidate, source string) HandleKind {
	normalized := NormalizeHandle(candidate)
	if !handleShape.MatchString(normalized) {
		return HandleInvalid
	}
	window := strings.ToLower(source)
	handle := strings.ToLower(normalized)
	if idx := strings.Index(window, handle); idx >= 0 {
		start := idx - 30
		if start < 0 {
			start = 0
		}
		end := idx + len(handle) + 30
		if end > len(window) {
			end = len(window)
		}
		window = window[start:end]
	}
	if emailCueRe.MatchString(window) {
		return HandleEmail
	}
	if upiCueRe.MatchString(window) {
		return HandleUPI
	}
	return e.ClassifyHandle(normalized)
}

// ClassifyHandle decides whether a local@domain candidate is a UPI VPA or
// an email address from the domain shape alone. It is the fallback for
// ClassifyHandleInContext and the classifier for stored values whose
// source text is gone.
//
// Description:
//
//	The domain shape is decisive, in this order: a domain without a dotted
//	TLD is a UPI handle; a domain carrying a known bank-handle token (or
//	any label starting with "ok") is a UPI handle; anything else is email.
func (e *Extractor) ClassifyHandle(candidate string) HandleKind {
	normalized := NormalizeHandle(candidate)
	if !handleShape.MatchString(normalized) {
		return HandleInvalid
	}
	domain := strings.ToLower(normalized[strings.LastIndex(normalized, "@")+1:])
	if !dottedTLDRe.MatchString(domain) {
		return HandleUPI
	}
	for _, label := range strings.Split(domain, ".") {
		if e.upiSuffixes[label] || strings.HasPrefix(label, "ok") {
			return HandleUPI
		}
	}
	return HandleEmail
}

// NormalizeHandle trims whitespace and trailing sentence punctuation from
// a captured handle.
func NormalizeHandle(value string) string {
	return strings.TrimRight(strings.TrimSpace(value), trailingPunct)
}

// LikelyBankAccount reports whether a string is a plausible bank account
// capture: digits plus mask/separator characters only, with an
// account-sized digit count or heavy masking. Any alphabetic character
// other than the X mask disqualifies it, which rejects descriptive prose.
func LikelyBankAccount(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	digits, masks := 0, 0
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == 'X' || r == 'x' || r == '*':
			masks++
		case r == ' ' || r == '-' || r == '_' || r == '/' || r == '\t':
		default:
			return false
		}
	}
	return (digits >= 9 && digits <= 18) || masks >= 4
}

// =============================================================================
// Helpers
// =============================================================================

func uniqueMatches(re *regexp.Regexp, text string) []string {
	return MergeUnique(nil, re.FindAllString(text, -1))
}

func digitsOf(value string) string {
	return strings.Join(digitRe.FindAllString(value, -1), "")
}

// trimLink strips surrounding bracket, quote, and punctuation noise from a
// captured URL.
func trimLink(raw string) string {
	link := strings.TrimRight(raw, `)>],.;:!?'"`)
	link = strings.TrimLeft(link, `(<['"`)
	return link
}

func anchoredIDs(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		value := strings.TrimRight(strings.TrimSpace(m[1]), trailingPunct)
		// Anchored identifiers must carry at least one digit; this
		// filters plain words that follow the anchor.
		if value == "" || !strings.ContainsAny(value, "0123456789") {
			continue
		}
		out = MergeUnique(out, []string{value})
	}
	return out
}
