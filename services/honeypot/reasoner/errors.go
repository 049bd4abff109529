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

import "fmt"

// ProviderError wraps a failure talking to the remote reasoner provider.
// Transient marks statuses and transport errors worth retrying.
type ProviderError struct {
	Status    int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("reasoner provider: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("reasoner provider: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError reports model output that could not be coerced into the
// expected JSON shape, even after balanced-brace recovery.
type ParseError struct {
	Kind string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reasoner parse (%s): %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// retryableStatuses are the provider HTTP statuses retried with backoff.
var retryableStatuses = map[int]bool{
	408: true,
	409: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}
