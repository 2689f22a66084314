// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphd

import (
	"errors"

	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
)

// Sentinel errors for the graph service.
var (
	// ErrFeedDisabled indicates the service runs without a change feed.
	ErrFeedDisabled = errors.New("change feed disabled")
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeMalformedInput = "MALFORMED_INPUT"
	CodeBodyTooLarge   = "BODY_TOO_LARGE"
	CodeRateLimited    = "RATE_LIMITED"
	CodePushFailed     = "PUSH_FAILED"
	CodePullFailed     = "PULL_FAILED"
	CodeFeedDisabled   = "FEED_DISABLED"
)

// malformedDocument turns a body that is not a JSON object into a
// MalformedInputError rooted at the document.
func malformedDocument(err error) error {
	return &grammar.MalformedInputError{Reason: err.Error()}
}
