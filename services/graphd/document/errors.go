// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import "errors"

// Sentinel errors for document operations.
var (
	// ErrSyntax is returned when input is not a single valid JSON value.
	ErrSyntax = errors.New("invalid JSON")

	// ErrTooDeep is returned when input nesting exceeds MaxDepth.
	ErrTooDeep = errors.New("document nesting too deep")

	// ErrNotObject is returned when an object was required.
	ErrNotObject = errors.New("document is not an object")

	// ErrInvalidPath is returned by Set for a path it cannot write through,
	// such as a negative index or a key segment applied to an array.
	ErrInvalidPath = errors.New("invalid document path")
)
