// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package push

import (
	"errors"
	"fmt"
)

// ErrPush is matched by every PushError.
var ErrPush = errors.New("push failed")

// PushError reports a push that could not be applied.
//
// NodeID is the node the failure is attributed to. Nothing from the push
// was applied.
type PushError struct {
	NodeID string
	Cause  error
}

// Error implements error.
func (e *PushError) Error() string {
	return fmt.Sprintf("failed to push node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the cause.
func (e *PushError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrPush) match.
func (e *PushError) Is(target error) bool {
	return target == ErrPush
}
