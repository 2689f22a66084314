// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLocked is returned when a transaction touches a node outside
	// the set it locked.
	ErrNotLocked = errors.New("node not locked by transaction")

	// ErrJournal wraps every failure reported by the journal.
	ErrJournal = errors.New("journal commit failed")

	// ErrEmptyID is returned for an empty node id.
	ErrEmptyID = errors.New("node id must not be empty")
)

// NodeError attributes a failure to one node.
//
// Journals return it when a specific record could not be written, so that
// callers can report which node failed.
type NodeError struct {
	NodeID string
	Err    error
}

// Error implements error.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}
