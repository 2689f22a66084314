// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grammar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedInput is matched by every validation failure.
var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError describes why a document was rejected.
//
// Path lists the keys from the document root to the offending value.
// An empty Path means the root itself was rejected.
type MalformedInputError struct {
	Path   []string
	Reason string
}

// Error implements error.
func (e *MalformedInputError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("malformed input: %s", e.Reason)
	}
	return fmt.Sprintf("malformed input at %s: %s", e.PathString(), e.Reason)
}

// Is makes errors.Is(err, ErrMalformedInput) match.
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

// PathString joins Path with dots.
func (e *MalformedInputError) PathString() string {
	return strings.Join(e.Path, ".")
}

// malformed builds a MalformedInputError with a private copy of path.
func malformed(path []string, format string, args ...any) error {
	return &MalformedInputError{
		Path:   append([]string(nil), path...),
		Reason: fmt.Sprintf(format, args...),
	}
}
