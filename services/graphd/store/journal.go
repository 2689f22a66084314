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

import "context"

// Journal receives the staged nodes of every transaction before they are
// made visible.
//
// Description:
//
//	Commit is called while the transaction still holds the write locks of
//	every node it passes. Returning an error aborts the transaction: the
//	staged nodes are discarded and the store is left untouched. Commit
//	must not retain or mutate the nodes after it returns.
//
// Thread Safety: Implementations must be safe for concurrent use; commits
// of disjoint node sets run in parallel.
type Journal interface {
	Commit(ctx context.Context, nodes []*Node) error
}

// JournalFunc adapts a function to the Journal interface.
type JournalFunc func(ctx context.Context, nodes []*Node) error

// Commit implements Journal.
func (f JournalFunc) Commit(ctx context.Context, nodes []*Node) error {
	return f(ctx, nodes)
}

// nopJournal accepts everything.
type nopJournal struct{}

func (nopJournal) Commit(context.Context, []*Node) error { return nil }

// CommitListener is notified after a transaction became visible.
type CommitListener func(ctx context.Context, ids []string)
