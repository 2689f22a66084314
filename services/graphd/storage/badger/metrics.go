// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.graphd.journal")

var (
	commitTotal    metric.Int64Counter
	recordsWritten metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commitTotal, err = meter.Int64Counter(
			"graphd_journal_commits_total",
			metric.WithDescription("Total number of successful journal commits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		recordsWritten, err = meter.Int64Counter(
			"graphd_journal_records_written_total",
			metric.WithDescription("Total number of node records written to the journal"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordJournalCommit(ctx context.Context, records int) {
	if err := initMetrics(); err != nil {
		return
	}
	commitTotal.Add(ctx, 1)
	recordsWritten.Add(ctx, int64(records))
}
