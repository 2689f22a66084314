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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("aleutian.graphd.store")
	meter  = otel.Meter("aleutian.graphd.store")
)

// Metrics for store transactions.
var (
	updateLatency metric.Float64Histogram
	updateTotal   metric.Int64Counter
	nodesLocked   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		updateLatency, err = meter.Float64Histogram(
			"graphd_store_update_duration_seconds",
			metric.WithDescription("Duration of store transactions including lock wait"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		updateTotal, err = meter.Int64Counter(
			"graphd_store_update_total",
			metric.WithDescription("Total number of store transactions by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesLocked, err = meter.Int64Histogram(
			"graphd_store_nodes_locked",
			metric.WithDescription("Number of nodes locked per transaction"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordUpdateMetrics records metrics for one transaction.
func recordUpdateMetrics(ctx context.Context, duration time.Duration, nodeCount int, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	updateLatency.Record(ctx, duration.Seconds(), attrs)
	updateTotal.Add(ctx, 1, attrs)
	nodesLocked.Record(ctx, int64(nodeCount))
}

// startUpdateSpan creates a span for a transaction.
func startUpdateSpan(ctx context.Context, nodeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store.Update",
		trace.WithAttributes(
			attribute.Int("graphd.node_count", nodeCount),
		),
	)
}
