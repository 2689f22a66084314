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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.graphd.push")
	meter  = otel.Meter("aleutian.graphd.push")
)

var (
	pushLatency  metric.Float64Histogram
	pushTotal    metric.Int64Counter
	nodesTouched metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		pushLatency, err = meter.Float64Histogram(
			"graphd_push_duration_seconds",
			metric.WithDescription("Duration of push operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pushTotal, err = meter.Int64Counter(
			"graphd_push_total",
			metric.WithDescription("Total number of push operations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesTouched, err = meter.Int64Histogram(
			"graphd_push_nodes_touched",
			metric.WithDescription("Number of nodes touched per push"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordPushMetrics(ctx context.Context, duration time.Duration, nodeCount int, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	pushLatency.Record(ctx, duration.Seconds(), attrs)
	pushTotal.Add(ctx, 1, attrs)
	if outcome == "ok" {
		nodesTouched.Record(ctx, int64(nodeCount))
	}
}

func startPushSpan(ctx context.Context, topLevel int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Merger.Push",
		trace.WithAttributes(
			attribute.Int("graphd.push.top_level_nodes", topLevel),
		),
	)
}

func setPushSpanResult(span trace.Span, touched, created int) {
	span.SetAttributes(
		attribute.Int("graphd.push.nodes_touched", touched),
		attribute.Int("graphd.push.nodes_created", created),
	)
}
