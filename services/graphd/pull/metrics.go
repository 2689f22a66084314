// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pull

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
	tracer = otel.Tracer("aleutian.graphd.pull")
	meter  = otel.Meter("aleutian.graphd.pull")
)

var (
	pullLatency  metric.Float64Histogram
	pullTotal    metric.Int64Counter
	nodesVisited metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		pullLatency, err = meter.Float64Histogram(
			"graphd_pull_duration_seconds",
			metric.WithDescription("Duration of pull operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pullTotal, err = meter.Int64Counter(
			"graphd_pull_total",
			metric.WithDescription("Total number of pull operations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesVisited, err = meter.Int64Histogram(
			"graphd_pull_nodes_visited",
			metric.WithDescription("Number of node reads per pull"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordPullMetrics(ctx context.Context, duration time.Duration, visited int, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	pullLatency.Record(ctx, duration.Seconds(), attrs)
	pullTotal.Add(ctx, 1, attrs)
	nodesVisited.Record(ctx, int64(visited))
}

func startPullSpan(ctx context.Context, topLevel int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Projector.Pull",
		trace.WithAttributes(
			attribute.Int("graphd.pull.top_level_nodes", topLevel),
		),
	)
}

func setPullSpanResult(span trace.Span, visited, returned int) {
	span.SetAttributes(
		attribute.Int("graphd.pull.nodes_visited", visited),
		attribute.Int("graphd.pull.nodes_returned", returned),
	)
}
