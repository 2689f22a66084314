// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feed

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("aleutian.graphd.feed")

var (
	eventsPublished metric.Int64Counter
	clientsDropped  metric.Int64Counter
	idsPublished    metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		eventsPublished, err = meter.Int64Counter(
			"graphd_feed_events_total",
			metric.WithDescription("Commit events published to the change feed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		clientsDropped, err = meter.Int64Counter(
			"graphd_feed_clients_dropped_total",
			metric.WithDescription("Change feed clients dropped for falling behind"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		idsPublished, err = meter.Int64Histogram(
			"graphd_feed_event_ids",
			metric.WithDescription("Node ids per published event"),
			metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 50, 100, 500),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordPublish(ctx context.Context, ids, dropped int) {
	if err := initMetrics(); err != nil {
		return
	}
	eventsPublished.Add(ctx, 1)
	idsPublished.Record(ctx, int64(ids))
	if dropped > 0 {
		clientsDropped.Add(ctx, int64(dropped))
	}
}
