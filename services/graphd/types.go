// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphd

// PushResponse is the body of every push reply, success or failure.
type PushResponse struct {
	// Status mirrors the HTTP status code.
	Status int `json:"status"`

	// Name is "push" on success and "PushError" on failure.
	Name string `json:"name"`

	// Message is human readable.
	Message string `json:"message"`

	// Nodes lists the touched node ids on success.
	Nodes []string `json:"nodes,omitempty"`

	// Created counts nodes the push created.
	Created int `json:"created,omitempty"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code (optional).
	Code string `json:"code,omitempty"`

	// Path is the dotted key path of a malformed value (optional).
	Path string `json:"path,omitempty"`
}

// MessageResponse is the body of GET /.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response for GET /v1/graph/health.
type HealthResponse struct {
	// Status is "healthy".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// Nodes is the current node count.
	Nodes int `json:"nodes"`
}

// ReadyResponse is the response for GET /v1/graph/ready.
type ReadyResponse struct {
	Ready bool `json:"ready"`
	Nodes int  `json:"nodes"`
}

// StatsResponse is the response for GET /v1/graph/stats.
type StatsResponse struct {
	Nodes       int `json:"nodes"`
	Actors      int `json:"actors"`
	Edges       int `json:"edges"`
	Rights      int `json:"rights"`
	FeedClients int `json:"feed_clients"`
}
