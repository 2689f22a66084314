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

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/graphd/grammar"
	"github.com/AleutianAI/AleutianGraph/services/graphd/push"
)

// Handlers contains the HTTP handlers for the graph service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: "Server running"})
}

// HandlePush handles POST /push and POST /v1/graph/push.
//
// Description:
//
//	Merges the request body, a push document, into the graph. Nothing is
//	applied unless the whole document is valid and every touched node
//	commits.
//
// Request Body:
//
//	Push document, application/json.
//
// Response:
//
//	200 OK: PushResponse{status:200, name:"push"}
//	400 Bad Request: ErrorResponse (content type or MALFORMED_INPUT)
//	413 Request Entity Too Large: ErrorResponse (BODY_TOO_LARGE)
//	500 Internal Server Error: PushResponse{status:500, name:"PushError"}
func (h *Handlers) HandlePush(c *gin.Context) {
	logger := requestLogger(c).With(slog.String("handler", "HandlePush"))

	raw, ok := readJSONBody(c, logger)
	if !ok {
		return
	}

	result, err := h.svc.Push(c.Request.Context(), raw)
	if err != nil {
		var pushErr *push.PushError
		switch {
		case errors.As(err, &pushErr):
			logger.Error("Push failed", "node_id", pushErr.NodeID, "error", pushErr.Cause)
			c.JSON(http.StatusInternalServerError, PushResponse{
				Status:  http.StatusInternalServerError,
				Name:    "PushError",
				Message: pushErr.Error(),
			})
		default:
			writeMalformedOr(c, logger, err, http.StatusInternalServerError, CodePushFailed)
		}
		return
	}

	logger.Info("Push applied", "nodes", len(result.Nodes), "created", result.Created)
	c.JSON(http.StatusOK, PushResponse{
		Status:  http.StatusOK,
		Name:    "push",
		Message: "Nodes pushed successfully",
		Nodes:   result.Nodes,
		Created: result.Created,
	})
}

// HandlePull handles POST /pull and POST /v1/graph/pull.
//
// Description:
//
//	Projects the graph through the request body, a pull query. Missing
//	nodes, edges and properties are omitted from the response rather than
//	reported as errors.
//
// Response:
//
//	200 OK: The projected document
//	400 Bad Request: ErrorResponse (content type or MALFORMED_INPUT)
//	500 Internal Server Error: ErrorResponse (PULL_FAILED)
func (h *Handlers) HandlePull(c *gin.Context) {
	logger := requestLogger(c).With(slog.String("handler", "HandlePull"))

	raw, ok := readJSONBody(c, logger)
	if !ok {
		return
	}

	out, err := h.svc.Pull(c.Request.Context(), raw)
	if err != nil {
		writeMalformedOr(c, logger, err, http.StatusInternalServerError, CodePullFailed)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

// HandleHealth handles GET /v1/graph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Nodes:   h.svc.Nodes(),
	})
}

// HandleReady handles GET /v1/graph/ready.
//
// Response:
//
//	200 OK: ReadyResponse once the journal is loaded
//	503 Service Unavailable: ReadyResponse{ready:false}
func (h *Handlers) HandleReady(c *gin.Context) {
	resp := ReadyResponse{Ready: h.svc.Ready(), Nodes: h.svc.Nodes()}
	if !resp.Ready {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleStats handles GET /v1/graph/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// HandleChanges handles GET /v1/graph/changes by upgrading to a WebSocket
// change feed.
func (h *Handlers) HandleChanges(c *gin.Context) {
	if h.svc.hub == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrFeedDisabled.Error(),
			Code:  CodeFeedDisabled,
		})
		return
	}
	h.svc.hub.ServeHTTP(c.Writer, c.Request)
}

// HandleMethodNotAllowed answers a known path called with the wrong verb.
func HandleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed"})
}

// HandleNotFound answers unknown paths.
func HandleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
}

// readJSONBody enforces the JSON content type and reads the body. On
// failure it writes the response and returns false.
func readJSONBody(c *gin.Context, logger *slog.Logger) ([]byte, bool) {
	if c.ContentType() != gin.MIMEJSON {
		logger.Warn("Invalid content type", "content_type", c.GetHeader("Content-Type"))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid content type"})
		return nil, false
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Request body too large", "limit", tooLarge.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "Request body too large",
				Code:  CodeBodyTooLarge,
			})
			return nil, false
		}
		logger.Warn("Failed to read request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Failed to read request body",
			Code:  CodeMalformedInput,
		})
		return nil, false
	}
	return raw, true
}

// writeMalformedOr writes 400 for malformed input and status/code for
// anything else.
func writeMalformedOr(c *gin.Context, logger *slog.Logger, err error, status int, code string) {
	var malformed *grammar.MalformedInputError
	if errors.As(err, &malformed) {
		logger.Warn("Malformed input", "path", malformed.PathString(), "reason", malformed.Reason)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: malformed.Error(),
			Code:  CodeMalformedInput,
			Path:  malformed.PathString(),
		})
		return
	}
	logger.Error("Request failed", "error", err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
