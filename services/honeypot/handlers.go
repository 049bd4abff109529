// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package honeypot

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/honeypot/services/honeypot/datatypes"
	"github.com/AleutianAI/honeypot/services/honeypot/engine"
	"github.com/AleutianAI/honeypot/services/honeypot/session"
)

// errorFallbackReply answers a structurally valid envelope whose turn
// failed; a plausible human line keeps the counterparty engaged.
const errorFallbackReply = "I am checking this now. Can you share one official contact detail for follow-up?"

// Handlers holds the HTTP handlers for the engagement API.
//
// Thread Safety: Handlers is safe for concurrent use; all state lives in
// the engine and session store.
type Handlers struct {
	engine *engine.Engine
	store  *session.Store
}

// NewHandlers creates the handler set.
func NewHandlers(eng *engine.Engine, store *session.Store) *Handlers {
	return &Handlers{engine: eng, store: store}
}

// HandleMessage handles POST /api/message.
//
// Description:
//
//	Validates the envelope, runs one engine turn, and answers with the
//	engagement reply. Envelope problems are a 400; once the envelope is
//	valid the turn always answers 200, because the scammer-facing surface
//	must never leak an internal failure.
//
// Response:
//
//	200 OK: MessageResponse
//	400 Bad Request: ErrorResponse (missing sessionId or message text)
func (h *Handlers) HandleMessage(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMessage")

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request envelope", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "failed",
			Message: "sessionId and message are required",
		})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "failed",
			Message: "sessionId is required",
		})
		return
	}
	if req.Message == nil || strings.TrimSpace(req.Message.Text) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "failed",
			Message: "message.text is required",
		})
		return
	}

	result, err := h.engine.ProcessTurn(c.Request.Context(), engine.TurnInput{
		SessionID: req.SessionID,
		Message: datatypes.Message{
			Sender:    req.Message.Sender,
			Text:      req.Message.Text,
			Timestamp: string(req.Message.Timestamp),
		},
		History:  toMessages(req.ConversationHistory),
		Metadata: req.Metadata,
	})
	if err != nil {
		// Answer with a neutral stall so the counterparty sees nothing
		// unusual and keeps talking.
		logger.Error("turn aborted", "session_id", req.SessionID, "error", err)
		c.JSON(http.StatusOK, MessageResponse{Status: "success", Reply: errorFallbackReply})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Status:  "success",
		Reply:   result.Reply,
		Message: result.Note,
	})
}

// HandleSession handles GET /api/debug/session/:id. Debug inspection of
// canonical session state.
func (h *Handlers) HandleSession(c *gin.Context) {
	sess := h.store.Get(c.Param("id"))
	if sess == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Status:  "failed",
			Message: "session not found",
		})
		return
	}
	sess.Lock()
	defer sess.Unlock()
	c.JSON(http.StatusOK, sess)
}

// HandleHealth handles GET /api/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /api/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": h.store.Len(),
	})
}

func toMessages(history []InboundMessage) []datatypes.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]datatypes.Message, 0, len(history))
	for _, m := range history {
		out = append(out, datatypes.Message{
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: string(m.Timestamp),
		})
	}
	return out
}

// getOrCreateRequestID returns the X-Request-ID header, minting one when
// the caller did not send it.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Header("X-Request-ID", id)
	return id
}
