// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/havenchat/haven/internal/chat"
	"github.com/havenchat/haven/pkg/errutil"
)

type addMessageRequest struct {
	AuthorID string `json:"authorId" validate:"required"`
	Body     string `json:"body" validate:"required"`
}

type deleteMessageRequest struct {
	AuthorID  string `json:"authorId" validate:"required"`
	MessageID string `json:"messageId" validate:"required"`
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var req addMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	msg, err := s.svc.AddMessage(r.Context(), req.AuthorID, req.Body)
	if err != nil {
		s.writeServiceError(w, "add message failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": msg})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteMessageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.svc.DeleteMessage(r.Context(), req.AuthorID, req.MessageID); err != nil {
		s.writeServiceError(w, "delete message failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleListMessages serves GET /api/chat/messages?limit&skip&timestamp.
// The timestamp query parameter exists only to defeat client and proxy
// caching; it is ignored.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "skip", 0)

	msgs, err := s.svc.ListMessages(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, "list messages failed", err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// decodeBody parses and validates a JSON request body. It writes the 400
// response itself and returns false when the input is unusable.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "authorId and body are required")
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, chat.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not the message author")
	case errors.Is(err, chat.ErrTimeout):
		writeError(w, http.StatusRequestTimeout, "request timed out")
	default:
		errutil.LogError(s.log, msg, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
