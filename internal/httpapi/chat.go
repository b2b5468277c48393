package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/tutorvox/internal/character"
	"github.com/MrWong99/tutorvox/internal/stream"
	"github.com/MrWong99/tutorvox/pkg/provider/llm"
)

// maxChatBodyBytes caps the chat request body. Conversations are text; a
// megabyte of history is already far beyond any model context window we use.
const maxChatBodyBytes = 1 << 20

// chatRequest is the JSON body of POST /api/chat.
type chatRequest struct {
	// Messages is the conversation history. The last entry drives the
	// response and is typically user-role.
	Messages []llm.Message `json:"messages"`

	// ThreadID identifies the conversation for persistence. Empty means a
	// new thread.
	ThreadID string `json:"threadId"`

	// UserID identifies the requesting user. Empty requests are served but
	// not persisted.
	UserID string `json:"userId"`

	// CharacterID selects the tutor persona. Empty selects the default.
	CharacterID string `json:"characterId"`

	// SystemPrompt overrides the character's system prompt when non-empty.
	SystemPrompt string `json:"systemPrompt"`

	// MessageID identifies the assistant message for image attachment.
	MessageID string `json:"messageId"`

	// ImageGenerationEnabled gates the post-response image classifier.
	// Absent means enabled.
	ImageGenerationEnabled *bool `json:"imageGenerationEnabled"`
}

// handleChat runs the full streaming pipeline for one chat turn. The response
// is an SSE stream of frames terminated by the [DONE] sentinel; errors after
// the stream has started surface as status frames, not HTTP status codes.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	char, err := s.characters().Resolve(req.CharacterID)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown character: "+req.CharacterID)
			return
		}
		s.log.Error("character resolution failed", "character_id", req.CharacterID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve character")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	imageEnabled := true
	if req.ImageGenerationEnabled != nil {
		imageEnabled = *req.ImageGenerationEnabled
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := newSSESink(w, flusher, s.log)

	// The pipeline is detached from the request context: a client disconnect
	// must not abort synthesis or thread persistence. The sink drops writes
	// to a dead connection, so the stream drains harmlessly.
	runErr := s.orch.Run(context.WithoutCancel(r.Context()), stream.Request{
		Messages:               req.Messages,
		SystemPrompt:           req.SystemPrompt,
		Character:              char,
		ThreadID:               req.ThreadID,
		UserID:                 req.UserID,
		MessageID:              req.MessageID,
		ImageGenerationEnabled: imageEnabled,
	}, sink)
	if runErr != nil {
		// The error status frame is already on the wire; nothing more to
		// send, but the failure still belongs in the server log.
		s.log.Error("chat stream failed", "thread_id", req.ThreadID, "err", runErr)
	}

	sink.SendDone()
}
