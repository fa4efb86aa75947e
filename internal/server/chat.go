package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/events"
)

// chatResponse is the non-streaming answer: the terminal completion at
// the top level plus the reasoning steps that led to it.
type chatResponse struct {
	events.Completion
	Steps []events.Step `json:"steps,omitempty"`
}

// handleChat runs one turn and returns the final result in a single
// response. The stream buffer absorbs every event a turn can emit, so
// processing synchronously and draining afterwards cannot deadlock.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req conversation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stream := events.NewStream()
	if err := s.engine.Process(r.Context(), req, stream); err != nil {
		if !stream.Closed() {
			writeError(w, statusForErr(err), err.Error())
			return
		}
	}

	resp := chatResponse{}
	done := false
	for e := range stream.Events() {
		switch e.Type {
		case events.TypeComplete:
			resp.Completion = *e.Completion
			done = true
		case events.TypeError:
			writeError(w, http.StatusInternalServerError, e.Message)
			return
		case events.TypeReasoning:
			if e.Step != nil && e.Step.Status == events.StepCompleted {
				resp.Steps = append(resp.Steps, *e.Step)
			}
		}
	}
	if !done {
		writeError(w, http.StatusInternalServerError, "turn produced no result")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleChatStream runs one turn and streams its events as server-sent
// events. Each event is one "data:" frame; the stream ends with a
// "[DONE]" sentinel.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req conversation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := events.NewStream()
	go func() {
		err := s.engine.Process(r.Context(), req, stream)
		// Pre-stream failures never emit events, so the consumer side
		// would wait forever without this conversion.
		if err != nil && !stream.Closed() {
			stream.Error(err.Error())
		}
	}()

	for e := range stream.Events() {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
