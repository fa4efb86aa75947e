package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hragd/hragd/internal/conversation"
	"github.com/hragd/hragd/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleChatWS mirrors the SSE stream over a WebSocket: each inbound
// message is one turn, each engine event one outbound JSON message.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req conversation.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendWSEvent(conn, events.Event{Type: events.TypeError, Message: "invalid message format"})
			continue
		}

		stream := events.NewStream()
		go func() {
			err := s.engine.Process(r.Context(), req, stream)
			if err != nil && !stream.Closed() {
				stream.Error(err.Error())
			}
		}()

		for e := range stream.Events() {
			s.sendWSEvent(conn, e)
		}
	}
}

func (s *Server) sendWSEvent(conn *websocket.Conn, e events.Event) {
	if err := conn.WriteJSON(e); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}
