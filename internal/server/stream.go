package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// handleGenerateStream reads one GenerateRequest from the socket, emits a
// progress event per artifact and finishes with a complete or error event.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestBody)

	var writeErr error
	send := func(ev Event) {
		if writeErr != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		writeErr = conn.WriteJSON(ev)
	}

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	req := &GenerateRequest{}
	if err := conn.ReadJSON(req); err != nil {
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			send(Event{Type: EventError, Error: "invalid JSON message: " + err.Error()})
		}
		return
	}
	if err := s.validate.Struct(req); err != nil {
		resp := validationError(err)
		send(Event{Type: EventError, Error: resp.Details})
		return
	}

	resp, _, errResp := s.generate(r, req, send)
	if errResp != nil {
		send(Event{Type: EventError, Error: errResp.Details, Failures: errResp.Failures})
	} else {
		send(Event{Type: EventComplete, OK: true, Result: resp})
	}
	if writeErr != nil {
		s.logger.Warn("stream write failed", "err", writeErr)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
