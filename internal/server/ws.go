package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/dlovans/formwork/pkg/formwork"
)

// serveWS upgrades to WebSocket and runs the message loop for one session.
// Every mutating message is answered with a fresh snapshot.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	l := s.sessions.Get(chi.URLParam(r, "session"))
	if l == nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warnw("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.send(ctx, conn, ServerMessage{
		Type: "session",
		Data: SessionData{SessionID: l.session.ID(), Form: l.form},
	})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				s.logger.Debugw("websocket closed", "session", l.session.ID(), "status", status)
			}
			return
		}
		// The sweep may have expired the session while the socket was open.
		if s.sessions.Get(l.session.ID()) != l {
			s.sendError(ctx, conn, msg.ID, "not_found", "session expired")
			conn.Close(websocket.StatusGoingAway, "session expired")
			return
		}
		s.handleMessage(ctx, conn, r, l, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, r *http.Request, l *liveSession, msg ClientMessage) {
	if msg.Type == "ping" {
		s.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.touch()

	reply, err := s.apply(r, l, msg)
	switch {
	case errors.Is(err, formwork.ErrConfirmationPending):
		s.send(ctx, conn, ServerMessage{Type: "pending", RequestID: msg.ID, Data: l.session.Snapshot()})
	case errors.Is(err, errBadMessage):
		s.sendError(ctx, conn, msg.ID, "invalid_data", err.Error())
	case err != nil:
		_, code := statusFor(err)
		s.sendError(ctx, conn, msg.ID, code, err.Error())
	case reply != nil:
		reply.RequestID = msg.ID
		s.send(ctx, conn, *reply)
	default:
		s.send(ctx, conn, ServerMessage{Type: "snapshot", RequestID: msg.ID, Data: l.session.Snapshot()})
	}
}

var errBadMessage = errors.New("invalid message")

// apply performs one client message against a locked session. A nil reply
// means the caller answers with a snapshot.
func (s *Server) apply(r *http.Request, l *liveSession, msg ClientMessage) (*ServerMessage, error) {
	sess := l.session
	switch msg.Type {
	case "snapshot":
		return nil, nil

	case "set", "blur":
		var d SetData
		if err := unmarshalData(msg, &d); err != nil {
			return nil, err
		}
		if msg.Type == "blur" {
			return nil, sess.Blur(d.Field)
		}
		return nil, sess.SetValue(d.Field, d.Value)

	case "setEntry", "add", "remove", "confirmRemove", "cancelRemove":
		var d EntryData
		if err := unmarshalData(msg, &d); err != nil {
			return nil, err
		}
		switch msg.Type {
		case "setEntry":
			return nil, sess.SetEntryValue(d.Array, d.Key, d.Child, d.Value)
		case "add":
			at := -1
			if d.At != nil {
				at = *d.At
			}
			key, err := sess.AddEntry(d.Array, at)
			if err != nil {
				return nil, err
			}
			return &ServerMessage{Type: "entry", Data: EntryCreated{Array: d.Array, Key: key}}, nil
		case "remove":
			return nil, sess.RemoveEntry(d.Array, d.Key)
		case "confirmRemove":
			return nil, sess.ConfirmRemoveEntry(d.Array, d.Key)
		default:
			return nil, sess.CancelRemoveEntry(d.Array, d.Key)
		}

	case "reset":
		var d ResetData
		if err := unmarshalData(msg, &d); err != nil {
			return nil, err
		}
		sess.Reset(d.IgnoreDefaults)
		return nil, nil

	case "submit":
		data, err := s.submitLocked(r, l)
		if err != nil {
			return nil, err
		}
		return &ServerMessage{Type: "submitted", Data: data}, nil

	case "draft":
		if s.store == nil {
			return nil, fmt.Errorf("%w: drafts are disabled", errBadMessage)
		}
		return nil, s.store.SaveDraft(r.Context(), sess.ID(), l.form, sess.GetValues())
	}
	return nil, fmt.Errorf("%w: unknown message type: %s", errBadMessage, msg.Type)
}

func unmarshalData(msg ClientMessage, v any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %v", errBadMessage, err)
	}
	return nil
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		s.logger.Warnw("websocket write", "error", err)
	}
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	s.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data: ErrorData{
			Code:    code,
			Message: message,
		},
	})
}
