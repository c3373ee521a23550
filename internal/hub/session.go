// Package hub implements the Connection Hub (C4): it accepts push-channel
// upgrades, binds each connection to a Room as a room.Subscriber, and
// translates between the JSON wire envelope in §6.1 and room.Command values.
// The read/write pump shape is the teacher's (internal/v1/session/client.go),
// generalized from a binary protobuf frame to the spec's JSON text envelope
// and from a single send channel to the keep-alive/backpressure rules in
// §4.4 and §5.
package hub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

const (
	outboundQueueDepth = 64
	pingInterval       = 30 * time.Second
	writeWait          = 10 * time.Second
	// missed-ping threshold: two consecutive unanswered pings (§4.4).
	maxMissedPings = 2
)

// wsConnection is the subset of *websocket.Conn the Session needs, matching
// the teacher's wsConnection seam so tests can substitute a fake transport.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Session is one push-channel connection, bound to exactly one (role,
// room, teamName?) tuple for its lifetime. It implements room.Subscriber.
type Session struct {
	id       string
	conn     wsConnection
	r        *room.Room
	role     room.Role
	teamName string

	send      chan []byte
	closeOnce sync.Once
	closed    atomic.Bool

	pongReceived atomic.Bool
	missedPings  int
}

func newSession(conn wsConnection, r *room.Room, role room.Role, teamName string) *Session {
	return &Session{
		id:       uuid.NewString(),
		conn:     conn,
		r:        r,
		role:     role,
		teamName: teamName,
		send:     make(chan []byte, outboundQueueDepth),
	}
}

// --- room.Subscriber ---------------------------------------------------

func (s *Session) SubscriberID() string { return s.id }

// Deliver marshals event as JSON and enqueues it for the write pump. It
// never blocks: a full queue means a slow consumer, so Deliver reports
// failure and the Room detaches this session as backpressure-dropped.
func (s *Session) Deliver(event any) bool {
	if s.closed.Load() {
		return false
	}
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error(nil, "failed to marshal outbound event", zap.Error(err))
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close terminates the transport with the given push-channel close code. It
// is safe to call more than once; only the first call has any effect.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		closeMsg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		close(s.send)
	})
}

// readPump translates inbound frames into Room commands until the
// connection errs out or is closed, then detaches the session.
func (s *Session) readPump() {
	defer func() {
		s.r.Submit(room.Command{Kind: room.CmdDetachSession, Subscriber: s})
		s.conn.Close()
		metrics.ActiveWebSocketConnections.Dec()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pingInterval * (maxMissedPings + 1)))
	s.conn.SetPongHandler(func(string) error {
		s.pongReceived.Store(true)
		s.conn.SetReadDeadline(time.Now().Add(pingInterval * (maxMissedPings + 1)))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleInbound(data)
	}
}

// writePump owns all writes to the connection: outbound events from
// Deliver and the keep-alive ping ticker. Centralizing writes on one
// goroutine is required by gorilla/websocket (concurrent writes are not
// safe on one *websocket.Conn).
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	// No ping has gone out before the first tick, so that tick must not
	// count as a missed pong.
	s.pongReceived.Store(true)

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if !s.pongReceived.Load() {
				s.missedPings++
			} else {
				s.missedPings = 0
			}
			s.pongReceived.Store(false)

			if s.missedPings >= maxMissedPings {
				logging.Warn(nil, "session missed keep-alive pings, detaching",
					zap.String("session_id", s.id))
				s.r.Submit(room.Command{Kind: room.CmdDetachSession, Subscriber: s})
				metrics.SessionsDroppedTotal.WithLabelValues("missed_ping").Inc()
				return
			}

			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// inboundEnvelope is a superset of every inbound message shape in §6.1; a
// JSON envelope carries only the fields its Type actually uses.
type inboundEnvelope struct {
	Type              string `json:"type"`
	ClientTsMs        int64  `json:"client_ts_ms"`
	SongOK            bool   `json:"song_ok"`
	ArtistOrContentOK bool   `json:"artist_or_content_ok"`
	Wrong             bool   `json:"wrong"`
	TeamName          string `json:"team_name"`
}

func (s *Session) handleInbound(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		metrics.WebSocketEventsTotal.WithLabelValues("unknown", "protocol_error").Inc()
		s.sendError(gameerr.ClientProtocol, "malformed message")
		return
	}

	if env.Type == "ping" {
		s.Deliver(pongFrame{Type: "pong"})
		metrics.WebSocketEventsTotal.WithLabelValues("ping", "ok").Inc()
		return
	}

	cmd, status := s.translate(env)
	switch status {
	case translateUnknownType:
		metrics.WebSocketEventsTotal.WithLabelValues(env.Type, "unknown_type").Inc()
		s.sendError(gameerr.ClientProtocol, "unrecognized message type "+env.Type)
		return
	case translateForbidden:
		metrics.WebSocketEventsTotal.WithLabelValues(env.Type, "forbidden").Inc()
		s.sendError(gameerr.PermissionDenied, "role may not issue "+env.Type)
		return
	}

	res := s.r.Submit(cmd)
	if res.Err != nil {
		metrics.WebSocketEventsTotal.WithLabelValues(env.Type, "error").Inc()
		s.sendError(gameerr.KindOf(res.Err), res.Err.Error())
		return
	}
	metrics.WebSocketEventsTotal.WithLabelValues(env.Type, "ok").Inc()
}

// translateStatus distinguishes "this message type doesn't exist at all"
// from "this message type exists but this session's role may not issue
// it" — §9's "unknown types produce ClientProtocol" is a different
// rejection from a role-forbidden command, and callers need to tell them
// apart to pick the right gameerr.Kind.
type translateStatus int

const (
	translateOK translateStatus = iota
	translateUnknownType
	translateForbidden
)

// translate maps one inbound envelope to a Room command, gated by role per
// §4.4.
func (s *Session) translate(env inboundEnvelope) (room.Command, translateStatus) {
	switch env.Type {
	case "buzz_pressed":
		if s.role != room.RoleTeam {
			return room.Command{}, translateForbidden
		}
		return room.Command{Kind: room.CmdBuzzPress, Role: room.RoleTeam, TeamName: s.teamName, ClientWallClockMs: env.ClientTsMs}, translateOK

	case "start_game":
		return s.managerCommand(room.CmdStartGame)
	case "start_round":
		return s.managerCommand(room.CmdStartRound)
	case "restart_song":
		return s.managerCommand(room.CmdRestartSong)
	case "skip_round":
		return s.managerCommand(room.CmdSkipRound)
	case "end_game":
		return s.managerCommand(room.CmdEndGame)

	case "evaluate_answer":
		if s.role != room.RoleManager {
			return room.Command{}, translateForbidden
		}
		return room.Command{
			Kind: room.CmdEvaluateAnswer, Role: room.RoleManager,
			SongOK: env.SongOK, ArtistOrContentOK: env.ArtistOrContentOK, Wrong: env.Wrong,
		}, translateOK

	case "kick_team":
		if s.role != room.RoleManager {
			return room.Command{}, translateForbidden
		}
		return room.Command{Kind: room.CmdKickTeam, Role: room.RoleManager, TeamName: env.TeamName}, translateOK

	default:
		return room.Command{}, translateUnknownType
	}
}

func (s *Session) managerCommand(kind room.CommandKind) (room.Command, translateStatus) {
	if s.role != room.RoleManager {
		return room.Command{}, translateForbidden
	}
	return room.Command{Kind: kind, Role: room.RoleManager}, translateOK
}

func (s *Session) sendError(kind gameerr.Kind, message string) {
	s.Deliver(errorFrame{Type: "error", Code: string(kind), Message: message})
}

type pongFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// httpCloseCode maps an AttachSession rejection to the §6.1 close code,
// which depends on both the error kind and the role that was rejected.
func httpCloseCode(role room.Role, err error) int {
	switch gameerr.KindOf(err) {
	case gameerr.NotFound:
		return 4001
	case gameerr.InvalidState:
		return 4003
	case gameerr.ClientProtocol:
		return 4002
	case gameerr.NameConflict:
		if role == room.RoleManager {
			return 4004
		}
		return 4002
	default:
		return websocket.CloseInternalServerErr
	}
}
