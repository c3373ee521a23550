package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/catalog"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

// fakeConn is a minimal wsConnection double: WriteMessage/WriteControl just
// record what was sent, matching the teacher's mock-connection test style.
type fakeConn struct {
	written  [][]byte
	controls []int
	closed   bool
}

func (f *fakeConn) ReadMessage() (int, []byte, error)             { return 0, nil, nil }
func (f *fakeConn) WriteMessage(_ int, data []byte) error         { f.written = append(f.written, data); return nil }
func (f *fakeConn) WriteControl(mt int, _ []byte, _ time.Time) error {
	f.controls = append(f.controls, mt)
	return nil
}
func (f *fakeConn) Close() error                          { f.closed = true; return nil }
func (f *fakeConn) SetReadDeadline(time.Time) error       { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error      { return nil }
func (f *fakeConn) SetPongHandler(func(string) error)     {}

func newTestSession(t *testing.T, role room.Role, teamName string) (*Session, *room.Room) {
	t.Helper()
	cat := &stubCatalog{}
	r := room.NewRoom("SESS01", 5, []string{"rock"}, cat, time.Second, nil)
	t.Cleanup(func() {
		r.Terminate("test_cleanup")
		<-r.Done()
	})
	return newSession(&fakeConn{}, r, role, teamName), r
}

type stubCatalog struct{}

func (stubCatalog) SelectSong(_ context.Context, _ []string, _ []int) (catalog.SongInfo, error) {
	return catalog.SongInfo{}, nil
}

func TestSessionDeliverMarshalsEventToQueue(t *testing.T) {
	s, _ := newTestSession(t, room.RoleManager, "")
	ok := s.Deliver(pongFrame{Type: "pong"})
	assert.True(t, ok)
	assert.Len(t, s.send, 1)
}

func TestSessionDeliverFailsWhenQueueSaturated(t *testing.T) {
	s, _ := newTestSession(t, room.RoleManager, "")
	for i := 0; i < outboundQueueDepth; i++ {
		require.True(t, s.Deliver(pongFrame{Type: "pong"}))
	}
	assert.False(t, s.Deliver(pongFrame{Type: "pong"}))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	s := newSession(conn, nil, room.RoleManager, "")
	s.Close(4010, "bye")
	s.Close(4010, "bye")
	assert.Len(t, conn.controls, 1)
	assert.True(t, s.closed.Load())
}

func TestTranslateGatesCommandsByRole(t *testing.T) {
	team := &Session{role: room.RoleTeam, teamName: "A"}
	_, status := team.translate(inboundEnvelope{Type: "start_game"})
	assert.Equal(t, translateForbidden, status, "a Team may not start the game")

	cmd, status := team.translate(inboundEnvelope{Type: "buzz_pressed", ClientTsMs: 123})
	require.Equal(t, translateOK, status)
	assert.Equal(t, room.CmdBuzzPress, cmd.Kind)
	assert.Equal(t, "A", cmd.TeamName)

	manager := &Session{role: room.RoleManager}
	_, status = manager.translate(inboundEnvelope{Type: "buzz_pressed"})
	assert.Equal(t, translateForbidden, status, "a Manager may not buzz")

	cmd, status = manager.translate(inboundEnvelope{Type: "evaluate_answer", SongOK: true})
	require.Equal(t, translateOK, status)
	assert.Equal(t, room.CmdEvaluateAnswer, cmd.Kind)
	assert.True(t, cmd.SongOK)

	display := &Session{role: room.RoleDisplay}
	_, status = display.translate(inboundEnvelope{Type: "start_round"})
	assert.Equal(t, translateForbidden, status, "a Display is read-only")
}

func TestTranslateUnknownTypeIsRejected(t *testing.T) {
	s := &Session{role: room.RoleManager}
	_, status := s.translate(inboundEnvelope{Type: "not_a_real_message"})
	assert.Equal(t, translateUnknownType, status, "an unrecognized type is distinct from a role-forbidden one")
}

// TestHandleInboundDistinguishesUnknownTypeFromForbidden pins the bug the
// maintainer flagged: both outcomes used to collapse to PermissionDenied.
// §9 requires an unrecognized type to surface as ClientProtocol instead.
func TestHandleInboundDistinguishesUnknownTypeFromForbidden(t *testing.T) {
	s, _ := newTestSession(t, room.RoleTeam, "A")

	s.handleInbound([]byte(`{"type":"not_a_real_message"}`))
	require.Len(t, s.send, 1)
	var unknown errorFrame
	require.NoError(t, json.Unmarshal(<-s.send, &unknown))
	assert.Equal(t, string(gameerr.ClientProtocol), unknown.Code)

	s.handleInbound([]byte(`{"type":"start_game"}`))
	require.Len(t, s.send, 1)
	var forbidden errorFrame
	require.NoError(t, json.Unmarshal(<-s.send, &forbidden))
	assert.Equal(t, string(gameerr.PermissionDenied), forbidden.Code)
}

func TestHTTPCloseCodeMapping(t *testing.T) {
	assert.Equal(t, 4001, httpCloseCode(room.RoleTeam, gameerr.New(gameerr.NotFound, "")))
	assert.Equal(t, 4003, httpCloseCode(room.RoleTeam, gameerr.New(gameerr.InvalidState, "")))
	assert.Equal(t, 4002, httpCloseCode(room.RoleTeam, gameerr.New(gameerr.NameConflict, "")))
	assert.Equal(t, 4004, httpCloseCode(room.RoleManager, gameerr.New(gameerr.NameConflict, "")))
	assert.Equal(t, 4002, httpCloseCode(room.RoleTeam, gameerr.New(gameerr.ClientProtocol, "")))
}
