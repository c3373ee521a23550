// Package httpapi implements the thin HTTP control surface: the
// convenience entry points of §6.2 that reduce to the same Room commands
// the push channel issues, plus process liveness. It never holds any game
// state itself — every handler resolves a Room through the Registry and
// calls Submit, the same as the Connection Hub does.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

// Server holds the dependencies the control surface's handlers need.
type Server struct {
	registry         *room.Registry
	defaultMaxRounds int
	defaultGenres    []string
}

// NewServer builds a Server backed by registry. defaultMaxRounds and
// defaultGenres fill in a POST /api/games body that omits them.
func NewServer(registry *room.Registry, defaultMaxRounds int, defaultGenres []string) *Server {
	return &Server{registry: registry, defaultMaxRounds: defaultMaxRounds, defaultGenres: defaultGenres}
}

type createGameRequest struct {
	MaxRounds int      `json:"max_rounds"`
	Genres    []string `json:"genres"`
}

type createGameResponse struct {
	GameCode string `json:"game_code"`
}

// CreateGame handles `POST /api/games`.
func (s *Server) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody(gameerr.ClientProtocol, "invalid request body"))
		return
	}

	maxRounds := req.MaxRounds
	if maxRounds <= 0 {
		maxRounds = s.defaultMaxRounds
	}
	genres := req.Genres
	if len(genres) == 0 {
		genres = s.defaultGenres
	}

	code, _, err := s.registry.CreateRoom(maxRounds, genres)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createGameResponse{GameCode: string(code)})
}

// teamSummaryResponse mirrors room.TeamSummary for the wire.
type teamSummaryResponse struct {
	Name     string `json:"name"`
	Attached bool   `json:"attached"`
	Score    int    `json:"score"`
}

type gameSnapshotResponse struct {
	GameCode    string                `json:"game_code"`
	State       string                `json:"state"`
	Teams       []teamSummaryResponse `json:"teams"`
	RoundNumber int                   `json:"round_number"`
	RoundState  string                `json:"round_state,omitempty"`
	LockedBy    string                `json:"locked_by,omitempty"`
	CanEnd      bool                  `json:"can_end"`
	MaxRounds   int                   `json:"max_rounds"`
}

// GetGame handles `GET /api/games/{code}`: roster, state, and settings for
// reconnect UX / debugging, per §6.2.
func (s *Server) GetGame(c *gin.Context) {
	r, err := s.registry.Lookup(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	res := r.Submit(room.Command{Kind: room.CmdSnapshot})
	if res.Err != nil {
		writeError(c, res.Err)
		return
	}
	snap := res.Data.(room.Snapshot)

	teams := make([]teamSummaryResponse, 0, len(snap.Teams))
	for _, t := range snap.Teams {
		teams = append(teams, teamSummaryResponse{Name: t.Name, Attached: t.Attached, Score: t.Score})
	}

	c.JSON(http.StatusOK, gameSnapshotResponse{
		GameCode:    string(snap.Code),
		State:       string(snap.State),
		Teams:       teams,
		RoundNumber: snap.RoundNumber,
		RoundState:  string(snap.RoundState),
		LockedBy:    snap.LockedBy,
		CanEnd:      snap.CanEnd,
		MaxRounds:   snap.MaxRounds,
	})
}

// KickTeam handles `POST /api/games/{code}/kick/{team_name}`, the alternate
// HTTP channel for KickTeam that some Manager UIs prefer over a push-channel
// message (§6.2). It is issued with Role=Manager the same as the WebSocket
// path: this endpoint is for the Manager's own tooling, not exposed to
// Teams or Displays.
func (s *Server) KickTeam(c *gin.Context) {
	r, err := s.registry.Lookup(c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	res := r.Submit(room.Command{Kind: room.CmdKickTeam, Role: room.RoleManager, TeamName: c.Param("team_name")})
	if res.Err != nil {
		writeError(c, res.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "kicked"})
}

// Health handles `GET /health`: process liveness only, no dependency
// checks — the Song Catalog is checked per-call via the circuit breaker,
// not here.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func errBody(kind gameerr.Kind, message string) gin.H {
	return gin.H{"code": string(kind), "message": message}
}

// writeError maps a gameerr.Kind to the §7 propagation policy's HTTP status
// for a command submitted via the control surface.
func writeError(c *gin.Context, err error) {
	kind := gameerr.KindOf(err)
	status := statusForKind(kind)
	logging.Warn(c.Request.Context(), "control surface request failed",
		zap.String("kind", string(kind)), zap.Error(err))
	c.JSON(status, errBody(kind, err.Error()))
}

func statusForKind(kind gameerr.Kind) int {
	switch kind {
	case gameerr.NotFound:
		return http.StatusNotFound
	case gameerr.InvalidState, gameerr.NameConflict, gameerr.ClientProtocol:
		return http.StatusBadRequest
	case gameerr.PermissionDenied:
		return http.StatusForbidden
	case gameerr.CapacityExhausted:
		return http.StatusServiceUnavailable
	case gameerr.UpstreamUnavailable, gameerr.NoSongAvailable:
		return http.StatusBadGateway
	case gameerr.RoomGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
