package hub

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/metrics"
	"github.com/BenArtzi4/Sound-Clash-sub000/internal/room"
)

// Hub upgrades push-channel connections and binds each to a Room, following
// the teacher's ServeWs shape (internal/v1/session/hub.go) generalized from
// a single room-ID param to this spec's role/code/teamName handshake.
type Hub struct {
	registry       *room.Registry
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewHub(registry *room.Registry, allowedOrigins []string) *Hub {
	h := &Hub{registry: registry, allowedOrigins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// ServeWS handles `GET /ws/:role/:code`. TEAM connections additionally
// carry `team_name` as a query parameter (the "path or query, implementation
// choice" left open by §6.1).
func (h *Hub) ServeWS(c *gin.Context) {
	role := room.Role(c.Param("role"))
	code := c.Param("code")
	teamName := c.Query("team_name")

	if role != room.RoleTeam && role != room.RoleManager && role != room.RoleDisplay {
		c.JSON(http.StatusBadRequest, gin.H{"code": string(gameerr.ClientProtocol), "message": "unknown role"})
		return
	}

	r, lookupErr := h.registry.Lookup(code)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	if lookupErr != nil {
		// §6.1: an unknown game code is refused with close code 4001,
		// delivered as a real close frame rather than a pre-upgrade HTTP
		// error, the same as every other AttachSession rejection below.
		closeMsg := websocket.FormatCloseMessage(4001, "no such game")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		conn.Close()
		return
	}

	session := newSession(conn, r, role, teamName)

	res := r.Submit(room.Command{Kind: room.CmdAttachSession, Role: role, TeamName: teamName, Subscriber: session})
	if res.Err != nil {
		session.Close(httpCloseCode(role, res.Err), res.Err.Error())
		conn.Close()
		return
	}

	metrics.ActiveWebSocketConnections.Inc()
	logging.Info(c.Request.Context(), "session attached",
		zap.String("game_code", code), zap.String("role", string(role)), zap.String("team_name", teamName))

	go session.writePump()
	go session.readPump()
}
