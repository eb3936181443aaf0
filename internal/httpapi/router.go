// Package httpapi wires the HTTP surface: ICE credential delivery and the
// WebSocket upgrade that hands a connection off to a Peer Session.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-conference/sfu-server/internal/conference/auth"
	"github.com/aura-conference/sfu-server/internal/conference/ice"
	"github.com/aura-conference/sfu-server/internal/conference/room"
	"github.com/aura-conference/sfu-server/internal/conference/signaling"
	"github.com/aura-conference/sfu-server/internal/middleware"
	"github.com/aura-conference/sfu-server/pkg/response"
)

// iceFetchTimeout bounds the /ice endpoint the same way admission does.
const iceFetchTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // cross-origin signaling is expected; rooms gate on token, not origin
	},
}

// Deps bundles everything the router needs to construct handlers, mirroring
// the teacher's pattern of building the gin.Engine from fully-constructed
// service values rather than letting handlers reach for globals.
type Deps struct {
	Log         *zap.Logger
	CORSOrigins string
	IceProvider ice.Provider
	Decoder     *auth.Decoder
	Registry    *room.Registry
}

// NewRouter builds the gin.Engine exposing the ICE and signaling surface.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(d.CORSOrigins))
	r.Use(middleware.Logger(d.Log))

	r.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	r.GET("/ice", handleICE(d.IceProvider))
	r.GET("/ws/:room_id", handleWS(d))

	return r
}

// handleICE returns the bare ICE server array as the response body (spec §6),
// not the {success,data} envelope the rest of the HTTP surface uses — the
// deviation is intentional, see DESIGN.md.
func handleICE(provider ice.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), iceFetchTimeout)
		defer cancel()
		servers, err := provider.Fetch(ctx)
		if err != nil {
			response.ServiceUnavailable(c, "ice credentials unavailable")
			return
		}
		c.JSON(http.StatusOK, servers)
	}
}

func handleWS(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("room_id")
		if roomID == "" {
			response.BadRequest(c, "room_id required")
			return
		}
		role := d.Decoder.RoleOf(c.Query("token"))

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			d.Log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		ch := signaling.NewWSChannel(conn, d.Log)
		rm := d.Registry.GetOrCreate(roomID)
		peerID := d.Registry.NextPeerID()
		session := room.NewSession(peerID, role, ch, rm, d.Log)

		// The surrounding http.Server already runs this handler on its own
		// goroutine per connection, so Run blocks it directly rather than
		// spawning a second goroutine (teacher's ServeWs does the same).
		session.Run()
	}
}
