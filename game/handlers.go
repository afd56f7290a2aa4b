package game

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"roomsync/features"
	"roomsync/protocol"
)

const defaultRoomID = "lobby"

// Origins are enforced by the server middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type RateLimit struct {
	MessagesPerSecond float64
	Burst             int
}

type Handler struct {
	router   *Router
	registry *Registry
	catalog  *features.Registry
	limit    RateLimit
}

func NewHandler(router *Router, registry *Registry, catalog *features.Registry, limit RateLimit) *Handler {
	return &Handler{router: router, registry: registry, catalog: catalog, limit: limit}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.WebsocketHandler)
	r.GET("/beatlab/rooms", h.JamRoomsHandler)
	r.GET("/features", h.FeaturesHandler)
}

// WebsocketHandler upgrades and serves one client until it disconnects.
func (h *Handler) WebsocketHandler(ctx *gin.Context) {
	roomID := ctx.DefaultQuery("room", defaultRoomID)
	app := ctx.Query("app")

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	transport := NewWebsocketConnection(conn)
	c := NewConn(transport, rate.NewLimiter(rate.Limit(h.limit.MessagesPerSecond), h.limit.Burst))
	logger := c.Logger().With().Str("app", app).Logger()

	sess, err := h.router.Connect(roomID, c, logger)
	if err != nil {
		code := errorCode(err)
		if data, mErr := json.Marshal(protocol.MakeError(code)); mErr == nil {
			transport.Write(data)
		}
		transport.Close(code)
		return
	}

	go c.WritePump()
	c.ReadPump(func(data []byte) {
		h.router.Handle(sess, data)
	})
	h.router.Disconnect(sess)
}

func (h *Handler) JamRoomsHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, protocol.MakeJamRoomList(h.registry.ListJamRooms()))
}

func (h *Handler) FeaturesHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"features": h.catalog.Cards()})
}
