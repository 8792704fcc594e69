// Package httpapi exposes the town registry over HTTP: creating,
// listing, updating and deleting towns, joining a town, and declaring
// conversation areas (spec §6). Routing is grounded on gin-gonic/gin,
// promoted here from an indirect dependency of the teacher's go.mod
// (pulled in transitively but never imported by name) to a direct one,
// since the teacher itself never exposes an HTTP surface.
package httpapi

import (
	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/socket"
	"github.com/covey-town/townd/internal/towns"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the full HTTP surface: the town registry endpoints
// under /towns and the websocket subscription endpoint at /subscribe.
func NewRouter(store *towns.Store, bus *eventbus.Bus) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	h := &handlers{store: store, bus: bus}

	townsGroup := r.Group("/towns")
	{
		townsGroup.POST("", h.createTown)
		townsGroup.GET("", h.listTowns)
		townsGroup.PATCH("/:townID", h.updateTown)
		townsGroup.DELETE("/:townID/:townPassword", h.deleteTown)
		townsGroup.GET("/:townID/stats", h.townStats)
		townsGroup.POST("/:townID/conversationAreas", h.createConversationArea)
	}

	r.POST("/sessions", h.joinTown)

	sub := socket.NewSubscriptionHandler(store, bus)
	r.GET("/subscribe", gin.WrapH(sub))

	return r
}
