package httpapi

import (
	"errors"
	"net/http"

	"github.com/covey-town/townd/internal/eventbus"
	"github.com/covey-town/townd/internal/socket"
	"github.com/covey-town/townd/internal/town"
	"github.com/covey-town/townd/internal/towns"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	store *towns.Store
	bus   *eventbus.Bus
}

type createTownRequest struct {
	FriendlyName     string `json:"friendlyName" binding:"required"`
	IsPubliclyListed bool   `json:"isPubliclyListed"`
	Capacity         int    `json:"capacity"`
}

type createTownResponse struct {
	CoveyTownID       string `json:"coveyTownID"`
	CoveyTownPassword string `json:"coveyTownPassword"`
}

// defaultCapacity is used when a create request omits capacity or
// passes a non-positive value.
const defaultCapacity = 100

func (h *handlers) createTown(c *gin.Context) {
	var req createTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	capacity := req.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	ctrl, password, err := h.store.CreateTown(req.FriendlyName, req.IsPubliclyListed, capacity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	ctrl.AddTownListener(socket.NewBridge(h.bus, ctrl.CoveyTownID))

	c.JSON(http.StatusOK, createTownResponse{
		CoveyTownID:       ctrl.CoveyTownID,
		CoveyTownPassword: password,
	})
}

func (h *handlers) listTowns(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.GetTowns())
}

type updateTownRequest struct {
	CoveyTownPassword string  `json:"coveyTownPassword" binding:"required"`
	FriendlyName      *string `json:"friendlyName"`
	IsPubliclyListed  *bool   `json:"isPubliclyListed"`
}

func (h *handlers) updateTown(c *gin.Context) {
	var req updateTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if !h.store.UpdateTown(c.Param("townID"), req.CoveyTownPassword, req.FriendlyName, req.IsPubliclyListed) {
		c.JSON(http.StatusForbidden, gin.H{"message": "invalid town ID or password"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *handlers) deleteTown(c *gin.Context) {
	if !h.store.DeleteTown(c.Request.Context(), c.Param("townID"), c.Param("townPassword")) {
		c.JSON(http.StatusForbidden, gin.H{"message": "invalid town ID or password"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *handlers) townStats(c *gin.Context) {
	ctrl, ok := h.store.GetControllerForTown(c.Param("townID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown town"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"coveyTownID":      ctrl.CoveyTownID,
		"friendlyName":     ctrl.FriendlyName(),
		"currentOccupancy": ctrl.Occupancy(),
		"maximumOccupancy": ctrl.Capacity(),
		"conversationAreas": len(ctrl.ConversationAreas()),
	})
}

type joinTownRequest struct {
	UserName    string `json:"userName" binding:"required"`
	CoveyTownID string `json:"coveyTownID" binding:"required"`
}

type joinTownResponse struct {
	CoveySessionToken  string         `json:"coveySessionToken"`
	CoveyUserID        string         `json:"coveyUserID"`
	ProviderVideoToken string         `json:"providerVideoToken"`
	CurrentPlayers     []*town.Player `json:"currentPlayers"`
	FriendlyName       string         `json:"friendlyName"`
	IsPubliclyListed   bool           `json:"isPubliclyListed"`
}

func (h *handlers) joinTown(c *gin.Context) {
	var req joinTownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	session, ctrl, err := h.store.JoinTown(c.Request.Context(), req.CoveyTownID, req.UserName)
	if err != nil {
		if errors.Is(err, towns.ErrUnknownTown) {
			c.JSON(http.StatusNotFound, gin.H{"message": "unknown town"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, joinTownResponse{
		CoveySessionToken:  session.SessionToken,
		CoveyUserID:        session.Player.ID,
		ProviderVideoToken: session.VideoToken,
		CurrentPlayers:     ctrl.Players(),
		FriendlyName:       ctrl.FriendlyName(),
		IsPubliclyListed:   ctrl.IsPubliclyListed(),
	})
}

type createConversationAreaRequest struct {
	SessionToken string `json:"sessionToken" binding:"required"`
	Label        string `json:"label" binding:"required"`
	Topic        string `json:"topic"`
	BoundingBox  struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"boundingBox"`
}

func (h *handlers) createConversationArea(c *gin.Context) {
	townID := c.Param("townID")
	ctrl, ok := h.store.GetControllerForTown(townID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown town"})
		return
	}

	var req createConversationAreaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if _, ok := ctrl.GetSession(req.SessionToken); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid session token"})
		return
	}

	topic := req.Topic
	if topic == "" {
		topic = town.NoTopic
	}
	box := town.BoundingBox{
		X:      req.BoundingBox.X,
		Y:      req.BoundingBox.Y,
		Width:  req.BoundingBox.Width,
		Height: req.BoundingBox.Height,
	}
	area := town.NewConversationArea(req.Label, topic, box)

	if err := ctrl.AddConversationAreaErr(c.Request.Context(), area); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
