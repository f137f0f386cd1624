package http

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/response"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

// Notifier tells live subscribers about a hold created over REST.
type Notifier interface {
	Announce(ctx context.Context, res *reservation.Reservation) error
}

type Handler struct {
	coord    reservation.Coordinator
	notifier Notifier
}

// NewHandler builds the handler. notifier may be nil.
func NewHandler(coord reservation.Coordinator, notifier Notifier) *Handler {
	return &Handler{coord: coord, notifier: notifier}
}

func (h *Handler) Check(c *gin.Context) {
	var q SlotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	date, err := slotrule.ParseDate(q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	reserved, err := h.coord.IsReserved(c.Request.Context(), q.ProviderID, q.From, q.To, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckResponse{Reserved: reserved})
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body CreateReservationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	date, err := slotrule.ParseDate(body.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.coord.Create(c.Request.Context(), reservation.CreateRequest{
		ProviderID: body.ProviderID,
		CustomerID: actor.UserID,
		RuleID:     body.RuleID,
		From:       body.From,
		To:         body.To,
		Date:       date,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.notifier != nil {
		if err := h.notifier.Announce(c.Request.Context(), res); err != nil {
			log.Printf("[reservation] announce hold %s: %v", res.ID, err)
		}
	}

	c.JSON(http.StatusCreated, NewReservationResponse(res))
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	res, err := h.coord.Get(c.Request.Context(), actor, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(res))
}

func (h *Handler) Release(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.coord.Release(c.Request.Context(), actor, req.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
