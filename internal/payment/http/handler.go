package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/payment"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/response"
)

type Handler struct {
	service payment.Service
}

func NewHandler(service payment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Initiate(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body InitiateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	order, err := h.service.Initiate(c.Request.Context(), actor, body.ReservationID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewOrderResponse(order))
}

func (h *Handler) Confirm(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body ConfirmBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	conf, err := h.service.Confirm(c.Request.Context(), actor, body.ToRequest())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewConfirmationResponse(conf))
}

func (h *Handler) Abort(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.service.Abort(c.Request.Context(), actor); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
