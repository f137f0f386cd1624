package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/bookedslot"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/request"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/response"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

type Handler struct {
	service bookedslot.Service
}

func NewHandler(service bookedslot.Service) *Handler {
	return &Handler{service: service}
}

// List returns booked slots. Non-admins only see slots they provide or booked.
func (h *Handler) List(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req ListSlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := bookedslot.Filter{
		ProviderID: req.ProviderID,
		CustomerID: req.CustomerID,
		Status:     bookedslot.Status(req.Status),
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortBy:     req.SortBy,
		SortOrder:  strings.ToUpper(req.SortOrder),
	}
	switch actor.Role {
	case auth.RoleProvider:
		filter.ProviderID = actor.UserID
	case auth.RoleCustomer:
		filter.CustomerID = actor.UserID
	}
	if req.Date != "" {
		d, err := slotrule.ParseDate(req.Date)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Date = &d
	}

	slots, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookedSlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewBookedSlotResponse(s)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
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

	slot, err := h.service.Get(c.Request.Context(), actor, req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookedSlotResponse(slot))
}

func (h *Handler) SetStatus(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body SetStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	to, err := bookedslot.ParseTarget(body.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	slot, err := h.service.SetStatus(c.Request.Context(), actor, body.SlotID, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookedSlotResponse(slot))
}
