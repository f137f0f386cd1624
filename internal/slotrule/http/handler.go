package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/pkg/response"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

type Handler struct {
	service slotrule.Service
	loc     *time.Location // provider time zone, decides what "today" is
}

func NewHandler(service slotrule.Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, loc: loc}
}

func (h *Handler) Create(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body CreateRuleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	req, err := body.ToRequest()
	if err != nil {
		response.Error(c, err)
		return
	}

	rule, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewSlotRuleResponse(rule))
}

func (h *Handler) Update(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var uri RuleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateRuleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	req, err := body.ToRequest()
	if err != nil {
		response.Error(c, err)
		return
	}

	rule, err := h.service.Update(c.Request.Context(), actor, uri.RuleID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotRuleResponse(rule))
}

func (h *Handler) Get(c *gin.Context) {
	var uri RuleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	rule, err := h.service.GetByID(c.Request.Context(), uri.RuleID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotRuleResponse(rule))
}

func (h *Handler) List(c *gin.Context) {
	var req ListRulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter := slotrule.Filter{
		ProviderID: req.ProviderID,
		IsActive:   req.IsActive,
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortBy:     req.SortBy,
		SortOrder:  strings.ToUpper(req.SortOrder),
	}
	if req.Date != "" {
		d, err := slotrule.ParseDate(req.Date)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Date = &d
	}

	rules, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotRuleResponse, len(rules))
	for i, r := range rules {
		items[i] = NewSlotRuleResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
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

	rule, err := h.service.SetActive(c.Request.Context(), actor, body.RuleID, *body.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotRuleResponse(rule))
}

func (h *Handler) Delete(c *gin.Context) {
	actor, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var uri RuleURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), actor, uri.RuleID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AvailableSlots answers the next free slot of a provider plus the full
// annotated schedule of the requested date (today when omitted).
func (h *Handler) AvailableSlots(c *gin.Context) {
	var uri ProviderURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var q AvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	date, err := h.date(q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	avail, err := h.service.Availability(c.Request.Context(), uri.ProviderID, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewAvailabilityResponse(avail))
}

func (h *Handler) date(s string) (time.Time, error) {
	if s == "" {
		return slotrule.DateOf(time.Now().In(h.loc)), nil
	}
	return slotrule.ParseDate(s)
}
