package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type AllocationHandler struct {
	allocationService service.AllocationService
}

func NewAllocationHandler(allocationService service.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService}
}

func (h *AllocationHandler) RegisterRoutes(router *gin.RouterGroup) {
	allocations := router.Group("/api/allocations")
	allocations.Use(middleware.RequireRole(model.RoleBoardController, model.RoleAdmin))
	{
		allocations.POST("", h.AllocateSlots)
	}
}

type allocateDTO struct {
	FromDate   string `json:"from_date" binding:"required"`
	ToDate     string `json:"to_date" binding:"required"`
	UrgentMode bool   `json:"urgent_mode"`
}

// AllocateSlots runs the optimizer over the date range. Urgent mode is an
// explicit request parameter, never ambient state.
func (h *AllocationHandler) AllocateSlots(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req allocateDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.allocationService.AllocateSlots(c.Request.Context(), req.FromDate, req.ToDate, req.UrgentMode, actorID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
