package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type RevisionHandler struct {
	revisionService service.RevisionService
}

func NewRevisionHandler(revisionService service.RevisionService) *RevisionHandler {
	return &RevisionHandler{revisionService: revisionService}
}

func (h *RevisionHandler) RegisterRoutes(router *gin.RouterGroup) {
	revisions := router.Group("/api/revisions")
	revisions.Use(middleware.RequireRole(model.RoleBoardController, model.RoleAdmin))
	{
		revisions.POST("", h.ReviseSlots)
	}
}

type reviseDTO struct {
	RequestIDs  []string `json:"request_ids" binding:"required,min=1"`
	Action      string   `json:"action" binding:"required,oneof=continue prepone postpone cancel"`
	NewTimeFrom string   `json:"new_time_from"` // 15:04, required for prepone/postpone
	NewTimeTo   string   `json:"new_time_to"`
}

// ReviseSlots applies a bulk override to today's sanctioned slots. The
// operation is atomic: one conflicting member fails the entire selection.
func (h *RevisionHandler) ReviseSlots(c *gin.Context) {
	controllerID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req reviseDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	revised, err := h.revisionService.ReviseSlots(c.Request.Context(), controllerID,
		req.RequestIDs, req.Action, req.NewTimeFrom, req.NewTimeTo)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"action":  req.Action,
		"revised": revised,
	}))
}
