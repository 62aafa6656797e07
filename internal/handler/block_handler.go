package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BlockHandler struct {
	blockService service.BlockRequestService
}

func NewBlockHandler(blockService service.BlockRequestService) *BlockHandler {
	return &BlockHandler{blockService: blockService}
}

func (h *BlockHandler) RegisterRoutes(router *gin.RouterGroup) {
	blocks := router.Group("/api/blocks")
	{
		blocks.POST("", middleware.RequireRole(
			model.RoleUser, model.RoleJuniorOfficer, model.RoleSeniorOfficer,
			model.RoleBranchOfficer, model.RoleAdmin), h.CreateBlockRequest)
		blocks.GET("", middleware.RequireAnyRole(), h.ListBlockRequests)
		blocks.GET("/:id", middleware.RequireAnyRole(), h.GetBlockRequest)
		blocks.PUT("/:id/accept", middleware.RequireRole(
			model.RoleJuniorOfficer, model.RoleSeniorOfficer, model.RoleBranchOfficer,
			model.RoleManager, model.RoleAdmin), h.AcceptBlockRequest)
		blocks.PUT("/:id/reject", middleware.RequireRole(
			model.RoleJuniorOfficer, model.RoleSeniorOfficer, model.RoleBranchOfficer,
			model.RoleManager, model.RoleAdmin), h.RejectBlockRequest)
		blocks.PUT("/:id/confirm", middleware.RequireAnyRole(), h.ConfirmSlot)
	}
}

// CreateBlockRequest submits a new block demand
func (h *BlockHandler) CreateBlockRequest(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req service.CreateBlockRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	block, err := h.blockService.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, block))
}

// ListBlockRequests returns block requests filtered for approval queues and
// dashboards
func (h *BlockHandler) ListBlockRequests(c *gin.Context) {
	params := pagination.Parse(c)
	filter := repository.BlockFilter{
		Department:   c.Query("department"),
		State:        c.Query("state"),
		MissionBlock: c.Query("mission_block"),
		Page:         params.Page,
		Limit:        params.Limit,
		Ascending:    !params.Descending,
	}
	if dateStr := c.Query("date"); dateStr != "" {
		date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid date, expected 2006-01-02"))
			return
		}
		filter.Date = &date
	}
	if mine := c.Query("user_id"); mine != "" {
		userID, err := uuid.Parse(mine)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid user_id"))
			return
		}
		filter.UserID = &userID
	}

	blocks, total, err := h.blockService.List(c.Request.Context(), filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, "blocks", blocks, total, params.Page, params.Limit))
}

// GetBlockRequest fetches a single request by id
func (h *BlockHandler) GetBlockRequest(c *gin.Context) {
	block, err := h.blockService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, block))
}

type decideDTO struct {
	Remark string `json:"remark"`
}

// AcceptBlockRequest records the current-stage approver's acceptance
func (h *BlockHandler) AcceptBlockRequest(c *gin.Context) {
	approverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req decideDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Remark = "" // remark is optional on accept
	}

	block, err := h.blockService.Decide(c.Request.Context(), c.Param("id"), approverID, true, req.Remark)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, block))
}

// RejectBlockRequest records a rejection; the remark is mandatory for every
// caller, including admins
func (h *BlockHandler) RejectBlockRequest(c *gin.Context) {
	approverID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req decideDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	block, err := h.blockService.Decide(c.Request.Context(), c.Param("id"), approverID, false, req.Remark)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, block))
}

type confirmDTO struct {
	Accept *bool `json:"accept" binding:"required"`
}

// ConfirmSlot records the requester's acceptance or rejection of the
// offered slot
func (h *BlockHandler) ConfirmSlot(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return
	}

	var req confirmDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	block, err := h.blockService.UserConfirm(c.Request.Context(), c.Param("id"), userID, *req.Accept)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, block))
}
