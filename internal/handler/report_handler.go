package handler

import (
	"net/http"
	"time"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	reports.Use(middleware.RequireAnyRole())
	{
		reports.GET("/summary", h.GetBlockSummary)
		reports.GET("/departments", h.GetDepartmentBreakdown)
	}
}

// parseDateRange reads start_date/end_date query params, defaulting to the
// current month
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := now

	var err error
	if s := c.Query("start_date"); s != "" {
		startDate, err = time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date, expected 2006-01-02"))
			return time.Time{}, time.Time{}, false
		}
	}
	if s := c.Query("end_date"); s != "" {
		endDate, err = time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date, expected 2006-01-02"))
			return time.Time{}, time.Time{}, false
		}
	}
	return startDate, endDate, true
}

// GetBlockSummary returns demanded/approved/granted/sanctioned/availed
// totals for a section over a date range
func (h *ReportHandler) GetBlockSummary(c *gin.Context) {
	startDate, endDate, ok := parseDateRange(c)
	if !ok {
		return
	}

	summary, err := h.reportService.GetBlockSummary(c.Request.Context(), c.Query("section"), startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// GetDepartmentBreakdown returns per-department demanded/sanctioned counts
func (h *ReportHandler) GetDepartmentBreakdown(c *gin.Context) {
	startDate, endDate, ok := parseDateRange(c)
	if !ok {
		return
	}

	rows, err := h.reportService.GetDepartmentBreakdown(c.Request.Context(), startDate, endDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}
