package service

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReportService interface {
	// GetBlockSummary aggregates request counts for a section (or all
	// sections when empty) over a date range: demanded, approved, granted,
	// sanctioned and availed, with the availment percentage controllers
	// report upward. Totals are sums over request states, reproducible from
	// the audit log.
	GetBlockSummary(ctx context.Context, section string, startDate, endDate time.Time) (model.BlockSummaryResponse, error)
	GetDepartmentBreakdown(ctx context.Context, startDate, endDate time.Time) ([]model.DepartmentBreakdown, error)
}

type reportService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewReportService(db *gorm.DB) ReportService {
	return &reportService{db: db, now: time.Now}
}

func (s *reportService) GetBlockSummary(ctx context.Context, section string, startDate, endDate time.Time) (model.BlockSummaryResponse, error) {
	resp := model.BlockSummaryResponse{
		Section:            section,
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.BlockRequest{}).
			Where("date >= ? AND date <= ?", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
		if section != "" {
			q = q.Where("section = ?", section)
		}
		return q
	}

	if err := base().Count(&resp.Demanded).Error; err != nil {
		return resp, err
	}

	approvedStates := []string{
		model.StateAwaitingSlot, model.StateSlotOffered, model.StateUserAccepted,
		model.StateUserRejected, model.StateSanctioned, model.StateRevised, model.StateCancelled,
	}
	if err := base().Where("state IN ?", approvedStates).Count(&resp.Approved).Error; err != nil {
		return resp, err
	}

	if err := base().Where("optimize_status = ?", true).Count(&resp.Granted).Error; err != nil {
		return resp, err
	}

	sanctionedStates := []string{model.StateSanctioned, model.StateRevised}
	if err := base().Where("state IN ?", sanctionedStates).Count(&resp.Sanctioned).Error; err != nil {
		return resp, err
	}

	today := s.now().Format("2006-01-02")
	if err := base().Where("state IN ? AND date < ?", sanctionedStates, today).Count(&resp.Availed).Error; err != nil {
		return resp, err
	}

	if resp.Sanctioned > 0 {
		resp.AvailmentPercent = decimal.NewFromInt(resp.Availed).
			Div(decimal.NewFromInt(resp.Sanctioned)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	} else {
		resp.AvailmentPercent = decimal.Zero
	}

	return resp, nil
}

func (s *reportService) GetDepartmentBreakdown(ctx context.Context, startDate, endDate time.Time) ([]model.DepartmentBreakdown, error) {
	var rows []model.DepartmentBreakdown
	err := s.db.WithContext(ctx).Model(&model.BlockRequest{}).
		Select("department, COUNT(*) as demanded, COUNT(*) FILTER (WHERE state IN ?) as sanctioned",
			[]string{model.StateSanctioned, model.StateRevised}).
		Where("date >= ? AND date <= ?", startDate.Format("2006-01-02"), endDate.Format("2006-01-02")).
		Group("department").
		Order("department").
		Scan(&rows).Error
	return rows, err
}
