package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockSummaryResponse aggregates request counts for a section over a date
// range, the figures board controllers report upward.
type BlockSummaryResponse struct {
	Section            string          `json:"section"`
	Demanded           int64           `json:"demanded"`
	Approved           int64           `json:"approved"`
	Granted            int64           `json:"granted"`
	Sanctioned         int64           `json:"sanctioned"`
	Availed            int64           `json:"availed"`
	AvailmentPercent   decimal.Decimal `json:"availment_percent"`
	TimeRangeStartDate time.Time       `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time       `json:"time_range_end_date"`
}

// DepartmentBreakdown is one department's share of the summary counts.
type DepartmentBreakdown struct {
	Department string `json:"department"`
	Demanded   int64  `json:"demanded"`
	Sanctioned int64  `json:"sanctioned"`
}
