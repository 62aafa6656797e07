package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters. Descending reports whether
// newest-first ordering was requested (the default for queues and logs).
type Params struct {
	Page       int
	Limit      int
	Offset     int
	Descending bool
}

// Parse extracts and validates page/limit/sort from query parameters
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:       page,
		Limit:      limit,
		Offset:     (page - 1) * limit,
		Descending: c.DefaultQuery("sort", "desc") != "asc",
	}
}
