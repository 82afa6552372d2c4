package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/traveldiary/server/internal/pkg/response"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*limit within int32 for every driver.
	MaxPage      = math.MaxInt32 / MaxLimit
)

// Query holds parsed pagination parameters.
type Query struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (q Query) Offset() int { return (q.Page - 1) * q.Limit }

// FromContext extracts and clamps page/limit from the request.
func FromContext(c *gin.Context) Query {
	return New(parseIntOr(c.Query("page"), DefaultPage), parseIntOr(c.Query("limit"), DefaultLimit))
}

// New clamps page and limit to their allowed ranges.
func New(page, limit int) Query {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Query{Page: page, Limit: limit}
}

// Meta computes pagination metadata for total rows.
func Meta(q Query, total int64) response.Pagination {
	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	return response.Pagination{
		Page:    q.Page,
		Limit:   q.Limit,
		Total:   total,
		Pages:   pages,
		HasNext: int64(q.Page)*int64(q.Limit) < total,
		HasPrev: q.Page > 1,
	}
}

// Paginate applies limit/offset to a GORM query and returns the pagination metadata.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	if err := db.Offset(q.Offset()).Limit(q.Limit).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}
	return Meta(q, total), nil
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
