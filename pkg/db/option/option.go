// Package option provides composable gorm query options for the generic
// repository store.
package option

import (
	"strconv"
	"time"

	"github.com/shopfloor/moldtrack/pkg/db/pagination"
	"gorm.io/gorm"
)

// MaxPageSize caps how many rows one page may return. List services clamp
// their requested page size to it so HasMore stays truthful.
const MaxPageSize = 250

type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination ordered by (created_at, id)
// descending. It fetches one extra row so the caller can detect HasMore.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}

		if p.PageToken != "" {
			if cursor, err := pagination.DecodeCursor(p.PageToken); err == nil && cursor != nil {
				if at, err := time.Parse(time.RFC3339, cursor.CreatedAt); err == nil {
					id, _ := strconv.ParseInt(cursor.ID, 10, 64)
					db = db.Where(
						"(created_at < ?) OR (created_at = ? AND id < ?)",
						at, at, id,
					)
				}
			}
		}

		return db.Order("created_at DESC, id DESC").Limit(size + 1)
	})
}

// WithSortBy orders by an allow-listed column, newest first by default.
type QuerySortBy struct {
	Column string
	Desc   bool
	Allow  map[string]bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := sort.Column
		if column == "" || (sort.Allow != nil && !sort.Allow[column]) {
			return db
		}
		direction := " ASC"
		if sort.Desc {
			direction = " DESC"
		}
		return db.Order(column + direction)
	})
}

// WithLimit caps the number of rows returned.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
