package option

import (
	"time"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithOrderBy appends an ORDER BY clause.
func WithOrderBy(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(expr)
	})
}

// WithLimit caps the result set.
func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithTimeRange filters column to the half-open interval [from, to).
func WithTimeRange(column string, from, to time.Time) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" >= ? AND "+column+" < ?", from, to)
	})
}

// WithNotNull filters out rows where column is NULL.
func WithNotNull(column string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(column + " IS NOT NULL")
	})
}
