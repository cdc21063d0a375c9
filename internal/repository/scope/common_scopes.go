package scope

import "gorm.io/gorm"

// Newest keeps the n most recently created rows, latest first.
func Newest(n int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC").Limit(n)
	}
}
