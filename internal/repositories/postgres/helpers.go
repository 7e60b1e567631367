package postgres

import "gorm.io/gorm"

// getDB returns the transaction DB if provided, otherwise returns the default DB
func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
