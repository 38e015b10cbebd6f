package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Warehouse{},
		&Document{},
		&Item{},
		&Barcode{},
		&ItemChange{},
	)
}
