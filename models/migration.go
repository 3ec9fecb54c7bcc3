package models

import (
	"log"

	"github.com/mmdatafocus/shop_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := AutoMigrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Category{}, &SubCategory{}, &Product{},
		&Vendor{}, &Purchase{}, &Payment{},
		&Sale{},
		&LedgerEvent{},
		&ReconciliationReport{},
		&IdempotencyKey{},
	)
}
