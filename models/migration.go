package models

import (
	"log"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&TaxRate{}, &Product{}, &Task{},
		&Document{}, &DocumentItem{}, &DocumentTaxRate{}, &DocumentAmounts{},
		&Payment{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
