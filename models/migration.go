package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fulfillment_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &ProductFacility{},
		&Facility{}, &FacilityLocation{}, &ProductStoreFacility{},
		&OrderHeader{}, &OrderShipGroup{},
		&InventoryItem{}, &InventoryItemDetail{}, &ItemReservation{},
		&InventoryTransfer{},
		&PickList{}, &PickListItem{},
		&RebalanceRequest{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
