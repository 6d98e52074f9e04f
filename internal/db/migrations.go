package db

import (
	"sort"

	"gorm.io/gorm"

	"github.com/bookstore/services/items/internal/model"
)

// RunMigrations creates the items table and resets it to the seed inventory.
// Inventory state is scoped to the process lifetime, so rows left by a
// previous run are discarded.
func RunMigrations(db *DB, seed map[int]model.Item) error {
	if err := db.AutoMigrate(&ItemRecord{}); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ItemRecord{}).Error; err != nil {
			return err
		}
		return seedItems(tx, seed)
	})
}

func seedItems(tx *gorm.DB, seed map[int]model.Item) error {
	if len(seed) == 0 {
		return nil
	}

	ids := make([]int, 0, len(seed))
	for id := range seed {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	records := make([]*ItemRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, NewItemRecord(id, seed[id]))
	}
	return tx.Create(&records).Error
}
