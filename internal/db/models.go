package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/bookstore/services/items/internal/model"
)

// ItemRecord is the row representation of an inventory entry.
// IDs are supplied by callers, never generated.
type ItemRecord struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"type:varchar(255);not null"`
	NameKey   string    `gorm:"type:varchar(255);not null;default:'';index:idx_items_name_key"`
	Price     float64   `gorm:"not null"`
	Brand     *string   `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for ItemRecord
func (ItemRecord) TableName() string {
	return "items"
}

// BeforeCreate hook to set timestamps and the lookup key
func (r *ItemRecord) BeforeCreate(tx *gorm.DB) error {
	r.NameKey = model.NameKey(r.Name)
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	return nil
}

// BeforeUpdate hook to update timestamp
func (r *ItemRecord) BeforeUpdate(tx *gorm.DB) error {
	r.UpdatedAt = time.Now()
	return nil
}

// NewItemRecord converts a domain item into a row
func NewItemRecord(id int, item model.Item) *ItemRecord {
	return &ItemRecord{
		ID:    id,
		Name:  item.Name,
		Price: item.Price,
		Brand: item.Brand,
	}
}

// UpdateColumns maps changed item fields onto column values. Renames
// refresh name_key as well.
func UpdateColumns(item model.Item, changed []string) map[string]interface{} {
	updates := make(map[string]interface{}, len(changed)+1)
	for _, field := range changed {
		switch field {
		case "name":
			updates["name"] = item.Name
			updates["name_key"] = model.NameKey(item.Name)
		case "price":
			updates["price"] = item.Price
		case "brand":
			updates["brand"] = item.Brand
		}
	}
	return updates
}

// Item converts the row back into a domain item
func (r *ItemRecord) Item() model.Item {
	return model.Item{
		Name:  r.Name,
		Price: r.Price,
		Brand: r.Brand,
	}
}
