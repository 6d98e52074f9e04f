package repo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookstore/services/items/internal/db"
	"github.com/bookstore/services/items/internal/model"
)

// ItemRepository stores the inventory through GORM
type ItemRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(database *db.DB, logger *zap.Logger) *ItemRepository {
	return &ItemRepository{
		db:  database,
		log: logger,
	}
}

// List returns every item keyed by id
func (r *ItemRepository) List(ctx context.Context) (map[int]model.Item, error) {
	var records []db.ItemRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		r.log.Error("Failed to list items", zap.Error(err))
		return nil, err
	}

	items := make(map[int]model.Item, len(records))
	for i := range records {
		items[records[i].ID] = records[i].Item()
	}
	return items, nil
}

// Get retrieves an item by id
func (r *ItemRepository) Get(ctx context.Context, id int) (model.Item, error) {
	record, err := r.find(r.db.WithContext(ctx), id)
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			r.log.Error("Failed to get item", zap.Int("item_id", id), zap.Error(err))
		}
		return model.Item{}, err
	}
	return record.Item(), nil
}

// FindByName retrieves the lowest-id item whose name matches ignoring case
func (r *ItemRepository) FindByName(ctx context.Context, name *string) (int, model.Item, error) {
	if name == nil {
		return 0, model.Item{}, ErrItemNotFound
	}

	var record db.ItemRecord
	err := r.db.WithContext(ctx).
		Where("name_key = ?", model.NameKey(*name)).
		Order("id ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, model.Item{}, ErrItemNotFound
		}
		r.log.Error("Failed to find item by name", zap.String("name", *name), zap.Error(err))
		return 0, model.Item{}, err
	}
	return record.ID, record.Item(), nil
}

// Create inserts a new item unless the id is taken
func (r *ItemRepository) Create(ctx context.Context, id int, item model.Item) (model.Item, error) {
	record := db.NewItemRecord(id, item)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := r.find(tx, id)
		if err == nil {
			return ErrItemAlreadyExists
		}
		if !errors.Is(err, ErrItemNotFound) {
			return fmt.Errorf("failed to check item existence: %w", err)
		}

		// a concurrent insert of the same id may land between find and create
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrItemAlreadyExists
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = ErrItemAlreadyExists
	}
	if err != nil {
		if !errors.Is(err, ErrItemAlreadyExists) {
			r.log.Error("Failed to create item", zap.Int("item_id", id), zap.Error(err))
		}
		return model.Item{}, err
	}

	r.log.Info("Item created", zap.Int("item_id", id), zap.String("name", item.Name))
	return record.Item(), nil
}

// Update applies a partial patch to an existing item
func (r *ItemRepository) Update(ctx context.Context, id int, patch model.UpdateItem) (model.Item, []string, error) {
	var (
		updated model.Item
		changed []string
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := r.find(tx, id)
		if err != nil {
			return err
		}

		updated, changed = patch.Apply(record.Item())
		if len(changed) == 0 {
			return nil
		}

		result := tx.Model(&db.ItemRecord{}).Where("id = ?", id).Updates(db.UpdateColumns(updated, changed))
		if result.Error != nil {
			return result.Error
		}
		// deleted by a concurrent transaction after find
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			r.log.Error("Failed to update item", zap.Int("item_id", id), zap.Error(err))
		}
		return model.Item{}, nil, err
	}

	r.log.Info("Item updated", zap.Int("item_id", id), zap.Strings("fields_changed", changed))
	return updated, changed, nil
}

// Delete removes an item and returns it
func (r *ItemRepository) Delete(ctx context.Context, id int) (model.Item, error) {
	var deleted model.Item

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := r.find(tx, id)
		if err != nil {
			return err
		}
		result := tx.Delete(&db.ItemRecord{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}
		deleted = record.Item()
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrItemNotFound) {
			r.log.Error("Failed to delete item", zap.Int("item_id", id), zap.Error(err))
		}
		return model.Item{}, err
	}

	r.log.Info("Item deleted", zap.Int("item_id", id))
	return deleted, nil
}

// Count returns the number of stored items
func (r *ItemRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&db.ItemRecord{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return total, nil
}

// Ping checks the underlying connection
func (r *ItemRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *ItemRepository) find(tx *gorm.DB, id int) (*db.ItemRecord, error) {
	var record db.ItemRecord
	if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &record, nil
}
