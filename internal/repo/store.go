package repo

import (
	"context"
	"errors"

	"github.com/bookstore/services/items/internal/model"
)

var (
	// ErrItemNotFound is returned when no item matches an id or name
	ErrItemNotFound = errors.New("item not found")

	// ErrItemAlreadyExists is returned when creating an item under a taken id
	ErrItemAlreadyExists = errors.New("item already exists")
)

// ItemStore owns the inventory. Every check-then-act operation is atomic.
type ItemStore interface {
	// List returns a copy of the whole inventory
	List(ctx context.Context) (map[int]model.Item, error)
	Get(ctx context.Context, id int) (model.Item, error)
	// FindByName returns the lowest-id item whose name equals name ignoring case.
	// A nil name only matches items without a name, which never exist.
	FindByName(ctx context.Context, name *string) (int, model.Item, error)
	Create(ctx context.Context, id int, item model.Item) (model.Item, error)
	// Update applies the patch and reports which fields changed
	Update(ctx context.Context, id int, patch model.UpdateItem) (model.Item, []string, error)
	// Delete removes the item and returns what was stored
	Delete(ctx context.Context, id int) (model.Item, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
