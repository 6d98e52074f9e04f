package repo

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bookstore/services/items/internal/model"
)

// MemoryRepository keeps the inventory in a map guarded by a mutex
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[int]model.Item
	log   *zap.Logger
}

// NewMemoryRepository creates a repository holding a copy of seed
func NewMemoryRepository(seed map[int]model.Item, logger *zap.Logger) *MemoryRepository {
	items := make(map[int]model.Item, len(seed))
	for id, item := range seed {
		items[id] = item
	}
	return &MemoryRepository{
		items: items,
		log:   logger,
	}
}

func (r *MemoryRepository) List(ctx context.Context) (map[int]model.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]model.Item, len(r.items))
	for id, item := range r.items {
		out[id] = item
	}
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *MemoryRepository) FindByName(ctx context.Context, name *string) (int, model.Item, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.Item{}, err
	}
	if name == nil {
		return 0, model.Item{}, ErrItemNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	key := model.NameKey(*name)
	for _, id := range ids {
		if model.NameKey(r.items[id].Name) == key {
			return id, r.items[id], nil
		}
	}
	return 0, model.Item{}, ErrItemNotFound
}

func (r *MemoryRepository) Create(ctx context.Context, id int, item model.Item) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; exists {
		return model.Item{}, ErrItemAlreadyExists
	}
	r.items[id] = item

	r.log.Info("Item created", zap.Int("item_id", id), zap.String("name", item.Name))
	return item, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id int, patch model.UpdateItem) (model.Item, []string, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return model.Item{}, nil, ErrItemNotFound
	}

	updated, changed := patch.Apply(existing)
	r.items[id] = updated

	r.log.Info("Item updated", zap.Int("item_id", id), zap.Strings("fields_changed", changed))
	return updated, changed, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return model.Item{}, ErrItemNotFound
	}
	delete(r.items, id)

	r.log.Info("Item deleted", zap.Int("item_id", id))
	return item, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}

// Ping always succeeds, there is nothing to connect to
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
