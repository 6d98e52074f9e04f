package repo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/services/items/internal/model"
	"github.com/bookstore/services/items/pkg/logger"
)

func newTestMemoryRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	return NewMemoryRepository(model.SeedInventory(), logger.NewLogger("test", "error", "json"))
}

func TestMemoryListSeed(t *testing.T) {
	repo := newTestMemoryRepo(t)

	items, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SeedInventory(), items)
}

func TestMemoryListReturnsCopy(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	items, err := repo.List(ctx)
	require.NoError(t, err)
	delete(items, 1)

	_, err = repo.Get(ctx, 1)
	assert.NoError(t, err)
}

func TestMemorySeedIsCopied(t *testing.T) {
	seed := model.SeedInventory()
	repo := NewMemoryRepository(seed, logger.NewLogger("test", "error", "json"))

	delete(seed, 1)
	_, err := repo.Get(context.Background(), 1)
	assert.NoError(t, err)
}

func TestMemoryCreateAndGet(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	flour := model.NewItem("Flour", 2.50, "")
	stored, err := repo.Create(ctx, 3, flour)
	require.NoError(t, err)
	assert.Equal(t, flour, stored)

	got, err := repo.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Flour", got.Name)
	assert.Nil(t, got.Brand)
}

func TestMemoryCreateDuplicate(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, 1, model.NewItem("Eggs", 5, ""))
	assert.ErrorIs(t, err, ErrItemAlreadyExists)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Name)
}

func TestMemoryGetMissing(t *testing.T) {
	repo := newTestMemoryRepo(t)

	_, err := repo.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMemoryFindByName(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	name := "MILK"
	id, item, err := repo.FindByName(ctx, &name)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, "Milk", item.Name)

	missing := "bread"
	_, _, err = repo.FindByName(ctx, &missing)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, _, err = repo.FindByName(ctx, nil)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMemoryFindByNameReturnsLowestID(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, 9, model.NewItem("sugar", 0.99, "Cheap"))
	require.NoError(t, err)

	name := "Sugar"
	id, _, err := repo.FindByName(ctx, &name)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestMemoryUpdate(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	updated, changed, err := repo.Update(ctx, 1, model.UpdateItem{Price: model.Some(4.50)})
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, changed)
	assert.Equal(t, "Item[name:Milk, price:4.5, brand:Regular]", updated.String())

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestMemoryUpdateMissing(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	_, _, err := repo.Update(ctx, 7, model.UpdateItem{Name: model.Some("Bread")})
	assert.ErrorIs(t, err, ErrItemNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryDeleteTwice(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Sugar", deleted.Name)

	items, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, items, 2)

	_, err = repo.Delete(ctx, 2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMemoryCancelledContext(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Create(ctx, 3, model.NewItem("Flour", 2.5, ""))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.Ping(ctx), context.Canceled)
}

func TestMemoryConcurrentCreateSameID(t *testing.T) {
	repo := newTestMemoryRepo(t)
	ctx := context.Background()

	const writers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, 100, model.NewItem("Racer", float64(i), ""))
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, ErrItemAlreadyExists):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())
}
