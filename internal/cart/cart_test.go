package cart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(name, price string) domain.Product {
	return domain.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Stock: 10}
}

func TestCart_AddUpdateRemove(t *testing.T) {
	mug := product("Mug", "10.00")
	tea := product("Tea", "4.50")

	c := New()
	c.Add(mug, 2)
	c.Add(tea, 0)
	c.Add(mug, 1)

	require.Len(t, c.Items, 2)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.Equal(t, "34.50", c.Total.StringFixed(2))
	assert.Equal(t, 4, c.ItemCount())

	c.UpdateQuantity(tea.ID, 4)
	assert.Equal(t, "48.00", c.Total.StringFixed(2))

	c.UpdateQuantity(uuid.New(), 3)
	assert.Len(t, c.Items, 2)

	c.UpdateQuantity(mug.ID, 0)
	require.Len(t, c.Items, 1)
	assert.Equal(t, tea.ID, c.Items[0].ProductID)

	c.Remove(tea.ID)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Total.IsZero())
}

func TestCart_AddRefreshesSnapshot(t *testing.T) {
	mug := product("Mug", "10.00")
	c := New()
	c.Add(mug, 1)

	mug.Price = decimal.RequireFromString("12.00")
	c.Add(mug, 1)

	assert.Equal(t, "24.00", c.Total.StringFixed(2))
}

func TestCart_Merge(t *testing.T) {
	mug := product("Mug", "10.00")
	tea := product("Tea", "4.50")

	local := New()
	local.Add(mug, 1)

	saved := New()
	saved.Add(mug, 2)
	saved.Add(tea, 1)

	local.Merge(saved)
	local.Merge(nil)

	require.Len(t, local.Items, 2)
	assert.Equal(t, 3, local.Items[0].Quantity)
	assert.Equal(t, "34.50", local.Total.StringFixed(2))
	assert.Equal(t, []domain.LineItem{
		{ProductID: mug.ID, Quantity: 3},
		{ProductID: tea.ID, Quantity: 1},
	}, local.Lines())
}

func TestCart_Clear(t *testing.T) {
	c := New()
	c.Add(product("Mug", "10.00"), 3)
	c.Clear()

	assert.Zero(t, c.ItemCount())
	assert.True(t, c.Total.IsZero())
	assert.NotNil(t, c.Items)
}

// Property: the total always equals the sum of line subtotals and the item
// count equals the sum of quantities, whatever the sequence of adds
func TestProperty_TotalMatchesLines(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	products := []domain.Product{product("A", "0.10"), product("B", "0.20"), product("C", "19.99")}

	properties.Property("total is the sum of subtotals", prop.ForAll(
		func(picks []int, quantities []int) bool {
			c := New()
			for i, pick := range picks {
				q := 1
				if i < len(quantities) {
					q = quantities[i]
				}
				c.Add(products[pick], q)
			}

			sum, count := decimal.Zero, 0
			for _, item := range c.Items {
				sum = sum.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
				count += item.Quantity
			}
			return c.Total.Equal(sum) && c.ItemCount() == count && len(c.Items) <= len(products)
		},
		gen.SliceOf(gen.IntRange(0, 2)),
		gen.SliceOf(gen.IntRange(-2, 5)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func storages(t *testing.T) map[string]Storage {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   NewFileStorage(filepath.Join(t.TempDir(), "carts", "cart.json")),
		"redis":  NewRedisStorage(client, "cart:test", time.Hour),
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, storage := range storages(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := storage.Load(ctx)
			require.NoError(t, err)
			assert.True(t, empty.IsEmpty())

			c := New()
			c.Add(product("Mug", "10.00"), 2)
			require.NoError(t, storage.Save(ctx, c))

			loaded, err := storage.Load(ctx)
			require.NoError(t, err)
			require.Len(t, loaded.Items, 1)
			assert.Equal(t, c.Items[0].ProductID, loaded.Items[0].ProductID)
			assert.Equal(t, "20.00", loaded.Total.StringFixed(2))

			loaded.Clear()
			require.NoError(t, storage.Save(ctx, loaded))
			again, err := storage.Load(ctx)
			require.NoError(t, err)
			assert.True(t, again.IsEmpty())
		})
	}
}

func TestFileStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStorage(path).Load(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestLoad_RecomputesStoredTotal(t *testing.T) {
	id := uuid.New()
	raw := `{"items":[{"product_id":"` + id.String() + `","quantity":2,"product":{"id":"` + id.String() + `","price":"3.25"}},` +
		`{"product_id":"` + uuid.NewString() + `","quantity":0,"product":{"price":"1"}}],"total":"999"}`

	storage := NewMemoryStorage()
	storage.data = []byte(raw)

	c, err := storage.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "6.50", c.Total.StringFixed(2))
}

func TestRedisStorage_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	storage := NewRedisStorage(client, "cart:ttl", time.Minute)
	require.NoError(t, storage.Save(context.Background(), New()))
	assert.Equal(t, time.Minute, mr.TTL("cart:ttl"))

	mr.FastForward(2 * time.Minute)
	c, err := storage.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
