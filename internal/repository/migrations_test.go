package repository_test

import (
	"context"
	"testing"

	"storefront/internal/database"
	"storefront/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tableExists(t *testing.T, name string) bool {
	t.Helper()

	var exists bool
	err := testDB.QueryRowContext(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		name,
	).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrations_ResetAndReapply(t *testing.T) {
	require.NoError(t, database.ResetMigrations(testDB, "../../migrations"))
	for _, table := range []string{"users", "access_tokens", "categories", "products", "orders", "order_items"} {
		assert.False(t, tableExists(t, table), table)
	}

	require.NoError(t, database.RunMigrations(testDB, "../../migrations", zap.NewNop()))
	for _, table := range []string{"users", "access_tokens", "categories", "products", "orders", "order_items"} {
		assert.True(t, tableExists(t, table), table)
	}

	// the schema is usable again for the tests that follow
	category := createTestCategory(t)
	createTestProduct(t, category.ID, "1.00", 1)
	total, err := repository.NewProductRepository(testDB).CountByCategory(context.Background(), category.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
