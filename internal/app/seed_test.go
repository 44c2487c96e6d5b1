package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/infrastructure/storage/memory"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	seed, err := app.LoadSeed(writeSeed(t, `
products:
  - {code: AMOX-250, name: Amoxicillin, unit: box, minStockLevel: 50}
  - {code: OLD-1, name: Retired, isActive: false}
warehouses:
  - {code: WH-COLD, name: Cold room, type: cold_chain}
`))
	require.NoError(t, err)

	require.Len(t, seed.Products, 2)
	assert.Equal(t, int64(50), seed.Products[0].MinStockLevel)
	assert.True(t, seed.Products[0].IsActive)
	assert.False(t, seed.Products[1].IsActive)
	assert.NotEqual(t, seed.Products[0].ID, seed.Products[1].ID)

	require.Len(t, seed.Warehouses, 1)
	assert.Equal(t, warehouse.TypeColdChain, seed.Warehouses[0].Type)
	assert.True(t, seed.Warehouses[0].IsActive)
}

func TestLoadSeed_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing name":   "products:\n  - {code: X}\n",
		"bad type":       "warehouses:\n  - {code: W, name: W, type: attic}\n",
		"malformed yaml": "products: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := app.LoadSeed(writeSeed(t, body))
			assert.Error(t, err)
		})
	}

	_, err := app.LoadSeed(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSeedApply_SkipsExistingCodes(t *testing.T) {
	st := app.NewMemoryStorage(memory.New(), &config.Config{})
	seed, err := app.LoadSeed(filepath.Join("..", "..", "configs", "seed.yaml"))
	require.NoError(t, err)

	res, err := seed.Apply(t.Context(), st)
	require.NoError(t, err)
	assert.Equal(t, app.SeedResult{Products: 3, Warehouses: 3}, res)

	again, err := app.LoadSeed(filepath.Join("..", "..", "configs", "seed.yaml"))
	require.NoError(t, err)
	res, err = again.Apply(t.Context(), st)
	require.NoError(t, err)
	assert.Equal(t, app.SeedResult{Skipped: 6}, res)

	wh, err := st.Warehouses.GetByCode(t.Context(), "WH-COLD")
	require.NoError(t, err)
	assert.Equal(t, warehouse.TypeColdChain, wh.Type)
}
