package biome

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/annel0/geography/internal/errkind"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_OrdinalsAndCategories(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 23, c.Len())

	for code := 0; code < c.Len(); code++ {
		b := c.Lookup(code)
		assert.Equal(t, code, b.Code)
		assert.NotEmpty(t, b.Name)
	}

	hell, ok := c.ByName("HELL")
	require.True(t, ok)
	assert.Equal(t, CategoryHell, hell.Category)

	sky, ok := c.ByName("SKY")
	require.True(t, ok)
	assert.Equal(t, CategorySky, sky.Category)
}

// Категории наземных биомов совпадают с прежним правилом «имя содержит S»,
// поэтому высоты узлов не меняются.
func TestDefaultCatalog_MatchesNameRuleForOverworldBiomes(t *testing.T) {
	c := DefaultCatalog()
	for _, code := range c.Codes(InCategory(CategoryLowland, CategoryHilly)) {
		b := c.Lookup(code)
		hilly := strings.Contains(b.Name, "S")
		assert.Equal(t, hilly, b.Category == CategoryHilly, "биом %s", b.Name)
	}
}

func TestCatalog_LookupUnknown(t *testing.T) {
	b := DefaultCatalog().Lookup(200)
	assert.Equal(t, Biome{Code: 200, Category: CategoryLowland}, b)
}

func TestCatalog_LoadOverrides(t *testing.T) {
	c := DefaultCatalog()

	err := c.LoadOverrides([]byte(`
- code: 2
  name: TAIGA
  category: hilly
- code: 40
  name: BADLANDS
  category: hilly
`))
	require.NoError(t, err)

	assert.Equal(t, CategoryHilly, c.Lookup(2).Category)
	badlands, ok := c.ByName("BADLANDS")
	require.True(t, ok)
	assert.Equal(t, 40, badlands.Code)
	assert.Equal(t, 24, c.Len())

	err = c.LoadOverrides([]byte(`[{code: 1, name: X, category: volcanic}]`))
	assert.Error(t, err)

	err = c.Override([]Biome{{Code: -1, Name: "NEG"}})
	assert.True(t, errkind.IsInvalidArgument(err))
}

func TestCatalog_RenameDropsOldName(t *testing.T) {
	c := DefaultCatalog()
	require.NoError(t, c.Override([]Biome{{Code: 8, Name: "STREAM", Category: CategoryLowland}}))

	_, ok := c.ByName("RIVER")
	assert.False(t, ok)
	b, ok := c.ByName("STREAM")
	assert.True(t, ok)
	assert.Equal(t, 8, b.Code)
}

func TestCategory_JSON(t *testing.T) {
	data, err := json.Marshal(Biome{Code: 9, Name: "EXTREME_HILLS", Category: CategoryHilly})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":9,"name":"EXTREME_HILLS","category":"hilly"}`, string(data))

	var b Biome
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, CategoryHilly, b.Category)
}
