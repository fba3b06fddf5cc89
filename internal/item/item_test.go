package item

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() *Item {
	return &Item{
		ID:          "a1",
		Kind:        KindLost,
		Description: "black leather wallet",
		Category:    CategoryAccessories,
		Location:    "Central Station",
		Date:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Contact:     "owner@example.com",
	}
}

func TestKindOpposite(t *testing.T) {
	assert.Equal(t, KindFound, KindLost.Opposite())
	assert.Equal(t, KindLost, KindFound.Opposite())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" electronics ")
	require.NoError(t, err)
	assert.Equal(t, CategoryElectronics, c)

	_, err = ParseCategory("Pets")
	assert.Error(t, err)

	assert.True(t, CategoryDocuments.Valid())
	assert.False(t, Category("documents").Valid())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("FOUND")
	require.NoError(t, err)
	assert.Equal(t, KindFound, k)

	_, err = ParseKind("misplaced")
	assert.Error(t, err)
}

func TestAttr(t *testing.T) {
	it := &Item{Brand: "Apple", SerialNumber: "SN1", NameOnDocument: "J. Doe"}
	assert.Equal(t, "Apple", it.Attr(AttrBrand))
	assert.Equal(t, "SN1", it.Attr(AttrSerialNumber))
	assert.Equal(t, "J. Doe", it.Attr(AttrNameOnDocument))
	assert.Equal(t, "", it.Attr("weight"))
}

func TestEmbeddingFreshness(t *testing.T) {
	it := validItem()
	_, ok := it.FreshEmbedding()
	assert.False(t, ok)

	it.SetEmbedding([]float32{1, 0})
	vec, ok := it.FreshEmbedding()
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, vec)

	// Same description keeps the vector.
	it.SetDescription("black leather wallet")
	_, ok = it.FreshEmbedding()
	assert.True(t, ok)

	it.SetDescription("brown leather wallet")
	_, ok = it.FreshEmbedding()
	assert.False(t, ok)
	assert.Nil(t, it.Embedding)
}

func TestFreshEmbeddingRejectsDirectEdit(t *testing.T) {
	it := validItem()
	it.SetEmbedding([]float32{0.5, 0.5})
	it.Description = "edited without SetDescription"
	_, ok := it.FreshEmbedding()
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validItem().Validate())

	tests := []struct {
		name   string
		mutate func(*Item)
	}{
		{"kind", func(it *Item) { it.Kind = "" }},
		{"description", func(it *Item) { it.Description = "   " }},
		{"category", func(it *Item) { it.Category = "Pets" }},
		{"location", func(it *Item) { it.Location = "" }},
		{"date", func(it *Item) { it.Date = time.Time{} }},
		{"contact", func(it *Item) { it.Contact = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := validItem()
			tt.mutate(it)
			assert.Error(t, it.Validate())
		})
	}
}
