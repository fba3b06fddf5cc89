package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nidhogg/findit/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	vector  []float32
	payload map[string]string
}

type fakeBackend struct {
	collections map[string]uint64
	points      map[string]map[string]point
	searchErr   error
	lastTopK    uint64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{collections: map[string]uint64{}, points: map[string]map[string]point{}}
}

func (f *fakeBackend) EnsureCollection(_ context.Context, name string, dim uint64) error {
	f.collections[name] = dim
	if f.points[name] == nil {
		f.points[name] = map[string]point{}
	}
	return nil
}

func (f *fakeBackend) Upsert(_ context.Context, collection, id string, vector []float32, payload map[string]string) error {
	f.points[collection][id] = point{vector, payload}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, collection string, ids ...string) error {
	for _, id := range ids {
		delete(f.points[collection], id)
	}
	return nil
}

func (f *fakeBackend) Search(_ context.Context, collection string, _ []float32, topK uint64) ([]*SearchResult, error) {
	f.lastTopK = topK
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []*SearchResult
	for id, p := range f.points[collection] {
		out = append(out, &SearchResult{ID: id, Payload: p.payload})
	}
	return out, nil
}

func TestPointIDStable(t *testing.T) {
	a := PointID("64f1c2d9e4b0a1b2c3d4e5f6")
	assert.Equal(t, a, PointID("64f1c2d9e4b0a1b2c3d4e5f6"))
	assert.NotEqual(t, a, PointID("other"))
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestCollectionFor(t *testing.T) {
	assert.Equal(t, CollectionLost, CollectionFor(item.KindLost))
	assert.Equal(t, CollectionFound, CollectionFor(item.KindFound))
}

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ix := NewIndex(backend, 2, nil)
	require.NoError(t, ix.Ensure(ctx))
	assert.Equal(t, map[string]uint64{CollectionLost: 2, CollectionFound: 2}, backend.collections)

	found := &item.Item{ID: "f1", Kind: item.KindFound, Description: "blue wallet", Category: item.CategoryAccessories}
	found.SetEmbedding([]float32{0.6, 0.8})
	require.NoError(t, ix.IndexItem(ctx, found))

	stale := &item.Item{ID: "f2", Kind: item.KindFound, Description: "red bag"}
	stale.SetEmbedding([]float32{1, 0})
	stale.Description = "red bag with laptop"
	require.NoError(t, ix.IndexItem(ctx, stale))
	assert.Len(t, backend.points[CollectionFound], 1)

	ids, err := ix.Nearest(ctx, item.KindFound, []float32{1, 1}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, ids)
	assert.EqualValues(t, 5, backend.lastTopK)

	require.NoError(t, ix.Remove(ctx, found))
	assert.Empty(t, backend.points[CollectionFound])
}

func TestIndexRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ix := NewIndex(backend, 3, nil)
	require.NoError(t, ix.Ensure(ctx))

	it := &item.Item{ID: "l1", Kind: item.KindLost, Description: "keys"}
	it.SetEmbedding([]float32{1, 0})
	assert.Error(t, ix.IndexItem(ctx, it))
}

func TestNearestZeroVectorOrError(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	ix := NewIndex(backend, 2, nil)

	ids, err := ix.Nearest(ctx, item.KindLost, []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Nil(t, ids)

	backend.searchErr = errors.New("unavailable")
	_, err = ix.Nearest(ctx, item.KindLost, []float32{1, 0}, 5)
	assert.Error(t, err)
}
