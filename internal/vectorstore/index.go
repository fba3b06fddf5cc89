package vectorstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nidhogg/findit/internal/item"
	"go.uber.org/zap"
)

// Backend is the subset of Client the Index needs.
type Backend interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error
	Delete(ctx context.Context, collection string, ids ...string) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64) ([]*SearchResult, error)
}

// Collection names, one per item kind.
const (
	CollectionLost  = "lost_items"
	CollectionFound = "found_items"
)

const payloadItemID = "item_id"

// pointNamespace derives stable Qdrant point ids from arbitrary item ids.
var pointNamespace = uuid.MustParse("5b0d3f3e-9a47-4c8e-8f43-2f7f1f0c6a10")

// CollectionFor returns the collection holding items of kind.
func CollectionFor(kind item.Kind) string {
	if kind == item.KindFound {
		return CollectionFound
	}
	return CollectionLost
}

// PointID maps an item id to its Qdrant point id.
func PointID(itemID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(itemID)).String()
}

// Index stores one embedding per item, split by kind.
type Index struct {
	backend   Backend
	dimension uint64
	logger    *zap.Logger
}

// NewIndex wraps backend for vectors of the given dimension.
func NewIndex(backend Backend, dimension int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{backend: backend, dimension: uint64(dimension), logger: logger}
}

// Ensure creates both collections.
func (ix *Index) Ensure(ctx context.Context) error {
	for _, name := range []string{CollectionLost, CollectionFound} {
		if err := ix.backend.EnsureCollection(ctx, name, ix.dimension); err != nil {
			return err
		}
	}
	ix.logger.Info("vector collections ready", zap.Uint64("dimension", ix.dimension))
	return nil
}

// IndexItem upserts the item's current embedding. Items without a fresh,
// non-zero embedding are skipped.
func (ix *Index) IndexItem(ctx context.Context, it *item.Item) error {
	vec, ok := it.FreshEmbedding()
	if !ok || isZero(vec) {
		ix.logger.Debug("skipping item without embedding", zap.String("item", it.ID))
		return nil
	}
	if ix.dimension > 0 && uint64(len(vec)) != ix.dimension {
		return fmt.Errorf("index item %s: vector has %d dimensions, collection has %d", it.ID, len(vec), ix.dimension)
	}
	return ix.backend.Upsert(ctx, CollectionFor(it.Kind), PointID(it.ID), vec, map[string]string{
		payloadItemID: it.ID,
		"category":    string(it.Category),
	})
}

// Remove drops the item's point.
func (ix *Index) Remove(ctx context.Context, it *item.Item) error {
	return ix.backend.Delete(ctx, CollectionFor(it.Kind), PointID(it.ID))
}

// Nearest returns the ids of up to k items of kind closest to vector, nearest
// first.
func (ix *Index) Nearest(ctx context.Context, kind item.Kind, vector []float32, k int) ([]string, error) {
	if k <= 0 || isZero(vector) {
		return nil, nil
	}
	hits, err := ix.backend.Search(ctx, CollectionFor(kind), vector, uint64(k))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if id := h.Payload[payloadItemID]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
