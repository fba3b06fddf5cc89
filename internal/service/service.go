// Package service ties the matching engine to the item repository and the
// optional vector index, match ledger and event feed.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/findit/internal/events"
	"github.com/nidhogg/findit/internal/graph"
	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/match"
	"github.com/nidhogg/findit/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when an item or recorded match does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when an optional collaborator is not configured.
	ErrUnavailable = errors.New("not available")
)

// Repository persists items.
type Repository interface {
	SaveItem(ctx context.Context, it *item.Item) error
	GetItem(ctx context.Context, id string) (*item.Item, error)
	GetItemsByIDs(ctx context.Context, ids []string) ([]*item.Item, error)
	GetCandidates(ctx context.Context, kind item.Kind, f store.Filter) ([]*item.Item, error)
	SaveEmbedding(ctx context.Context, id string, vec []float32, digest string) (bool, error)
}

// VectorIndex narrows the candidate pool to the nearest embeddings.
type VectorIndex interface {
	IndexItem(ctx context.Context, it *item.Item) error
	Nearest(ctx context.Context, kind item.Kind, vector []float32, k int) ([]string, error)
}

// Ledger records matches and their status.
type Ledger interface {
	RecordMatches(ctx context.Context, results []match.Result) error
	MatchesFor(ctx context.Context, itemID string) ([]graph.Entry, error)
	SetStatus(ctx context.Context, pairKey string, status graph.Status) error
}

// Publisher announces new matches.
type Publisher interface {
	Publish(ctx context.Context, ev *events.MatchEvent) error
}

// Embedder keeps item embeddings current.
type Embedder interface {
	Refresh(ctx context.Context, it *item.Item) []float32
	Vectors(ctx context.Context, texts []string) [][]float32
	ClearCache(ctx context.Context) error
}

// Options tune how candidate pools are loaded.
type Options struct {
	// CandidateLimit caps the repository pool, newest first. Zero means all.
	CandidateLimit int
	// WindowDays keeps candidates dated within this many days of the query.
	WindowDays int
	// PrefilterK asks the vector index for this many nearest candidates
	// before scoring. Zero disables the prefilter.
	PrefilterK int
}

// Option attaches an optional collaborator.
type Option func(*MatchService)

// WithIndex enables the vector prefilter.
func WithIndex(ix VectorIndex) Option {
	return func(s *MatchService) { s.index = ix }
}

// WithLedger records every computed match.
func WithLedger(l Ledger) Option {
	return func(s *MatchService) { s.ledger = l }
}

// WithPublisher announces matches found for new or updated reports.
func WithPublisher(p Publisher) Option {
	return func(s *MatchService) { s.publisher = p }
}

// MatchService is the entry point for reporting items and finding matches.
type MatchService struct {
	engine    *match.Engine
	repo      Repository
	embedder  Embedder
	index     VectorIndex
	ledger    Ledger
	publisher Publisher
	opts      Options
	logger    *zap.Logger
}

// New creates a MatchService. embedder may be nil when items are matched
// without stored embeddings.
func New(engine *match.Engine, repo Repository, embedder Embedder, opts Options, logger *zap.Logger, with ...Option) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MatchService{
		engine:   engine,
		repo:     repo,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
	for _, fn := range with {
		fn(s)
	}
	return s
}

func repoError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return match.RepositoryError(err)
}

// GetItem loads one report.
func (s *MatchService) GetItem(ctx context.Context, id string) (*item.Item, error) {
	it, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, repoError(err)
	}
	return it, nil
}

// Report stores a new report and returns its matches.
func (s *MatchService) Report(ctx context.Context, it *item.Item) ([]match.Result, error) {
	if it == nil {
		return nil, fmt.Errorf("%w: item is nil", match.ErrInvalidInput)
	}
	if err := it.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", match.ErrInvalidInput, err)
	}
	return s.ingest(ctx, it)
}

// Update replaces an existing report's fields and rematches it. The kind and
// creation time cannot change. The stored embedding is kept while the
// description is unchanged.
func (s *MatchService) Update(ctx context.Context, it *item.Item) ([]match.Result, error) {
	if it == nil || it.ID == "" {
		return nil, fmt.Errorf("%w: item id is required", match.ErrInvalidInput)
	}
	existing, err := s.repo.GetItem(ctx, it.ID)
	if err != nil {
		return nil, repoError(err)
	}
	if it.Kind != "" && it.Kind != existing.Kind {
		return nil, fmt.Errorf("%w: cannot change kind of %s from %q to %q",
			match.ErrInvalidInput, it.ID, existing.Kind, it.Kind)
	}

	updated := *it
	updated.Kind = existing.Kind
	updated.CreatedAt = existing.CreatedAt
	updated.Embedding, updated.EmbeddingDigest = nil, ""
	if updated.Description == existing.Description {
		updated.Embedding = existing.Embedding
		updated.EmbeddingDigest = existing.EmbeddingDigest
	}
	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", match.ErrInvalidInput, err)
	}
	results, err := s.ingest(ctx, &updated)
	*it = updated
	return results, err
}

func (s *MatchService) ingest(ctx context.Context, it *item.Item) ([]match.Result, error) {
	if s.embedder != nil {
		s.embedder.Refresh(ctx, it)
	}
	if err := s.repo.SaveItem(ctx, it); err != nil {
		return nil, match.RepositoryError(err)
	}
	s.logger.Info("item saved",
		zap.String("item", it.ID),
		zap.String("kind", string(it.Kind)),
		zap.String("category", string(it.Category)))

	if s.index != nil {
		if err := s.index.IndexItem(ctx, it); err != nil {
			s.logger.Warn("index item", zap.String("item", it.ID), zap.Error(err))
		}
	}

	results, err := s.matchStored(ctx, it)
	if err != nil {
		return results, err
	}
	s.record(ctx, it, results)
	return results, nil
}

// Matches recomputes the matches of a stored item.
func (s *MatchService) Matches(ctx context.Context, itemID string, opts ...match.Option) ([]match.Result, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, repoError(err)
	}
	if _, ok := it.FreshEmbedding(); !ok && s.embedder != nil {
		s.embedder.Refresh(ctx, it)
		s.persistEmbedding(ctx, it)
	}
	results, err := s.matchStored(ctx, it, opts...)
	if err != nil {
		return results, err
	}
	if s.ledger != nil && len(results) > 0 {
		if err := s.ledger.RecordMatches(ctx, results); err != nil {
			s.logger.Warn("record matches", zap.String("item", it.ID), zap.Error(err))
		}
	}
	return results, nil
}

// MatchAdHoc scores query against the given candidates without touching any
// store.
func (s *MatchService) MatchAdHoc(ctx context.Context, query *item.Item, candidates []*item.Item, opts ...match.Option) ([]match.Result, error) {
	return s.engine.FindMatches(ctx, query, candidates, opts...)
}

func (s *MatchService) matchStored(ctx context.Context, it *item.Item, opts ...match.Option) ([]match.Result, error) {
	pool, err := s.candidates(ctx, it)
	if err != nil {
		return nil, err
	}
	s.backfill(ctx, pool)
	return s.engine.FindMatches(ctx, it, pool, opts...)
}

// candidates loads the opposite-kind pool, from the vector index's nearest
// neighbours when possible and from the repository otherwise.
func (s *MatchService) candidates(ctx context.Context, it *item.Item) ([]*item.Item, error) {
	want := it.Kind.Opposite()
	if s.index != nil && s.opts.PrefilterK > 0 {
		if vec, ok := it.FreshEmbedding(); ok {
			ids, err := s.index.Nearest(ctx, want, vec, s.opts.PrefilterK)
			switch {
			case err != nil:
				s.logger.Warn("vector prefilter failed, using full pool", zap.String("item", it.ID), zap.Error(err))
			case len(ids) > 0:
				pool, err := s.repo.GetItemsByIDs(ctx, ids)
				if err != nil {
					return nil, match.RepositoryError(err)
				}
				return pool, nil
			}
		}
	}

	pool, err := s.repo.GetCandidates(ctx, want, store.Filter{
		Around:     it.Date,
		WindowDays: s.opts.WindowDays,
		Limit:      s.opts.CandidateLimit,
	})
	if err != nil {
		return nil, match.RepositoryError(err)
	}
	return pool, nil
}

// backfill embeds pool items that have no current embedding in one batch and
// stores the vectors so later calls reuse them.
func (s *MatchService) backfill(ctx context.Context, pool []*item.Item) {
	if s.embedder == nil {
		return
	}
	var stale []*item.Item
	var texts []string
	for _, c := range pool {
		if _, ok := c.FreshEmbedding(); ok || c.Description == "" {
			continue
		}
		stale = append(stale, c)
		texts = append(texts, c.Description)
	}
	if len(stale) == 0 {
		return
	}
	vecs := s.embedder.Vectors(ctx, texts)
	for i, c := range stale {
		if i >= len(vecs) || isZero(vecs[i]) {
			continue
		}
		c.SetEmbedding(vecs[i])
		s.persistEmbedding(ctx, c)
	}
	s.logger.Debug("backfilled embeddings", zap.Int("items", len(stale)))
}

func (s *MatchService) persistEmbedding(ctx context.Context, it *item.Item) {
	vec, ok := it.FreshEmbedding()
	if !ok {
		return
	}
	saved, err := s.repo.SaveEmbedding(ctx, it.ID, vec, it.EmbeddingDigest)
	if err != nil {
		s.logger.Warn("save embedding", zap.String("item", it.ID), zap.Error(err))
		return
	}
	if saved && s.index != nil {
		if err := s.index.IndexItem(ctx, it); err != nil {
			s.logger.Warn("index item", zap.String("item", it.ID), zap.Error(err))
		}
	}
}

// record writes results to the ledger and announces them. Failures are
// logged only.
func (s *MatchService) record(ctx context.Context, it *item.Item, results []match.Result) {
	if len(results) == 0 {
		return
	}
	if s.ledger != nil {
		if err := s.ledger.RecordMatches(ctx, results); err != nil {
			s.logger.Warn("record matches", zap.String("item", it.ID), zap.Error(err))
		}
	}
	if s.publisher != nil {
		ev := events.NewMatchesFound(it.ID, string(it.Kind), results)
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish matches", zap.String("item", it.ID), zap.Error(err))
		}
	}
}

// Ledger lists the recorded matches of an item.
func (s *MatchService) Ledger(ctx context.Context, itemID string) ([]graph.Entry, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("match ledger: %w", ErrUnavailable)
	}
	return s.ledger.MatchesFor(ctx, itemID)
}

// SetMatchStatus moves a recorded match to a new status.
func (s *MatchService) SetMatchStatus(ctx context.Context, pairKey, status string) error {
	if s.ledger == nil {
		return fmt.Errorf("match ledger: %w", ErrUnavailable)
	}
	st, err := graph.ParseStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %v", match.ErrInvalidInput, err)
	}
	if err := s.ledger.SetStatus(ctx, pairKey, st); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewStatusChanged(pairKey, string(st))); err != nil {
			s.logger.Warn("publish status", zap.String("pair", pairKey), zap.Error(err))
		}
	}
	return nil
}

// ClearEmbeddingCache drops every cached embedding.
func (s *MatchService) ClearEmbeddingCache(ctx context.Context) error {
	if s.embedder == nil {
		return nil
	}
	return s.embedder.ClearCache(ctx)
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
