// Package match scores lost reports against found reports (and the other way
// round) by blending independent similarity signals into one 0-100 score.
package match

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/similarity"
	"github.com/nidhogg/findit/internal/text"
	"go.uber.org/zap"
)

// Semantic embeds descriptions. Implementations must not fail: an unusable
// text maps to a zero vector.
type Semantic interface {
	Vectors(ctx context.Context, texts []string) [][]float32
}

// Engine scores a query item against a candidate pool. It is safe for
// concurrent use and never modifies the items it is given.
type Engine struct {
	semantic Semantic
	cfg      Config
	logger   *zap.Logger
}

// NewEngine validates cfg and returns an engine. semantic may be nil, in
// which case the semantic signal is always 0. cfg.Threshold is not defaulted;
// build on DefaultConfig to get DefaultThreshold.
func NewEngine(semantic Semantic, cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	valid, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Engine{semantic: semantic, cfg: valid, logger: logger}, nil
}

// Config returns the engine's validated configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) resolve(opts []Option) (Config, error) {
	if len(opts) == 0 {
		return e.cfg, nil
	}
	cfg := e.cfg
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.Validate()
}

// profile is everything about the query computed once per call.
type profile struct {
	item      *item.Item
	vector    []float32
	keywords  text.Set
	terms     []string
	features  text.Features
	locTokens []string
}

func checkQuery(query *item.Item) error {
	if query == nil {
		return invalidf("query item is nil")
	}
	if strings.TrimSpace(query.Description) == "" {
		return invalidf("query item %q has no description", query.ID)
	}
	if !query.Category.Valid() {
		return invalidf("query item %q has unknown category %q", query.ID, query.Category)
	}
	if !query.Kind.Valid() {
		return invalidf("query item %q has unknown kind %q", query.ID, query.Kind)
	}
	return nil
}

func (e *Engine) profile(ctx context.Context, query *item.Item, cfg Config) *profile {
	p := &profile{item: query}
	w := cfg.Weights
	if w[SignalSemantic] > 0 {
		p.vector = e.vectors(ctx, []*item.Item{query})[0]
	}
	if w[SignalKeyword] > 0 {
		p.keywords = text.NewSet(text.Normalize(query.Description)...)
	}
	if w[SignalTFIDF] > 0 {
		p.terms = cfg.normalizer().Tokens(query.Description)
	}
	if w[SignalFeature] > 0 {
		p.features = cfg.Vocabulary.Extract(query.Description)
	}
	if w[SignalLocation] > 0 {
		p.locTokens = similarity.LocationTokens(query.Location)
	}
	return p
}

// vectors returns each item's embedding, reusing fresh cached ones and
// embedding the rest in one batch. Items with a blank description get nil.
func (e *Engine) vectors(ctx context.Context, items []*item.Item) [][]float32 {
	out := make([][]float32, len(items))
	if e.semantic == nil {
		return out
	}
	var texts []string
	var at []int
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		if vec, ok := it.FreshEmbedding(); ok {
			out[i] = vec
			continue
		}
		texts = append(texts, it.Description)
		at = append(at, i)
	}
	if len(texts) == 0 {
		return out
	}
	vecs := e.semantic.Vectors(ctx, texts)
	for j, i := range at {
		if j < len(vecs) {
			out[i] = vecs[j]
		}
	}
	return out
}

// eligible drops nil candidates, candidates of the query's own kind and the
// query itself.
func eligible(query *item.Item, pool []*item.Item) []*item.Item {
	want := query.Kind.Opposite()
	out := make([]*item.Item, 0, len(pool))
	for _, c := range pool {
		if c == nil || c.Kind != want {
			continue
		}
		if query.ID != "" && c.ID == query.ID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FindMatches scores every opposite-kind candidate in pool against query and
// returns those at or above the threshold, deduplicated by pair key and
// sorted by score. If ctx is cancelled part way, the results completed so far
// are returned together with an error wrapping ctx.Err().
func (e *Engine) FindMatches(ctx context.Context, query *item.Item, pool []*item.Item, opts ...Option) ([]Result, error) {
	cfg, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	if err := checkQuery(query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}

	q := e.profile(ctx, query, cfg)
	candidates := eligible(query, pool)
	scored, err := e.scoreAll(ctx, q, candidates, cfg)
	out := finalize(scored, cfg.Threshold)

	e.logger.Debug("matched item",
		zap.String("item", query.ID),
		zap.String("preset", cfg.Preset),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(out)))
	return out, err
}

// FindMatchesBatch runs FindMatches for each query and merges the results,
// keeping the higher score when two queries produce the same pair.
func (e *Engine) FindMatchesBatch(ctx context.Context, queries []*item.Item, pool []*item.Item, opts ...Option) ([]Result, error) {
	cfg, err := e.resolve(opts)
	if err != nil {
		return nil, err
	}
	var all []Result
	for _, q := range queries {
		rs, err := e.FindMatches(ctx, q, pool, func(c *Config) { *c = cfg })
		all = append(all, rs...)
		if err != nil {
			id := ""
			if q != nil {
				id = q.ID
			}
			return finalize(all, cfg.Threshold), fmt.Errorf("match: query %q: %w", id, err)
		}
	}
	return finalize(all, cfg.Threshold), nil
}

// Score computes the result for a single pair regardless of threshold.
func (e *Engine) Score(ctx context.Context, query, candidate *item.Item, opts ...Option) (Result, error) {
	cfg, err := e.resolve(opts)
	if err != nil {
		return Result{}, err
	}
	if err := checkQuery(query); err != nil {
		return Result{}, err
	}
	if candidate == nil {
		return Result{}, invalidf("candidate is nil")
	}
	if candidate.Kind != query.Kind.Opposite() {
		return Result{}, invalidf("candidate %q is %q, want %q", candidate.ID, candidate.Kind, query.Kind.Opposite())
	}
	q := e.profile(ctx, query, cfg)
	vec := e.vectors(ctx, []*item.Item{candidate})[0]
	return e.score(q, candidate, vec, cfg), nil
}

// scoreAll fans candidates out over a bounded pool of workers, batchSize
// candidates per job so each job embeds its misses in one model call.
func (e *Engine) scoreAll(ctx context.Context, q *profile, candidates []*item.Item, cfg Config) ([]Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	jobs := (len(candidates) + batchSize - 1) / batchSize
	results := make(chan []Result, jobs)
	pool := make(chan struct{}, cfg.Workers)
	var wg sync.WaitGroup

dispatch:
	for start := 0; start < len(candidates); start += batchSize {
		chunk := candidates[start:min(start+batchSize, len(candidates))]
		select {
		case <-ctx.Done():
			break dispatch
		case pool <- struct{}{}:
		}
		wg.Add(1)
		go func(chunk []*item.Item) {
			defer wg.Done()
			defer func() { <-pool }()
			results <- e.scoreChunk(ctx, q, chunk, cfg)
		}(chunk)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []Result
	for rs := range results {
		out = append(out, rs...)
	}
	if err := ctx.Err(); err != nil {
		e.logger.Info("matching interrupted, returning partial results",
			zap.String("item", q.item.ID),
			zap.Int("scored", len(out)),
			zap.Int("candidates", len(candidates)))
		return out, fmt.Errorf("match: scoring interrupted: %w", err)
	}
	return out, nil
}

func (e *Engine) scoreChunk(ctx context.Context, q *profile, chunk []*item.Item, cfg Config) []Result {
	if ctx.Err() != nil {
		return nil
	}
	var vecs [][]float32
	if cfg.Weights[SignalSemantic] > 0 {
		vecs = e.vectors(ctx, chunk)
	}
	out := make([]Result, 0, len(chunk))
	for i, c := range chunk {
		if ctx.Err() != nil {
			break
		}
		var vec []float32
		if vecs != nil {
			vec = vecs[i]
		}
		if r, ok := e.safeScore(q, c, vec, cfg); ok {
			out = append(out, r)
		}
	}
	return out
}

// safeScore isolates one candidate: a panic while scoring it drops only that
// candidate.
func (e *Engine) safeScore(q *profile, c *item.Item, vec []float32, cfg Config) (r Result, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("scoring candidate panicked",
				zap.String("item", q.item.ID),
				zap.String("candidate", c.ID),
				zap.Any("panic", rec))
			ok = false
		}
	}()
	return e.score(q, c, vec, cfg), true
}

func (e *Engine) score(q *profile, c *item.Item, vec []float32, cfg Config) Result {
	query := q.item
	w := cfg.Weights
	signals := make(map[Signal]float64, len(w))
	var attrs map[string]float64

	for _, s := range w.Active() {
		var v float64
		switch s {
		case SignalSemantic:
			v = similarity.Cosine(q.vector, vec)
		case SignalKeyword:
			v = similarity.KeywordOverlap(q.keywords, text.NewSet(text.Normalize(c.Description)...))
		case SignalCategory:
			if query.Category == c.Category {
				v = 1
			}
		case SignalLocation:
			v = similarity.LocationTokensOverlap(q.locTokens, similarity.LocationTokens(c.Location))
		case SignalDate:
			v = similarity.DateProximity(query.Date, c.Date)
		case SignalString:
			v = similarity.Combined(query.Description, c.Description)
		case SignalTFIDF:
			v = similarity.TFIDFTokens(q.terms, cfg.normalizer().Tokens(c.Description))
		case SignalFeature:
			v = similarity.FeatureOverlap(q.features, cfg.Vocabulary.Extract(c.Description))
		case SignalAttribute:
			v, attrs = similarity.Attributes(query.Category, query, c)
		}
		if math.IsNaN(v) {
			v = 0
		}
		signals[s] = v
	}

	total := 0.0
	for _, s := range Signals {
		total += w[s] * signals[s]
	}
	score := math.Min(100, math.Max(0, total*100))

	r := Result{
		CandidateID: c.ID,
		PairKey:     PairKey(query.ID, c.ID),
		Score:       score,
		Breakdown:   Breakdown{Signals: signals, Attributes: attrs},
		Preset:      cfg.Preset,
		Category:    c.Category,
		Contact:     c.Contact,
		Location:    c.Location,
		Date:        c.Date,
	}
	if query.Kind == item.KindLost {
		r.LostID, r.FoundID = query.ID, c.ID
	} else {
		r.LostID, r.FoundID = c.ID, query.ID
	}
	return r
}
