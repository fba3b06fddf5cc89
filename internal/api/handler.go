// Package api exposes the match service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/findit/internal/graph"
	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/match"
	"github.com/nidhogg/findit/internal/service"
	"go.uber.org/zap"
)

// Service is the subset of service.MatchService the handlers call.
type Service interface {
	Report(ctx context.Context, it *item.Item) ([]match.Result, error)
	Update(ctx context.Context, it *item.Item) ([]match.Result, error)
	GetItem(ctx context.Context, id string) (*item.Item, error)
	Matches(ctx context.Context, itemID string, opts ...match.Option) ([]match.Result, error)
	MatchAdHoc(ctx context.Context, query *item.Item, candidates []*item.Item, opts ...match.Option) ([]match.Result, error)
	Ledger(ctx context.Context, itemID string) ([]graph.Entry, error)
	SetMatchStatus(ctx context.Context, pairKey, status string) error
	ClearEmbeddingCache(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/items", h.createItem)
		r.Get("/items/{id}", h.getItem)
		r.Put("/items/{id}", h.updateItem)
		r.Get("/items/{id}/matches", h.itemMatches)
		r.Get("/items/{id}/ledger", h.itemLedger)

		r.Post("/match", h.matchAdHoc)
		r.Put("/matches/{pairKey}/status", h.setMatchStatus)

		r.Delete("/embeddings/cache", h.clearEmbeddingCache)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "findit"})
}

// ItemRequest is the wire form of a report. Dates may be RFC 3339 or a bare
// YYYY-MM-DD.
type ItemRequest struct {
	Kind        string `json:"kind"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Contact     string `json:"contact"`

	Brand            string `json:"brand"`
	Model            string `json:"model"`
	Color            string `json:"color"`
	Material         string `json:"material"`
	Size             string `json:"size"`
	SerialNumber     string `json:"serial_number"`
	DocumentType     string `json:"document_type"`
	IssuingAuthority string `json:"issuing_authority"`
	NameOnDocument   string `json:"name_on_document"`

	// ID is only honoured for ad hoc matching.
	ID string `json:"id"`
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// toItem converts the request. Unknown kinds and categories are kept verbatim
// so the service or engine reports them.
func (req ItemRequest) toItem() (*item.Item, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	it := &item.Item{
		ID:               req.ID,
		Kind:             item.Kind(strings.ToLower(strings.TrimSpace(req.Kind))),
		UserID:           req.UserID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         item.Category(req.Category),
		Location:         req.Location,
		Date:             date,
		Time:             req.Time,
		Contact:          req.Contact,
		Brand:            req.Brand,
		Model:            req.Model,
		Color:            req.Color,
		Material:         req.Material,
		Size:             req.Size,
		SerialNumber:     req.SerialNumber,
		DocumentType:     req.DocumentType,
		IssuingAuthority: req.IssuingAuthority,
		NameOnDocument:   req.NameOnDocument,
	}
	if c, err := item.ParseCategory(req.Category); err == nil {
		it.Category = c
	}
	return it, nil
}

type reportResponse struct {
	Item    *item.Item     `json:"item"`
	Matches []match.Result `json:"matches"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = ""
	it, err := req.toItem()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.svc.Report(r.Context(), it)
	if err != nil {
		h.fail(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusCreated, reportResponse{Item: it, Matches: nonNil(results)})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ID = chi.URLParam(r, "id")
	it, err := req.toItem()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.svc.Update(r.Context(), it)
	if err != nil {
		h.fail(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{Item: it, Matches: nonNil(results)})
}

// matchOptions reads ?preset= and ?threshold=.
func matchOptions(r *http.Request) ([]match.Option, error) {
	var opts []match.Option
	q := r.URL.Query()
	if p := q.Get("preset"); p != "" {
		opts = append(opts, match.WithPreset(p))
	}
	if t := q.Get("threshold"); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("threshold %q is not a number", t)
		}
		opts = append(opts, match.WithThreshold(v))
	}
	return opts, nil
}

func (h *Handler) itemMatches(w http.ResponseWriter, r *http.Request) {
	opts, err := matchOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.svc.Matches(r.Context(), chi.URLParam(r, "id"), opts...)
	if err != nil {
		h.fail(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

func (h *Handler) itemLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Ledger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, false)
		return
	}
	if entries == nil {
		entries = []graph.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// MatchRequest is the body of POST /api/match.
type MatchRequest struct {
	Query      ItemRequest        `json:"query"`
	Candidates []ItemRequest      `json:"candidates"`
	Preset     string             `json:"preset,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Threshold  *float64           `json:"threshold,omitempty"`
}

func (m MatchRequest) options() ([]match.Option, error) {
	var opts []match.Option
	if m.Preset != "" {
		opts = append(opts, match.WithPreset(m.Preset))
	}
	if len(m.Weights) > 0 {
		w, err := match.ParseWeights(m.Weights)
		if err != nil {
			return nil, err
		}
		opts = append(opts, match.WithWeights(w))
	}
	if m.Threshold != nil {
		opts = append(opts, match.WithThreshold(*m.Threshold))
	}
	return opts, nil
}

// Decode converts the request into a query, its candidates and per-call
// options. Items without an id get a positional one so pair keys stay
// distinct; ids containing the pair key separator are rejected.
func (m MatchRequest) Decode() (*item.Item, []*item.Item, []match.Option, error) {
	opts, err := m.options()
	if err != nil {
		return nil, nil, nil, err
	}
	query, err := m.Query.toItem()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("query: %w", err)
	}
	if err := checkAdHocID(query.ID); err != nil {
		return nil, nil, nil, fmt.Errorf("query: %w", err)
	}
	if query.ID == "" {
		query.ID = "query"
	}
	candidates := make([]*item.Item, 0, len(m.Candidates))
	for i, c := range m.Candidates {
		it, err := c.toItem()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		if err := checkAdHocID(it.ID); err != nil {
			return nil, nil, nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		if it.ID == "" {
			it.ID = "candidate-" + strconv.Itoa(i)
		}
		candidates = append(candidates, it)
	}
	return query, candidates, opts, nil
}

func checkAdHocID(id string) error {
	if strings.Contains(id, match.PairKeySeparator) {
		return fmt.Errorf("id %q must not contain %q", id, match.PairKeySeparator)
	}
	return nil
}

func (h *Handler) matchAdHoc(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query, candidates, opts, err := req.Decode()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.svc.MatchAdHoc(r.Context(), query, candidates, opts...)
	if err != nil {
		h.fail(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setMatchStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := chi.URLParam(r, "pairKey")
	if err := h.svc.SetMatchStatus(r.Context(), key, req.Status); err != nil {
		h.fail(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pair_key": key, "status": strings.ToLower(req.Status)})
}

func (h *Handler) clearEmbeddingCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearEmbeddingCache(r.Context()); err != nil {
		h.fail(w, r, err, false)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps service errors to status codes. Unexpected errors on match
// endpoints get a generic retry message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, matching bool) {
	switch {
	case errors.Is(err, match.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg := "internal error"
		if matching {
			msg = "could not compute matches, try again"
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func nonNil(results []match.Result) []match.Result {
	if results == nil {
		return []match.Result{}
	}
	return results
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
