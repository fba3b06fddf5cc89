package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nidhogg/findit/internal/item"
)

const itemColumns = `id, kind, user_id, title, description, category, location,
	item_date, item_time, contact,
	brand, model, color, material, size, serial_number,
	document_type, issuing_authority, name_on_document,
	embedding, embedding_digest, created_at, updated_at`

// Filter narrows a candidate pool.
type Filter struct {
	// Around keeps items dated within WindowDays of it. Zero disables.
	Around     time.Time
	WindowDays int
	// Limit caps the pool size, newest first. Zero means no cap.
	Limit int
}

// SaveItem inserts or updates an item, assigning an id and timestamps when
// missing. A stored embedding survives only while the description is
// unchanged.
func (s *Store) SaveItem(ctx context.Context, it *item.Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now

	var (
		vec    []float32
		digest string
	)
	if v, ok := it.FreshEmbedding(); ok {
		vec, digest = v, it.EmbeddingDigest
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			location = EXCLUDED.location,
			item_date = EXCLUDED.item_date,
			item_time = EXCLUDED.item_time,
			contact = EXCLUDED.contact,
			brand = EXCLUDED.brand,
			model = EXCLUDED.model,
			color = EXCLUDED.color,
			material = EXCLUDED.material,
			size = EXCLUDED.size,
			serial_number = EXCLUDED.serial_number,
			document_type = EXCLUDED.document_type,
			issuing_authority = EXCLUDED.issuing_authority,
			name_on_document = EXCLUDED.name_on_document,
			embedding = CASE
				WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding
				WHEN items.description = EXCLUDED.description THEN items.embedding
				ELSE NULL END,
			embedding_digest = CASE
				WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding_digest
				WHEN items.description = EXCLUDED.description THEN items.embedding_digest
				ELSE '' END,
			updated_at = EXCLUDED.updated_at`,
		it.ID, string(it.Kind), it.UserID, it.Title, it.Description, string(it.Category), it.Location,
		nullTime(it.Date), it.Time, it.Contact,
		it.Brand, it.Model, it.Color, it.Material, it.Size, it.SerialNumber,
		it.DocumentType, it.IssuingAuthority, it.NameOnDocument,
		vec, digest, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save item %s: %w", it.ID, err)
	}
	return nil
}

// GetItem loads one item.
func (s *Store) GetItem(ctx context.Context, id string) (*item.Item, error) {
	row := s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// GetItemsByIDs loads the given items; unknown ids are skipped.
func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) ([]*item.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get items by ids: %w", err)
	}
	return collectItems(rows)
}

// GetCandidates returns items of kind, newest first, narrowed by f.
func (s *Store) GetCandidates(ctx context.Context, kind item.Kind, f Filter) ([]*item.Item, error) {
	var (
		where = []string{"kind = $1"}
		args  = []any{string(kind)}
	)
	if !f.Around.IsZero() && f.WindowDays > 0 {
		args = append(args, f.Around.UTC(), f.WindowDays)
		where = append(where, fmt.Sprintf(
			"item_date BETWEEN $%d - make_interval(days => $%d) AND $%d + make_interval(days => $%d)",
			len(args)-1, len(args), len(args)-1, len(args)))
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY item_date DESC NULLS LAST, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s candidates: %w", kind, err)
	}
	return collectItems(rows)
}

// SaveEmbedding stores vec for item id, but only if digest still matches the
// stored description. It reports whether the row was updated.
func (s *Store) SaveEmbedding(ctx context.Context, id string, vec []float32, digest string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE items SET embedding = $2, embedding_digest = $3
		WHERE id = $1 AND encode(sha256(convert_to(description, 'UTF8')), 'hex') = $3`,
		id, vec, digest)
	if err != nil {
		return false, fmt.Errorf("save embedding %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete item %s: %w", id, ErrNotFound)
	}
	return nil
}

func collectItems(rows pgx.Rows) ([]*item.Item, error) {
	defer rows.Close()
	var items []*item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (*item.Item, error) {
	var (
		it        item.Item
		kind, cat string
		date      *time.Time
	)
	err := row.Scan(
		&it.ID, &kind, &it.UserID, &it.Title, &it.Description, &cat, &it.Location,
		&date, &it.Time, &it.Contact,
		&it.Brand, &it.Model, &it.Color, &it.Material, &it.Size, &it.SerialNumber,
		&it.DocumentType, &it.IssuingAuthority, &it.NameOnDocument,
		&it.Embedding, &it.EmbeddingDigest, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Kind = item.Kind(kind)
	it.Category = item.Category(cat)
	if date != nil {
		it.Date = date.UTC()
	}
	return &it, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
