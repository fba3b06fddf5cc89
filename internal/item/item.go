// Package item defines the lost/found report records consumed by the matcher.
package item

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Kind tells whether a report describes something lost or something found.
type Kind string

const (
	KindLost  Kind = "lost"
	KindFound Kind = "found"
)

// Opposite returns the kind a report is matched against.
func (k Kind) Opposite() Kind {
	if k == KindLost {
		return KindFound
	}
	return KindLost
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindLost || k == KindFound
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown item kind %q", s)
	}
	return k, nil
}

// Category selects the attribute table used for structured comparison.
type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryBags        Category = "Bags"
	CategoryClothing    Category = "Clothing"
	CategoryAccessories Category = "Accessories"
	CategoryDocuments   Category = "Documents"
	CategoryOthers      Category = "Others"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryElectronics,
	CategoryBags,
	CategoryClothing,
	CategoryAccessories,
	CategoryDocuments,
	CategoryOthers,
}

// ParseCategory resolves a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	name := strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Valid reports whether c is one of the known categories, spelled canonically.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Canonical attribute names.
const (
	AttrBrand            = "brand"
	AttrModel            = "model"
	AttrColor            = "color"
	AttrMaterial         = "material"
	AttrSize             = "size"
	AttrSerialNumber     = "serialNumber"
	AttrDocumentType     = "documentType"
	AttrIssuingAuthority = "issuingAuthority"
	AttrNameOnDocument   = "nameOnDocument"
)

// Item is a single lost or found report.
type Item struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	UserID      string    `json:"user_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time,omitempty"`
	Contact     string    `json:"contact"`

	Brand            string `json:"brand,omitempty"`
	Model            string `json:"model,omitempty"`
	Color            string `json:"color,omitempty"`
	Material         string `json:"material,omitempty"`
	Size             string `json:"size,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	DocumentType     string `json:"document_type,omitempty"`
	IssuingAuthority string `json:"issuing_authority,omitempty"`
	NameOnDocument   string `json:"name_on_document,omitempty"`

	// Embedding caches the vector derived from Description. EmbeddingDigest
	// records which description it came from.
	Embedding       []float32 `json:"-"`
	EmbeddingDigest string    `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attr returns the value of a category attribute by canonical name.
func (it *Item) Attr(name string) string {
	switch name {
	case AttrBrand:
		return it.Brand
	case AttrModel:
		return it.Model
	case AttrColor:
		return it.Color
	case AttrMaterial:
		return it.Material
	case AttrSize:
		return it.Size
	case AttrSerialNumber:
		return it.SerialNumber
	case AttrDocumentType:
		return it.DocumentType
	case AttrIssuingAuthority:
		return it.IssuingAuthority
	case AttrNameOnDocument:
		return it.NameOnDocument
	}
	return ""
}

// DescriptionDigest hashes a description for embedding freshness checks.
func DescriptionDigest(description string) string {
	sum := sha256.Sum256([]byte(description))
	return hex.EncodeToString(sum[:])
}

// SetDescription replaces the description and drops an embedding that no
// longer matches it.
func (it *Item) SetDescription(description string) {
	if description == it.Description {
		return
	}
	it.Description = description
	it.Embedding = nil
	it.EmbeddingDigest = ""
}

// SetEmbedding stores a vector derived from the current description.
func (it *Item) SetEmbedding(vec []float32) {
	it.Embedding = vec
	it.EmbeddingDigest = DescriptionDigest(it.Description)
}

// FreshEmbedding returns the cached vector if it was derived from the current
// description.
func (it *Item) FreshEmbedding() ([]float32, bool) {
	if len(it.Embedding) == 0 || it.EmbeddingDigest != DescriptionDigest(it.Description) {
		return nil, false
	}
	return it.Embedding, true
}

// Validate checks the fields every report must carry.
func (it *Item) Validate() error {
	if !it.Kind.Valid() {
		return fmt.Errorf("kind must be %q or %q", KindLost, KindFound)
	}
	if strings.TrimSpace(it.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if !it.Category.Valid() {
		return fmt.Errorf("category %q is not recognised", it.Category)
	}
	if strings.TrimSpace(it.Location) == "" {
		return fmt.Errorf("location is required")
	}
	if it.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if strings.TrimSpace(it.Contact) == "" {
		return fmt.Errorf("contact is required")
	}
	return nil
}
