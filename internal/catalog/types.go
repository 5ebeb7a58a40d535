package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBrand is assigned to products whose MARCA cell is empty.
const DefaultBrand = "natura"

// Product is one catalog row. Price is invalid (JSON null) when the source
// value could not be parsed.
type Product struct {
	SKU         string              `json:"sku"`
	Description string              `json:"descripcion"`
	Price       decimal.NullDecimal `json:"precio"`
	ImageURL    string              `json:"imagen_url"`
	Brand       string              `json:"marca"`
}

// Consultant is a reseller whose storefront link scopes orders.
type Consultant struct {
	ID    string `json:"id"`
	Name  string `json:"nombre"`
	Phone string `json:"telefono"`
	Email string `json:"email"`
}

// Snapshot is an immutable view of the catalog and the consultant directory.
// A reload builds a new Snapshot; existing holders keep reading the old one.
type Snapshot struct {
	Version     int64
	LoadedAt    time.Time
	products    []Product
	consultants map[string]Consultant
	ids         []string
}

func newSnapshot(version int64, loadedAt time.Time, products []Product, consultants map[string]Consultant) *Snapshot {
	ids := make([]string, 0, len(consultants))
	for id := range consultants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Snapshot{
		Version:     version,
		LoadedAt:    loadedAt,
		products:    products,
		consultants: consultants,
		ids:         ids,
	}
}

// Get looks up a consultant by id.
func (s *Snapshot) Get(id string) (Consultant, bool) {
	c, ok := s.consultants[strings.TrimSpace(id)]
	return c, ok
}

// List returns the products of brand in catalog order, or every product when
// brand is empty. The returned slice is a copy.
func (s *Snapshot) List(brand string) []Product {
	brand = normalizeBrand(brand)
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if brand == "" || p.Brand == brand {
			out = append(out, p)
		}
	}
	return out
}

// Consultants returns every consultant ordered by id.
func (s *Snapshot) Consultants() []Consultant {
	out := make([]Consultant, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.consultants[id])
	}
	return out
}

// Counts returns the number of products and consultants in the snapshot.
func (s *Snapshot) Counts() (products, consultants int) {
	return len(s.products), len(s.consultants)
}

func normalizeBrand(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}
