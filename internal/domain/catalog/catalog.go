package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrEmpty is returned when a catalog source yields no entries.
var ErrEmpty = errors.New("catalog is empty")

// Entry is a selectable product. Entries carry no quantity; they become
// cart lines only once a quantity is supplied.
type Entry struct {
	Name  string
	Price decimal.Decimal
}

// Repository provides the read-only product list offered to the picking UI.
type Repository interface {
	List(ctx context.Context) ([]Entry, error)
}

// Seed returns the default catalog.
func Seed() []Entry {
	return []Entry{
		{Name: "Shoe Polish", Price: decimal.NewFromInt(40)},
		{Name: "Wine bottle", Price: decimal.NewFromInt(1000)},
		{Name: "Lucky coin", Price: decimal.NewFromInt(30)},
		{Name: "lunch box", Price: decimal.NewFromInt(450)},
		{Name: "Tamatoo sauce", Price: decimal.NewFromInt(100)},
		{Name: "Lux Soap", Price: decimal.NewFromInt(120)},
		{Name: "Panteene Shampoo", Price: decimal.NewFromInt(230)},
		{Name: "Maggie", Price: decimal.NewFromInt(10)},
	}
}

var _ Repository = (*Static)(nil)

// Static serves a fixed in-memory catalog.
type Static struct {
	entries []Entry
}

// NewStatic returns a Static repository over a copy of entries.
func NewStatic(entries []Entry) *Static {
	return &Static{entries: append([]Entry(nil), entries...)}
}

// List returns a copy of the configured entries.
func (s *Static) List(_ context.Context) ([]Entry, error) {
	if len(s.entries) == 0 {
		return nil, ErrEmpty
	}
	return append([]Entry(nil), s.entries...), nil
}
