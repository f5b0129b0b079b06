package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

// Sentinel errors for cart mutations.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidDraft    = errors.New("invalid draft")
)

// IndexOutOfRangeError reports a position outside the addressed list.
// It matches ErrIndexOutOfRange with errors.Is.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0,%d)", e.Index, e.Len)
}

// Is reports whether target is ErrIndexOutOfRange.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// Line is a single line in the cart.
type Line struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// Draft is the in-progress item to add, populated by the picking UI.
// The zero value is the blank draft.
type Draft struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// IsZero reports whether d is the blank draft.
func (d Draft) IsZero() bool {
	return d.Name == "" && d.Quantity == 0 && d.Price.IsZero()
}

// DraftFrom builds a draft from a catalog entry and a separately supplied
// quantity.
func DraftFrom(e catalog.Entry, quantity int) Draft {
	return Draft{Name: e.Name, Quantity: quantity, Price: e.Price}
}

// View is a point-in-time copy of the store state for rendering.
type View struct {
	Items   []Line
	Catalog []catalog.Entry
	Draft   Draft
}

// SeedItems returns the cart contents a new store starts with.
func SeedItems() []Line {
	return []Line{
		{Name: "Lux Soap", Quantity: 10, Price: decimal.NewFromInt(120)},
		{Name: "Panteene Shampoo", Quantity: 2, Price: decimal.NewFromInt(230)},
		{Name: "Maggie", Quantity: 30, Price: decimal.NewFromInt(10)},
	}
}
