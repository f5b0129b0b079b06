// Package cart holds the cart store: an ordered list of lines, a read-only
// catalog to pick from, and the draft the picking UI fills in.
//
// A Store is not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves (see the session package).
package cart

import (
	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

// Store owns the cart lines, the catalog and the current draft.
type Store struct {
	items   []Line
	catalog []catalog.Entry
	draft   Draft
}

// NewStore creates a store over copies of entries and items.
func NewStore(entries []catalog.Entry, items ...Line) *Store {
	return &Store{
		items:   append([]Line(nil), items...),
		catalog: append([]catalog.Entry(nil), entries...),
	}
}

// NewSeededStore creates a store with the default catalog and cart.
func NewSeededStore() *Store {
	return NewStore(catalog.Seed(), SeedItems()...)
}

// Remove deletes the line at index and shifts the following lines down.
// An index outside [0, Len()) leaves the cart untouched and returns an
// *IndexOutOfRangeError.
func (s *Store) Remove(index int) error {
	if index < 0 || index >= len(s.items) {
		return &IndexOutOfRangeError{Index: index, Len: len(s.items)}
	}
	copy(s.items[index:], s.items[index+1:])
	s.items[len(s.items)-1] = Line{}
	s.items = s.items[:len(s.items)-1]
	return nil
}

// AddItem appends a line copied from d and resets *d to the blank draft.
// Field values are taken as-is.
func (s *Store) AddItem(d *Draft) (Line, error) {
	if d == nil {
		return Line{}, ErrInvalidDraft
	}
	line := Line{
		Name:     d.Name,
		Quantity: d.Quantity,
		Price:    d.Price,
	}
	s.items = append(s.items, line)
	*d = Draft{}
	return line, nil
}

// CommitDraft adds the store-owned draft to the cart and clears it.
func (s *Store) CommitDraft() (Line, error) {
	return s.AddItem(&s.draft)
}

// Draft returns the current draft.
func (s *Store) Draft() Draft {
	return s.draft
}

// SetDraft replaces the current draft.
func (s *Store) SetDraft(d Draft) {
	s.draft = d
}

// SelectCatalog fills the draft from the catalog entry at index.
func (s *Store) SelectCatalog(index, quantity int) error {
	if index < 0 || index >= len(s.catalog) {
		return &IndexOutOfRangeError{Index: index, Len: len(s.catalog)}
	}
	s.draft = DraftFrom(s.catalog[index], quantity)
	return nil
}

// Len returns the number of lines in the cart.
func (s *Store) Len() int {
	return len(s.items)
}

// Items returns a copy of the cart lines in display order.
func (s *Store) Items() []Line {
	return append([]Line(nil), s.items...)
}

// Catalog returns a copy of the catalog.
func (s *Store) Catalog() []catalog.Entry {
	return append([]catalog.Entry(nil), s.catalog...)
}

// View returns a snapshot of the whole store.
func (s *Store) View() View {
	return View{
		Items:   s.Items(),
		Catalog: s.Catalog(),
		Draft:   s.draft,
	}
}
