package main

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

// decodeEntries parses a JSON array of catalog entries. Prices may be JSON
// numbers or numeric strings and must pass catalog.CheckPrice, so nothing is
// rounded on the way into the database; names must be non-empty.
func decodeEntries(data []byte) ([]catalog.Entry, error) {
	if !jx.Valid(data) {
		return nil, errors.New("malformed JSON")
	}
	var entries []catalog.Entry
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var (
			e        catalog.Entry
			hasPrice bool
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				v, err := d.Str()
				if err != nil {
					return errors.Wrap(err, "name")
				}
				e.Name = v
			case "price":
				var raw string
				switch d.Next() {
				case jx.String:
					v, err := d.Str()
					if err != nil {
						return errors.Wrap(err, "price")
					}
					raw = v
				default:
					v, err := d.Num()
					if err != nil {
						return errors.Wrap(err, "price")
					}
					raw = v.String()
				}
				p, err := decimal.NewFromString(raw)
				if err != nil {
					return errors.Wrapf(err, "price %q", raw)
				}
				if err := catalog.CheckPrice(p); err != nil {
					return errors.Wrapf(err, "price %q", raw)
				}
				e.Price = p
				hasPrice = true
			default:
				return d.Skip()
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "entry %d", len(entries))
		}
		if e.Name == "" {
			return errors.Errorf("entry %d: name is required", len(entries))
		}
		if !hasPrice {
			return errors.Errorf("entry %d: price is required", len(entries))
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, catalog.ErrEmpty
	}
	return entries, nil
}
