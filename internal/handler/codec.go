package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/cartsvc"
	"github.com/xenking/shopping-cart/internal/domain/catalog"
)

// selection is the body of a draft/select request.
type selection struct {
	Index    int
	Quantity int
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already sent; a failed write means the client is gone.
	_, _ = w.Write(e.Bytes())
}

func writeState(w http.ResponseWriter, status int, st *cartsvc.State) {
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeState(e, st)
	})
}

func encodeState(e *jx.Encoder, st *cartsvc.State) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(st.SessionID) })
		e.Field("items", func(e *jx.Encoder) { encodeLines(e, st.Items) })
		e.Field("catalog", func(e *jx.Encoder) { encodeCatalog(e, st.Catalog) })
		e.Field("draft", func(e *jx.Encoder) { encodeDraft(e, st.Draft) })
	})
}

func encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.ArrStart()
	for _, l := range lines {
		e.Obj(func(e *jx.Encoder) {
			e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
			e.Field("price", func(e *jx.Encoder) { encodePrice(e, l.Price) })
		})
	}
	e.ArrEnd()
}

func encodeCatalog(e *jx.Encoder, entries []catalog.Entry) {
	e.ArrStart()
	for _, c := range entries {
		e.Obj(func(e *jx.Encoder) {
			e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
			e.Field("price", func(e *jx.Encoder) { encodePrice(e, c.Price) })
		})
	}
	e.ArrEnd()
}

// encodeDraft writes the blank draft as null so the picking UI clears.
func encodeDraft(e *jx.Encoder, d cart.Draft) {
	if d.IsZero() {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("name", func(e *jx.Encoder) { e.Str(d.Name) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(d.Quantity) })
		e.Field("price", func(e *jx.Encoder) { encodePrice(e, d.Price) })
	})
}

func encodePrice(e *jx.Encoder, p decimal.Decimal) {
	e.Num(jx.Num(p.String()))
}

// decodeDraft reads a draft object. Missing fields stay zero; the store
// takes drafts as-is.
func decodeDraft(d *jx.Decoder) (cart.Draft, error) {
	var out cart.Draft
	if d.Next() != jx.Object {
		return out, &badRequestError{msg: "draft must be a JSON object"}
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch key {
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			out.Name = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			out.Quantity = v
		case "price":
			v, err := decodePrice(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			out.Price = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return cart.Draft{}, &badRequestError{msg: "invalid draft", err: err}
	}
	return out, nil
}

// decodePrice accepts a JSON number or a numeric string within the catalog
// price bounds.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s", d.Next())
	}
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := catalog.CheckPrice(p); err != nil {
		return decimal.Decimal{}, err
	}
	return p, nil
}

// bodyDecoder returns a decoder over body, which must hold exactly one JSON
// value with nothing but whitespace after it.
func bodyDecoder(body []byte) (*jx.Decoder, error) {
	if !jx.Valid(body) {
		return nil, &badRequestError{msg: "malformed JSON body"}
	}
	return jx.DecodeBytes(body), nil
}

func decodeSelection(d *jx.Decoder) (selection, error) {
	var (
		out      selection
		hasIndex bool
	)
	if d.Next() != jx.Object {
		return out, &badRequestError{msg: "selection must be a JSON object"}
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "index":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "index")
			}
			out.Index = v
			hasIndex = true
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			out.Quantity = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return selection{}, &badRequestError{msg: "invalid selection", err: err}
	}
	if !hasIndex {
		return selection{}, &badRequestError{msg: "index required"}
	}
	return out, nil
}
