package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMissingProductID = errors.New("cart line has no product id")

// WireLine is a cart line as it arrives from device storage or from the
// backend, before normalisation. Fields stay raw so strings, numbers and
// nulls are all accepted.
type WireLine struct {
	CartID    json.RawMessage `json:"cartid"`
	ID        json.RawMessage `json:"id"`
	ProductID json.RawMessage `json:"productid"`
	VariantID json.RawMessage `json:"variantid"`
	VID       json.RawMessage `json:"vid"`
	Name      json.RawMessage `json:"name"`
	Image     json.RawMessage `json:"image"`
	Price     json.RawMessage `json:"price"`
	Qty       json.RawMessage `json:"qty"`
}

// Normalize maps a wire line onto the canonical CartLine. productid wins over
// id and variantid over vid. With serverLine set, cartid becomes the
// ServerLineID; id stands in for cartid only when productid carried the
// product.
func (w WireLine) Normalize(serverLine bool) (CartLine, error) {
	var line CartLine

	pid, hasPID := scalarString(w.ProductID)
	id, hasID := scalarString(w.ID)
	switch {
	case hasPID && pid != "":
		line.ProductID = pid
	case hasID && id != "":
		line.ProductID = id
	default:
		return CartLine{}, ErrMissingProductID
	}

	if v, ok := scalarString(w.VariantID); ok {
		line.VariantID = v
	} else if v, ok := scalarString(w.VID); ok {
		line.VariantID = v
	}

	line.Name, _ = scalarString(w.Name)
	line.Image, _ = scalarString(w.Image)
	line.UnitPrice = scalarPrice(w.Price)
	line.Quantity = scalarQty(w.Qty)

	if serverLine {
		if c, ok := scalarString(w.CartID); ok && c != "" {
			line.ServerLineID = c
		} else if hasPID && pid != "" && hasID && id != "" {
			line.ServerLineID = id
		}
	}
	return line, nil
}

// scalarString reads a JSON string, number or bool as text. Absent and null
// report false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	if raw[0] == '{' || raw[0] == '[' {
		return "", false
	}
	return string(raw), true
}

func scalarQty(raw json.RawMessage) int {
	s, ok := scalarString(raw)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 1
		}
		n = int(f)
	}
	if n < 1 {
		return 1
	}
	return n
}

func scalarPrice(raw json.RawMessage) decimal.Decimal {
	s, ok := scalarString(raw)
	if !ok || s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
