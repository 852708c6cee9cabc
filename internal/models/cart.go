package models

import (
	"github.com/shopspring/decimal"
)

// CartLine is one row of the cart. ServerLineID is empty for guest-only lines.
type CartLine struct {
	ProductID    string          `json:"product_id"`
	VariantID    string          `json:"variant_id"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	ServerLineID string          `json:"server_line_id,omitempty"`
}

// Key identifies a line inside a snapshot. An empty VariantID means "no variant".
type Key struct {
	ProductID string
	VariantID string
}

func (k Key) String() string {
	return k.ProductID + "::" + k.VariantID
}

func (l CartLine) Key() Key {
	return Key{ProductID: l.ProductID, VariantID: l.VariantID}
}

// Snapshot is the full cart as observed by readers.
type Snapshot struct {
	Lines         []CartLine `json:"lines"`
	TotalQuantity int        `json:"total_quantity"`
}

// NewSnapshot copies lines and derives the total from them.
func NewSnapshot(lines []CartLine) Snapshot {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return Snapshot{Lines: out, TotalQuantity: TotalQuantity(out)}
}

func TotalQuantity(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// Find returns the index of the line with key k, or -1.
func Find(lines []CartLine, k Key) int {
	for i := range lines {
		if lines[i].Key() == k {
			return i
		}
	}
	return -1
}

// Dedupe merges lines sharing a key, summing quantities. The first occurrence
// keeps its position; empty metadata on it is filled from later duplicates.
func Dedupe(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[Key]int, len(lines))
	for _, l := range lines {
		i, ok := index[l.Key()]
		if !ok {
			index[l.Key()] = len(out)
			out = append(out, l)
			continue
		}
		prev := &out[i]
		prev.Quantity += l.Quantity
		if prev.Name == "" {
			prev.Name = l.Name
		}
		if prev.Image == "" {
			prev.Image = l.Image
		}
		if prev.UnitPrice.IsZero() {
			prev.UnitPrice = l.UnitPrice
		}
		if prev.ServerLineID == "" {
			prev.ServerLineID = l.ServerLineID
		}
	}
	return out
}
