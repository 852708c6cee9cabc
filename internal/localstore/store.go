package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/perfume_shop/internal/logging"
	"github.com/Skotchmaster/perfume_shop/internal/models"
)

// RecordName is the single named record holding the guest cart.
const RecordName = "guestCart"

var ErrStorage = errors.New("local cart storage")

// Store keeps the guest cart on the device. Read never fails: anything it
// cannot understand is treated as an empty cart.
type Store interface {
	Read(ctx context.Context) []models.CartLine
	Write(ctx context.Context, lines []models.CartLine) error
	Clear(ctx context.Context) error
}

// Open picks a backend by kind: "file", "sqlite" or "memory".
func Open(kind, path string, log *slog.Logger) (Store, error) {
	if log == nil {
		log = logging.Discard()
	}
	switch strings.ToLower(kind) {
	case "", "file":
		return NewFileStore(path, log), nil
	case "sqlite":
		return NewSQLiteStore(path, log)
	case "memory":
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q: %w", kind, ErrStorage)
	}
}

type record struct {
	ID        string      `json:"id"`
	VariantID string      `json:"variantid"`
	Name      string      `json:"name"`
	Image     string      `json:"image"`
	Price     json.Number `json:"price"`
	Qty       int         `json:"qty"`
}

// decodeRecord turns whatever is persisted into canonical, de-duplicated lines.
func decodeRecord(ctx context.Context, log *slog.Logger, data []byte) []models.CartLine {
	l := logging.FromContext(ctx, log)
	if len(data) == 0 {
		return []models.CartLine{}
	}

	var raw []models.WireLine
	if err := json.Unmarshal(data, &raw); err != nil {
		l.Warn("guest_cart_malformed", "error", err)
		return []models.CartLine{}
	}

	lines := make([]models.CartLine, 0, len(raw))
	for i, w := range raw {
		line, err := w.Normalize(false)
		if err != nil {
			l.Warn("guest_cart_line_dropped", "index", i, "error", err)
			continue
		}
		lines = append(lines, line)
	}
	return models.Dedupe(lines)
}

// encodeRecord writes the canonical shape only, never the legacy aliases.
func encodeRecord(lines []models.CartLine) ([]byte, error) {
	out := make([]record, 0, len(lines))
	for _, line := range models.Dedupe(lines) {
		if line.ProductID == "" {
			continue
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		price := line.UnitPrice
		if price.IsNegative() {
			price = decimal.Zero
		}
		out = append(out, record{
			ID:        line.ProductID,
			VariantID: line.VariantID,
			Name:      line.Name,
			Image:     line.Image,
			Price:     json.Number(price.String()),
			Qty:       qty,
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode guest cart: %w", err)
	}
	return data, nil
}
