package cartapi

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errNoRows = errors.New("no rows affected")

type GormRepo struct {
	DB *gorm.DB
}

// GetCart lists the user's lines joined with their catalog data, oldest first.
func (r *GormRepo) GetCart(ctx context.Context, userID string) ([]LineDTO, error) {
	var items []CartItem
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []LineDTO{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]LineDTO, 0, len(items))
	for _, it := range items {
		p := byID[it.ProductID]
		out = append(out, LineDTO{
			CartID:    it.ID.String(),
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      p.Name,
			Image:     p.Image,
			Price:     p.Price,
			Qty:       it.Quantity,
		})
	}
	return out, nil
}

// AdjustQuantity adds delta to the line, never going below 1. A missing line
// is created for a positive delta; for a negative one gorm.ErrRecordNotFound
// is returned.
func (r *GormRepo) AdjustQuantity(ctx context.Context, userID, productID, variantID string, delta int) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := adjust(tx, userID, productID, variantID, delta)
		if !errors.Is(err, errNoRows) {
			return err
		}
		if delta < 0 {
			return gorm.ErrRecordNotFound
		}

		item := CartItem{UserID: userID, ProductID: productID, VariantID: variantID, Quantity: delta}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		// created concurrently by another request
		return adjust(tx, userID, productID, variantID, delta)
	})
}

func adjust(tx *gorm.DB, userID, productID, variantID string, delta int) error {
	res := tx.Model(&CartItem{}).
		Where("user_id = ? AND product_id = ? AND variant_id = ?", userID, productID, variantID).
		Update("quantity", gorm.Expr("CASE WHEN quantity + ? < 1 THEN 1 ELSE quantity + ? END", delta, delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errNoRows
	}
	return nil
}

// RemoveLine deletes the line whatever its quantity.
func (r *GormRepo) RemoveLine(ctx context.Context, userID string, cartID uuid.UUID, variantID string) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND variant_id = ?", cartID, userID, variantID).
		Delete(&CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) UpsertProduct(ctx context.Context, p *Product) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
}
