package cartapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog entry that gives cart lines their display data.
type Product struct {
	ID    string          `gorm:"primaryKey"        json:"id"`
	Name  string          `gorm:"not null"          json:"name"`
	Image string          `json:"image"`
	Price decimal.Decimal `gorm:"type:numeric"      json:"price"`
}

func (Product) TableName() string {
	return "products"
}

// CartItem is one server-side cart line.
type CartItem struct {
	ID        uuid.UUID `gorm:"primaryKey"`
	UserID    string    `gorm:"uniqueIndex:idx_user_product_variant;not null"`
	ProductID string    `gorm:"uniqueIndex:idx_user_product_variant;not null"`
	VariantID string    `gorm:"uniqueIndex:idx_user_product_variant;not null;default:''"`
	Quantity  int       `gorm:"not null;default:1;check:quantity>0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

// LineDTO is the wire shape of a cart line.
type LineDTO struct {
	CartID    string          `json:"cartid"`
	ProductID string          `json:"productid"`
	VariantID string          `json:"variantid"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// AutoMigrate creates the tables the service needs.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Product{}, &CartItem{})
}
