package models

// Product represents a finalized catalog entry using GORM.
// It corresponds to the 'products' table.
type Product struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null" json:"name"` // not unique, duplicates are allowed
	ImageURL  string `gorm:"not null" json:"image_url"`
	IsSafe    bool   `gorm:"not null;index" json:"is_safe"`
	Source    string `gorm:"not null;default:manual" json:"source"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Unix timestamp

	// Relationships
	NutritionalValues []NutritionalValue `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"nutritional_values"`
	Allergens         []ProductAllergen  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"allergens"`
}

// TableName explicitly sets the table name for GORM.
func (Product) TableName() string {
	return "products"
}

// NutritionalValue is one row of a product's nutrition facts.
// Position keeps the evaluator's output order.
type NutritionalValue struct {
	ID             uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	ProductID      uint    `gorm:"not null;index" json:"-"`
	Position       int     `gorm:"not null" json:"-"`
	Name           string  `gorm:"not null" json:"name"`
	Amount         string  `gorm:"not null" json:"amount"`
	Unit           string  `gorm:"not null" json:"unit"`
	IsRestricted   bool    `gorm:"not null;default:false" json:"is_restricted"`
	WarningMessage *string `gorm:"" json:"warning_message,omitempty"` // Nullable
}

func (NutritionalValue) TableName() string {
	return "nutritional_values"
}

type ProductAllergen struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ProductID uint   `gorm:"not null;index" json:"-"`
	Position  int    `gorm:"not null" json:"-"`
	Name      string `gorm:"not null" json:"name"`
}

func (ProductAllergen) TableName() string {
	return "product_allergens"
}
