package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/camden-git/foodlens/catalog"
	"github.com/camden-git/foodlens/models"
	"github.com/camden-git/foodlens/nutrition"
	"gorm.io/gorm"
)

// ProductRepository handles database operations for Product entities
type ProductRepository struct {
	DB *gorm.DB
}

var (
	_ ProductRepositoryInterface = (*ProductRepository)(nil)
	_ catalog.Store              = (*ProductRepository)(nil)
)

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{DB: db}
}

// Create inserts a product with its nutrition rows and allergens in one transaction
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(product).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create product '%s': %w", product.Name, err)
	}
	return nil
}

func preloadChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("NutritionalValues", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Allergens", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

// FindByID returns one product with its children
func (r *ProductRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := preloadChildren(r.DB.WithContext(ctx)).First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product %d: %w", id, err)
	}
	return &product, nil
}

// ListAll returns every product in insertion order with its children
func (r *ProductRepository) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := preloadChildren(r.DB.WithContext(ctx)).
		Order("id ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Append(ctx context.Context, p nutrition.Product) (nutrition.Product, error) {
	row := toModel(p)
	if err := r.Create(ctx, &row); err != nil {
		return nutrition.Product{}, err
	}
	return fromModel(row), nil
}

func (r *ProductRepository) List(ctx context.Context) ([]nutrition.Product, error) {
	rows, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]nutrition.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (r *ProductRepository) Get(ctx context.Context, id uint) (nutrition.Product, error) {
	row, err := r.FindByID(ctx, id)
	if err != nil {
		return nutrition.Product{}, err
	}
	return fromModel(*row), nil
}

func toModel(p nutrition.Product) models.Product {
	row := models.Product{
		Name:      p.Name,
		ImageURL:  p.ImageURL,
		IsSafe:    p.IsSafe,
		Source:    p.Source,
		CreatedAt: p.CreatedAt,
	}
	if row.Source == "" {
		row.Source = nutrition.SourceManual
	}
	for i, nv := range p.NutritionalValues {
		var warning *string
		if nv.WarningMessage != "" {
			w := nv.WarningMessage
			warning = &w
		}
		row.NutritionalValues = append(row.NutritionalValues, models.NutritionalValue{
			Position:       i,
			Name:           nv.Name,
			Amount:         nv.Amount,
			Unit:           nv.Unit,
			IsRestricted:   nv.IsRestricted,
			WarningMessage: warning,
		})
	}
	for i, a := range p.Allergens {
		row.Allergens = append(row.Allergens, models.ProductAllergen{Position: i, Name: a})
	}
	return row
}

func fromModel(row models.Product) nutrition.Product {
	p := nutrition.Product{
		ID:                row.ID,
		Name:              row.Name,
		ImageURL:          row.ImageURL,
		IsSafe:            row.IsSafe,
		Source:            row.Source,
		CreatedAt:         row.CreatedAt,
		NutritionalValues: make([]nutrition.NutritionalValue, 0, len(row.NutritionalValues)),
		Allergens:         make([]string, 0, len(row.Allergens)),
	}
	for _, nv := range row.NutritionalValues {
		v := nutrition.NutritionalValue{
			Name:         nv.Name,
			Amount:       nv.Amount,
			Unit:         nv.Unit,
			IsRestricted: nv.IsRestricted,
		}
		if nv.WarningMessage != nil {
			v.WarningMessage = *nv.WarningMessage
		}
		p.NutritionalValues = append(p.NutritionalValues, v)
	}
	for _, a := range row.Allergens {
		p.Allergens = append(p.Allergens, a.Name)
	}
	return p
}
