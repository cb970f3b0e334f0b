package repository

import (
	"context"

	"github.com/camden-git/foodlens/models"
	"github.com/camden-git/foodlens/nutrition"
)

// ProductRepositoryInterface defines the methods for product data operations
type ProductRepositoryInterface interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uint) (*models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)

	// catalog.Store
	Append(ctx context.Context, p nutrition.Product) (nutrition.Product, error)
	List(ctx context.Context) ([]nutrition.Product, error)
	Get(ctx context.Context, id uint) (nutrition.Product, error)
}
