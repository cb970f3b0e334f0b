package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/camden-git/foodlens/nutrition"
)

const (
	SafetySafe   = "Safe"
	SafetyReview = "Review"
)

var ErrProductNotFound = errors.New("product not found")

// Store persists finalized products in insertion order. Get returns
// ErrProductNotFound for unknown ids.
type Store interface {
	Append(ctx context.Context, p nutrition.Product) (nutrition.Product, error)
	List(ctx context.Context) ([]nutrition.Product, error)
	Get(ctx context.Context, id uint) (nutrition.Product, error)
}

// SummaryRow is one line of the catalog table.
type SummaryRow struct {
	Name      string `json:"name"`
	Calories  string `json:"calories"`
	Protein   string `json:"protein"`
	Safety    string `json:"safety"`
	Allergens string `json:"allergens"`
}

// Catalog is the append-only list of finalized products.
type Catalog struct {
	store Store
}

func New(store Store) *Catalog {
	return &Catalog{store: store}
}

// Append adds p at the end. Names need not be unique.
func (c *Catalog) Append(ctx context.Context, p nutrition.Product) (nutrition.Product, error) {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if p.Allergens == nil {
		p.Allergens = []string{}
	}
	saved, err := c.store.Append(ctx, p)
	if err != nil {
		return nutrition.Product{}, fmt.Errorf("failed to append product '%s' to catalog: %w", p.Name, err)
	}
	return saved, nil
}

func (c *Catalog) List(ctx context.Context) ([]nutrition.Product, error) {
	products, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	if products == nil {
		products = []nutrition.Product{}
	}
	return products, nil
}

func (c *Catalog) Get(ctx context.Context, id uint) (nutrition.Product, error) {
	p, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nutrition.Product{}, err
		}
		return nutrition.Product{}, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (c *Catalog) Summarize(ctx context.Context) ([]SummaryRow, error) {
	products, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(products), nil
}

// Summarize builds one row per product, in order.
func Summarize(products []nutrition.Product) []SummaryRow {
	rows := make([]SummaryRow, 0, len(products))
	for _, p := range products {
		safety := SafetyReview
		if p.IsSafe {
			safety = SafetySafe
		}
		allergens := strings.Join(p.Allergens, ", ")
		if allergens == "" {
			allergens = "None"
		}
		rows = append(rows, SummaryRow{
			Name:      p.Name,
			Calories:  amountOrZero(p, "Calories"),
			Protein:   amountOrZero(p, "Protein"),
			Safety:    safety,
			Allergens: allergens,
		})
	}
	return rows
}

func amountOrZero(p nutrition.Product, name string) string {
	nv, ok := p.Nutrient(name)
	if !ok || nv.Amount == "" {
		return "0"
	}
	return nv.Amount
}

// MemoryStore keeps products in a slice for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	products []nutrition.Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(_ context.Context, p nutrition.Product) (nutrition.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uint(len(m.products) + 1)
	m.products = append(m.products, p)
	return p, nil
}

func (m *MemoryStore) List(_ context.Context) ([]nutrition.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]nutrition.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id uint) (nutrition.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == 0 || int(id) > len(m.products) {
		return nutrition.Product{}, ErrProductNotFound
	}
	return m.products[id-1], nil
}
