package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput holds the editable product fields
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  uuid.UUID
	ImageURL    string
	IsActive    *bool
	IsFeatured  *bool
}

// CategoryInput holds the editable category fields
type CategoryInput struct {
	Name        string
	Description string
	ImageURL    string
	IsActive    *bool
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	LastPage int               `json:"last_page"`
}

// CatalogService defines the product and category business logic
type CatalogService interface {
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error)
	// GetProduct looks a product up by UUID or by slug
	GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context, activeOnly bool) ([]*domain.Category, error)
	// GetCategory looks a category up by UUID or by slug
	GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	// Seed fills an empty catalog with the demo categories and products. It
	// reports whether anything was inserted.
	Seed(ctx context.Context) (bool, error)
}

type catalogService struct {
	store    repository.Store
	tx       database.Transactor
	newStore repository.StoreFactory
	logger   *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(store repository.Store, tx database.Transactor, newStore repository.StoreFactory, logger *zap.Logger) CatalogService {
	return &catalogService{
		store:    store,
		tx:       tx,
		newStore: newStore,
		logger:   logger,
	}
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	products, total, err := s.store.Products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		LastPage: lastPage,
	}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.store.Products.FindByID(ctx, id)
	} else {
		product, err = s.store.Products.FindBySlug(ctx, idOrSlug)
	}

	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	slug, err := s.uniqueProductSlug(ctx, input.Name, uuid.Nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
		Price:       input.Price.Round(2),
		CategoryID:  input.CategoryID,
		ImageURL:    input.ImageURL,
		Stock:       input.Stock,
		IsActive:    boolOr(input.IsActive, true),
		IsFeatured:  boolOr(input.IsFeatured, false),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("slug", slug))
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product, err := s.GetProduct(ctx, id.String())
	if err != nil {
		return nil, err
	}

	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	if input.Name != product.Name {
		slug, err := s.uniqueProductSlug(ctx, input.Name, product.ID)
		if err != nil {
			return nil, err
		}
		product.Slug = slug
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price.Round(2)
	product.CategoryID = input.CategoryID
	product.ImageURL = input.ImageURL
	product.Stock = input.Stock
	product.IsActive = boolOr(input.IsActive, product.IsActive)
	product.IsFeatured = boolOr(input.IsFeatured, product.IsFeatured)
	product.UpdatedAt = time.Now().UTC()

	if err := s.store.Products.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Products.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrProductNotFound):
			return ErrProductNotFound
		case errors.Is(err, repository.ErrProductStillReferred):
			return ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	categories, err := s.store.Categories.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, idOrSlug string) (*domain.Category, error) {
	var (
		category *domain.Category
		err      error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		category, err = s.store.Categories.FindByID(ctx, id)
	} else {
		category, err = s.store.Categories.FindBySlug(ctx, idOrSlug)
	}

	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Slug:        Slugify(input.Name),
		Description: input.Description,
		ImageURL:    input.ImageURL,
		IsActive:    boolOr(input.IsActive, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error) {
	category, err := s.GetCategory(ctx, id.String())
	if err != nil {
		return nil, err
	}

	category.Name = input.Name
	category.Slug = Slugify(input.Name)
	category.Description = input.Description
	category.ImageURL = input.ImageURL
	category.IsActive = boolOr(input.IsActive, category.IsActive)
	category.UpdatedAt = time.Now().UTC()

	if err := s.store.Categories.Update(ctx, category); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return nil, ErrCategoryNotFound
		case errors.Is(err, repository.ErrCategoryAlreadyExists):
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	return category, nil
}

// DeleteCategory removes a category that no product uses
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	count, err := s.store.Products.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	if err := s.store.Categories.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			return ErrCategoryNotFound
		case errors.Is(err, repository.ErrCategoryInUse):
			return ErrCategoryInUse
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *catalogService) checkCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			errs := FieldErrors{}
			errs.Add("category_id", "The selected category id is invalid.")
			return errs
		}
		return fmt.Errorf("failed to check category: %w", err)
	}
	return nil
}

// uniqueProductSlug derives a slug from name, adding -2, -3 … when another
// product already holds it
func (s *catalogService) uniqueProductSlug(ctx context.Context, name string, self uuid.UUID) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "product"
	}

	for n := 1; n <= 50; n++ {
		candidate := base
		if n > 1 {
			candidate = fmt.Sprintf("%s-%d", base, n)
		}

		existing, err := s.store.Products.FindBySlug(ctx, candidate)
		if errors.Is(err, repository.ErrProductNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if existing.ID == self {
			return candidate, nil
		}
	}

	return base + "-" + uuid.NewString()[:8], nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
