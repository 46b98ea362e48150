package transport

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload of product create and update
type ProductRequest struct {
	Name        string           `json:"name" validate:"required,max=255"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	CategoryID  string           `json:"category_id" validate:"required,uuid"`
	ImageURL    string           `json:"image_url" validate:"omitempty,url,max=2048"`
	IsActive    *bool            `json:"is_active"`
	IsFeatured  *bool            `json:"is_featured"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		CategoryID:  uuid.MustParse(req.CategoryID),
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
		IsFeatured:  req.IsFeatured,
	}
}

// CategoryRequest is the payload of category create and update
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"omitempty,url,max=2048"`
	IsActive    *bool  `json:"is_active"`
}

func (req CategoryRequest) input() service.CategoryInput {
	return service.CategoryInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
	}
}

// CatalogHandler serves products and categories
type CatalogHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers the public catalog reads and the admin-only writes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/categories", h.ListCategories)
	r.Get("/categories/{id}", h.GetCategory)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware, adminMiddleware)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{id}", h.UpdateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)
	})
}

// parseProductFilter reads the listing query string. Malformed values are
// reported per parameter.
func parseProductFilter(r *http.Request) (repository.ProductFilter, map[string][]string) {
	q := r.URL.Query()
	filter := repository.ProductFilter{
		ActiveOnly: true,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort_by"),
		SortOrder:  repository.SortOrder(strings.ToUpper(q.Get("sort_order"))),
	}
	errs := map[string][]string{}

	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs["category_id"] = []string{"The category id field must be a valid UUID."}
		} else {
			filter.CategoryID = &id
		}
	}
	if raw := q.Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			errs["featured"] = []string{"The featured field must be true or false."}
		} else {
			filter.Featured = &featured
		}
	}
	for name, dst := range map[string]*int{"page": &filter.Page, "page_size": &filter.PageSize} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs[name] = []string{"The " + strings.ReplaceAll(name, "_", " ") + " field must be at least 1."}
			continue
		}
		*dst = n
	}

	return filter, errs
}

// ListProducts returns a page of active products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, errs := parseProductFilter(r)
	if len(errs) > 0 {
		middleware.RespondWithValidationErrors(w, errs)
		return
	}

	page, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	middleware.RespondWithSuccess(w, http.StatusOK, "", page)
}

// GetProduct looks a product up by id or slug
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondCatalogError(w, err, "Failed to get product")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "", product)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), req.input())
	if err != nil {
		h.respondCatalogError(w, err, "Failed to create product")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusCreated, "Product created successfully", product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Product not found")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		h.respondCatalogError(w, err, "Failed to update product")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "Product updated successfully", product)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Product not found")
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "Failed to delete product")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "Product deleted successfully", nil)
}

// ListCategories returns active categories ordered by name
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context(), true)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "", categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondCatalogError(w, err, "Failed to get category")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "", category)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.input())
	if err != nil {
		h.respondCatalogError(w, err, "Failed to create category")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusCreated, "Category created successfully", category)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Category not found")
	if !ok {
		return
	}

	var req CategoryRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	category, err := h.catalog.UpdateCategory(r.Context(), id, req.input())
	if err != nil {
		h.respondCatalogError(w, err, "Failed to update category")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "Category updated successfully", category)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Category not found")
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		h.respondCatalogError(w, err, "Failed to delete category")
		return
	}
	middleware.RespondWithSuccess(w, http.StatusOK, "Category deleted successfully", nil)
}

func (h *CatalogHandler) respondCatalogError(w http.ResponseWriter, err error, fallback string) {
	if respondFieldErrors(w, err) {
		return
	}

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Category not found")
	case errors.Is(err, service.ErrCategoryExists):
		middleware.RespondWithValidationErrors(w, map[string][]string{
			"name": {"The name has already been taken."},
		})
	case errors.Is(err, service.ErrCategoryInUse):
		middleware.RespondWithError(w, http.StatusConflict, "Cannot delete category with products")
	case errors.Is(err, service.ErrProductInUse):
		middleware.RespondWithError(w, http.StatusConflict, "Cannot delete a product that has been ordered")
	default:
		h.logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
