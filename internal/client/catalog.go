package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// ProductQuery filters the public product listing. Zero values are omitted.
type ProductQuery struct {
	CategoryID *uuid.UUID
	Featured   *bool
	Search     string
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.CategoryID != nil {
		v.Set("category_id", q.CategoryID.String())
	}
	if q.Featured != nil {
		v.Set("featured", strconv.FormatBool(*q.Featured))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sort_by", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sort_order", q.SortOrder)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// ProductPage is one page of the product listing
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	LastPage int              `json:"last_page"`
}

func (c *Client) Products(ctx context.Context, query ProductQuery) (*ProductPage, error) {
	var page ProductPage
	if err := c.do(ctx, http.MethodGet, "/products", query.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Product looks a product up by id or slug
func (c *Client) Product(ctx context.Context, idOrSlug string) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(idOrSlug), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
