package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const unsplash = "https://images.unsplash.com/"
const imageParams = "?ixlib=rb-4.0.3&ixid=M3wxMjA3fDB8MHxwaG90by1wYWdlfHx8fGVufDB8fHx8fA%3D%3D&auto=format&fit=crop&w=1000&q=80"

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
	image       string
	featured    bool
}

type seedCategory struct {
	name        string
	description string
	image       string
	products    []seedProduct
}

var seedCatalog = []seedCategory{
	{
		name:        "Electronics",
		description: "Electronic devices and gadgets for everyday use",
		image:       "photo-1498049794561-7780e7231661",
		products: []seedProduct{
			{"Smartphone X", "Latest smartphone with advanced features and high-resolution camera", "799.99", 50, "photo-1598327105666-5b89351aff97", true},
			{"Laptop Pro", "Powerful laptop for professionals with high performance and long battery life", "1299.99", 30, "photo-1496181133206-80ce9b88a853", true},
			{"Wireless Earbuds", "High-quality wireless earbuds with noise cancellation", "149.99", 100, "photo-1590658268037-6bf12165a8df", false},
		},
	},
	{
		name:        "Clothing",
		description: "Fashion items for men, women, and children",
		image:       "photo-1567401893414-76b7b1e5a7a5",
		products: []seedProduct{
			{"Men's T-Shirt", "Comfortable cotton t-shirt for men", "24.99", 200, "photo-1521572163474-6864f9cf17ab", false},
			{"Modest Dress", "Elegant and modest dress suitable for all occasions", "59.99", 150, "photo-1729200688422-e4ffe8ac73a1", true},
			{"Kids' Jacket", "Warm and comfortable jacket for kids", "39.99", 100, "photo-1522771930-78848d9293e8", false},
		},
	},
	{
		name:        "Home & Kitchen",
		description: "Everything you need for your home and kitchen",
		image:       "photo-1556911220-bda9f7f7597b",
		products: []seedProduct{
			{"Coffee Maker", "Automatic coffee maker for your morning coffee", "89.99", 75, "photo-1570486916434-a8b36c5e9c1c", true},
			{"Blender", "High-speed blender for smoothies and more", "49.99", 100, "photo-1570222094114-d054a817e56b", false},
			{"Bedding Set", "Comfortable bedding set for a good night's sleep", "79.99", 50, "photo-1522771739844-6a9f6d5f14af", false},
		},
	},
	{
		name:        "Books",
		description: "Books of all genres for all ages",
		image:       "photo-1495446815901-a7297e633e8d",
		products: []seedProduct{
			{"Fiction Novel", "Bestselling fiction novel that will keep you engaged", "14.99", 200, "photo-1544947950-fa07a98d237f", true},
			{"Cookbook", "Collection of delicious recipes for all occasions", "24.99", 150, "photo-1589998059171-988d887df646", false},
			{"Self-Help Book", "Guide to personal development and growth", "19.99", 100, "photo-1544716278-ca5e3f4abd8c", false},
		},
	},
	{
		name:        "Sports & Outdoors",
		description: "Equipment and gear for sports and outdoor activities",
		image:       "photo-1517649763962-0c623066013b",
		products: []seedProduct{
			{"Yoga Mat", "Non-slip yoga mat for your workout", "29.99", 100, "photo-1592432678016-e910b452f9a2", false},
			{"Tennis Racket", "Professional tennis racket for players of all levels", "89.99", 50, "photo-1617083934551-ac1f1d1aabc4", true},
			{"Camping Tent", "Spacious tent for your camping adventures", "129.99", 30, "photo-1504280390367-361c6d9f38f4", false},
		},
	},
}

func (s *catalogService) Seed(ctx context.Context) (bool, error) {
	existing, err := s.store.Categories.List(ctx, false)
	if err != nil {
		return false, fmt.Errorf("failed to check catalog: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("Catalog already populated, skipping seed", zap.Int("categories", len(existing)))
		return false, nil
	}

	products := 0
	err = s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		store := s.newStore(q)
		now := time.Now().UTC()

		for _, c := range seedCatalog {
			category := &domain.Category{
				ID:          uuid.New(),
				Name:        c.name,
				Slug:        Slugify(c.name),
				Description: c.description,
				ImageURL:    unsplash + c.image + imageParams,
				IsActive:    true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := store.Categories.Create(ctx, category); err != nil {
				return fmt.Errorf("seed category %q: %w", c.name, err)
			}

			for _, p := range c.products {
				product := &domain.Product{
					ID:          uuid.New(),
					Name:        p.name,
					Slug:        Slugify(p.name),
					Description: p.description,
					Price:       decimal.RequireFromString(p.price),
					CategoryID:  category.ID,
					ImageURL:    unsplash + p.image + imageParams,
					Stock:       p.stock,
					IsActive:    true,
					IsFeatured:  p.featured,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := store.Products.Create(ctx, product); err != nil {
					return fmt.Errorf("seed product %q: %w", p.name, err)
				}
				products++
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Info("Catalog seeded",
		zap.Int("categories", len(seedCatalog)),
		zap.Int("products", products),
	)
	return true, nil
}
