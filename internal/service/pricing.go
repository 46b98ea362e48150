package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type pricedLine struct {
	Product  *domain.Product
	Quantity int
	Subtotal decimal.Decimal
}

// mergeLines folds duplicate products into one line and orders the result by
// product id, the order in which row locks are taken
func mergeLines(lines []domain.LineItem) []domain.LineItem {
	quantities := make(map[uuid.UUID]int, len(lines))
	merged := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		if _, seen := quantities[line.ProductID]; !seen {
			merged = append(merged, domain.LineItem{ProductID: line.ProductID})
		}
		quantities[line.ProductID] += line.Quantity
	}
	for i := range merged {
		merged[i].Quantity = quantities[merged[i].ProductID]
	}

	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].ProductID[:], merged[j].ProductID[:]) < 0
	})
	return merged
}

func validateLines(lines []domain.LineItem) FieldErrors {
	errs := FieldErrors{}
	if len(lines) == 0 {
		errs.Add("items", "The items field is required.")
		return errs
	}
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			errs.Add(fmt.Sprintf("items.%d.product_id", i), "The product id field is required.")
		}
		if line.Quantity < 1 {
			errs.Add(fmt.Sprintf("items.%d.quantity", i), "The quantity must be at least 1.")
		}
	}
	return errs
}

// priceLines loads every product in the cart, checks stock and computes the
// total with the current catalog prices. With lock set the product rows stay
// locked until the surrounding transaction ends.
func priceLines(ctx context.Context, products repository.ProductRepository, lines []domain.LineItem, lock bool) ([]pricedLine, decimal.Decimal, error) {
	if errs := validateLines(lines); len(errs) > 0 {
		return nil, decimal.Zero, errs
	}

	firstIndex := make(map[uuid.UUID]int, len(lines))
	for i, line := range lines {
		if _, ok := firstIndex[line.ProductID]; !ok {
			firstIndex[line.ProductID] = i
		}
	}

	merged := mergeLines(lines)
	priced := make([]pricedLine, 0, len(merged))
	missing := FieldErrors{}

	for _, line := range merged {
		find := products.FindByID
		if lock {
			find = products.FindByIDForUpdate
		}

		product, err := find(ctx, line.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			missing.Add(fmt.Sprintf("items.%d.product_id", firstIndex[line.ProductID]), "The selected product is invalid.")
			continue
		}
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("failed to load product: %w", err)
		}

		priced = append(priced, pricedLine{
			Product:  product,
			Quantity: line.Quantity,
			Subtotal: product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		})
	}

	if len(missing) > 0 {
		return nil, decimal.Zero, missing
	}

	total := decimal.Zero
	for _, line := range priced {
		if !line.Product.InStock(line.Quantity) {
			return nil, decimal.Zero, &OutOfStockError{ProductName: line.Product.Name, Available: line.Product.Stock}
		}
		total = total.Add(line.Subtotal)
	}

	return priced, total, nil
}
