package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidCredentials      = errors.New("invalid login credentials")
	ErrEmailNotVerified        = errors.New("email not verified")
	ErrEmailAlreadyVerified    = errors.New("email already verified")
	ErrInvalidVerificationLink = errors.New("invalid verification link")
	ErrInvalidToken            = errors.New("invalid token")
	ErrUserNotFound            = errors.New("user not found")
	ErrEmailTaken              = errors.New("the email has already been taken")

	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrCategoryInUse    = errors.New("category still has products")
	ErrProductInUse     = errors.New("product has been ordered")

	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderForbidden  = errors.New("order belongs to another user")
	ErrOrderNotPending = errors.New("only pending orders can be canceled")

	ErrPaymentFailed = errors.New("payment failed")

	// ErrOutOfStock matches every *OutOfStockError with errors.Is
	ErrOutOfStock = errors.New("out of stock")
)

// OutOfStockError reports a cart line that asks for more than the current stock
type OutOfStockError struct {
	ProductName string
	Available   int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Product '%s' is out of stock. Available quantity: %d", e.ProductName, e.Available)
}

func (e *OutOfStockError) Is(target error) bool {
	return target == ErrOutOfStock
}

// FieldErrors collects validation messages per input field
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(f[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (f FieldErrors) errOrNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
