package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/GuiDuarte07/korp-teste-emissao-nf/pkg/result"
)

const (
	MaxCodeLen        = 50
	MaxDescriptionLen = 150
)

type Product struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Stock       int       `json:"stock"`
	// Reserved is the quantity held by pending reservations. It is computed,
	// never stored.
	Reserved  int       `json:"reservedStock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p Product) Available() int {
	return p.Stock - p.Reserved
}

func NewProduct(code, description string, stock int, now time.Time) (Product, error) {
	code = strings.TrimSpace(code)
	if err := ValidateProduct(code, description, stock); err != nil {
		return Product{}, err
	}
	return Product{
		ID:          uuid.New(),
		Code:        code,
		Description: description,
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func ValidateProduct(code, description string, stock int) error {
	switch {
	case code == "":
		return result.New(result.ValidationError, "product code is required")
	case utf8.RuneCountInString(code) > MaxCodeLen:
		return result.New(result.ValidationError, "product code must be at most %d characters", MaxCodeLen)
	case utf8.RuneCountInString(description) > MaxDescriptionLen:
		return result.New(result.ValidationError, "product description must be at most %d characters", MaxDescriptionLen)
	case stock < 0:
		return result.New(result.ValidationError, "stock must not be negative")
	}
	return nil
}

// ProductPatch carries the optional fields of an update.
type ProductPatch struct {
	Code        *string `json:"code,omitempty"`
	Description *string `json:"description,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
}

// Apply validates the patched product against its pending reservations.
func (p *Product) Apply(patch ProductPatch, now time.Time) error {
	next := *p
	if patch.Code != nil {
		next.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Stock != nil {
		next.Stock = *patch.Stock
	}
	if err := ValidateProduct(next.Code, next.Description, next.Stock); err != nil {
		return err
	}
	if patch.Stock != nil && next.Stock < p.Reserved {
		return result.New(result.ValidationError,
			"stock %d is below the %d units held by pending reservations", next.Stock, p.Reserved)
	}
	next.UpdatedAt = now
	*p = next
	return nil
}
