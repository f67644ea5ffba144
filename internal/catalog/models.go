package catalog

import "time"

// Product prices are whole rupiah.
type Product struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       int64               `json:"price"`
	Stock       int                 `json:"stock"`
	Image       string              `json:"image"`
	Categories  []string            `json:"category"`
	Variants    map[string][]string `json:"variants,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

type CreateProductRequest struct {
	Name        string              `json:"name" validate:"required"`
	Description string              `json:"description"`
	Price       int64               `json:"price" validate:"gt=0"`
	Stock       int                 `json:"stock" validate:"gte=0"`
	Image       string              `json:"image"`
	Categories  []string            `json:"category" validate:"omitempty,dive,required"`
	Variants    map[string][]string `json:"variants" validate:"omitempty,dive,keys,required,endkeys,min=1,dive,required"`
}

// UpdateProductRequest is a partial update; nil fields are left alone.
type UpdateProductRequest struct {
	Name        *string              `json:"name" validate:"omitempty,min=1"`
	Description *string              `json:"description"`
	Price       *int64               `json:"price" validate:"omitempty,gt=0"`
	Stock       *int                 `json:"stock" validate:"omitempty,gte=0"`
	Image       *string              `json:"image"`
	Categories  *[]string            `json:"category"`
	Variants    *map[string][]string `json:"variants"`
}
