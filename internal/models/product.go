package models

import (
	"strings"
	"time"
)

// ExtractedProduct is what the extraction pipeline returns for a product page.
// It is never persisted directly; the cart stores a Product built from it.
type ExtractedProduct struct {
	Title        string `json:"title"`
	Price        string `json:"price"`
	ImageURL     string `json:"imageUrl,omitempty"`
	StoreDomain  string `json:"storeDomain"`
	Color        string `json:"color,omitempty"`
	Size         string `json:"size,omitempty"`
	Availability string `json:"availability,omitempty"`
}

// Complete reports whether both required fields are present.
func (p *ExtractedProduct) Complete() bool {
	return p != nil && strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Price) != ""
}

type Product struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	Title        string    `json:"title"`
	Price        string    `json:"price"`
	OriginalURL  string    `json:"originalUrl"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	StoreDomain  string    `json:"storeDomain"`
	Color        string    `json:"color,omitempty"`
	Size         string    `json:"size,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Quantity     int       `json:"quantity"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProductUpdate carries a partial update; nil fields are left untouched.
type ProductUpdate struct {
	Title        *string `json:"title,omitempty"`
	Price        *string `json:"price,omitempty"`
	ImageURL     *string `json:"imageUrl,omitempty"`
	Color        *string `json:"color,omitempty"`
	Size         *string `json:"size,omitempty"`
	Availability *string `json:"availability,omitempty"`
	Quantity     *int    `json:"quantity,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

// NewProduct builds a cart product from an extraction. Price must already be
// a plain decimal string.
func NewProduct(userID, originalURL string, ext ExtractedProduct, price string) *Product {
	now := time.Now().UTC()
	return &Product{
		UserID:       userID,
		Title:        ext.Title,
		Price:        price,
		OriginalURL:  originalURL,
		ImageURL:     ext.ImageURL,
		StoreDomain:  ext.StoreDomain,
		Color:        ext.Color,
		Size:         ext.Size,
		Availability: ext.Availability,
		Quantity:     1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply copies the non-nil fields of u onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Color != nil {
		p.Color = *u.Color
	}
	if u.Size != nil {
		p.Size = *u.Size
	}
	if u.Availability != nil {
		p.Availability = *u.Availability
	}
	if u.Quantity != nil {
		p.Quantity = *u.Quantity
	}
	if u.Notes != nil {
		p.Notes = *u.Notes
	}
}

func (p *Product) Validate() []string {
	var errors []string

	if p.UserID == "" {
		errors = append(errors, "user id is required")
	}

	if strings.TrimSpace(p.Title) == "" {
		errors = append(errors, "title is required")
	}

	if strings.TrimSpace(p.Price) == "" {
		errors = append(errors, "price is required")
	}

	if p.OriginalURL == "" {
		errors = append(errors, "original url is required")
	}

	if p.Quantity < 1 {
		errors = append(errors, "quantity must be at least 1")
	}

	return errors
}
