package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionResultValid(t *testing.T) {
	complete := &ExtractedProduct{Title: "Linen Shirt", Price: "1,499", StoreDomain: "Myntra"}

	tests := []struct {
		name   string
		result ExtractionResult
		want   bool
	}{
		{name: "success", result: Succeeded(complete), want: true},
		{name: "failure", result: Failed("BLOCKED", "Access blocked", "https://www.myntra.com/x"), want: true},
		{name: "failure with empty message gets a default", result: Failed("NETWORK_ERROR", "", ""), want: true},
		{name: "success without price", result: Succeeded(&ExtractedProduct{Title: "Linen Shirt"}), want: false},
		{name: "success without product", result: ExtractionResult{Success: true}, want: false},
		{name: "failure carrying a product", result: ExtractionResult{Product: complete, Error: &Error{Message: "x"}}, want: false},
		{name: "failure without error", result: ExtractionResult{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Valid())
		})
	}
}

func TestFailedDefaultMessage(t *testing.T) {
	r := Failed("UNKNOWN_EXTRACTION_ERROR", "", "https://www.ebay.com/itm/1")
	assert.Equal(t, "extraction failed", r.Error.Message)
	assert.False(t, r.Success)
	assert.Nil(t, r.Product)
}

func TestNewProduct(t *testing.T) {
	ext := ExtractedProduct{
		Title:        "Trail Runner",
		Price:        "₹2,074.17",
		ImageURL:     "https://m.media-amazon.com/images/I/x.jpg",
		StoreDomain:  "Amazon US",
		Color:        "Blue",
		Size:         "10",
		Availability: "In Stock",
	}

	p := NewProduct("user-1", "https://www.amazon.com/dp/B0TEST", ext, "2074.17")

	assert.Equal(t, "2074.17", p.Price)
	assert.Equal(t, 1, p.Quantity)
	assert.Equal(t, "Blue", p.Color)
	assert.Equal(t, "In Stock", p.Availability)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Empty(t, p.Validate())
}

func TestProductValidate(t *testing.T) {
	p := &Product{Title: "  ", Quantity: 0}

	assert.Equal(t, []string{
		"user id is required",
		"title is required",
		"price is required",
		"original url is required",
		"quantity must be at least 1",
	}, p.Validate())
}

func TestProductUpdateApply(t *testing.T) {
	p := &Product{Title: "Old", Price: "10.00", Quantity: 1, Notes: "keep"}
	title := "New"
	qty := 4

	ProductUpdate{Title: &title, Quantity: &qty}.Apply(p)

	assert.Equal(t, "New", p.Title)
	assert.Equal(t, 4, p.Quantity)
	assert.Equal(t, "10.00", p.Price)
	assert.Equal(t, "keep", p.Notes)
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want []string
	}{
		{
			name: "valid",
			rule: Rule{UserID: "u", Name: "Cheap", Trigger: TriggerPriceDrop, ConditionType: ConditionPriceBelow, Action: ActionNotify},
		},
		{
			name: "condition is optional",
			rule: Rule{UserID: "u", Name: "Back in stock", Trigger: TriggerAvailability, Action: ActionEmail},
		},
		{
			name: "bad enums",
			rule: Rule{UserID: "u", Name: "x", Trigger: "whenever", ConditionType: "vibes", Action: "shout"},
			want: []string{`invalid trigger "whenever"`, `invalid condition type "vibes"`, `invalid action "shout"`},
		},
		{
			name: "missing owner and name",
			rule: Rule{Trigger: TriggerLowStock, Action: ActionMarkUrgent},
			want: []string{"user id is required", "name is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Validate())
		})
	}
}

func TestRuleUpdateApply(t *testing.T) {
	r := &Rule{Name: "Watch", Trigger: TriggerPriceDrop, Action: ActionNotify, IsActive: true}
	inactive := false
	action := ActionHighlight

	RuleUpdate{IsActive: &inactive, Action: &action}.Apply(r)

	assert.False(t, r.IsActive)
	assert.Equal(t, ActionHighlight, r.Action)
	assert.Equal(t, "Watch", r.Name)
}
