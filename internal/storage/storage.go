// Package storage defines the cart and rule store and its in-memory
// implementation. Every method is scoped by the owning user id; rows that
// belong to another user are reported as ErrNotFound.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maltedev/cartsmith/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

type Store interface {
	ListProducts(ctx context.Context, userID string) ([]models.Product, error)
	GetProduct(ctx context.Context, userID string, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, userID string, id int64, upd models.ProductUpdate) (*models.Product, error)
	// DeleteProduct also removes every rule link to the product.
	DeleteProduct(ctx context.Context, userID string, id int64) error

	ListRules(ctx context.Context, userID string) ([]models.Rule, error)
	GetRule(ctx context.Context, userID string, id int64) (*models.Rule, error)
	// CreateRule links productIDs in the same operation; each must belong to
	// the rule's user.
	CreateRule(ctx context.Context, r *models.Rule, productIDs []int64) (*models.Rule, error)
	UpdateRule(ctx context.Context, userID string, id int64, upd models.RuleUpdate) (*models.Rule, error)
	DeleteRule(ctx context.Context, userID string, id int64) error

	ListRuleProducts(ctx context.Context, userID string, ruleID int64) ([]models.Product, error)
	AddProductToRule(ctx context.Context, userID string, ruleID, productID int64) (*models.RuleProduct, error)
	RemoveProductFromRule(ctx context.Context, userID string, ruleID, productID int64) error

	Ping(ctx context.Context) error
	Close() error
}

// Invalid wraps validation messages into an ErrInvalid error.
func Invalid(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
