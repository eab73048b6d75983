// Package storetest holds behaviour checks shared by every storage.Store
// implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. The store must start empty for the two users it uses.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	const alice, bob = "user-alice", "user-bob"

	newProduct := func(user, title string) *models.Product {
		return models.NewProduct(user, "https://www.amazon.in/dp/"+title, models.ExtractedProduct{
			Title:       title,
			Price:       "799",
			StoreDomain: "Amazon India",
		}, "799.00")
	}

	t.Run("product lifecycle", func(t *testing.T) {
		created, err := s.CreateProduct(ctx, newProduct(alice, "Wireless Mouse"))
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, 1, created.Quantity)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := s.GetProduct(ctx, alice, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Wireless Mouse", got.Title)
		assert.Equal(t, "799.00", got.Price)

		qty := 3
		notes := "gift"
		updated, err := s.UpdateProduct(ctx, alice, created.ID, models.ProductUpdate{Quantity: &qty, Notes: &notes})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.Quantity)
		assert.Equal(t, "gift", updated.Notes)
		assert.Equal(t, "Wireless Mouse", updated.Title)

		list, err := s.ListProducts(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, s.DeleteProduct(ctx, alice, created.ID))
		_, err = s.GetProduct(ctx, alice, created.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("products are scoped by user", func(t *testing.T) {
		p, err := s.CreateProduct(ctx, newProduct(alice, "Desk Lamp"))
		require.NoError(t, err)

		_, err = s.GetProduct(ctx, bob, p.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		title := "stolen"
		_, err = s.UpdateProduct(ctx, bob, p.ID, models.ProductUpdate{Title: &title})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.ErrorIs(t, s.DeleteProduct(ctx, bob, p.ID), storage.ErrNotFound)

		list, err := s.ListProducts(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, list)

		require.NoError(t, s.DeleteProduct(ctx, alice, p.ID))
	})

	t.Run("invalid product rejected", func(t *testing.T) {
		p := newProduct(alice, "")
		_, err := s.CreateProduct(ctx, p)
		assert.ErrorIs(t, err, storage.ErrInvalid)

		ok, err := s.CreateProduct(ctx, newProduct(alice, "Notebook"))
		require.NoError(t, err)
		zero := 0
		_, err = s.UpdateProduct(ctx, alice, ok.ID, models.ProductUpdate{Quantity: &zero})
		assert.ErrorIs(t, err, storage.ErrInvalid)
		require.NoError(t, s.DeleteProduct(ctx, alice, ok.ID))
	})

	t.Run("rule lifecycle with links", func(t *testing.T) {
		p1, err := s.CreateProduct(ctx, newProduct(alice, "Running Shoes"))
		require.NoError(t, err)
		p2, err := s.CreateProduct(ctx, newProduct(alice, "Water Bottle"))
		require.NoError(t, err)

		rule, err := s.CreateRule(ctx, &models.Rule{
			UserID:         alice,
			Name:           "Shoe deal",
			Trigger:        models.TriggerPriceDrop,
			ConditionType:  models.ConditionPriceBelow,
			ConditionValue: "1500",
			Action:         models.ActionNotify,
			IsActive:       true,
		}, []int64{p1.ID})
		require.NoError(t, err)
		assert.NotZero(t, rule.ID)

		linked, err := s.ListRuleProducts(ctx, alice, rule.ID)
		require.NoError(t, err)
		require.Len(t, linked, 1)
		assert.Equal(t, p1.ID, linked[0].ID)

		link, err := s.AddProductToRule(ctx, alice, rule.ID, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.ID, link.RuleID)
		assert.Equal(t, p2.ID, link.ProductID)

		again, err := s.AddProductToRule(ctx, alice, rule.ID, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, link.ID, again.ID)

		linked, err = s.ListRuleProducts(ctx, alice, rule.ID)
		require.NoError(t, err)
		assert.Len(t, linked, 2)

		require.NoError(t, s.RemoveProductFromRule(ctx, alice, rule.ID, p2.ID))
		assert.ErrorIs(t, s.RemoveProductFromRule(ctx, alice, rule.ID, p2.ID), storage.ErrNotFound)

		inactive := false
		updated, err := s.UpdateRule(ctx, alice, rule.ID, models.RuleUpdate{IsActive: &inactive})
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
		assert.Equal(t, "Shoe deal", updated.Name)

		// Deleting a linked product drops its association.
		require.NoError(t, s.DeleteProduct(ctx, alice, p1.ID))
		linked, err = s.ListRuleProducts(ctx, alice, rule.ID)
		require.NoError(t, err)
		assert.Empty(t, linked)

		require.NoError(t, s.DeleteRule(ctx, alice, rule.ID))
		_, err = s.GetRule(ctx, alice, rule.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, s.DeleteProduct(ctx, alice, p2.ID))
	})

	t.Run("rules are scoped by user", func(t *testing.T) {
		mine, err := s.CreateProduct(ctx, newProduct(alice, "Coffee Grinder"))
		require.NoError(t, err)
		theirs, err := s.CreateProduct(ctx, newProduct(bob, "Tea Kettle"))
		require.NoError(t, err)

		_, err = s.CreateRule(ctx, &models.Rule{
			UserID:  alice,
			Name:    "cross user",
			Trigger: models.TriggerAvailability,
			Action:  models.ActionHighlight,
		}, []int64{mine.ID, theirs.ID})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		rules, err := s.ListRules(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, rules, "failed create must not leave a rule behind")

		rule, err := s.CreateRule(ctx, &models.Rule{
			UserID:  alice,
			Name:    "mine",
			Trigger: models.TriggerLowStock,
			Action:  models.ActionMarkUrgent,
		}, nil)
		require.NoError(t, err)

		_, err = s.AddProductToRule(ctx, alice, rule.ID, theirs.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = s.GetRule(ctx, bob, rule.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.ListRuleProducts(ctx, bob, rule.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.DeleteRule(ctx, bob, rule.ID), storage.ErrNotFound)

		require.NoError(t, s.DeleteRule(ctx, alice, rule.ID))
		require.NoError(t, s.DeleteProduct(ctx, alice, mine.ID))
		require.NoError(t, s.DeleteProduct(ctx, bob, theirs.ID))
	})

	t.Run("invalid rule enums rejected", func(t *testing.T) {
		_, err := s.CreateRule(ctx, &models.Rule{
			UserID:  alice,
			Name:    "bad",
			Trigger: models.Trigger("whenever"),
			Action:  models.ActionNotify,
		}, nil)
		assert.ErrorIs(t, err, storage.ErrInvalid)

		_, err = s.CreateRule(ctx, &models.Rule{
			UserID:        alice,
			Name:          "bad condition",
			Trigger:       models.TriggerPriceDrop,
			ConditionType: models.ConditionType("vibes"),
			Action:        models.ActionNotify,
		}, nil)
		assert.ErrorIs(t, err, storage.ErrInvalid)
	})
}
