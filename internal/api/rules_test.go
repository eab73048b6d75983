package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/maltedev/cartsmith/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) createProduct(t *testing.T, user, title string) models.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/products", user, createProductBody(title, "1,499"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Product](t, rec)
}

func TestRuleLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	shoe := s.createProduct(t, "user-1", "Running Shoe")
	jacket := s.createProduct(t, "user-1", "Rain Jacket")

	rec := s.do(t, http.MethodPost, "/api/rules", "user-1", CreateRuleRequest{
		Name:           "Shoe under 1000",
		Trigger:        models.TriggerPriceDrop,
		ConditionType:  models.ConditionPriceBelow,
		ConditionValue: "1000",
		Action:         models.ActionNotify,
		ProductIDs:     []int64{shoe.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rule := decode[models.Rule](t, rec)
	assert.True(t, rule.IsActive)
	assert.Equal(t, "user-1", rule.UserID)

	base := fmt.Sprintf("/api/rules/%d", rule.ID)

	rec = s.do(t, http.MethodGet, base+"/products", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	linked := decode[[]models.Product](t, rec)
	require.Len(t, linked, 1)
	assert.Equal(t, shoe.ID, linked[0].ID)

	rec = s.do(t, http.MethodPost, base+"/products", "user-1", AddRuleProductRequest{ProductID: jacket.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link := decode[models.RuleProduct](t, rec)
	assert.Equal(t, rule.ID, link.RuleID)
	assert.Equal(t, jacket.ID, link.ProductID)

	rec = s.do(t, http.MethodGet, base+"/products", "user-1", nil)
	assert.Len(t, decode[[]models.Product](t, rec), 2)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("%s/products/%d", base, shoe.ID), "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("%s/products/%d", base, shoe.ID), "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, base, "user-1", map[string]any{"isActive": false, "action": "highlight"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Rule](t, rec)
	assert.False(t, updated.IsActive)
	assert.Equal(t, models.ActionHighlight, updated.Action)

	rec = s.do(t, http.MethodGet, "/api/rules", "user-1", nil)
	assert.Len(t, decode[[]models.Rule](t, rec), 1)

	rec = s.do(t, http.MethodDelete, base, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRuleRejections(t *testing.T) {
	s := newTestServer(t, nil)
	foreign := s.createProduct(t, "someone-else", "Sneakers")

	tests := []struct {
		name     string
		body     CreateRuleRequest
		wantCode int
	}{
		{
			name:     "unknown trigger",
			body:     CreateRuleRequest{Name: "x", Trigger: "moon_phase", Action: models.ActionNotify},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing name",
			body:     CreateRuleRequest{Trigger: models.TriggerLowStock, Action: models.ActionEmail},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "product of another user",
			body: CreateRuleRequest{
				Name:       "Watch sneakers",
				Trigger:    models.TriggerAvailability,
				Action:     models.ActionNotify,
				ProductIDs: []int64{foreign.ID},
			},
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/rules", "user-1", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec := s.do(t, http.MethodGet, "/api/rules", "user-1", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestAddRuleProductRequiresOwnership(t *testing.T) {
	s := newTestServer(t, nil)
	mine := s.createProduct(t, "user-1", "Backpack")
	theirs := s.createProduct(t, "user-2", "Tent")

	rec := s.do(t, http.MethodPost, "/api/rules", "user-1", CreateRuleRequest{
		Name: "Backpack stock", Trigger: models.TriggerLowStock, Action: models.ActionMarkUrgent,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rule := decode[models.Rule](t, rec)
	path := fmt.Sprintf("/api/rules/%d/products", rule.ID)

	rec = s.do(t, http.MethodPost, path, "user-1", AddRuleProductRequest{ProductID: theirs.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, path, "user-2", AddRuleProductRequest{ProductID: theirs.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, path, "user-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, "user-1", AddRuleProductRequest{ProductID: mine.ID})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
