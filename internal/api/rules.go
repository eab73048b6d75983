package api

import (
	"net/http"

	"github.com/maltedev/cartsmith/internal/models"
)

type CreateRuleRequest struct {
	Name           string               `json:"name"`
	Trigger        models.Trigger       `json:"trigger"`
	ConditionType  models.ConditionType `json:"conditionType,omitempty"`
	ConditionValue string               `json:"conditionValue,omitempty"`
	Action         models.Action        `json:"action"`
	IsActive       *bool                `json:"isActive,omitempty"`
	ProductIDs     []int64              `json:"productIds,omitempty"`
}

type AddRuleProductRequest struct {
	ProductID int64 `json:"productId"`
}

func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list rules", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to fetch rules")
		return
	}
	if rules == nil {
		rules = []models.Rule{}
	}
	h.respondJSON(w, http.StatusOK, rules)
}

func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	rule, err := h.store.GetRule(r.Context(), UserID(r.Context()), id)
	if err != nil {
		h.respondStoreError(w, err, "Rule not found", "Invalid rule data", "Failed to fetch rule")
		return
	}
	h.respondJSON(w, http.StatusOK, rule)
}

func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule := &models.Rule{
		UserID:         UserID(r.Context()),
		Name:           req.Name,
		Trigger:        req.Trigger,
		ConditionType:  req.ConditionType,
		ConditionValue: req.ConditionValue,
		Action:         req.Action,
		IsActive:       true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if msgs := rule.Validate(); len(msgs) > 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid rule data", msgs...)
		return
	}

	created, err := h.store.CreateRule(r.Context(), rule, req.ProductIDs)
	if err != nil {
		h.respondStoreError(w, err, "Product not found", "Invalid rule data", "Failed to create rule")
		return
	}

	h.logger.Info("rule created", "rule_id", created.ID, "trigger", created.Trigger, "products", len(req.ProductIDs))
	h.respondJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	var upd models.RuleUpdate
	if err := decodeJSON(r, &upd); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := h.store.UpdateRule(r.Context(), UserID(r.Context()), id, upd)
	if err != nil {
		h.respondStoreError(w, err, "Rule not found", "Invalid rule data", "Failed to update rule")
		return
	}
	h.respondJSON(w, http.StatusOK, rule)
}

func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	if err := h.store.DeleteRule(r.Context(), UserID(r.Context()), id); err != nil {
		h.respondStoreError(w, err, "Rule not found", "Invalid rule data", "Failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListRuleProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID")
		return
	}

	products, err := h.store.ListRuleProducts(r.Context(), UserID(r.Context()), id)
	if err != nil {
		h.respondStoreError(w, err, "Rule not found", "Invalid rule data", "Failed to fetch rule products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) AddRuleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID or product ID")
		return
	}

	var req AddRuleProductRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID < 1 {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID or product ID")
		return
	}

	link, err := h.store.AddProductToRule(r.Context(), UserID(r.Context()), id, req.ProductID)
	if err != nil {
		h.respondStoreError(w, err, "Rule or product not found", "Invalid data", "Failed to add product to rule")
		return
	}
	h.respondJSON(w, http.StatusCreated, link)
}

func (h *Handlers) RemoveRuleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	productID, okProduct := idParam(r, "productId")
	if !ok || !okProduct {
		h.respondError(w, http.StatusBadRequest, "Invalid rule ID or product ID")
		return
	}

	if err := h.store.RemoveProductFromRule(r.Context(), UserID(r.Context()), id, productID); err != nil {
		h.respondStoreError(w, err, "Rule not found", "Invalid data", "Failed to remove product from rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
