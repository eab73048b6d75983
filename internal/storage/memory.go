package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/cartsmith/internal/models"
)

type snapshot struct {
	NextID       int64                         `json:"next_id"`
	Products     map[int64]*models.Product     `json:"products"`
	Rules        map[int64]*models.Rule        `json:"rules"`
	RuleProducts map[int64]*models.RuleProduct `json:"rule_products"`
}

// MemoryStore keeps the cart in process memory. With a filename set, every
// mutation is written through to a JSON snapshot that is reloaded on start.
type MemoryStore struct {
	mu       sync.RWMutex
	data     snapshot
	filename string
	now      func() time.Time
}

func NewMemoryStore(filename string) (*MemoryStore, error) {
	ms := &MemoryStore{
		data: snapshot{
			NextID:       1,
			Products:     make(map[int64]*models.Product),
			Rules:        make(map[int64]*models.Rule),
			RuleProducts: make(map[int64]*models.RuleProduct),
		},
		filename: filename,
		now:      func() time.Time { return time.Now().UTC() },
	}

	if filename != "" {
		if err := ms.load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	return ms, nil
}

func (ms *MemoryStore) nextID() int64 {
	id := ms.data.NextID
	ms.data.NextID++
	return id
}

func (ms *MemoryStore) ownedProduct(userID string, id int64) (*models.Product, error) {
	p, ok := ms.data.Products[id]
	if !ok || p.UserID != userID {
		return nil, notFound("product", id)
	}
	return p, nil
}

func (ms *MemoryStore) ownedRule(userID string, id int64) (*models.Rule, error) {
	r, ok := ms.data.Rules[id]
	if !ok || r.UserID != userID {
		return nil, notFound("rule", id)
	}
	return r, nil
}

func (ms *MemoryStore) ListProducts(ctx context.Context, userID string) ([]models.Product, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	products := make([]models.Product, 0)
	for _, p := range ms.data.Products {
		if p.UserID == userID {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID > products[j].ID })
	return products, nil
}

func (ms *MemoryStore) GetProduct(ctx context.Context, userID string, id int64) (*models.Product, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	p, err := ms.ownedProduct(userID, id)
	if err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

func (ms *MemoryStore) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if err := Invalid(p.Validate()); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stored models.Product
	err := ms.commit(func() error {
		stored = *p
		stored.ID = ms.nextID()
		stored.CreatedAt = ms.now()
		stored.UpdatedAt = stored.CreatedAt
		ms.data.Products[stored.ID] = &stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := stored
	return &out, nil
}

func (ms *MemoryStore) UpdateProduct(ctx context.Context, userID string, id int64, upd models.ProductUpdate) (*models.Product, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	p, err := ms.ownedProduct(userID, id)
	if err != nil {
		return nil, err
	}

	updated := *p
	upd.Apply(&updated)
	if err := Invalid(updated.Validate()); err != nil {
		return nil, err
	}
	updated.UpdatedAt = ms.now()

	if err := ms.commit(func() error {
		ms.data.Products[id] = &updated
		return nil
	}); err != nil {
		return nil, err
	}
	out := updated
	return &out, nil
}

func (ms *MemoryStore) DeleteProduct(ctx context.Context, userID string, id int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, err := ms.ownedProduct(userID, id); err != nil {
		return err
	}

	return ms.commit(func() error {
		for linkID, link := range ms.data.RuleProducts {
			if link.ProductID == id {
				delete(ms.data.RuleProducts, linkID)
			}
		}
		delete(ms.data.Products, id)
		return nil
	})
}

func (ms *MemoryStore) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rules := make([]models.Rule, 0)
	for _, r := range ms.data.Rules {
		if r.UserID == userID {
			rules = append(rules, *r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID > rules[j].ID })
	return rules, nil
}

func (ms *MemoryStore) GetRule(ctx context.Context, userID string, id int64) (*models.Rule, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	r, err := ms.ownedRule(userID, id)
	if err != nil {
		return nil, err
	}
	out := *r
	return &out, nil
}

func (ms *MemoryStore) CreateRule(ctx context.Context, r *models.Rule, productIDs []int64) (*models.Rule, error) {
	if err := Invalid(r.Validate()); err != nil {
		return nil, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, pid := range productIDs {
		if _, err := ms.ownedProduct(r.UserID, pid); err != nil {
			return nil, err
		}
	}

	var stored models.Rule
	err := ms.commit(func() error {
		stored = *r
		stored.ID = ms.nextID()
		stored.CreatedAt = ms.now()
		stored.UpdatedAt = stored.CreatedAt
		ms.data.Rules[stored.ID] = &stored

		for _, pid := range productIDs {
			ms.link(stored.ID, pid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := stored
	return &out, nil
}

func (ms *MemoryStore) UpdateRule(ctx context.Context, userID string, id int64, upd models.RuleUpdate) (*models.Rule, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	r, err := ms.ownedRule(userID, id)
	if err != nil {
		return nil, err
	}

	updated := *r
	upd.Apply(&updated)
	if err := Invalid(updated.Validate()); err != nil {
		return nil, err
	}
	updated.UpdatedAt = ms.now()

	if err := ms.commit(func() error {
		ms.data.Rules[id] = &updated
		return nil
	}); err != nil {
		return nil, err
	}
	out := updated
	return &out, nil
}

func (ms *MemoryStore) DeleteRule(ctx context.Context, userID string, id int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, err := ms.ownedRule(userID, id); err != nil {
		return err
	}

	return ms.commit(func() error {
		for linkID, link := range ms.data.RuleProducts {
			if link.RuleID == id {
				delete(ms.data.RuleProducts, linkID)
			}
		}
		delete(ms.data.Rules, id)
		return nil
	})
}

func (ms *MemoryStore) ListRuleProducts(ctx context.Context, userID string, ruleID int64) ([]models.Product, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if _, err := ms.ownedRule(userID, ruleID); err != nil {
		return nil, err
	}

	products := make([]models.Product, 0)
	for _, link := range ms.data.RuleProducts {
		if link.RuleID != ruleID {
			continue
		}
		if p, ok := ms.data.Products[link.ProductID]; ok {
			products = append(products, *p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (ms *MemoryStore) AddProductToRule(ctx context.Context, userID string, ruleID, productID int64) (*models.RuleProduct, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, err := ms.ownedRule(userID, ruleID); err != nil {
		return nil, err
	}
	if _, err := ms.ownedProduct(userID, productID); err != nil {
		return nil, err
	}

	var link *models.RuleProduct
	if err := ms.commit(func() error {
		link = ms.link(ruleID, productID)
		return nil
	}); err != nil {
		return nil, err
	}
	out := *link
	return &out, nil
}

func (ms *MemoryStore) RemoveProductFromRule(ctx context.Context, userID string, ruleID, productID int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, err := ms.ownedRule(userID, ruleID); err != nil {
		return err
	}

	return ms.commit(func() error {
		for linkID, link := range ms.data.RuleProducts {
			if link.RuleID == ruleID && link.ProductID == productID {
				delete(ms.data.RuleProducts, linkID)
				return nil
			}
		}
		return fmt.Errorf("product %d on rule %d: %w", productID, ruleID, ErrNotFound)
	})
}

func (ms *MemoryStore) Ping(ctx context.Context) error { return nil }

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.save()
}

// link returns the existing association or creates one. Caller holds mu.
func (ms *MemoryStore) link(ruleID, productID int64) *models.RuleProduct {
	for _, l := range ms.data.RuleProducts {
		if l.RuleID == ruleID && l.ProductID == productID {
			return l
		}
	}
	l := &models.RuleProduct{ID: ms.nextID(), RuleID: ruleID, ProductID: productID}
	ms.data.RuleProducts[l.ID] = l
	return l
}

// commit applies mutate and writes the snapshot. If either fails the
// in-memory state is rolled back, so memory never runs ahead of the file.
// Caller holds mu. Records are replaced, never modified in place, so copying
// the maps is enough.
func (ms *MemoryStore) commit(mutate func() error) error {
	backup := ms.data.clone()

	if err := mutate(); err != nil {
		ms.data = backup
		return err
	}
	if err := ms.save(); err != nil {
		ms.data = backup
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s snapshot) clone() snapshot {
	return snapshot{
		NextID:       s.NextID,
		Products:     maps.Clone(s.Products),
		Rules:        maps.Clone(s.Rules),
		RuleProducts: maps.Clone(s.RuleProducts),
	}
}

func (ms *MemoryStore) save() error {
	if ms.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(ms.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := ms.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, ms.filename)
}

func (ms *MemoryStore) load() error {
	data, err := os.ReadFile(ms.filename)
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Products != nil {
		ms.data.Products = snap.Products
	}
	if snap.Rules != nil {
		ms.data.Rules = snap.Rules
	}
	if snap.RuleProducts != nil {
		ms.data.RuleProducts = snap.RuleProducts
	}
	if snap.NextID > ms.data.NextID {
		ms.data.NextID = snap.NextID
	}
	return nil
}
