package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/cartsmith/internal/events"
	"github.com/maltedev/cartsmith/internal/models"
	"github.com/maltedev/cartsmith/internal/storage"
)

const productColumns = `id, user_id, title, price::text, original_url, image_url, store_domain,
	color, size, availability, quantity, notes, created_at, updated_at`

const ruleColumns = `id, user_id, name, trigger, condition_type, condition_value, action,
	is_active, created_at, updated_at`

// CartStore is the Postgres storage.Store. With an outbox attached, product
// and rule creation and deletion also write a cart event in the same
// transaction.
type CartStore struct {
	db     *DB
	outbox *OutboxRepository
	logger *slog.Logger
}

var _ storage.Store = (*CartStore)(nil)

func NewCartStore(db *DB, publishEvents bool, logger *slog.Logger) *CartStore {
	s := &CartStore{
		db:     db,
		logger: logger.With("component", "cart_store"),
	}
	if publishEvents {
		s.outbox = NewOutboxRepository(db)
	}
	return s
}

func (s *CartStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *CartStore) Close() error {
	s.db.Close()
	return nil
}

func (s *CartStore) record(ctx context.Context, tx pgx.Tx, env events.Envelope, err error) error {
	if s.outbox == nil {
		return nil
	}
	if err != nil {
		return err
	}
	return s.outbox.InsertWithTx(ctx, tx, outboxEventFrom(env))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Price, &p.OriginalURL, &p.ImageURL, &p.StoreDomain,
		&p.Color, &p.Size, &p.Availability, &p.Quantity, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanRule(row scanner) (*models.Rule, error) {
	var r models.Rule
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Trigger, &r.ConditionType, &r.ConditionValue, &r.Action,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func notFoundErr(kind string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %d: %w", kind, id, err)
}

func (s *CartStore) ListProducts(ctx context.Context, userID string) ([]models.Product, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	products := make([]models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return products, nil
}

func (s *CartStore) GetProduct(ctx context.Context, userID string, id int64) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFoundErr("product", id, err)
	}
	return p, nil
}

func (s *CartStore) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if err := storage.Invalid(p.Validate()); err != nil {
		return nil, err
	}

	var created *models.Product
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		var err error
		created, err = scanProduct(tx.QueryRow(ctx, `
			INSERT INTO products (
				user_id, title, price, original_url, image_url, store_domain,
				color, size, availability, quantity, notes
			) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+productColumns,
			p.UserID, p.Title, p.Price, p.OriginalURL, p.ImageURL, p.StoreDomain,
			p.Color, p.Size, p.Availability, p.Quantity, p.Notes))
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}

		env, err := events.ProductAdded(created)
		return s.record(ctx, tx, env, err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("product added", "user_id", created.UserID, "product_id", created.ID)
	return created, nil
}

func (s *CartStore) UpdateProduct(ctx context.Context, userID string, id int64, upd models.ProductUpdate) (*models.Product, error) {
	var updated *models.Product
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		current, err := scanProduct(tx.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID))
		if err != nil {
			return notFoundErr("product", id, err)
		}

		upd.Apply(current)
		if err := storage.Invalid(current.Validate()); err != nil {
			return err
		}

		updated, err = scanProduct(tx.QueryRow(ctx, `
			UPDATE products SET
				title = $3, price = $4::numeric, image_url = $5, color = $6, size = $7,
				availability = $8, quantity = $9, notes = $10, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+productColumns,
			id, userID, current.Title, current.Price, current.ImageURL, current.Color, current.Size,
			current.Availability, current.Quantity, current.Notes))
		if err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CartStore) DeleteProduct(ctx context.Context, userID string, id int64) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM rule_products rp USING products p
			WHERE rp.product_id = p.id AND p.id = $1 AND p.user_id = $2`, id, userID); err != nil {
			return fmt.Errorf("failed to unlink product: %w", err)
		}

		deleted, err := scanProduct(tx.QueryRow(ctx,
			`DELETE FROM products WHERE id = $1 AND user_id = $2 RETURNING `+productColumns, id, userID))
		if err != nil {
			return notFoundErr("product", id, err)
		}

		env, err := events.ProductRemoved(deleted)
		return s.record(ctx, tx, env, err)
	})
}

func (s *CartStore) ListRules(ctx context.Context, userID string) ([]models.Rule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.Rule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rules, nil
}

func (s *CartStore) GetRule(ctx context.Context, userID string, id int64) (*models.Rule, error) {
	r, err := scanRule(s.db.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFoundErr("rule", id, err)
	}
	return r, nil
}

func (s *CartStore) CreateRule(ctx context.Context, r *models.Rule, productIDs []int64) (*models.Rule, error) {
	if err := storage.Invalid(r.Validate()); err != nil {
		return nil, err
	}

	var created *models.Rule
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, pid := range productIDs {
			if err := ensureProductOwned(ctx, tx, r.UserID, pid); err != nil {
				return err
			}
		}

		var err error
		created, err = scanRule(tx.QueryRow(ctx, `
			INSERT INTO rules (user_id, name, trigger, condition_type, condition_value, action, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+ruleColumns,
			r.UserID, r.Name, r.Trigger, r.ConditionType, r.ConditionValue, r.Action, r.IsActive))
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}

		for _, pid := range productIDs {
			if _, err := linkProduct(ctx, tx, created.ID, pid); err != nil {
				return err
			}
		}

		env, err := events.RuleCreated(created, productIDs)
		return s.record(ctx, tx, env, err)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rule created", "user_id", created.UserID, "rule_id", created.ID, "products", len(productIDs))
	return created, nil
}

func (s *CartStore) UpdateRule(ctx context.Context, userID string, id int64, upd models.RuleUpdate) (*models.Rule, error) {
	var updated *models.Rule
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		current, err := scanRule(tx.QueryRow(ctx,
			`SELECT `+ruleColumns+` FROM rules WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID))
		if err != nil {
			return notFoundErr("rule", id, err)
		}

		upd.Apply(current)
		if err := storage.Invalid(current.Validate()); err != nil {
			return err
		}

		updated, err = scanRule(tx.QueryRow(ctx, `
			UPDATE rules SET
				name = $3, trigger = $4, condition_type = $5, condition_value = $6,
				action = $7, is_active = $8, updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING `+ruleColumns,
			id, userID, current.Name, current.Trigger, current.ConditionType, current.ConditionValue,
			current.Action, current.IsActive))
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *CartStore) DeleteRule(ctx context.Context, userID string, id int64) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM rule_products rp USING rules r
			WHERE rp.rule_id = r.id AND r.id = $1 AND r.user_id = $2`, id, userID); err != nil {
			return fmt.Errorf("failed to unlink rule: %w", err)
		}

		deleted, err := scanRule(tx.QueryRow(ctx,
			`DELETE FROM rules WHERE id = $1 AND user_id = $2 RETURNING `+ruleColumns, id, userID))
		if err != nil {
			return notFoundErr("rule", id, err)
		}

		env, err := events.RuleDeleted(deleted)
		return s.record(ctx, tx, env, err)
	})
}

func (s *CartStore) ListRuleProducts(ctx context.Context, userID string, ruleID int64) ([]models.Product, error) {
	if _, err := s.GetRule(ctx, userID, ruleID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.user_id, p.title, p.price::text, p.original_url, p.image_url, p.store_domain,
			p.color, p.size, p.availability, p.quantity, p.notes, p.created_at, p.updated_at
		FROM rule_products rp
		JOIN products p ON p.id = rp.product_id
		WHERE rp.rule_id = $1 AND p.user_id = $2
		ORDER BY p.id ASC`, ruleID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (s *CartStore) AddProductToRule(ctx context.Context, userID string, ruleID, productID int64) (*models.RuleProduct, error) {
	var link *models.RuleProduct
	err := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := ensureRuleOwned(ctx, tx, userID, ruleID); err != nil {
			return err
		}
		if err := ensureProductOwned(ctx, tx, userID, productID); err != nil {
			return err
		}

		var err error
		link, err = linkProduct(ctx, tx, ruleID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *CartStore) RemoveProductFromRule(ctx context.Context, userID string, ruleID, productID int64) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := ensureRuleOwned(ctx, tx, userID, ruleID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM rule_products WHERE rule_id = $1 AND product_id = $2`, ruleID, productID)
		if err != nil {
			return fmt.Errorf("failed to unlink product: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("product %d on rule %d: %w", productID, ruleID, storage.ErrNotFound)
		}
		return nil
	})
}

func ensureProductOwned(ctx context.Context, tx pgx.Tx, userID string, id int64) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM products WHERE id = $1 AND user_id = $2`, id, userID).Scan(&one)
	if err != nil {
		return notFoundErr("product", id, err)
	}
	return nil
}

func ensureRuleOwned(ctx context.Context, tx pgx.Tx, userID string, id int64) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM rules WHERE id = $1 AND user_id = $2`, id, userID).Scan(&one)
	if err != nil {
		return notFoundErr("rule", id, err)
	}
	return nil
}

// linkProduct is idempotent and returns the existing row on conflict.
func linkProduct(ctx context.Context, tx pgx.Tx, ruleID, productID int64) (*models.RuleProduct, error) {
	link := &models.RuleProduct{RuleID: ruleID, ProductID: productID}
	err := tx.QueryRow(ctx, `
		INSERT INTO rule_products (rule_id, product_id) VALUES ($1, $2)
		ON CONFLICT (rule_id, product_id) DO UPDATE SET rule_id = EXCLUDED.rule_id
		RETURNING id`, ruleID, productID).Scan(&link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to link product %d to rule %d: %w", productID, ruleID, err)
	}
	return link, nil
}
