package sqlite

import (
	"context"
	"fmt"

	"github.com/dvloznov/finchat/internal/domain"
	"github.com/dvloznov/finchat/internal/parser"
	"github.com/google/uuid"
)

// CreateCategory inserts c, assigning an ID when empty.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, type, icon) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.Icon)
	if err != nil {
		return fmt.Errorf("CreateCategory: %w", err)
	}
	return nil
}

// UpsertCategory inserts c or updates the row with the same ID.
func (s *Store) UpsertCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, type, icon) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 type=excluded.type,
	 icon=excluded.icon`,
		c.ID, c.Name, string(c.Type), c.Icon)
	if err != nil {
		return fmt.Errorf("UpsertCategory: %w", err)
	}
	return nil
}

// ListCategories returns every category, expenses first, then by name.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type, icon FROM categories ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c   domain.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ, &c.Icon); err != nil {
			return nil, fmt.Errorf("ListCategories: scan: %w", err)
		}
		c.Type = domain.TransactionType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SeedDefaultCategories ensures the baseline categories exist. IDs are
// derived from type and name so reseeding is idempotent.
func (s *Store) SeedDefaultCategories(ctx context.Context) error {
	existing, err := s.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("SeedDefaultCategories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, c := range parser.DefaultCategories() {
		c.ID = DefaultCategoryID(c)
		if err := s.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("SeedDefaultCategories: %w", err)
		}
	}
	return nil
}

// DefaultCategoryID is the stable ID of a seeded category.
func DefaultCategoryID(c domain.Category) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+string(c.Type)+":"+c.Name)).String()
}
