package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"einvoicing/internal/core"
)

func (s *Store) CreateCompany(ctx context.Context, c core.Company) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (tax_id, name, prefix, range_from, range_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.TaxID, c.Name, c.Prefix, c.RangeFrom, c.RangeTo).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return 0, fmt.Errorf("tax id %s: %w", c.TaxID, core.ErrCompanyExists)
		}
		return 0, fmt.Errorf("failed to create company %s: %w", c.TaxID, err)
	}
	return id, nil
}

func (s *Store) GetCompany(ctx context.Context, companyID int) (core.Company, error) {
	var c core.Company
	err := s.pool.QueryRow(ctx, `
		SELECT id, tax_id, name, prefix, range_from, range_to FROM companies WHERE id = $1
	`, companyID).Scan(&c.ID, &c.TaxID, &c.Name, &c.Prefix, &c.RangeFrom, &c.RangeTo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Company{}, fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
		}
		return core.Company{}, fmt.Errorf("failed to get company %d: %w", companyID, err)
	}
	return c, nil
}

// UpsertProduct registers p for a company, replacing the tax rules of an existing reference.
func (s *Store) UpsertProduct(ctx context.Context, companyID int, p core.ProductSnapshot) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var productID int
	err = tx.QueryRow(ctx, `
		INSERT INTO products (company_id, reference, code, name)
		SELECT c.id, $2, $3, $4 FROM companies c WHERE c.id = $1
		ON CONFLICT (company_id, reference) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, active = true
		RETURNING id
	`, companyID, p.Reference, p.Code, p.Name).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
		}
		return fmt.Errorf("failed to upsert product %s: %w", p.Reference, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM product_taxes WHERE product_id = $1", productID); err != nil {
		return fmt.Errorf("failed to clear product taxes: %w", err)
	}
	for _, r := range p.TaxRules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO product_taxes (product_id, tax_type, rate, applies) VALUES ($1, $2, $3, $4)
		`, productID, string(r.Type), r.Rate, r.Applies); err != nil {
			return fmt.Errorf("failed to insert %s rule for product %s: %w", r.Type, p.Reference, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) LookupProduct(ctx context.Context, companyID int, reference string) (core.ProductSnapshot, error) {
	p := core.ProductSnapshot{Reference: reference}
	var productID int
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name FROM products
		WHERE company_id = $1 AND reference = $2 AND active
	`, companyID, reference).Scan(&productID, &p.Code, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ProductSnapshot{}, fmt.Errorf("product %q for company %d: %w", reference, companyID, core.ErrProductNotFound)
		}
		return core.ProductSnapshot{}, fmt.Errorf("failed to look up product %q: %w", reference, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT tax_type, rate, applies FROM product_taxes
		WHERE product_id = $1
		ORDER BY array_position(ARRAY['IVA','INC','ICA'], tax_type)
	`, productID)
	if err != nil {
		return core.ProductSnapshot{}, fmt.Errorf("failed to query product taxes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r   core.TaxRule
			typ string
		)
		if err := rows.Scan(&typ, &r.Rate, &r.Applies); err != nil {
			return core.ProductSnapshot{}, fmt.Errorf("failed to scan product tax: %w", err)
		}
		r.Type = core.TaxType(typ)
		p.TaxRules = append(p.TaxRules, r)
	}
	if err := rows.Err(); err != nil {
		return core.ProductSnapshot{}, fmt.Errorf("failed to iterate product taxes: %w", err)
	}
	return p, nil
}
