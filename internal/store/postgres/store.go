// Package postgres implements the invoice store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"einvoicing/internal/core"
)

// SQLSTATE codes treated as retryable allocation conflicts.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ core.Store         = (*Store)(nil)
	_ core.TaxRuleLookup = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InTx runs fn in one database transaction. Lock and serialization failures,
// including those raised at commit, are reported as core.ErrAllocationConflict.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.StoreTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &storeTx{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// mapError turns lock, deadlock and serialization failures into
// core.ErrAllocationConflict, keeping the driver error in the message.
func mapError(err error) error {
	if err == nil || errors.Is(err, core.ErrAllocationConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %v", core.ErrAllocationConflict, err)
	case codeUniqueViolation:
		if pgErr.ConstraintName == "invoices_company_id_sequence_number_key" {
			return fmt.Errorf("%w: %v", core.ErrAllocationConflict, err)
		}
	}
	return err
}

type storeTx struct {
	tx pgx.Tx
}

// Increment advances the company counter with a single upsert. The row lock
// taken by ON CONFLICT DO UPDATE serialises concurrent creators of the same
// company until the surrounding transaction ends; a rollback restores the value.
func (t *storeTx) Increment(ctx context.Context, companyID int) (int64, core.NumberingConfig, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (company_id, last_number)
		SELECT c.id, COALESCE(c.range_from, 1) FROM companies c WHERE c.id = $1
		ON CONFLICT (company_id) DO UPDATE SET last_number = invoice_sequences.last_number + 1
		RETURNING last_number
	`, companyID).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, core.NumberingConfig{}, fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
		}
		return 0, core.NumberingConfig{}, mapError(fmt.Errorf("failed to advance counter: %w", err))
	}

	var cfg core.NumberingConfig
	err = t.tx.QueryRow(ctx,
		"SELECT prefix, range_from, range_to FROM companies WHERE id = $1", companyID,
	).Scan(&cfg.Prefix, &cfg.RangeFrom, &cfg.RangeTo)
	if err != nil {
		return 0, core.NumberingConfig{}, fmt.Errorf("failed to read numbering config: %w", err)
	}
	return n, cfg, nil
}

func (t *storeTx) InsertInvoice(ctx context.Context, inv *core.Invoice) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (
			company_id, client_reference, prefix, sequence_number, display_number,
			emission_date, due_date, notes, observations,
			subtotal, total_discounts, total_iva, total_inc, total_ica, total_taxes, grand_total,
			state, external_reference, active, void_reason,
			created_at, updated_at, issued_at, resolved_at, voided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		          $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING id
	`,
		inv.CompanyID, inv.ClientReference, inv.Prefix, inv.SequenceNumber, inv.DisplayNumber,
		inv.EmissionDate, inv.DueDate, inv.Notes, inv.Observations,
		inv.Subtotal, inv.TotalDiscounts,
		inv.TaxTotal(core.TaxIVA), inv.TaxTotal(core.TaxINC), inv.TaxTotal(core.TaxICA),
		inv.TotalTaxes, inv.GrandTotal,
		string(inv.State), inv.ExternalReference, inv.Active, inv.VoidReason,
		inv.CreatedAt, inv.UpdatedAt, inv.IssuedAt, inv.ResolvedAt, inv.VoidedAt,
	).Scan(&inv.ID)
	if err != nil {
		return mapError(fmt.Errorf("failed to insert invoice header: %w", err))
	}
	return t.writeDetails(ctx, inv)
}

func (t *storeTx) LockInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	row := t.tx.QueryRow(ctx, selectInvoice+" WHERE id = $1 FOR UPDATE", invoiceID)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, core.ErrInvoiceNotFound)
		}
		return nil, mapError(fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err))
	}
	if err := loadDetails(ctx, t.tx, []*core.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// UpdateInvoice rewrites the header and replaces lines and tax summaries.
func (t *storeTx) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE invoices SET
			client_reference = $2, due_date = $3, notes = $4, observations = $5,
			subtotal = $6, total_discounts = $7, total_iva = $8, total_inc = $9, total_ica = $10,
			total_taxes = $11, grand_total = $12,
			state = $13, external_reference = $14, active = $15, void_reason = $16,
			updated_at = $17, issued_at = $18, resolved_at = $19, voided_at = $20
		WHERE id = $1
	`,
		inv.ID, inv.ClientReference, inv.DueDate, inv.Notes, inv.Observations,
		inv.Subtotal, inv.TotalDiscounts,
		inv.TaxTotal(core.TaxIVA), inv.TaxTotal(core.TaxINC), inv.TaxTotal(core.TaxICA),
		inv.TotalTaxes, inv.GrandTotal,
		string(inv.State), inv.ExternalReference, inv.Active, inv.VoidReason,
		inv.UpdatedAt, inv.IssuedAt, inv.ResolvedAt, inv.VoidedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to update invoice %d: %w", inv.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", inv.ID, core.ErrInvoiceNotFound)
	}

	if _, err := t.tx.Exec(ctx, "DELETE FROM invoice_lines WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("failed to clear lines of invoice %d: %w", inv.ID, err)
	}
	if _, err := t.tx.Exec(ctx, "DELETE FROM invoice_taxes WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("failed to clear taxes of invoice %d: %w", inv.ID, err)
	}
	return t.writeDetails(ctx, inv)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *Store) GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx, selectInvoice+" WHERE id = $1", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, core.ErrInvoiceNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice %d: %w", invoiceID, err)
	}
	if err := loadDetails(ctx, s.pool, []*core.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns a company's invoices ordered by sequence number. A State
// filter of VOID implies IncludeVoided.
func (s *Store) ListInvoices(ctx context.Context, companyID int, filter core.ListFilter) ([]core.Invoice, error) {
	var state *string
	if filter.State != nil {
		v := string(*filter.State)
		state = &v
	}
	includeVoided := filter.IncludeVoided || (filter.State != nil && *filter.State == core.StateVoid)
	limit := filter.Limit
	if limit <= 0 {
		limit = core.MaxListLimit
	}

	rows, err := s.pool.Query(ctx, selectInvoice+`
		WHERE company_id = $1
		  AND ($2::text IS NULL OR state = $2)
		  AND (active OR $3)
		ORDER BY sequence_number
		LIMIT $4 OFFSET $5
	`, companyID, state, includeVoided, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var ptrs []*core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		ptrs = append(ptrs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}

	if err := loadDetails(ctx, s.pool, ptrs); err != nil {
		return nil, err
	}
	out := make([]core.Invoice, len(ptrs))
	for i, inv := range ptrs {
		out[i] = *inv
	}
	return out, nil
}
