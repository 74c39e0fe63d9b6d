package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"einvoicing/internal/core"
)

const selectInvoice = `
	SELECT id, company_id, client_reference, prefix, sequence_number, display_number,
	       emission_date, due_date, notes, observations,
	       subtotal, total_discounts, total_taxes, grand_total,
	       state, external_reference, active, void_reason,
	       created_at, updated_at, issued_at, resolved_at, voided_at
	FROM invoices`

func scanInvoice(row pgx.Row) (*core.Invoice, error) {
	var (
		inv   core.Invoice
		state string
	)
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.ClientReference, &inv.Prefix, &inv.SequenceNumber, &inv.DisplayNumber,
		&inv.EmissionDate, &inv.DueDate, &inv.Notes, &inv.Observations,
		&inv.Subtotal, &inv.TotalDiscounts, &inv.TotalTaxes, &inv.GrandTotal,
		&state, &inv.ExternalReference, &inv.Active, &inv.VoidReason,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.IssuedAt, &inv.ResolvedAt, &inv.VoidedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.State = core.InvoiceState(state)
	return &inv, nil
}

// loadDetails fills Lines and TaxSummaries of every invoice with two queries.
func loadDetails(ctx context.Context, q pgxQuerier, invs []*core.Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	byID := make(map[int]*core.Invoice, len(invs))
	ids := make([]int, 0, len(invs))
	for _, inv := range invs {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
		inv.Lines = []core.InvoiceLine{}
		inv.TaxSummaries = []core.TaxSummary{}
	}

	rows, err := q.Query(ctx, `
		SELECT invoice_id, line_number, product_reference, product_code, product_name,
		       quantity, unit_price, discount_percentage,
		       subtotal, discount_amount, taxable_base, line_total,
		       tax_rules, tax_amounts, tax_rates
		FROM invoice_lines
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, line_number
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			invoiceID                      int
			l                              core.InvoiceLine
			rulesRaw, amountsRaw, ratesRaw []byte
		)
		if err := rows.Scan(
			&invoiceID, &l.LineNumber, &l.ProductReference, &l.ProductCode, &l.ProductName,
			&l.Quantity, &l.UnitPrice, &l.DiscountPercentage,
			&l.Result.Subtotal, &l.Result.DiscountAmount, &l.Result.TaxableBase, &l.Result.LineTotal,
			&rulesRaw, &amountsRaw, &ratesRaw,
		); err != nil {
			return fmt.Errorf("failed to scan invoice line: %w", err)
		}
		if err := json.Unmarshal(rulesRaw, &l.TaxRules); err != nil {
			return fmt.Errorf("invoice %d line %d: decode tax rules: %w", invoiceID, l.LineNumber, err)
		}
		if err := json.Unmarshal(amountsRaw, &l.Result.TaxAmounts); err != nil {
			return fmt.Errorf("invoice %d line %d: decode tax amounts: %w", invoiceID, l.LineNumber, err)
		}
		if err := json.Unmarshal(ratesRaw, &l.Result.TaxRates); err != nil {
			return fmt.Errorf("invoice %d line %d: decode tax rates: %w", invoiceID, l.LineNumber, err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Lines = append(inv.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate invoice lines: %w", err)
	}

	// Summaries are ordered by the fixed tax type order, not alphabetically.
	taxRows, err := q.Query(ctx, `
		SELECT invoice_id, tax_type, rate_used, taxable_base, tax_amount, breakdown
		FROM invoice_taxes
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, array_position(ARRAY['IVA','INC','ICA'], tax_type)
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query invoice taxes: %w", err)
	}
	defer taxRows.Close()

	for taxRows.Next() {
		var (
			invoiceID int
			typ       string
			s         core.TaxSummary
			raw       []byte
		)
		if err := taxRows.Scan(&invoiceID, &typ, &s.RateUsed, &s.TaxableBase, &s.TaxAmount, &raw); err != nil {
			return fmt.Errorf("failed to scan invoice tax: %w", err)
		}
		s.Type = core.TaxType(typ)
		if err := json.Unmarshal(raw, &s.Breakdown); err != nil {
			return fmt.Errorf("invoice %d %s: decode breakdown: %w", invoiceID, typ, err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.TaxSummaries = append(inv.TaxSummaries, s)
		}
	}
	if err := taxRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate invoice taxes: %w", err)
	}
	return nil
}

// writeDetails inserts lines and tax summaries in one round trip.
func (t *storeTx) writeDetails(ctx context.Context, inv *core.Invoice) error {
	b := &pgx.Batch{}
	for _, l := range inv.Lines {
		rules, err := json.Marshal(l.TaxRules)
		if err != nil {
			return fmt.Errorf("encode tax rules: %w", err)
		}
		amounts, err := json.Marshal(l.Result.TaxAmounts)
		if err != nil {
			return fmt.Errorf("encode tax amounts: %w", err)
		}
		rates, err := json.Marshal(l.Result.TaxRates)
		if err != nil {
			return fmt.Errorf("encode tax rates: %w", err)
		}
		b.Queue(`
			INSERT INTO invoice_lines (
				invoice_id, line_number, product_reference, product_code, product_name,
				quantity, unit_price, discount_percentage,
				subtotal, discount_amount, taxable_base, line_total,
				tax_rules, tax_amounts, tax_rates
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`,
			inv.ID, l.LineNumber, l.ProductReference, l.ProductCode, l.ProductName,
			l.Quantity, l.UnitPrice, l.DiscountPercentage,
			l.Result.Subtotal, l.Result.DiscountAmount, l.Result.TaxableBase, l.Result.LineTotal,
			string(rules), string(amounts), string(rates),
		)
	}
	for _, s := range inv.TaxSummaries {
		breakdown, err := json.Marshal(s.Breakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
		b.Queue(`
			INSERT INTO invoice_taxes (invoice_id, tax_type, rate_used, taxable_base, tax_amount, breakdown)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, inv.ID, string(s.Type), s.RateUsed, s.TaxableBase, s.TaxAmount, string(breakdown))
	}
	if b.Len() == 0 {
		return nil
	}

	br := t.tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to write details of invoice %d: %w", inv.ID, err)
		}
	}
	return br.Close()
}
