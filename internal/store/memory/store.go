// Package memory is an in-process implementation of the invoice store, used by
// unit tests and the CLI's --memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"einvoicing/internal/core"
)

// Store keeps companies, products, counters and invoices in maps. A transaction
// holds the store lock for its whole duration and stages its writes; they are
// applied only when the callback returns nil.
type Store struct {
	mu sync.RWMutex

	companies     map[int]core.Company
	products      map[productKey]core.ProductSnapshot
	counters      map[int]int64
	invoices      map[int]*core.Invoice
	nextID        int
	nextCompanyID int
}

type productKey struct {
	companyID int
	reference string
}

var (
	_ core.Store         = (*Store)(nil)
	_ core.TaxRuleLookup = (*Store)(nil)
)

func New() *Store {
	return &Store{
		companies: make(map[int]core.Company),
		products:  make(map[productKey]core.ProductSnapshot),
		counters:  make(map[int]int64),
		invoices:  make(map[int]*core.Invoice),
	}
}

// ── Master data ──────────────────────────────────────────────────────────────

// CreateCompany registers c and returns its id. A zero c.ID is assigned.
func (s *Store) CreateCompany(_ context.Context, c core.Company) (int, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.companies {
		if existing.TaxID == c.TaxID {
			return 0, fmt.Errorf("tax id %s: %w", c.TaxID, core.ErrCompanyExists)
		}
	}
	if c.ID == 0 {
		s.nextCompanyID++
		c.ID = s.nextCompanyID
	} else if c.ID > s.nextCompanyID {
		s.nextCompanyID = c.ID
	}
	s.companies[c.ID] = c
	return c.ID, nil
}

func (s *Store) GetCompany(_ context.Context, companyID int) (core.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[companyID]
	if !ok {
		return core.Company{}, fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
	}
	return c, nil
}

// UpsertProduct registers p for a company, replacing any product with the same reference.
func (s *Store) UpsertProduct(_ context.Context, companyID int, p core.ProductSnapshot) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[companyID]; !ok {
		return fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
	}
	p.TaxRules = append([]core.TaxRule(nil), p.TaxRules...)
	s.products[productKey{companyID, p.Reference}] = p
	return nil
}

func (s *Store) LookupProduct(_ context.Context, companyID int, reference string) (core.ProductSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productKey{companyID, reference}]
	if !ok {
		return core.ProductSnapshot{}, fmt.Errorf("product %q for company %d: %w", reference, companyID, core.ErrProductNotFound)
	}
	p.TaxRules = append([]core.TaxRule(nil), p.TaxRules...)
	return p, nil
}

// LastNumber returns the last committed sequence number of a company, 0 if none.
func (s *Store) LastNumber(companyID int) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[companyID]
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.StoreTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		s:        s,
		counters: make(map[int]int64),
		invoices: make(map[int]*core.Invoice),
		nextID:   s.nextID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, n := range tx.counters {
		s.counters[id] = n
	}
	for id, inv := range tx.invoices {
		s.invoices[id] = inv.Clone()
	}
	s.nextID = tx.nextID
	return nil
}

// storeTx is only used while the owning Store's write lock is held.
type storeTx struct {
	s        *Store
	counters map[int]int64
	invoices map[int]*core.Invoice
	nextID   int
}

func (tx *storeTx) Increment(_ context.Context, companyID int) (int64, core.NumberingConfig, error) {
	c, ok := tx.s.companies[companyID]
	if !ok {
		return 0, core.NumberingConfig{}, fmt.Errorf("company %d: %w", companyID, core.ErrCompanyNotFound)
	}
	cfg := c.NumberingConfig()

	last, staged := tx.counters[companyID]
	if !staged {
		last, staged = tx.s.counters[companyID]
	}
	n := core.FirstNumber(cfg)
	if staged {
		n = last + 1
	}
	tx.counters[companyID] = n
	return n, cfg, nil
}

func (tx *storeTx) InsertInvoice(_ context.Context, inv *core.Invoice) error {
	if _, ok := tx.s.companies[inv.CompanyID]; !ok {
		return fmt.Errorf("company %d: %w", inv.CompanyID, core.ErrCompanyNotFound)
	}
	for _, existing := range tx.all() {
		if existing.CompanyID == inv.CompanyID && existing.SequenceNumber == inv.SequenceNumber {
			return fmt.Errorf("duplicate sequence number %d for company %d", inv.SequenceNumber, inv.CompanyID)
		}
	}
	tx.nextID++
	inv.ID = tx.nextID
	tx.invoices[inv.ID] = inv.Clone()
	return nil
}

func (tx *storeTx) LockInvoice(_ context.Context, invoiceID int) (*core.Invoice, error) {
	if inv, ok := tx.invoices[invoiceID]; ok {
		return inv.Clone(), nil
	}
	if inv, ok := tx.s.invoices[invoiceID]; ok {
		return inv.Clone(), nil
	}
	return nil, fmt.Errorf("invoice %d: %w", invoiceID, core.ErrInvoiceNotFound)
}

func (tx *storeTx) UpdateInvoice(_ context.Context, inv *core.Invoice) error {
	_, staged := tx.invoices[inv.ID]
	_, committed := tx.s.invoices[inv.ID]
	if !staged && !committed {
		return fmt.Errorf("invoice %d: %w", inv.ID, core.ErrInvoiceNotFound)
	}
	tx.invoices[inv.ID] = inv.Clone()
	return nil
}

func (tx *storeTx) all() []*core.Invoice {
	out := make([]*core.Invoice, 0, len(tx.s.invoices)+len(tx.invoices))
	for id, inv := range tx.s.invoices {
		if _, ok := tx.invoices[id]; !ok {
			out = append(out, inv)
		}
	}
	for _, inv := range tx.invoices {
		out = append(out, inv)
	}
	return out
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *Store) GetInvoice(_ context.Context, invoiceID int) (*core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", invoiceID, core.ErrInvoiceNotFound)
	}
	return inv.Clone(), nil
}

// ListInvoices returns a company's invoices ordered by sequence number. A State
// filter of VOID implies IncludeVoided.
func (s *Store) ListInvoices(_ context.Context, companyID int, filter core.ListFilter) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*core.Invoice
	for _, inv := range s.invoices {
		if inv.CompanyID != companyID {
			continue
		}
		if filter.State != nil && inv.State != *filter.State {
			continue
		}
		if !inv.Active && !filter.IncludeVoided && (filter.State == nil || *filter.State != core.StateVoid) {
			continue
		}
		matched = append(matched, inv)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceNumber < matched[j].SequenceNumber
	})

	if filter.Offset >= len(matched) {
		return []core.Invoice{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]core.Invoice, len(matched))
	for i, inv := range matched {
		out[i] = *inv.Clone()
	}
	return out, nil
}
