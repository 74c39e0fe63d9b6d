package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"einvoicing/internal/core"
	"einvoicing/internal/money"
	"einvoicing/internal/store/memory"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	engine  core.InvoiceService
	company int
	refs    *countingGenerator
	rec     *fakeRecorder
}

type countingGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, inv *core.Invoice) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return core.NewPlaceholderReferenceGenerator("").Generate(ctx, inv)
}

type fakeRecorder struct {
	mu          sync.Mutex
	created     int
	transitions []string
	failures    []string
}

func (r *fakeRecorder) InvoiceCreated(int, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *fakeRecorder) InvoiceTransitioned(from, to core.InvoiceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
}

func (r *fakeRecorder) AllocationFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reason)
}

func seedCompany(t *testing.T, store *memory.Store, taxID, prefix string, from, to *int64) int {
	t.Helper()
	ctx := context.Background()

	id, err := store.CreateCompany(ctx, core.Company{TaxID: taxID, Name: "Company " + taxID, Prefix: prefix, RangeFrom: from, RangeTo: to})
	require.NoError(t, err)

	require.NoError(t, store.UpsertProduct(ctx, id, core.ProductSnapshot{
		Reference: "SKU-1", Code: "P001", Name: "Consulting hour",
		TaxRules: []core.TaxRule{iva("19")},
	}))
	require.NoError(t, store.UpsertProduct(ctx, id, core.ProductSnapshot{
		Reference: "SKU-2", Code: "P002", Name: "Restaurant service",
		TaxRules: []core.TaxRule{{Type: core.TaxINC, Rate: money.MustPercentage("8"), Applies: true}},
	}))
	return id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{
		store:   store,
		company: seedCompany(t, store, "900123456", "SETT", nil, nil),
		refs:    &countingGenerator{},
		rec:     &fakeRecorder{},
	}
	f.engine = core.NewInvoiceService(store, store, f.refs,
		core.WithRecorder(f.rec),
		core.WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *fixture) create(t *testing.T, lines ...core.LineInput) *core.Invoice {
	t.Helper()
	inv, err := f.engine.CreateInvoice(context.Background(), core.CreateInvoiceInput{
		CompanyID:       f.company,
		ClientReference: "CLIENT-1",
		Lines:           lines,
	})
	require.NoError(t, err)
	return inv
}

func exampleLine() core.LineInput { return lineInput("3", "100000.00", "10.00") }

// ── Creation ─────────────────────────────────────────────────────────────────

func TestCreateInvoice_WorkedExample(t *testing.T) {
	f := newFixture(t)

	inv := f.create(t, exampleLine(), exampleLine())

	assert.Equal(t, core.StateDraft, inv.State)
	assert.True(t, inv.Active)
	assert.Nil(t, inv.ExternalReference)
	assert.Equal(t, int64(1), inv.SequenceNumber)
	assert.Equal(t, "SETT", inv.Prefix)
	assert.Equal(t, "SETT1", inv.DisplayNumber)
	assert.Equal(t, "2024-03-15", inv.EmissionDate.Format(time.DateOnly))

	assert.Equal(t, "600000.00", inv.Subtotal.String())
	assert.Equal(t, "60000.00", inv.TotalDiscounts.String())
	assert.Equal(t, "102600.00", inv.TotalTaxes.String())
	assert.Equal(t, "642600.00", inv.GrandTotal.String())
	require.Len(t, inv.TaxSummaries, 1)
	assert.Equal(t, "540000.00", inv.TaxSummaries[0].TaxableBase.String())

	require.Len(t, inv.Lines, 2)
	assert.Equal(t, 2, inv.Lines[1].LineNumber)
	assert.Equal(t, "P001", inv.Lines[0].ProductCode)
	assert.Equal(t, "321300.00", inv.Lines[0].Result.LineTotal.String())

	stored, err := f.engine.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.GrandTotal.String(), stored.GrandTotal.String())
	assert.Equal(t, 1, f.rec.created)
}

func TestCreateInvoice_EmptyAllocatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateInvoice(context.Background(), core.CreateInvoiceInput{CompanyID: f.company})
	assert.ErrorIs(t, err, core.ErrEmptyInvoice)
	assert.Equal(t, int64(0), f.store.LastNumber(f.company))

	inv := f.create(t, exampleLine())
	assert.Equal(t, int64(1), inv.SequenceNumber)
}

func TestCreateInvoice_InvalidLineAllocatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{
		CompanyID: f.company,
		Lines:     []core.LineInput{exampleLine(), lineInput("0", "10.00", "0")},
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Contains(t, err.Error(), "line 2")

	unknown := exampleLine()
	unknown.ProductReference = "NOPE"
	_, err = f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{CompanyID: f.company, Lines: []core.LineInput{unknown}})
	require.ErrorIs(t, err, core.ErrProductNotFound)

	assert.Equal(t, int64(0), f.store.LastNumber(f.company))
}

func TestCreateInvoice_CompanyWithoutPrefix(t *testing.T) {
	f := newFixture(t)
	other := seedCompany(t, f.store, "800999111", "", nil, nil)
	ctx := context.Background()

	inv, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{CompanyID: other, Lines: []core.LineInput{exampleLine()}})
	require.NoError(t, err)
	assert.Equal(t, "1", inv.DisplayNumber)

	_, err = f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{CompanyID: 0, Lines: []core.LineInput{exampleLine()}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCreateInvoice_ConcurrentNumbersAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[int64]bool)
		errCh   = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{CompanyID: f.company, Lines: []core.LineInput{exampleLine()}})
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if numbers[inv.SequenceNumber] {
				errCh <- errors.New("duplicate number " + inv.DisplayNumber)
			}
			numbers[inv.SequenceNumber] = true
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent create error: %v", err)
	}
	assert.Len(t, numbers, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, numbers[i], "missing number %d", i)
	}
}

func TestCreateInvoice_CountersArePerCompany(t *testing.T) {
	f := newFixture(t)
	other := seedCompany(t, f.store, "800999111", "FE", nil, nil)
	ctx := context.Background()

	f.create(t, exampleLine())
	f.create(t, exampleLine())
	inv, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{CompanyID: other, Lines: []core.LineInput{exampleLine()}})
	require.NoError(t, err)

	assert.Equal(t, "FE1", inv.DisplayNumber)
	assert.Equal(t, int64(2), f.store.LastNumber(f.company))
}

func TestCreateInvoice_AuthorisedRange(t *testing.T) {
	store := memory.New()
	from, to := int64(100), int64(101)
	company := seedCompany(t, store, "900123456", "SETT", &from, &to)
	rec := &fakeRecorder{}
	engine := core.NewInvoiceService(store, store, core.NewPlaceholderReferenceGenerator(""), core.WithRecorder(rec))
	ctx := context.Background()
	in := core.CreateInvoiceInput{CompanyID: company, Lines: []core.LineInput{exampleLine()}}

	first, err := engine.CreateInvoice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "SETT100", first.DisplayNumber)

	second, err := engine.CreateInvoice(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "SETT101", second.DisplayNumber)

	_, err = engine.CreateInvoice(ctx, in)
	require.ErrorIs(t, err, core.ErrNumberingRangeExhausted)
	assert.Equal(t, int64(101), store.LastNumber(company))
	assert.Equal(t, []string{"range_exhausted"}, rec.failures)
}

// failingInsertStore wraps the memory store so every invoice insert fails
// after the number has been allocated.
type failingInsertStore struct {
	*memory.Store
}

func (s failingInsertStore) InTx(ctx context.Context, fn func(context.Context, core.StoreTx) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx core.StoreTx) error {
		return fn(ctx, failingInsertTx{tx})
	})
}

type failingInsertTx struct {
	core.StoreTx
}

func (failingInsertTx) InsertInvoice(context.Context, *core.Invoice) error {
	return errors.New("disk full")
}

func TestCreateInvoice_FailedInsertConsumesNoNumber(t *testing.T) {
	f := newFixture(t)
	broken := core.NewInvoiceService(failingInsertStore{f.store}, f.store, f.refs)

	_, err := broken.CreateInvoice(context.Background(), core.CreateInvoiceInput{CompanyID: f.company, Lines: []core.LineInput{exampleLine()}})
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, int64(0), f.store.LastNumber(f.company))

	inv := f.create(t, exampleLine())
	assert.Equal(t, "SETT1", inv.DisplayNumber)
}

// ── Draft edits ──────────────────────────────────────────────────────────────

func TestReplaceLines_RecomputesDraft(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, exampleLine())

	updated, err := f.engine.ReplaceLines(context.Background(), inv.ID, []core.LineInput{
		exampleLine(),
		{ProductReference: "SKU-2", Quantity: money.MustQuantity("2"), UnitPrice: money.MustMoney("50000.00"), DiscountPercentage: money.ZeroPercent},
	})
	require.NoError(t, err)

	assert.Equal(t, inv.SequenceNumber, updated.SequenceNumber)
	assert.Equal(t, "400000.00", updated.Subtotal.String())
	assert.Equal(t, "51300.00", updated.TaxTotal(core.TaxIVA).String())
	assert.Equal(t, "8000.00", updated.TaxTotal(core.TaxINC).String())
	assert.Equal(t, "429300.00", updated.GrandTotal.String())
	require.Len(t, updated.TaxSummaries, 2)
	assert.Equal(t, core.TaxINC, updated.TaxSummaries[1].Type)

	_, err = f.engine.ReplaceLines(context.Background(), inv.ID, nil)
	assert.ErrorIs(t, err, core.ErrEmptyInvoice)
}

func TestReplaceLines_RejectedAfterIssue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, exampleLine())

	_, err := f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	require.NoError(t, err)

	_, err = f.engine.ReplaceLines(ctx, inv.ID, []core.LineInput{exampleLine(), exampleLine()})
	require.ErrorIs(t, err, core.ErrImmutableInvoice)
	var ie *core.ImmutableInvoiceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, core.StateIssued, ie.State)

	stored, err := f.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "321300.00", stored.GrandTotal.String())
	assert.Len(t, stored.Lines, 1)
}

func TestReplaceLines_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.ReplaceLines(context.Background(), 99, []core.LineInput{exampleLine()})
	assert.ErrorIs(t, err, core.ErrInvoiceNotFound)
}

func TestUpdateAnnotations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, exampleLine())
	notes, client := "paid by transfer", "CLIENT-2"
	due := fixedNow.AddDate(0, 0, 30)

	updated, err := f.engine.UpdateAnnotations(ctx, inv.ID, core.AnnotationUpdate{Notes: &notes, ClientReference: &client, DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, client, updated.ClientReference)
	require.NotNil(t, updated.DueDate)

	_, err = f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	require.NoError(t, err)

	obs := "delivered"
	updated, err = f.engine.UpdateAnnotations(ctx, inv.ID, core.AnnotationUpdate{Observations: &obs})
	require.NoError(t, err)
	assert.Equal(t, obs, updated.Observations)
	assert.Equal(t, "321300.00", updated.GrandTotal.String())

	_, err = f.engine.UpdateAnnotations(ctx, inv.ID, core.AnnotationUpdate{ClientReference: &client})
	assert.ErrorIs(t, err, core.ErrImmutableInvoice)

	_, err = f.engine.UpdateAnnotations(ctx, inv.ID, core.AnnotationUpdate{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.engine.Transition(ctx, inv.ID, core.StateVoid, core.TransitionOptions{})
	require.NoError(t, err)
	_, err = f.engine.UpdateAnnotations(ctx, inv.ID, core.AnnotationUpdate{Notes: &notes})
	assert.ErrorIs(t, err, core.ErrImmutableInvoice)
}

func TestCreateInvoice_DueDateBeforeDefaultEmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := fixedNow.AddDate(0, 0, -30)

	_, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{
		CompanyID: f.company,
		DueDate:   &due,
		Lines:     []core.LineInput{exampleLine()},
	})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "due_date", verr.Field)
	assert.Equal(t, int64(0), f.store.LastNumber(f.company))

	sameDay := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	inv, err := f.engine.CreateInvoice(ctx, core.CreateInvoiceInput{
		CompanyID: f.company,
		DueDate:   &sameDay,
		Lines:     []core.LineInput{exampleLine()},
	})
	require.NoError(t, err)
	assert.Equal(t, sameDay, inv.EmissionDate)
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func TestTransition_DraftCannotBeAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, exampleLine())

	_, err := f.engine.Transition(ctx, inv.ID, core.StateAccepted, core.TransitionOptions{})
	require.ErrorIs(t, err, core.ErrInvalidTransition)

	issued, err := f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, *issued.IssuedAt)

	accepted, err := f.engine.Transition(ctx, inv.ID, core.StateAccepted, core.TransitionOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StateAccepted, accepted.State)
	require.NotNil(t, accepted.ResolvedAt)

	assert.Equal(t, []string{"DRAFT->ISSUED", "ISSUED->ACCEPTED"}, f.rec.transitions)
}

func TestTransition_ReferenceAssignedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, exampleLine())

	issued, err := f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	require.NoError(t, err)
	require.NotNil(t, issued.ExternalReference)
	assert.Equal(t, "CUFE-1-SETT1", *issued.ExternalReference)

	rejected, err := f.engine.Transition(ctx, inv.ID, core.StateRejected, core.TransitionOptions{})
	require.NoError(t, err)
	voided, err := f.engine.Transition(ctx, inv.ID, core.StateVoid, core.TransitionOptions{Reason: "rejected by authority"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.refs.calls)
	assert.Equal(t, *issued.ExternalReference, *rejected.ExternalReference)
	assert.Equal(t, *issued.ExternalReference, *voided.ExternalReference)
	assert.False(t, voided.Active)
	assert.Equal(t, "rejected by authority", voided.VoidReason)
	assert.Equal(t, issued.GrandTotal.String(), voided.GrandTotal.String())

	_, err = f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
	assert.Equal(t, 1, f.refs.calls)
}

func TestTransition_VoidFromDraftHasNoReference(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, exampleLine())

	voided, err := f.engine.Transition(context.Background(), inv.ID, core.StateVoid, core.TransitionOptions{})
	require.NoError(t, err)
	assert.Nil(t, voided.ExternalReference)
	assert.False(t, voided.Active)
	assert.Equal(t, 0, f.refs.calls)
	assert.Equal(t, "321300.00", voided.GrandTotal.String())
}

func TestTransition_GeneratorFailureLeavesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.create(t, exampleLine())
	f.refs.err = errors.New("signer offline")

	_, err := f.engine.Transition(ctx, inv.ID, core.StateIssued, core.TransitionOptions{})
	require.ErrorIs(t, err, core.ErrReferenceGeneration)

	stored, err := f.engine.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StateDraft, stored.State)
	assert.Nil(t, stored.ExternalReference)
}

func TestTransition_UnknownState(t *testing.T) {
	f := newFixture(t)
	inv := f.create(t, exampleLine())
	_, err := f.engine.Transition(context.Background(), inv.ID, core.InvoiceState("PAID"), core.TransitionOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func TestListInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.create(t, exampleLine())
	}
	_, err := f.engine.Transition(ctx, 2, core.StateVoid, core.TransitionOptions{})
	require.NoError(t, err)
	_, err = f.engine.Transition(ctx, 3, core.StateIssued, core.TransitionOptions{})
	require.NoError(t, err)

	active, err := f.engine.ListInvoices(ctx, f.company, core.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 4)

	all, err := f.engine.ListInvoices(ctx, f.company, core.ListFilter{IncludeVoided: true})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "SETT1", all[0].DisplayNumber)
	assert.Equal(t, "SETT5", all[4].DisplayNumber)

	void := core.StateVoid
	voided, err := f.engine.ListInvoices(ctx, f.company, core.ListFilter{State: &void})
	require.NoError(t, err)
	require.Len(t, voided, 1)
	assert.Equal(t, 2, voided[0].ID)

	page, err := f.engine.ListInvoices(ctx, f.company, core.ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "SETT3", page[0].DisplayNumber)

	_, err = f.engine.ListInvoices(ctx, f.company, core.ListFilter{Offset: -1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
