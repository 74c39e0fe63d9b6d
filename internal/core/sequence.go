package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Allocation is one allocated invoice number.
type Allocation struct {
	CompanyID      int
	SequenceNumber int64
	Prefix         string
	DisplayNumber  string
}

// SequenceAllocator hands out strictly increasing invoice numbers per company.
// The atomicity comes from CounterStore.Increment; the allocator adds the
// authorised-range check and the display number. It must run inside the same
// transaction that persists the invoice.
type SequenceAllocator struct{}

// Next allocates the next number for companyID. When the number falls outside
// the authorised range the error is ErrNumberingRangeExhausted and the caller's
// transaction must roll back so the number is not consumed.
func (SequenceAllocator) Next(ctx context.Context, counters CounterStore, companyID int) (Allocation, error) {
	n, cfg, err := counters.Increment(ctx, companyID)
	if err != nil {
		if errors.Is(err, ErrAllocationConflict) || errors.Is(err, ErrCompanyNotFound) {
			return Allocation{}, err
		}
		return Allocation{}, fmt.Errorf("failed to advance invoice counter for company %d: %w", companyID, err)
	}
	if n <= 0 {
		return Allocation{}, fmt.Errorf("counter for company %d returned non-positive number %d", companyID, n)
	}
	if cfg.RangeFrom != nil && n < *cfg.RangeFrom {
		return Allocation{}, fmt.Errorf("company %d: number %d is below range start %d: %w", companyID, n, *cfg.RangeFrom, ErrNumberingRangeExhausted)
	}
	if cfg.RangeTo != nil && n > *cfg.RangeTo {
		return Allocation{}, fmt.Errorf("company %d: number %d exceeds %d: %w", companyID, n, *cfg.RangeTo, ErrNumberingRangeExhausted)
	}

	return Allocation{
		CompanyID:      companyID,
		SequenceNumber: n,
		Prefix:         cfg.Prefix,
		DisplayNumber:  FormatDisplayNumber(cfg.Prefix, n),
	}, nil
}

// FormatDisplayNumber concatenates the prefix and the decimal number, e.g. "SETT" + 42 = "SETT42".
func FormatDisplayNumber(prefix string, n int64) string {
	return prefix + strconv.FormatInt(n, 10)
}

// FirstNumber is the value a fresh counter starts at for cfg.
func FirstNumber(cfg NumberingConfig) int64 {
	if cfg.RangeFrom != nil && *cfg.RangeFrom > 0 {
		return *cfg.RangeFrom
	}
	return 1
}
