package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"einvoicing/internal/core"
)

type stubCounter struct {
	n   int64
	cfg core.NumberingConfig
	err error
}

func (s *stubCounter) Increment(context.Context, int) (int64, core.NumberingConfig, error) {
	if s.err != nil {
		return 0, core.NumberingConfig{}, s.err
	}
	s.n++
	return s.n, s.cfg, nil
}

func TestSequenceAllocator_DisplayNumber(t *testing.T) {
	c := &stubCounter{n: 41, cfg: core.NumberingConfig{Prefix: "SETT"}}

	a, err := core.SequenceAllocator{}.Next(context.Background(), c, 7)
	require.NoError(t, err)
	assert.Equal(t, core.Allocation{CompanyID: 7, SequenceNumber: 42, Prefix: "SETT", DisplayNumber: "SETT42"}, a)
}

func TestSequenceAllocator_RangeExhausted(t *testing.T) {
	to := int64(10)
	c := &stubCounter{n: 10, cfg: core.NumberingConfig{RangeTo: &to}}

	_, err := core.SequenceAllocator{}.Next(context.Background(), c, 1)
	assert.ErrorIs(t, err, core.ErrNumberingRangeExhausted)
}

func TestSequenceAllocator_BelowRangeStart(t *testing.T) {
	from := int64(100)
	c := &stubCounter{n: 4, cfg: core.NumberingConfig{RangeFrom: &from}}

	_, err := core.SequenceAllocator{}.Next(context.Background(), c, 1)
	assert.ErrorIs(t, err, core.ErrNumberingRangeExhausted)
	assert.ErrorContains(t, err, "below range start 100")
}

func TestSequenceAllocator_PassesConflictThrough(t *testing.T) {
	c := &stubCounter{err: core.ErrAllocationConflict}
	_, err := core.SequenceAllocator{}.Next(context.Background(), c, 1)
	assert.ErrorIs(t, err, core.ErrAllocationConflict)

	c = &stubCounter{err: errors.New("connection reset")}
	_, err = core.SequenceAllocator{}.Next(context.Background(), c, 1)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, core.ErrAllocationConflict)
}

func TestFirstNumber(t *testing.T) {
	from := int64(1000)
	assert.Equal(t, int64(1), core.FirstNumber(core.NumberingConfig{}))
	assert.Equal(t, int64(1000), core.FirstNumber(core.NumberingConfig{RangeFrom: &from}))
}
