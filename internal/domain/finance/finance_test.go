package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

func statusPtr(s Status) *Status { return &s }
func moneyPtr(m Money) *Money    { return &m }

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusPaid))
	assert.True(t, StatusPending.CanTransitionTo(StatusOverdue))
	assert.True(t, StatusOverdue.CanTransitionTo(StatusPaid))
	assert.False(t, StatusOverdue.CanTransitionTo(StatusPending))
	assert.False(t, StatusPaid.CanTransitionTo(StatusPending))
	assert.False(t, StatusPaid.CanTransitionTo(StatusPaid))
}

func TestTuition_Apply(t *testing.T) {
	now := time.Date(2024, 10, 5, 9, 0, 0, 0, time.UTC)
	tu, err := NewTuition(3, 500, 1, now.AddDate(0, 0, 10), now)
	require.NoError(t, err)

	require.NoError(t, tu.Apply(TuitionPatch{Amount: moneyPtr(700)}, now))
	assert.Equal(t, Money(700), tu.Amount)
	assert.Nil(t, tu.PaymentDate)

	require.NoError(t, tu.Apply(TuitionPatch{Status: statusPtr(StatusPaid)}, now))
	require.NotNil(t, tu.PaymentDate)
	assert.Equal(t, now, *tu.PaymentDate)

	err = tu.Apply(TuitionPatch{Amount: moneyPtr(1)}, now)
	assert.True(t, shared.IsSettled(err))
	assert.False(t, shared.IsNotFound(err))
	assert.Equal(t, Money(700), tu.Amount)
}

func TestTuition_ApplyRejectsBadInput(t *testing.T) {
	now := time.Now()
	tu, err := NewTuition(3, 500, 1, now, now)
	require.NoError(t, err)

	assert.True(t, shared.IsValidation(tu.Apply(TuitionPatch{Amount: moneyPtr(0)}, now)))
	assert.True(t, shared.IsValidation(tu.Apply(TuitionPatch{Status: statusPtr("refunded")}, now)))

	_, err = NewTuition(3, 0, 1, now, now)
	assert.Error(t, err)
}

func TestTuition_MarkOverdue(t *testing.T) {
	created := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	tu, err := NewTuition(3, 500, 1, time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), created)
	require.NoError(t, err)

	assert.False(t, tu.MarkOverdue(time.Date(2024, 9, 10, 23, 0, 0, 0, time.UTC)))
	assert.True(t, tu.MarkOverdue(time.Date(2024, 9, 11, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, StatusOverdue, tu.Status)
	assert.False(t, tu.MarkOverdue(time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)))
}

func TestComputePayroll(t *testing.T) {
	now := time.Date(2024, 11, 30, 18, 0, 0, 0, time.UTC)
	p := ComputePayroll(4, 3, 1_000_000, 250_000, now)

	assert.Equal(t, 11, p.Month)
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, Money(3_000_000), p.BaseSalaryTotal)
	assert.Equal(t, Money(3_250_000), p.Total())
	assert.Equal(t, StatusPending, p.Status)
}

func TestPayroll_Apply(t *testing.T) {
	p := ComputePayroll(4, 1, 100, 0, time.Now())

	require.NoError(t, p.Apply(PayrollPatch{RewardBonus: moneyPtr(50)}))
	assert.Equal(t, Money(150), p.Total())

	month := 13
	assert.True(t, shared.IsValidation(p.Apply(PayrollPatch{Month: &month})))

	err := p.Apply(PayrollPatch{Status: statusPtr(StatusOverdue)})
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.Equal(t, StatusPending, p.Status)

	require.NoError(t, p.Apply(PayrollPatch{Status: statusPtr(StatusPaid)}))
	err = p.Apply(PayrollPatch{RewardBonus: moneyPtr(1)})
	assert.True(t, shared.IsSettled(err))
	assert.Equal(t, Money(150), p.Total())
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "1,500,000", Money(1500000).String())
}
