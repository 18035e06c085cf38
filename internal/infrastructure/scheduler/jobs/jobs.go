// Package jobs contains the scheduled jobs of the schoolbook worker.
package jobs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/retry"
)

// FinanceMetrics counts the rows produced by financial jobs. A nil
// *FinanceMetrics records nothing.
type FinanceMetrics struct {
	tuitionCreated  prometheus.Counter
	tuitionOverdue  prometheus.Counter
	payrollsCreated prometheus.Counter
}

// NewFinanceMetrics creates the counters and registers them on reg when reg
// is not nil.
func NewFinanceMetrics(reg prometheus.Registerer) *FinanceMetrics {
	m := &FinanceMetrics{
		tuitionCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolbook", Name: "tuition_created_total", Help: "Tuition rows created by scheduled runs",
		}),
		tuitionOverdue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolbook", Name: "tuition_overdue_total", Help: "Tuition rows moved to overdue",
		}),
		payrollsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolbook", Name: "payrolls_created_total", Help: "Payroll rows created by scheduled runs",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.tuitionCreated, m.tuitionOverdue, m.payrollsCreated)
	}
	return m
}

func (m *FinanceMetrics) addTuitionCreated(n int) {
	if m != nil {
		m.tuitionCreated.Add(float64(n))
	}
}

func (m *FinanceMetrics) addTuitionOverdue(n int) {
	if m != nil {
		m.tuitionOverdue.Add(float64(n))
	}
}

func (m *FinanceMetrics) addPayrolls(n int) {
	if m != nil {
		m.payrollsCreated.Add(float64(n))
	}
}

// withTimeout applies d when it is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// transactional retries fn while the store reports a transient failure.
func transactional(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.TransactionRetrier(shared.IsRetryable).Do(ctx, fn)
}
