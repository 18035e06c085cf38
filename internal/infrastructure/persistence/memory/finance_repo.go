package memory

import (
	"context"
	"sort"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tuition
// ─────────────────────────────────────────────────────────────────────────────

type tuitionRepository struct {
	db *DB
}

// NewTuitionRepository returns tuition storage over db.
func NewTuitionRepository(db *DB) finance.TuitionRepository {
	return &tuitionRepository{db: db}
}

func (r *tuitionRepository) Create(ctx context.Context, t *finance.Tuition) error {
	return r.CreateBatch(ctx, []*finance.Tuition{t})
}

func (r *tuitionRepository) CreateBatch(_ context.Context, ts []*finance.Tuition) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("tuitions.CreateBatch"); err != nil {
		return err
	}
	for _, t := range ts {
		t.ID = r.db.nextID()
		r.db.tuitions[t.ID] = t.Clone()
	}
	return nil
}

func (r *tuitionRepository) GetForUpdate(_ context.Context, id int64) (*finance.Tuition, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if t, ok := r.db.tuitions[id]; ok {
		return t.Clone(), nil
	}
	return nil, shared.ErrTuitionNotFound
}

func (r *tuitionRepository) Update(_ context.Context, t *finance.Tuition) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.tuitions[t.ID]; !ok {
		return shared.ErrTuitionNotFound
	}
	r.db.tuitions[t.ID] = t.Clone()
	return nil
}

func (r *tuitionRepository) MarkOverdue(_ context.Context, today time.Time) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("tuitions.MarkOverdue"); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range r.db.tuitions {
		if t.MarkOverdue(today) {
			n++
		}
	}
	return n, nil
}

func (r *tuitionRepository) ListByStudent(_ context.Context, studentID shared.UserID, page shared.Page) ([]*finance.Tuition, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*finance.Tuition, 0)
	for _, t := range r.db.tuitions {
		if t.StudentID == studentID {
			res = append(res, t.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].DueDate.Equal(res[j].DueDate) {
			return res[i].DueDate.After(res[j].DueDate)
		}
		return res[i].ID > res[j].ID
	})
	return paginate(res, page), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Payroll
// ─────────────────────────────────────────────────────────────────────────────

type payrollRepository struct {
	db *DB
}

// NewPayrollRepository returns payroll storage over db.
func NewPayrollRepository(db *DB) finance.PayrollRepository {
	return &payrollRepository{db: db}
}

func (r *payrollRepository) CreateBatch(_ context.Context, ps []*finance.Payroll) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("payrolls.CreateBatch"); err != nil {
		return err
	}
	for _, p := range ps {
		p.ID = r.db.nextID()
		r.db.payrolls[p.ID] = p.Clone()
	}
	return nil
}

func (r *payrollRepository) GetForUpdate(_ context.Context, id int64) (*finance.Payroll, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if p, ok := r.db.payrolls[id]; ok {
		return p.Clone(), nil
	}
	return nil, shared.ErrPayrollNotFound
}

func (r *payrollRepository) Update(_ context.Context, p *finance.Payroll) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.payrolls[p.ID]; !ok {
		return shared.ErrPayrollNotFound
	}
	r.db.payrolls[p.ID] = p.Clone()
	return nil
}

func (r *payrollRepository) ListByTeacher(_ context.Context, teacherID shared.UserID, page shared.Page) ([]*finance.Payroll, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*finance.Payroll, 0)
	for _, p := range r.db.payrolls {
		if p.TeacherID == teacherID {
			res = append(res, p.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return paginate(res, page), nil
}
