package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUITION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TuitionRepository implements finance.TuitionRepository for PostgreSQL.
type TuitionRepository struct {
	q Querier
}

// NewTuitionRepository creates a new TuitionRepository.
func NewTuitionRepository(q Querier) *TuitionRepository {
	return &TuitionRepository{q: q}
}

const tuitionColumns = `
	id, student_id, amount, term, due_date, status, payment_date, run_id, created_at, updated_at`

const insertTuition = `
	INSERT INTO tuition (student_id, amount, term, due_date, status, payment_date, run_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at
`

// Create inserts one tuition.
func (r *TuitionRepository) Create(ctx context.Context, t *finance.Tuition) error {
	err := r.q.QueryRow(ctx, insertTuition, tuitionArgs(t)...).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapError("tuitions.Create", err, shared.ErrStudentNotFound)
	}
	return nil
}

// CreateBatch inserts every tuition in one round trip.
func (r *TuitionRepository) CreateBatch(ctx context.Context, ts []*finance.Tuition) error {
	if len(ts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range ts {
		batch.Queue(insertTuition, tuitionArgs(t)...)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for _, t := range ts {
		if err := br.QueryRow().Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return mapError("tuitions.CreateBatch", err, shared.ErrStudentNotFound)
		}
	}
	return nil
}

// GetForUpdate returns a tuition and locks the row.
func (r *TuitionRepository) GetForUpdate(ctx context.Context, id int64) (*finance.Tuition, error) {
	query := `SELECT ` + tuitionColumns + ` FROM tuition WHERE id = $1 FOR UPDATE`
	t, err := scanTuition(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError("tuitions.GetForUpdate", err, shared.ErrTuitionNotFound)
	}
	return t, nil
}

// Update overwrites every mutable column.
func (r *TuitionRepository) Update(ctx context.Context, t *finance.Tuition) error {
	query := `
		UPDATE tuition SET
			amount = $2,
			term = $3,
			due_date = $4,
			status = $5,
			payment_date = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRow(ctx, query,
		t.ID,
		t.Amount.Int64(),
		t.Term,
		t.DueDate,
		string(t.Status),
		t.PaymentDate,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return mapError("tuitions.Update", err, shared.ErrTuitionNotFound)
	}
	return nil
}

// MarkOverdue flips pending tuition past its due date.
func (r *TuitionRepository) MarkOverdue(ctx context.Context, today time.Time) (int, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE tuition SET status = $1, updated_at = NOW()
		WHERE status = $2 AND due_date < $3
	`, string(finance.StatusOverdue), string(finance.StatusPending), today)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tuition: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByStudent returns a student's tuition, latest due date first.
func (r *TuitionRepository) ListByStudent(ctx context.Context, studentID shared.UserID, page shared.Page) ([]*finance.Tuition, error) {
	page = page.Normalize()
	query := `SELECT ` + tuitionColumns + ` FROM tuition
		WHERE student_id = $1
		ORDER BY due_date DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, studentID.Int64(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tuition: %w", err)
	}
	defer rows.Close()

	out := make([]*finance.Tuition, 0)
	for rows.Next() {
		t, err := scanTuition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tuition: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func tuitionArgs(t *finance.Tuition) []interface{} {
	return []interface{}{
		t.StudentID.Int64(),
		t.Amount.Int64(),
		t.Term,
		t.DueDate,
		string(t.Status),
		t.PaymentDate,
		runIDToPG(t.RunID),
	}
}

func scanTuition(row pgx.Row) (*finance.Tuition, error) {
	var t finance.Tuition
	var studentID, amount int64
	var status string
	var runID uuid.NullUUID

	err := row.Scan(
		&t.ID,
		&studentID,
		&amount,
		&t.Term,
		&t.DueDate,
		&status,
		&t.PaymentDate,
		&runID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.StudentID = shared.UserID(studentID)
	t.Amount = finance.Money(amount)
	t.Status = finance.Status(status)
	t.RunID = runIDFromPG(runID)
	return &t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYROLL REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PayrollRepository implements finance.PayrollRepository for PostgreSQL.
type PayrollRepository struct {
	q Querier
}

// NewPayrollRepository creates a new PayrollRepository.
func NewPayrollRepository(q Querier) *PayrollRepository {
	return &PayrollRepository{q: q}
}

const payrollColumns = `
	id, teacher_id, month, year, total_base_salary, reward_bonus, sent_at, status, run_id`

// CreateBatch inserts every payroll in one round trip.
func (r *PayrollRepository) CreateBatch(ctx context.Context, ps []*finance.Payroll) error {
	if len(ps) == 0 {
		return nil
	}

	query := `
		INSERT INTO payroll (teacher_id, month, year, total_base_salary, reward_bonus, sent_at, status, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	batch := &pgx.Batch{}
	for _, p := range ps {
		batch.Queue(query,
			p.TeacherID.Int64(),
			p.Month,
			p.Year,
			p.BaseSalaryTotal.Int64(),
			p.RewardBonus.Int64(),
			p.SentAt,
			string(p.Status),
			runIDToPG(p.RunID),
		)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for _, p := range ps {
		if err := br.QueryRow().Scan(&p.ID); err != nil {
			return mapError("payrolls.CreateBatch", err, shared.ErrTeacherNotFound)
		}
	}
	return nil
}

// GetForUpdate returns a payroll and locks the row.
func (r *PayrollRepository) GetForUpdate(ctx context.Context, id int64) (*finance.Payroll, error) {
	query := `SELECT ` + payrollColumns + ` FROM payroll WHERE id = $1 FOR UPDATE`
	p, err := scanPayroll(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError("payrolls.GetForUpdate", err, shared.ErrPayrollNotFound)
	}
	return p, nil
}

// Update overwrites every mutable column. The total is derived by the database.
func (r *PayrollRepository) Update(ctx context.Context, p *finance.Payroll) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE payroll SET
			month = $2,
			total_base_salary = $3,
			reward_bonus = $4,
			sent_at = $5,
			status = $6
		WHERE id = $1
	`,
		p.ID,
		p.Month,
		p.BaseSalaryTotal.Int64(),
		p.RewardBonus.Int64(),
		p.SentAt,
		string(p.Status),
	)
	if err != nil {
		return mapError("payrolls.Update", err, shared.ErrPayrollNotFound)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPayrollNotFound
	}
	return nil
}

// ListByTeacher returns a teacher's payrolls, latest period first.
func (r *PayrollRepository) ListByTeacher(ctx context.Context, teacherID shared.UserID, page shared.Page) ([]*finance.Payroll, error) {
	page = page.Normalize()
	query := `SELECT ` + payrollColumns + ` FROM payroll
		WHERE teacher_id = $1
		ORDER BY year DESC, month DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, teacherID.Int64(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll: %w", err)
	}
	defer rows.Close()

	out := make([]*finance.Payroll, 0)
	for rows.Next() {
		p, err := scanPayroll(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayroll(row pgx.Row) (*finance.Payroll, error) {
	var p finance.Payroll
	var teacherID, base, bonus int64
	var status string
	var runID uuid.NullUUID

	err := row.Scan(
		&p.ID,
		&teacherID,
		&p.Month,
		&p.Year,
		&base,
		&bonus,
		&p.SentAt,
		&status,
		&runID,
	)
	if err != nil {
		return nil, err
	}
	p.TeacherID = shared.UserID(teacherID)
	p.BaseSalaryTotal = finance.Money(base)
	p.RewardBonus = finance.Money(bonus)
	p.Status = finance.Status(status)
	p.RunID = runIDFromPG(runID)
	return &p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Run IDs
// ─────────────────────────────────────────────────────────────────────────────

func runIDToPG(id *finance.RunID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func runIDFromPG(id uuid.NullUUID) *finance.RunID {
	if !id.Valid {
		return nil
	}
	v := id.UUID
	return &v
}
