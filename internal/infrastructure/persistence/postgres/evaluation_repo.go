package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationRepository implements evaluation.Repository for PostgreSQL.
type EvaluationRepository struct {
	q Querier
}

// NewEvaluationRepository creates a new EvaluationRepository over a pool or transaction.
func NewEvaluationRepository(q Querier) *EvaluationRepository {
	return &EvaluationRepository{q: q}
}

const evaluationColumns = `
	id, student_id, teacher_id, class_id, evaluation_type,
	study_point, discipline_point, content, date, attendance_id,
	created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts the evaluation and fills ID and timestamps.
func (r *EvaluationRepository) Create(ctx context.Context, e *evaluation.Evaluation) error {
	if err := e.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO evaluations (
			student_id, teacher_id, class_id, evaluation_type,
			study_point, discipline_point, content, date, attendance_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		e.StudentID.Int64(),
		e.TeacherID.Int64(),
		e.ClassID.Int64(),
		string(e.Type),
		e.StudyPoint,
		e.DisciplinePoint,
		e.Content,
		evaluation.DateOnly(e.Date),
		e.AttendanceID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return mapError("evaluations.Create", err, shared.ErrEvaluationNotFound)
	}
	return nil
}

// Update overwrites the mutable fields.
func (r *EvaluationRepository) Update(ctx context.Context, e *evaluation.Evaluation) error {
	query := `
		UPDATE evaluations SET
			evaluation_type = $2,
			study_point = $3,
			discipline_point = $4,
			content = $5,
			date = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		e.ID,
		string(e.Type),
		e.StudyPoint,
		e.DisciplinePoint,
		e.Content,
		evaluation.DateOnly(e.Date),
	).Scan(&e.UpdatedAt)
	if err != nil {
		return mapError("evaluations.Update", err, shared.ErrEvaluationNotFound)
	}
	return nil
}

// Delete removes the row.
func (r *EvaluationRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return mapError("evaluations.Delete", err, shared.ErrEvaluationNotFound)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEvaluationNotFound
	}
	return nil
}

// GetByID returns one evaluation.
func (r *EvaluationRepository) GetByID(ctx context.Context, id int64) (*evaluation.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = $1`
	e, err := scanEvaluation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError("evaluations.GetByID", err, shared.ErrEvaluationNotFound)
	}
	return e, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listings
// ─────────────────────────────────────────────────────────────────────────────

const evaluationOrder = ` ORDER BY date DESC, id DESC`

// ListByStudent returns a student's evaluations, newest first.
func (r *EvaluationRepository) ListByStudent(ctx context.Context, studentID shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return r.list(ctx, `WHERE student_id = $1`, page, studentID.Int64())
}

// ListByStudents returns evaluations of any of the students.
func (r *EvaluationRepository) ListByStudents(ctx context.Context, studentIDs []shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	ids := make([]int64, len(studentIDs))
	for i, id := range studentIDs {
		ids[i] = id.Int64()
	}
	return r.list(ctx, `WHERE student_id = ANY($1)`, page, ids)
}

// ListByTeacher returns evaluations written by a teacher.
func (r *EvaluationRepository) ListByTeacher(ctx context.Context, teacherID shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return r.list(ctx, `WHERE teacher_id = $1`, page, teacherID.Int64())
}

// ListByClass returns evaluations of a class.
func (r *EvaluationRepository) ListByClass(ctx context.Context, classID shared.ClassID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return r.list(ctx, `WHERE class_id = $1`, page, classID.Int64())
}

// ListByStudentInClass returns a student's evaluations within one class.
func (r *EvaluationRepository) ListByStudentInClass(ctx context.Context, studentID shared.UserID, classID shared.ClassID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return r.list(ctx, `WHERE student_id = $1 AND class_id = $2`, page, studentID.Int64(), classID.Int64())
}

// List returns every evaluation.
func (r *EvaluationRepository) List(ctx context.Context, page shared.Page) ([]*evaluation.Evaluation, error) {
	return r.list(ctx, ``, page)
}

func (r *EvaluationRepository) list(ctx context.Context, where string, page shared.Page, args ...interface{}) ([]*evaluation.Evaluation, error) {
	page = page.Normalize()
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM evaluations %s %s LIMIT $%d OFFSET $%d`,
		evaluationColumns, where, evaluationOrder, n+1, n+2)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	out := make([]*evaluation.Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Upsert support
// ─────────────────────────────────────────────────────────────────────────────

// FindByAttendance returns the penalty linked to an attendance record and
// locks it. The partial unique index allows at most one.
func (r *EvaluationRepository) FindByAttendance(ctx context.Context, attendanceID int64) (*evaluation.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations
		WHERE attendance_id = $1
		FOR UPDATE`

	e, err := scanEvaluation(r.q.QueryRow(ctx, query, attendanceID))
	if err != nil {
		return nil, mapError("evaluations.FindByAttendance", err, shared.ErrEvaluationNotFound)
	}
	return e, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregation
// ─────────────────────────────────────────────────────────────────────────────

const tallySelect = `
	SELECT
		COUNT(*),
		COALESCE(SUM(study_point), 0),
		COALESCE(SUM(discipline_point), 0),
		COUNT(*) FILTER (WHERE study_point > 0),
		COUNT(*) FILTER (WHERE study_point < 0),
		COUNT(*) FILTER (WHERE discipline_point > 0),
		COUNT(*) FILTER (WHERE discipline_point < 0)
	FROM evaluations`

// TallyByStudent aggregates every row of a student in SQL.
func (r *EvaluationRepository) TallyByStudent(ctx context.Context, studentID shared.UserID) (evaluation.Tally, error) {
	return r.tally(ctx, tallySelect+` WHERE student_id = $1`, studentID.Int64())
}

// TallyByStudentInClass aggregates a student's rows in one class.
func (r *EvaluationRepository) TallyByStudentInClass(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (evaluation.Tally, error) {
	return r.tally(ctx, tallySelect+` WHERE student_id = $1 AND class_id = $2`, studentID.Int64(), classID.Int64())
}

func (r *EvaluationRepository) tally(ctx context.Context, query string, args ...interface{}) (evaluation.Tally, error) {
	var t evaluation.Tally
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&t.Rows,
		&t.StudyTotal,
		&t.DisciplineTotal,
		&t.StudyPlus,
		&t.StudyMinus,
		&t.DisciplinePlus,
		&t.DisciplineMinus,
	)
	if err != nil {
		return evaluation.Tally{}, fmt.Errorf("failed to aggregate evaluations: %w", err)
	}
	return t, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanEvaluation(row pgx.Row) (*evaluation.Evaluation, error) {
	var e evaluation.Evaluation
	var studentID, teacherID, classID int64
	var typ string
	err := row.Scan(
		&e.ID,
		&studentID,
		&teacherID,
		&classID,
		&typ,
		&e.StudyPoint,
		&e.DisciplinePoint,
		&e.Content,
		&e.Date,
		&e.AttendanceID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.StudentID = shared.UserID(studentID)
	e.TeacherID = shared.UserID(teacherID)
	e.ClassID = shared.ClassID(classID)
	e.Type = evaluation.Type(typ)
	return &e, nil
}
