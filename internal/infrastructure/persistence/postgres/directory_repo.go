package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY READER
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRepository implements school.Directory over the directory tables.
type DirectoryRepository struct {
	q Querier
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(q Querier) *DirectoryRepository {
	return &DirectoryRepository{q: q}
}

const studentSelect = `
	SELECT s.user_id, u.full_name, s.parent_id
	FROM students s
	JOIN users u ON u.id = s.user_id`

// ─────────────────────────────────────────────────────────────────────────────
// People
// ─────────────────────────────────────────────────────────────────────────────

// Students returns the students that exist among ids.
func (r *DirectoryRepository) Students(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*school.Student, error) {
	out := make(map[shared.UserID]*school.Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.q.Query(ctx, studentSelect+` WHERE s.user_id = ANY($1)`, userIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

// Student returns one student.
func (r *DirectoryRepository) Student(ctx context.Context, id shared.UserID) (*school.Student, error) {
	s, err := scanStudent(r.q.QueryRow(ctx, studentSelect+` WHERE s.user_id = $1`, id.Int64()))
	if err != nil {
		return nil, mapError("directory.Student", err, shared.ErrStudentNotFound)
	}
	return s, nil
}

// UserNames returns full names for users of any role.
func (r *DirectoryRepository) UserNames(ctx context.Context, ids []shared.UserID) (map[shared.UserID]string, error) {
	out := make(map[shared.UserID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.q.Query(ctx, `SELECT id, full_name FROM users WHERE id = ANY($1)`, userIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load user names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out[shared.UserID(id)] = name
	}
	return out, rows.Err()
}

// Teachers returns every teacher ordered by id.
func (r *DirectoryRepository) Teachers(ctx context.Context) ([]*school.Teacher, error) {
	rows, err := r.q.Query(ctx, `
		SELECT t.user_id, u.full_name, t.base_salary_per_class, t.reward_bonus
		FROM teachers t
		JOIN users u ON u.id = t.user_id
		ORDER BY t.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load teachers: %w", err)
	}
	defer rows.Close()

	out := make([]*school.Teacher, 0)
	for rows.Next() {
		var id, salary, bonus int64
		var name string
		if err := rows.Scan(&id, &name, &salary, &bonus); err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		out = append(out, &school.Teacher{
			ID:                 shared.UserID(id),
			FullName:           name,
			BaseSalaryPerClass: finance.Money(salary),
			RewardBonus:        finance.Money(bonus),
		})
	}
	return out, rows.Err()
}

// ChildrenOf returns the students registered to a parent.
func (r *DirectoryRepository) ChildrenOf(ctx context.Context, parentID shared.UserID) ([]shared.UserID, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id FROM students WHERE parent_id = $1 ORDER BY user_id`, parentID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}
	defer rows.Close()

	out := make([]shared.UserID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		out = append(out, shared.UserID(id))
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Classes and schedules
// ─────────────────────────────────────────────────────────────────────────────

const classSelect = `SELECT id, name, subject_name, teacher_id, fee FROM classes`

// Class returns one class.
func (r *DirectoryRepository) Class(ctx context.Context, id shared.ClassID) (*school.Class, error) {
	c, err := scanClass(r.q.QueryRow(ctx, classSelect+` WHERE id = $1`, id.Int64()))
	if err != nil {
		return nil, mapError("directory.Class", err, shared.ErrClassNotFound)
	}
	return c, nil
}

// Classes returns the classes that exist among ids.
func (r *DirectoryRepository) Classes(ctx context.Context, ids []shared.ClassID) (map[shared.ClassID]*school.Class, error) {
	out := make(map[shared.ClassID]*school.Class, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = id.Int64()
	}

	rows, err := r.q.Query(ctx, classSelect+` WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// ClassCountsByTeacher counts every class assigned to each teacher.
func (r *DirectoryRepository) ClassCountsByTeacher(ctx context.Context) (map[shared.UserID]int, error) {
	rows, err := r.q.Query(ctx, `SELECT teacher_id, COUNT(*) FROM classes GROUP BY teacher_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}
	defer rows.Close()

	out := make(map[shared.UserID]int)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan class count: %w", err)
		}
		out[shared.UserID(id)] = int(n)
	}
	return out, rows.Err()
}

// Schedule returns one session definition.
func (r *DirectoryRepository) Schedule(ctx context.Context, id shared.ScheduleID) (*school.Schedule, error) {
	var s school.Schedule
	var rawID, classID, teacherID int64
	var dow *int16
	var date *time.Time
	var start, end pgtype.Time

	err := r.q.QueryRow(ctx, `
		SELECT id, class_id, teacher_id, day_of_week, date, start_time, end_time
		FROM schedules WHERE id = $1
	`, id.Int64()).Scan(&rawID, &classID, &teacherID, &dow, &date, &start, &end)
	if err != nil {
		return nil, mapError("directory.Schedule", err, shared.ErrScheduleNotFound)
	}

	s.ID = shared.ScheduleID(rawID)
	s.ClassID = shared.ClassID(classID)
	s.TeacherID = shared.UserID(teacherID)
	if dow != nil {
		wd := time.Weekday(*dow)
		s.DayOfWeek = &wd
	}
	s.Date = date
	if c := clockFromPG(start); c != nil {
		s.Window.Start = *c
	}
	if c := clockFromPG(end); c != nil {
		s.Window.End = *c
	}
	return &s, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

// ActiveEnrollments returns a student's active enrollments with class fees.
func (r *DirectoryRepository) ActiveEnrollments(ctx context.Context, studentID shared.UserID) ([]*school.Enrollment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT e.class_id, c.teacher_id, c.fee
		FROM enrollments e
		JOIN classes c ON c.id = e.class_id
		WHERE e.student_id = $1 AND e.status = 'active'
		ORDER BY e.class_id
	`, studentID.Int64())
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]*school.Enrollment, 0)
	for rows.Next() {
		var classID, teacherID, fee int64
		if err := rows.Scan(&classID, &teacherID, &fee); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		out = append(out, &school.Enrollment{
			StudentID: studentID,
			ClassID:   shared.ClassID(classID),
			TeacherID: shared.UserID(teacherID),
			Fee:       finance.Money(fee),
			Active:    true,
		})
	}
	return out, rows.Err()
}

// IsActivelyEnrolled reports whether the student is active in the class.
func (r *DirectoryRepository) IsActivelyEnrolled(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (bool, error) {
	var ok bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE student_id = $1 AND class_id = $2 AND status = 'active'
		)
	`, studentID.Int64(), classID.Int64()).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return ok, nil
}

// TuitionDue sums active class fees per student. Students whose fees sum to
// zero are still returned.
func (r *DirectoryRepository) TuitionDue(ctx context.Context) ([]*school.TuitionDue, error) {
	rows, err := r.q.Query(ctx, `
		SELECT s.user_id, u.full_name, s.parent_id, SUM(c.fee)
		FROM enrollments e
		JOIN students s ON s.user_id = e.student_id
		JOIN users u ON u.id = s.user_id
		JOIN classes c ON c.id = e.class_id
		WHERE e.status = 'active'
		GROUP BY s.user_id, u.full_name, s.parent_id
		ORDER BY s.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum tuition: %w", err)
	}
	defer rows.Close()

	out := make([]*school.TuitionDue, 0)
	for rows.Next() {
		var id, amount int64
		var name string
		var parent *int64
		if err := rows.Scan(&id, &name, &parent, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan tuition due: %w", err)
		}
		due := &school.TuitionDue{
			StudentID:   shared.UserID(id),
			StudentName: name,
			Amount:      finance.Money(amount),
		}
		if parent != nil {
			p := shared.UserID(*parent)
			due.ParentID = &p
		}
		out = append(out, due)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanStudent(row pgx.Row) (*school.Student, error) {
	var id int64
	var name string
	var parent *int64
	if err := row.Scan(&id, &name, &parent); err != nil {
		return nil, err
	}
	s := &school.Student{ID: shared.UserID(id), FullName: name}
	if parent != nil {
		p := shared.UserID(*parent)
		s.ParentID = &p
	}
	return s, nil
}

func scanClass(row pgx.Row) (*school.Class, error) {
	var id, teacherID, fee int64
	var c school.Class
	if err := row.Scan(&id, &c.Name, &c.SubjectName, &teacherID, &fee); err != nil {
		return nil, err
	}
	c.ID = shared.ClassID(id)
	c.TeacherID = shared.UserID(teacherID)
	c.Fee = finance.Money(fee)
	return &c, nil
}

func userIDs(ids []shared.UserID) []int64 {
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = id.Int64()
	}
	return raw
}

var _ school.Directory = (*DirectoryRepository)(nil)
