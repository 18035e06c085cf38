package memory

import (
	"context"
	"sort"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

type evaluationRepository struct {
	db *DB
}

// NewEvaluationRepository returns the ledger over db.
func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(_ context.Context, e *evaluation.Evaluation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("evaluations.Create"); err != nil {
		return err
	}
	now := time.Now().UTC()
	e.ID = r.db.nextID()
	e.Date = evaluation.DateOnly(e.Date)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = e.CreatedAt
	r.db.evaluations[e.ID] = e.Clone()
	return nil
}

func (r *evaluationRepository) Update(_ context.Context, e *evaluation.Evaluation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("evaluations.Update"); err != nil {
		return err
	}
	if _, ok := r.db.evaluations[e.ID]; !ok {
		return shared.ErrEvaluationNotFound
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	r.db.evaluations[e.ID] = e.Clone()
	return nil
}

func (r *evaluationRepository) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.evaluations[id]; !ok {
		return shared.ErrEvaluationNotFound
	}
	delete(r.db.evaluations, id)
	return nil
}

func (r *evaluationRepository) GetByID(_ context.Context, id int64) (*evaluation.Evaluation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if e, ok := r.db.evaluations[id]; ok {
		return e.Clone(), nil
	}
	return nil, shared.ErrEvaluationNotFound
}

// query returns matching rows ordered by event date then id, newest first.
func (r *evaluationRepository) query(match func(*evaluation.Evaluation) bool) []*evaluation.Evaluation {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*evaluation.Evaluation, 0)
	for _, e := range r.db.evaluations {
		if match(e) {
			res = append(res, e.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.After(res[j].Date)
		}
		return res[i].ID > res[j].ID
	})
	return res
}

func paginate[T any](rows []T, page shared.Page) []T {
	lo, hi := page.Window(len(rows))
	return rows[lo:hi]
}

func (r *evaluationRepository) ListByStudent(_ context.Context, studentID shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return paginate(r.query(func(e *evaluation.Evaluation) bool { return e.StudentID == studentID }), page), nil
}

func (r *evaluationRepository) ListByStudents(_ context.Context, studentIDs []shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	set := make(map[shared.UserID]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		set[id] = struct{}{}
	}
	return paginate(r.query(func(e *evaluation.Evaluation) bool {
		_, ok := set[e.StudentID]
		return ok
	}), page), nil
}

func (r *evaluationRepository) ListByTeacher(_ context.Context, teacherID shared.UserID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return paginate(r.query(func(e *evaluation.Evaluation) bool { return e.TeacherID == teacherID }), page), nil
}

func (r *evaluationRepository) ListByClass(_ context.Context, classID shared.ClassID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return paginate(r.query(func(e *evaluation.Evaluation) bool { return e.ClassID == classID }), page), nil
}

func (r *evaluationRepository) ListByStudentInClass(_ context.Context, studentID shared.UserID, classID shared.ClassID, page shared.Page) ([]*evaluation.Evaluation, error) {
	return paginate(r.query(func(e *evaluation.Evaluation) bool {
		return e.StudentID == studentID && e.ClassID == classID
	}), page), nil
}

func (r *evaluationRepository) List(_ context.Context, page shared.Page) ([]*evaluation.Evaluation, error) {
	return paginate(r.query(func(*evaluation.Evaluation) bool { return true }), page), nil
}

// FindByAttendance returns the penalty linked to an attendance record.
func (r *evaluationRepository) FindByAttendance(_ context.Context, attendanceID int64) (*evaluation.Evaluation, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, e := range r.db.evaluations {
		if e.AttendanceID != nil && *e.AttendanceID == attendanceID {
			return e.Clone(), nil
		}
	}
	return nil, shared.ErrEvaluationNotFound
}

func (r *evaluationRepository) TallyByStudent(_ context.Context, studentID shared.UserID) (evaluation.Tally, error) {
	return evaluation.TallyOf(r.query(func(e *evaluation.Evaluation) bool { return e.StudentID == studentID })), nil
}

func (r *evaluationRepository) TallyByStudentInClass(_ context.Context, studentID shared.UserID, classID shared.ClassID) (evaluation.Tally, error) {
	return evaluation.TallyOf(r.query(func(e *evaluation.Evaluation) bool {
		return e.StudentID == studentID && e.ClassID == classID
	})), nil
}
