package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

type attendanceRepository struct {
	db *DB
}

// NewAttendanceRepository returns attendance storage over db.
func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// CreateBatch checks uniqueness against stored rows and within the batch
// before inserting anything.
func (r *attendanceRepository) CreateBatch(_ context.Context, records []*attendance.Record) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("attendance.CreateBatch"); err != nil {
		return err
	}

	seen := make(map[attendance.UniqueKey]struct{}, len(r.db.attendance)+len(records))
	for _, existing := range r.db.attendance {
		seen[existing.Key()] = struct{}{}
	}
	for _, rec := range records {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			return shared.WrapError("attendance", "Create", shared.ErrAlreadyExists,
				"attendance already recorded for this student, schedule and date",
				fmt.Errorf("student %d on %s", key.StudentID, key.Date))
		}
		seen[key] = struct{}{}
	}

	now := time.Now().UTC()
	for _, rec := range records {
		rec.ID = r.db.nextID()
		rec.CreatedAt = now
		rec.UpdatedAt = now
		r.db.attendance[rec.ID] = rec.Clone()
	}
	return nil
}

func (r *attendanceRepository) FindForCorrection(_ context.Context, studentID shared.UserID, scheduleID shared.ScheduleID, date time.Time) (*attendance.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	day := date.Format(timeutil.LayoutDate)
	for _, rec := range r.db.attendance {
		if rec.StudentID == studentID && rec.ScheduleID == scheduleID && rec.Date.Format(timeutil.LayoutDate) == day {
			return rec.Clone(), nil
		}
	}
	return nil, shared.ErrAttendanceNotFound
}

func (r *attendanceRepository) Update(_ context.Context, rec *attendance.Record) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("attendance.Update"); err != nil {
		return err
	}
	if _, ok := r.db.attendance[rec.ID]; !ok {
		return shared.ErrAttendanceNotFound
	}
	r.db.attendance[rec.ID] = rec.Clone()
	return nil
}

func (r *attendanceRepository) ListBySchedule(_ context.Context, scheduleID shared.ScheduleID, date time.Time) ([]*attendance.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	day := date.Format(timeutil.LayoutDate)
	res := make([]*attendance.Record, 0)
	for _, rec := range r.db.attendance {
		if rec.ScheduleID == scheduleID && rec.Date.Format(timeutil.LayoutDate) == day {
			res = append(res, rec.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
