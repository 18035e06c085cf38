package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	q Querier
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(q Querier) *AttendanceRepository {
	return &AttendanceRepository{q: q}
}

const attendanceColumns = `
	id, student_id, schedule_id, class_id, date, status, checkin_time, created_at, updated_at`

// CreateBatch inserts every record in one round trip. A uniqueness
// violation on (student, schedule, class, date) fails the whole batch.
func (r *AttendanceRepository) CreateBatch(ctx context.Context, records []*attendance.Record) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO attendance (student_id, schedule_id, class_id, date, status, checkin_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query,
			rec.StudentID.Int64(),
			rec.ScheduleID.Int64(),
			rec.ClassID.Int64(),
			rec.Date,
			string(rec.Status),
			clockToPG(rec.CheckinTime),
		)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for _, rec := range records {
		if err := br.QueryRow().Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			if IsUniqueViolation(err) {
				return shared.WrapError("attendance", "CreateBatch", shared.ErrAlreadyExists,
					fmt.Sprintf("student %d already has attendance for schedule %d on %s",
						rec.StudentID, rec.ScheduleID, rec.Date.Format(timeutil.LayoutDate)), err)
			}
			return mapError("attendance.CreateBatch", err, shared.ErrAttendanceNotFound)
		}
	}
	return nil
}

// FindForCorrection returns the record of a student for a session occurrence
// and locks it for the rest of the transaction.
func (r *AttendanceRepository) FindForCorrection(ctx context.Context, studentID shared.UserID, scheduleID shared.ScheduleID, date time.Time) (*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE student_id = $1 AND schedule_id = $2 AND date = $3
		ORDER BY id
		LIMIT 1
		FOR UPDATE`

	rec, err := scanAttendance(r.q.QueryRow(ctx, query, studentID.Int64(), scheduleID.Int64(), date))
	if err != nil {
		return nil, mapError("attendance.FindForCorrection", err, shared.ErrAttendanceNotFound)
	}
	return rec, nil
}

// Update writes status and checkin time.
func (r *AttendanceRepository) Update(ctx context.Context, rec *attendance.Record) error {
	query := `
		UPDATE attendance SET status = $2, checkin_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.q.QueryRow(ctx, query, rec.ID, string(rec.Status), clockToPG(rec.CheckinTime)).Scan(&rec.UpdatedAt)
	if err != nil {
		return mapError("attendance.Update", err, shared.ErrAttendanceNotFound)
	}
	return nil
}

// ListBySchedule returns the records of one session occurrence.
func (r *AttendanceRepository) ListBySchedule(ctx context.Context, scheduleID shared.ScheduleID, date time.Time) ([]*attendance.Record, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance
		WHERE schedule_id = $1 AND date = $2
		ORDER BY student_id`

	rows, err := r.q.Query(ctx, query, scheduleID.Int64(), date)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	out := make([]*attendance.Record, 0)
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanAttendance(row pgx.Row) (*attendance.Record, error) {
	var rec attendance.Record
	var studentID, scheduleID, classID int64
	var status string
	var checkin pgtype.Time

	err := row.Scan(
		&rec.ID,
		&studentID,
		&scheduleID,
		&classID,
		&rec.Date,
		&status,
		&checkin,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.StudentID = shared.UserID(studentID)
	rec.ScheduleID = shared.ScheduleID(scheduleID)
	rec.ClassID = shared.ClassID(classID)
	rec.Status = attendance.Status(status)
	rec.CheckinTime = clockFromPG(checkin)
	return &rec, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// TIME columns
// ─────────────────────────────────────────────────────────────────────────────

func clockToPG(c *attendance.Clock) pgtype.Time {
	if c == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: int64(*c) * int64(time.Second/time.Microsecond), Valid: true}
}

func clockFromPG(t pgtype.Time) *attendance.Clock {
	if !t.Valid {
		return nil
	}
	c := attendance.Clock(t.Microseconds / int64(time.Second/time.Microsecond))
	return &c
}
