package command

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE BATCH ATTENDANCE COMMAND
// Records attendance for one session. Every absence adds a discipline penalty
// and warnings to the student and their parent, all in one transaction.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceEntry is one student's mark in a batch.
type AttendanceEntry struct {
	StudentID   shared.UserID     `json:"student_id" validate:"gt=0"`
	Status      attendance.Status `json:"status" validate:"required,oneof=present absent late"`
	CheckinTime *attendance.Clock `json:"checkin_time,omitempty" validate:"omitempty,gte=0,lt=86400"`
}

// CreateBatchAttendanceCommand contains the marks of one session occurrence.
type CreateBatchAttendanceCommand struct {
	// Actor must be the teacher of record for the class.
	Actor shared.Principal `json:"-"`

	ScheduleID shared.ScheduleID `json:"schedule_id" validate:"gt=0"`
	ClassID    shared.ClassID    `json:"class_id" validate:"gt=0"`
	Date       time.Time         `json:"date" validate:"required"`
	Entries    []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// Validate validates the command.
func (c CreateBatchAttendanceCommand) Validate() error {
	return validateStruct("create_attendance", c)
}

// CreateBatchAttendanceResult contains the stored records and side effects.
type CreateBatchAttendanceResult struct {
	Records       []*attendance.Record
	Penalties     []*evaluation.Evaluation
	Notifications int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateBatchAttendanceHandler handles the CreateBatchAttendanceCommand.
type CreateBatchAttendanceHandler struct {
	uow   uow.UnitOfWork
	cache ScoreInvalidator
	clock Clock
}

// NewCreateBatchAttendanceHandler creates a new CreateBatchAttendanceHandler.
func NewCreateBatchAttendanceHandler(u uow.UnitOfWork, cache ScoreInvalidator, clock Clock) *CreateBatchAttendanceHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &CreateBatchAttendanceHandler{uow: u, cache: cache, clock: clock}
}

// Handle executes the batch. Nothing is written unless every check passes.
func (h *CreateBatchAttendanceHandler) Handle(ctx context.Context, cmd CreateBatchAttendanceCommand) (*CreateBatchAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.now()
	date := evaluation.DateOnly(cmd.Date)
	result := &CreateBatchAttendanceResult{}

	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		sched, err := loadSchedule(ctx, s.Directory, cmd.ScheduleID, cmd.ClassID, date)
		if err != nil {
			return fmt.Errorf("create_attendance: %w", err)
		}

		students, err := resolveStudents(ctx, s.Directory, cmd.Entries)
		if err != nil {
			return fmt.Errorf("create_attendance: %w", err)
		}

		if err := authorizeTeacher(ctx, s.Directory, cmd.Actor, cmd.ClassID); err != nil {
			return err
		}

		checkins, err := checkWindow(sched.Window, cmd.Entries, now)
		if err != nil {
			return fmt.Errorf("create_attendance: %w", err)
		}

		records := make([]*attendance.Record, len(cmd.Entries))
		for i, entry := range cmd.Entries {
			records[i] = &attendance.Record{
				StudentID:   entry.StudentID,
				ScheduleID:  cmd.ScheduleID,
				ClassID:     cmd.ClassID,
				Date:        date,
				Status:      entry.Status,
				CheckinTime: checkins[i],
			}
		}
		if err := s.Attendance.CreateBatch(ctx, records); err != nil {
			return fmt.Errorf("create_attendance: failed to save attendance: %w", err)
		}

		penalties, notes, err := h.penalizeAbsences(ctx, s, cmd.Actor.ID, records, students, now)
		if err != nil {
			return err
		}

		result.Records = records
		result.Penalties = penalties
		result.Notifications = notes
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range result.Penalties {
		invalidateAll(ctx, h.cache, p.StudentID)
	}
	return result, nil
}

// penalizeAbsences writes one discipline evaluation and the warnings for
// every absent record.
func (h *CreateBatchAttendanceHandler) penalizeAbsences(
	ctx context.Context,
	s uow.Stores,
	teacherID shared.UserID,
	records []*attendance.Record,
	students map[shared.UserID]*school.Student,
	now time.Time,
) ([]*evaluation.Evaluation, int, error) {
	var (
		penalties []*evaluation.Evaluation
		notes     []*notification.Notification
	)
	sender := teacherID

	for _, rec := range records {
		if !rec.IsAbsent() {
			continue
		}

		p := evaluation.AbsencePenalty
		recordID := rec.ID
		eval := &evaluation.Evaluation{
			StudentID:       rec.StudentID,
			TeacherID:       teacherID,
			ClassID:         rec.ClassID,
			Type:            p.Type(),
			StudyPoint:      p.StudyPoint,
			DisciplinePoint: p.DisciplinePoint,
			Content:         p.Content,
			Date:            rec.Date,
			AttendanceID:    &recordID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Evaluations.Create(ctx, eval); err != nil {
			return nil, 0, fmt.Errorf("create_attendance: failed to save penalty: %w", err)
		}
		penalties = append(penalties, eval)

		student := students[rec.StudentID]
		notes = append(notes, &notification.Notification{
			ReceiverID: rec.StudentID,
			SenderID:   &sender,
			Content:    notification.AbsenceForStudent(rec.Date),
			Type:       notification.TypeWarning,
			SentAt:     now,
			Source:     notification.AttendanceSource(rec.ID),
		})
		if student.ParentID != nil {
			notes = append(notes, &notification.Notification{
				ReceiverID: *student.ParentID,
				SenderID:   &sender,
				Content:    notification.AbsenceForParent(student.FullName, rec.Date),
				Type:       notification.TypeWarning,
				SentAt:     now,
				Source:     notification.AttendanceSource(rec.ID),
			})
		}
	}

	if len(notes) > 0 {
		if err := s.Notifications.CreateBatch(ctx, notes); err != nil {
			return nil, 0, fmt.Errorf("create_attendance: failed to save notifications: %w", err)
		}
	}
	return penalties, len(notes), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Checks shared with late correction
// ─────────────────────────────────────────────────────────────────────────────

// loadSchedule returns the session and checks it belongs to the class and
// takes place on date.
func loadSchedule(ctx context.Context, dir school.Directory, id shared.ScheduleID, classID shared.ClassID, date time.Time) (*school.Schedule, error) {
	sched, err := dir.Schedule(ctx, id)
	if err != nil {
		return nil, err
	}

	verr := shared.NewValidationError("attendance.Schedule")
	if sched.ClassID != classID {
		verr.Add("class_id", classID.String(), fmt.Sprintf("schedule %d belongs to class %d", id, sched.ClassID))
	}
	if !sched.Matches(date) {
		verr.Add("date", date.Format(timeutil.LayoutDate), "does not match the schedule day")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return sched, nil
}

// resolveStudents loads every listed student and enumerates the unknown ids.
func resolveStudents(ctx context.Context, dir school.Directory, entries []AttendanceEntry) (map[shared.UserID]*school.Student, error) {
	ids := make([]shared.UserID, len(entries))
	for i, e := range entries {
		ids[i] = e.StudentID
	}
	students, err := dir.Students(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}

	verr := shared.NewValidationError("attendance.Students")
	reported := make(map[shared.UserID]bool)
	for _, id := range ids {
		if _, ok := students[id]; !ok && !reported[id] {
			verr.Add("student_id", id.String(), "unknown student")
			reported[id] = true
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return students, nil
}

// authorizeTeacher checks that actor teaches the class.
func authorizeTeacher(ctx context.Context, dir school.Directory, actor shared.Principal, classID shared.ClassID) error {
	if !actor.Has(shared.RoleTeacher) {
		return shared.Unauthorized("attendance", "Authorize", "only teachers can take attendance")
	}
	class, err := dir.Class(ctx, classID)
	if err != nil {
		return fmt.Errorf("attendance: failed to load class: %w", err)
	}
	if class.TeacherID != actor.ID {
		return shared.Unauthorized("attendance", "Authorize", "teacher is not the teacher of record for this class")
	}
	return nil
}

// checkWindow validates every supplied checkin against the session window.
// Present entries without a checkin take the current time. When no entry
// carries a checkin at all, the current time must be inside the window.
func checkWindow(w attendance.Window, entries []AttendanceEntry, now time.Time) ([]*attendance.Clock, error) {
	current := attendance.ClockOf(timeutil.ToSchool(now))
	checkins := make([]*attendance.Clock, len(entries))
	verr := shared.NewValidationError("attendance.Window")

	checked := false
	for i, e := range entries {
		c := e.CheckinTime
		if c == nil && e.Status == attendance.StatusPresent {
			cur := current
			c = &cur
		}
		if c == nil {
			continue
		}
		checked = true
		checkins[i] = c
		if !w.Contains(*c) {
			verr.Add("checkin_time", e.StudentID.String(),
				fmt.Sprintf("%s is outside the session window %s", c, w))
		}
	}
	if !checked && !w.Contains(current) {
		verr.Add("checkin_time", current.String(), fmt.Sprintf("attendance can only be taken during the session %s", w))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return checkins, nil
}
