package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE LATE ATTENDANCE COMMAND
// Corrects an absence to a late arrival. The absence penalty row is rewritten
// with the late penalty instead of adding a second row, and the absence
// warnings are reworded in place.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateLateAttendanceCommand identifies the record to correct.
type UpdateLateAttendanceCommand struct {
	Actor shared.Principal `json:"-"`

	StudentID   shared.UserID     `json:"student_id" validate:"gt=0"`
	ScheduleID  shared.ScheduleID `json:"schedule_id" validate:"gt=0"`
	Date        time.Time         `json:"date" validate:"required"`
	CheckinTime attendance.Clock  `json:"checkin_time" validate:"gte=0,lt=86400"`
}

// Validate validates the command.
func (c UpdateLateAttendanceCommand) Validate() error {
	return validateStruct("update_late_attendance", c)
}

// UpdateLateAttendanceResult describes the outcome.
type UpdateLateAttendanceResult struct {
	// Updated is false when the record is missing or not absent.
	// Nothing is written in that case.
	Updated bool

	Record                *attendance.Record
	Evaluation            *evaluation.Evaluation
	NotificationsReworded int
}

// UpdateLateAttendanceHandler handles the UpdateLateAttendanceCommand.
type UpdateLateAttendanceHandler struct {
	uow   uow.UnitOfWork
	cache ScoreInvalidator
	clock Clock
}

// NewUpdateLateAttendanceHandler creates a new UpdateLateAttendanceHandler.
func NewUpdateLateAttendanceHandler(u uow.UnitOfWork, cache ScoreInvalidator, clock Clock) *UpdateLateAttendanceHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &UpdateLateAttendanceHandler{uow: u, cache: cache, clock: clock}
}

// Handle executes the correction.
func (h *UpdateLateAttendanceHandler) Handle(ctx context.Context, cmd UpdateLateAttendanceCommand) (*UpdateLateAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.clock.now()
	date := evaluation.DateOnly(cmd.Date)
	result := &UpdateLateAttendanceResult{}

	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		rec, err := s.Attendance.FindForCorrection(ctx, cmd.StudentID, cmd.ScheduleID, date)
		if shared.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("update_late_attendance: failed to load attendance: %w", err)
		}
		if !rec.IsAbsent() {
			return nil
		}

		sched, err := loadSchedule(ctx, s.Directory, rec.ScheduleID, rec.ClassID, date)
		if err != nil {
			return fmt.Errorf("update_late_attendance: %w", err)
		}
		if err := authorizeTeacher(ctx, s.Directory, cmd.Actor, rec.ClassID); err != nil {
			return err
		}
		checkin := cmd.CheckinTime
		if _, err := checkWindow(sched.Window, []AttendanceEntry{{
			StudentID:   cmd.StudentID,
			Status:      attendance.StatusLate,
			CheckinTime: &checkin,
		}}, now); err != nil {
			return fmt.Errorf("update_late_attendance: %w", err)
		}

		if err := rec.MarkLate(checkin, now); err != nil {
			if errors.Is(err, shared.ErrNotAbsent) {
				return nil
			}
			return err
		}
		if err := s.Attendance.Update(ctx, rec); err != nil {
			return fmt.Errorf("update_late_attendance: failed to save attendance: %w", err)
		}

		eval, err := upsertLatePenalty(ctx, s.Evaluations, cmd.Actor.ID, rec, now)
		if err != nil {
			return err
		}

		reworded, err := rewordWarnings(ctx, s, rec)
		if err != nil {
			return err
		}

		result.Updated = true
		result.Record = rec
		result.Evaluation = eval
		result.NotificationsReworded = reworded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Updated {
		invalidateAll(ctx, h.cache, cmd.StudentID)
	}
	return result, nil
}

// upsertLatePenalty overwrites the penalty linked to rec or creates it.
// Manual discipline entries of the same day are not touched. The attendance
// row lock taken by FindForCorrection serializes concurrent corrections.
func upsertLatePenalty(ctx context.Context, repo evaluation.Repository, teacherID shared.UserID, rec *attendance.Record, now time.Time) (*evaluation.Evaluation, error) {
	p := evaluation.LatePenalty
	eval, err := repo.FindByAttendance(ctx, rec.ID)
	switch {
	case err == nil:
		eval.StudyPoint = p.StudyPoint
		eval.DisciplinePoint = p.DisciplinePoint
		eval.Content = p.Content
		eval.UpdatedAt = now
		if err := repo.Update(ctx, eval); err != nil {
			return nil, fmt.Errorf("update_late_attendance: failed to update penalty: %w", err)
		}
		return eval, nil

	case shared.IsNotFound(err):
		recordID := rec.ID
		eval = &evaluation.Evaluation{
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
		if err := repo.Create(ctx, eval); err != nil {
			return nil, fmt.Errorf("update_late_attendance: failed to save penalty: %w", err)
		}
		return eval, nil

	default:
		return nil, fmt.Errorf("update_late_attendance: failed to find penalty: %w", err)
	}
}

// rewordWarnings rewrites the absence warnings produced by rec. Finding none
// is not an error.
func rewordWarnings(ctx context.Context, s uow.Stores, rec *attendance.Record) (int, error) {
	notes, err := s.Notifications.FindBySource(ctx, *notification.AttendanceSource(rec.ID), notification.TypeWarning)
	if err != nil {
		return 0, fmt.Errorf("update_late_attendance: failed to find notifications: %w", err)
	}
	if len(notes) == 0 {
		return 0, nil
	}

	student, err := s.Directory.Student(ctx, rec.StudentID)
	if err != nil {
		return 0, fmt.Errorf("update_late_attendance: failed to load student: %w", err)
	}

	for _, n := range notes {
		content := notification.LateForStudent(rec.Date)
		if n.ReceiverID != rec.StudentID {
			content = notification.LateForParent(student.FullName, rec.Date)
		}
		if err := s.Notifications.UpdateContent(ctx, n.ID, content); err != nil {
			return 0, fmt.Errorf("update_late_attendance: failed to reword notification: %w", err)
		}
	}
	return len(notes), nil
}
