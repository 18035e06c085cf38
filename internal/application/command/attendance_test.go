package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/memory"
)

func clock(s string) *attendance.Clock {
	c := attendance.MustClock(s)
	return &c
}

func batchCmd(entries ...command.AttendanceEntry) command.CreateBatchAttendanceCommand {
	return command.CreateBatchAttendanceCommand{
		Actor:      teacher,
		ScheduleID: mondaySession,
		ClassID:    mathClass,
		Date:       monday,
		Entries:    entries,
	}
}

func TestCreateBatchAttendance_AbsencesArePenalized(t *testing.T) {
	db := seed()
	inv := &recordingInvalidator{}
	h := command.NewCreateBatchAttendanceHandler(memory.NewUnitOfWork(db), inv, fixedClock(duringSession))

	res, err := h.Handle(context.Background(), batchCmd(
		command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent},
		command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusPresent},
	))
	require.NoError(t, err)

	require.Len(t, res.Records, 2)
	assert.Nil(t, res.Records[0].CheckinTime)
	require.NotNil(t, res.Records[1].CheckinTime)
	assert.Equal(t, "08:15:00", res.Records[1].CheckinTime.String())

	require.Len(t, res.Penalties, 1)
	p := res.Penalties[0]
	assert.Equal(t, studentA, p.StudentID)
	assert.Equal(t, evaluation.TypeDiscipline, p.Type)
	assert.Equal(t, -5, p.StudyPoint)
	assert.Equal(t, -5, p.DisciplinePoint)
	assert.Equal(t, "unexcused absence", p.Content)
	require.NotNil(t, p.AttendanceID)
	assert.Equal(t, res.Records[0].ID, *p.AttendanceID)

	// student and parent
	assert.Equal(t, 2, res.Notifications)
	notes := db.Notifications()
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, notification.TypeWarning, n.Type)
		require.NotNil(t, n.SenderID)
		assert.Equal(t, teacherID, *n.SenderID)
		require.NotNil(t, n.Source)
		assert.Equal(t, res.Records[0].ID, n.Source.ID)
	}
	assert.ElementsMatch(t, []shared.UserID{studentA, parentA}, []shared.UserID{notes[0].ReceiverID, notes[1].ReceiverID})
	assert.Equal(t, []shared.UserID{studentA}, inv.ids)
}

func TestCreateBatchAttendance_StudentWithoutParent(t *testing.T) {
	db := seed()
	h := command.NewCreateBatchAttendanceHandler(memory.NewUnitOfWork(db), nil, fixedClock(duringSession))

	res, err := h.Handle(context.Background(), batchCmd(
		command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusAbsent},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notifications)
	assert.Equal(t, 1, db.CountEvaluations())
}

func TestCreateBatchAttendance_Rejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		cmd   func() command.CreateBatchAttendanceCommand
		now   time.Time
		check func(t *testing.T, err error)
	}{
		{
			name: "unknown students are enumerated",
			cmd: func() command.CreateBatchAttendanceCommand {
				return batchCmd(
					command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent},
					command.AttendanceEntry{StudentID: 98, Status: attendance.StatusAbsent},
					command.AttendanceEntry{StudentID: 99, Status: attendance.StatusPresent},
				)
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				var verr *shared.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.ElementsMatch(t, []string{"98", "99"}, verr.Offending())
			},
		},
		{
			name: "checkin outside the window",
			cmd: func() command.CreateBatchAttendanceCommand {
				return batchCmd(
					command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusLate, CheckinTime: clock("10:00")},
					command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusPresent, CheckinTime: clock("08:05")},
				)
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				var verr *shared.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, []string{"20"}, verr.Offending())
			},
		},
		{
			name: "checkin is not a time of day",
			cmd: func() command.CreateBatchAttendanceCommand {
				past := attendance.Clock(86400)
				negative := attendance.Clock(-1)
				return batchCmd(
					command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusLate, CheckinTime: &past},
					command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusLate, CheckinTime: &negative},
				)
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				var verr *shared.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "create_attendance", verr.Op)
				assert.Len(t, verr.Problems, 2)
			},
		},
		{
			name: "all absent outside the session",
			cmd: func() command.CreateBatchAttendanceCommand {
				return batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent})
			},
			now: monday.Add(6 * time.Hour), // 13:00 school time
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
			},
		},
		{
			name: "date is not a session day",
			cmd: func() command.CreateBatchAttendanceCommand {
				cmd := batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent})
				cmd.Date = monday.AddDate(0, 0, 1)
				return cmd
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
			},
		},
		{
			name: "schedule of another class",
			cmd: func() command.CreateBatchAttendanceCommand {
				cmd := batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent})
				cmd.ClassID = physicsClass
				return cmd
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
			},
		},
		{
			name: "teacher of another class",
			cmd: func() command.CreateBatchAttendanceCommand {
				cmd := batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent})
				cmd.Actor = other
				return cmd
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsUnauthorized(err))
			},
		},
		{
			name: "empty batch",
			cmd: func() command.CreateBatchAttendanceCommand {
				return batchCmd()
			},
			now: duringSession,
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := seed()
			h := command.NewCreateBatchAttendanceHandler(memory.NewUnitOfWork(db), nil, fixedClock(tt.now))

			_, err := h.Handle(ctx, tt.cmd())
			require.Error(t, err)
			tt.check(t, err)

			assert.Zero(t, db.CountAttendance())
			assert.Zero(t, db.CountEvaluations())
			assert.Zero(t, db.CountNotifications())
		})
	}
}

func TestCreateBatchAttendance_DuplicateSession(t *testing.T) {
	db := seed()
	h := command.NewCreateBatchAttendanceHandler(memory.NewUnitOfWork(db), nil, fixedClock(duringSession))
	ctx := context.Background()

	_, err := h.Handle(ctx, batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent}))
	require.NoError(t, err)

	_, err = h.Handle(ctx, batchCmd(command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent}))
	assert.True(t, shared.IsAlreadyExists(err))
	assert.Equal(t, 1, db.CountAttendance())
	assert.Equal(t, 1, db.CountEvaluations())
}

func TestCreateBatchAttendance_FailureRollsBackEverything(t *testing.T) {
	for _, op := range []string{"evaluations.Create", "notifications.CreateBatch"} {
		t.Run(op, func(t *testing.T) {
			db := seed()
			db.InjectFault(op, errors.New("disk full"))
			h := command.NewCreateBatchAttendanceHandler(memory.NewUnitOfWork(db), nil, fixedClock(duringSession))

			_, err := h.Handle(context.Background(), batchCmd(
				command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent},
				command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusAbsent},
			))
			require.Error(t, err)

			assert.Zero(t, db.CountAttendance())
			assert.Zero(t, db.CountEvaluations())
			assert.Zero(t, db.CountNotifications())
		})
	}
}

func TestUpdateLateAttendance(t *testing.T) {
	ctx := context.Background()

	absent := func(t *testing.T) (*memory.DB, uow.UnitOfWork) {
		db := seed()
		u := memory.NewUnitOfWork(db)
		_, err := command.NewCreateBatchAttendanceHandler(u, nil, fixedClock(duringSession)).Handle(ctx, batchCmd(
			command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent},
			command.AttendanceEntry{StudentID: studentB, Status: attendance.StatusPresent},
		))
		require.NoError(t, err)
		return db, u
	}

	late := func(student shared.UserID) command.UpdateLateAttendanceCommand {
		return command.UpdateLateAttendanceCommand{
			Actor:       teacher,
			StudentID:   student,
			ScheduleID:  mondaySession,
			Date:        monday,
			CheckinTime: attendance.MustClock("08:20"),
		}
	}

	t.Run("absence becomes late", func(t *testing.T) {
		db, u := absent(t)
		inv := &recordingInvalidator{}
		h := command.NewUpdateLateAttendanceHandler(u, inv, fixedClock(duringSession.Add(10*time.Minute)))

		res, err := h.Handle(ctx, late(studentA))
		require.NoError(t, err)
		require.True(t, res.Updated)

		assert.Equal(t, attendance.StatusLate, res.Record.Status)
		require.NotNil(t, res.Record.CheckinTime)
		assert.Equal(t, "08:20:00", res.Record.CheckinTime.String())

		// the absence penalty is overwritten, not duplicated
		assert.Equal(t, 1, db.CountEvaluations())
		assert.Equal(t, -2, res.Evaluation.StudyPoint)
		assert.Equal(t, -2, res.Evaluation.DisciplinePoint)
		assert.Equal(t, "late arrival", res.Evaluation.Content)

		assert.Equal(t, 2, res.NotificationsReworded)
		for _, n := range db.Notifications() {
			assert.Contains(t, n.Content, "late")
		}
		assert.Equal(t, []shared.UserID{studentA}, inv.ids)
	})

	t.Run("absence without penalty or warnings", func(t *testing.T) {
		db := seed()
		rec := &attendance.Record{
			StudentID:  studentA,
			ScheduleID: mondaySession,
			ClassID:    mathClass,
			Date:       monday,
			Status:     attendance.StatusAbsent,
		}
		require.NoError(t, db.Stores().Attendance.CreateBatch(ctx, []*attendance.Record{rec}))
		require.Zero(t, db.CountEvaluations())
		require.Zero(t, db.CountNotifications())

		h := command.NewUpdateLateAttendanceHandler(memory.NewUnitOfWork(db), nil, fixedClock(duringSession))
		res, err := h.Handle(ctx, late(studentA))
		require.NoError(t, err)
		require.True(t, res.Updated)

		evals, err := db.Stores().Evaluations.ListByStudent(ctx, studentA, shared.Page{})
		require.NoError(t, err)
		require.Len(t, evals, 1)
		assert.Equal(t, -2, evals[0].StudyPoint)
		assert.Equal(t, -2, evals[0].DisciplinePoint)
		assert.Equal(t, "late arrival", evals[0].Content)
		require.NotNil(t, evals[0].AttendanceID)
		assert.Equal(t, rec.ID, *evals[0].AttendanceID)

		assert.Zero(t, res.NotificationsReworded)
		assert.Zero(t, db.CountNotifications())
	})

	t.Run("manual discipline entry of the same day is kept", func(t *testing.T) {
		db := seed()
		manual := &evaluation.Evaluation{
			StudentID:       studentA,
			TeacherID:       teacherID,
			ClassID:         mathClass,
			Type:            evaluation.TypeDiscipline,
			StudyPoint:      3,
			DisciplinePoint: 4,
			Content:         "helped clean the lab",
			Date:            monday,
		}
		require.NoError(t, db.Stores().Evaluations.Create(ctx, manual))

		u := memory.NewUnitOfWork(db)
		batch, err := command.NewCreateBatchAttendanceHandler(u, nil, fixedClock(duringSession)).Handle(ctx, batchCmd(
			command.AttendanceEntry{StudentID: studentA, Status: attendance.StatusAbsent},
		))
		require.NoError(t, err)
		require.Len(t, batch.Penalties, 1)

		res, err := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession)).Handle(ctx, late(studentA))
		require.NoError(t, err)
		require.True(t, res.Updated)
		assert.Equal(t, batch.Penalties[0].ID, res.Evaluation.ID)
		assert.Equal(t, 2, db.CountEvaluations())

		kept, err := db.Stores().Evaluations.GetByID(ctx, manual.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, kept.StudyPoint)
		assert.Equal(t, 4, kept.DisciplinePoint)
		assert.Equal(t, "helped clean the lab", kept.Content)
		assert.Nil(t, kept.AttendanceID)
	})

	t.Run("present record is left alone", func(t *testing.T) {
		db, u := absent(t)
		h := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession))

		res, err := h.Handle(ctx, late(studentB))
		require.NoError(t, err)
		assert.False(t, res.Updated)
		assert.Equal(t, 1, db.CountEvaluations())
	})

	t.Run("missing record", func(t *testing.T) {
		_, u := absent(t)
		h := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession))

		cmd := late(studentA)
		cmd.Date = monday.AddDate(0, 0, 7)
		res, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.False(t, res.Updated)
	})

	t.Run("second correction overwrites the same row", func(t *testing.T) {
		db, u := absent(t)
		h := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession))

		_, err := h.Handle(ctx, late(studentA))
		require.NoError(t, err)
		res, err := h.Handle(ctx, late(studentA))
		require.NoError(t, err)
		assert.False(t, res.Updated)
		assert.Equal(t, 1, db.CountEvaluations())
	})

	t.Run("checkin outside the window", func(t *testing.T) {
		db, u := absent(t)
		h := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession))

		cmd := late(studentA)
		cmd.CheckinTime = attendance.MustClock("11:00")
		_, err := h.Handle(ctx, cmd)
		assert.True(t, shared.IsValidation(err))

		for _, n := range db.Notifications() {
			assert.Contains(t, n.Content, "absent")
		}
	})

	t.Run("another teacher", func(t *testing.T) {
		_, u := absent(t)
		h := command.NewUpdateLateAttendanceHandler(u, nil, fixedClock(duringSession))

		cmd := late(studentA)
		cmd.Actor = other
		_, err := h.Handle(ctx, cmd)
		assert.True(t, shared.IsUnauthorized(err))
	})
}
