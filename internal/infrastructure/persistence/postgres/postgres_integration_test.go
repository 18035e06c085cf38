//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/postgres"
)

var conn *postgres.Connection

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	pg, err := tcpostgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("schoolbook"),
		tcpostgres.WithUsername("schoolbook"),
		tcpostgres.WithPassword("schoolbook"),
	)
	if err != nil {
		cancel()
		panic(err)
	}

	code := func() int {
		defer func() { _ = pg.Terminate(context.Background()) }()

		uri, err := pg.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			panic(err)
		}
		conn, err = connect(ctx, uri)
		if err != nil {
			panic(err)
		}
		defer conn.Close()

		if err := postgres.Migrate(ctx, conn); err != nil {
			panic(err)
		}
		if err := seedDirectory(ctx, conn); err != nil {
			panic(err)
		}
		return m.Run()
	}()

	cancel()
	os.Exit(code)
}

// connect retries until the container accepts connections.
func connect(ctx context.Context, uri string) (*postgres.Connection, error) {
	deadline := time.Now().Add(20 * time.Second)
	for {
		c, err := postgres.NewConnectionFromURL(ctx, uri)
		if err == nil {
			return c, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func seedDirectory(ctx context.Context, c *postgres.Connection) error {
	_, err := c.Pool().Exec(ctx, `
		INSERT INTO users (id, full_name) VALUES
			(1, 'Nguyen Manager'), (10, 'Le Teacher'), (11, 'Pham Teacher'),
			(20, 'Tran An'), (21, 'Vo Binh'), (30, 'Tran Parent');
		INSERT INTO teachers (user_id, base_salary_per_class, reward_bonus) VALUES
			(10, 200000, 50000), (11, 300000, 0);
		INSERT INTO students (user_id, parent_id) VALUES (20, 30), (21, NULL);
		INSERT INTO classes (id, name, subject_name, teacher_id, fee) VALUES
			(100, '6A', 'Math', 10, 1500000), (101, '6A', 'Physics', 11, 500000);
		INSERT INTO schedules (id, class_id, teacher_id, day_of_week, start_time, end_time) VALUES
			(500, 100, 10, 1, '08:00', '09:30');
		INSERT INTO enrollments (student_id, class_id, status) VALUES
			(20, 100, 'active'), (20, 101, 'active'), (21, 100, 'active'), (21, 101, 'inactive');
	`)
	return err
}

func reset(t *testing.T) {
	t.Helper()
	_, err := conn.Pool().Exec(context.Background(),
		`TRUNCATE evaluations, attendance, notifications, tuition, payroll RESTART IDENTITY`)
	require.NoError(t, err)
}

var (
	manager = shared.Principal{ID: 1, Roles: shared.RoleManager}
	teacher = shared.Principal{ID: 10, Roles: shared.RoleTeacher}
)

// 2024-09-02 is a Monday; 01:15 UTC is 08:15 school time.
var monday = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)

func clockAt(t time.Time) command.Clock {
	return func() time.Time { return t }
}

// ─────────────────────────────────────────────────────────────────────────────
// Directory
// ─────────────────────────────────────────────────────────────────────────────

func TestDirectoryRepository(t *testing.T) {
	ctx := context.Background()
	dir := postgres.NewDirectoryRepository(conn.Pool())

	t.Run("schedule window and weekday", func(t *testing.T) {
		s, err := dir.Schedule(ctx, 500)
		require.NoError(t, err)
		assert.Equal(t, attendance.MustClock("08:00"), s.Window.Start)
		assert.Equal(t, attendance.MustClock("09:30"), s.Window.End)
		require.NotNil(t, s.DayOfWeek)
		assert.Equal(t, time.Monday, *s.DayOfWeek)
		assert.Nil(t, s.Date)
	})

	t.Run("missing rows", func(t *testing.T) {
		_, err := dir.Schedule(ctx, 999)
		assert.True(t, shared.IsNotFound(err))
		_, err = dir.Student(ctx, 999)
		assert.True(t, shared.IsNotFound(err))
		_, err = dir.Class(ctx, 999)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("tuition due sums active fees", func(t *testing.T) {
		due, err := dir.TuitionDue(ctx)
		require.NoError(t, err)
		require.Len(t, due, 2)

		assert.Equal(t, shared.UserID(20), due[0].StudentID)
		assert.Equal(t, finance.Money(2_000_000), due[0].Amount)
		require.NotNil(t, due[0].ParentID)
		assert.Equal(t, shared.UserID(30), *due[0].ParentID)

		assert.Equal(t, finance.Money(1_500_000), due[1].Amount)
		assert.Nil(t, due[1].ParentID)
	})

	t.Run("class counts and enrollment", func(t *testing.T) {
		counts, err := dir.ClassCountsByTeacher(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[10])
		assert.Equal(t, 1, counts[11])

		ok, err := dir.IsActivelyEnrolled(ctx, 21, 101)
		require.NoError(t, err)
		assert.False(t, ok)

		children, err := dir.ChildrenOf(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, []shared.UserID{20}, children)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Migrations
// ─────────────────────────────────────────────────────────────────────────────

func TestMigrateDownAndUp(t *testing.T) {
	ctx := context.Background()

	version, err := postgres.MigrationVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(5), version)

	require.NoError(t, postgres.MigrateDown(ctx, conn))
	version, err = postgres.MigrationVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)

	require.NoError(t, postgres.Migrate(ctx, conn))
	version, err = postgres.MigrationVersion(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(5), version)
}

func TestPayrollCannotBeOverdue(t *testing.T) {
	reset(t)
	ctx := context.Background()

	_, err := conn.Pool().Exec(ctx,
		`INSERT INTO payroll (teacher_id, month, year, status) VALUES (10, 9, 2024, 'overdue')`)
	assert.True(t, postgres.IsCheckViolation(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Evaluations
// ─────────────────────────────────────────────────────────────────────────────

func TestEvaluationRepository(t *testing.T) {
	reset(t)
	ctx := context.Background()
	repo := postgres.NewEvaluationRepository(conn.Pool())

	rows := []*evaluation.Evaluation{
		{StudentID: 20, TeacherID: 10, ClassID: 100, Type: evaluation.TypeStudy, StudyPoint: 3, Date: monday},
		{StudentID: 20, TeacherID: 10, ClassID: 100, Type: evaluation.TypeDiscipline, DisciplinePoint: -5, Date: monday},
		{StudentID: 20, TeacherID: 11, ClassID: 101, Type: evaluation.TypeStudy, StudyPoint: 0, Date: monday},
	}
	for _, e := range rows {
		require.NoError(t, repo.Create(ctx, e))
		assert.NotZero(t, e.ID)
	}

	tally, err := repo.TallyByStudent(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, tally.Rows)
	assert.Equal(t, 3, tally.StudyTotal)
	assert.Equal(t, 1, tally.StudyPlus)
	assert.Equal(t, 0, tally.StudyMinus)
	assert.Equal(t, 1, tally.DisciplineMinus)
	assert.Equal(t, 95, tally.FinalDiscipline())

	inClass, err := repo.TallyByStudentInClass(ctx, 20, 101)
	require.NoError(t, err)
	assert.Equal(t, 1, inClass.Rows)

	found, err := repo.GetByID(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Nil(t, found.AttendanceID)

	_, err = repo.FindByAttendance(ctx, 1)
	assert.True(t, shared.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, rows[0].ID))
	_, err = repo.GetByID(ctx, rows[0].ID)
	assert.True(t, shared.IsNotFound(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Attendance through the unit of work
// ─────────────────────────────────────────────────────────────────────────────

func TestCreateBatchAttendance(t *testing.T) {
	reset(t)
	ctx := context.Background()
	h := command.NewCreateBatchAttendanceHandler(postgres.NewUnitOfWork(conn), nil,
		clockAt(time.Date(2024, 9, 2, 1, 15, 0, 0, time.UTC)))

	cmd := command.CreateBatchAttendanceCommand{
		Actor:      teacher,
		ScheduleID: 500,
		ClassID:    100,
		Date:       monday,
		Entries: []command.AttendanceEntry{
			{StudentID: 20, Status: attendance.StatusAbsent},
			{StudentID: 21, Status: attendance.StatusPresent},
		},
	}

	res, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Len(t, res.Penalties, 1)
	assert.Equal(t, 2, res.Notifications)

	penalty, err := postgres.NewEvaluationRepository(conn.Pool()).FindByAttendance(ctx, res.Records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, res.Penalties[0].ID, penalty.ID)

	_, err = h.Handle(ctx, cmd)
	assert.True(t, shared.IsAlreadyExists(err))

	var evals, notes int
	require.NoError(t, conn.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM evaluations`).Scan(&evals))
	require.NoError(t, conn.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&notes))
	assert.Equal(t, 1, evals, "duplicate batch must roll back")
	assert.Equal(t, 2, notes)

	listed, err := postgres.NewAttendanceRepository(conn.Pool()).ListBySchedule(ctx, 500, monday)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, attendance.StatusAbsent, listed[0].Status)
	require.NotNil(t, listed[1].CheckinTime)
	assert.Equal(t, attendance.MustClock("08:15"), *listed[1].CheckinTime)
}

func TestLateCorrectionRewritesLinkedPenalty(t *testing.T) {
	reset(t)
	ctx := context.Background()
	u := postgres.NewUnitOfWork(conn)
	now := clockAt(time.Date(2024, 9, 2, 1, 15, 0, 0, time.UTC))
	repo := postgres.NewEvaluationRepository(conn.Pool())

	manual := &evaluation.Evaluation{StudentID: 20, TeacherID: 10, ClassID: 100,
		Type: evaluation.TypeDiscipline, StudyPoint: 2, DisciplinePoint: 2, Content: "class monitor", Date: monday}
	require.NoError(t, repo.Create(ctx, manual))

	batch, err := command.NewCreateBatchAttendanceHandler(u, nil, now).Handle(ctx, command.CreateBatchAttendanceCommand{
		Actor:      teacher,
		ScheduleID: 500,
		ClassID:    100,
		Date:       monday,
		Entries:    []command.AttendanceEntry{{StudentID: 20, Status: attendance.StatusAbsent}},
	})
	require.NoError(t, err)

	res, err := command.NewUpdateLateAttendanceHandler(u, nil, now).Handle(ctx, command.UpdateLateAttendanceCommand{
		Actor:       teacher,
		StudentID:   20,
		ScheduleID:  500,
		Date:        monday,
		CheckinTime: attendance.MustClock("08:10"),
	})
	require.NoError(t, err)
	require.True(t, res.Updated)
	assert.Equal(t, batch.Penalties[0].ID, res.Evaluation.ID)

	kept, err := repo.GetByID(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, kept.StudyPoint)
	assert.Equal(t, "class monitor", kept.Content)

	penalty, err := repo.GetByID(ctx, res.Evaluation.ID)
	require.NoError(t, err)
	assert.Equal(t, -2, penalty.StudyPoint)
	require.NotNil(t, penalty.AttendanceID)
	assert.Equal(t, batch.Records[0].ID, *penalty.AttendanceID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Finance
// ─────────────────────────────────────────────────────────────────────────────

func TestFinanceRuns(t *testing.T) {
	reset(t)
	ctx := context.Background()
	now := time.Date(2024, 9, 5, 3, 0, 0, 0, time.UTC)
	u := postgres.NewUnitOfWork(conn)

	gen := command.NewGenerateTuitionHandler(u, nil, nil, clockAt(now), command.DefaultGenerateTuitionHandlerConfig())
	runID := finance.NewRunID()
	res, err := gen.Run(ctx, command.GenerateTuitionCommand{
		Actor:   manager,
		Term:    1,
		DueDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Notified)

	tuitions, err := postgres.NewTuitionRepository(conn.Pool()).ListByStudent(ctx, 20, shared.Page{})
	require.NoError(t, err)
	require.Len(t, tuitions, 1)
	require.NotNil(t, tuitions[0].RunID)
	assert.Equal(t, runID, *tuitions[0].RunID)

	sweep := command.NewSweepOverdueTuitionHandler(u, clockAt(now))
	n, err := sweep.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	payroll := command.NewRunPayrollHandler(u, nil, clockAt(now), 0)
	pres, err := payroll.Handle(ctx, command.RunPayrollCommand{Actor: manager})
	require.NoError(t, err)
	require.Len(t, pres.Payrolls, 2)
	assert.Equal(t, finance.Money(250_000), pres.Payrolls[0].Total())

	var total int64
	require.NoError(t, conn.Pool().QueryRow(ctx,
		`SELECT total FROM payroll WHERE id = $1`, pres.Payrolls[0].ID).Scan(&total))
	assert.Equal(t, int64(250_000), total)
}
