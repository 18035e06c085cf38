package command_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/memory"
)

const (
	managerID  shared.UserID = 1
	teacherID  shared.UserID = 10
	otherTchID shared.UserID = 11
	studentA   shared.UserID = 20
	studentB   shared.UserID = 21
	parentA    shared.UserID = 30

	mathClass    shared.ClassID = 100
	physicsClass shared.ClassID = 101

	mondaySession shared.ScheduleID = 500
)

// monday is 2024-09-02, a Monday.
var monday = time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)

// duringSession is 08:15 school time on monday.
var duringSession = time.Date(2024, 9, 2, 1, 15, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var (
	manager = shared.Principal{ID: managerID, Roles: shared.RoleManager}
	teacher = shared.Principal{ID: teacherID, Roles: shared.RoleTeacher}
	other   = shared.Principal{ID: otherTchID, Roles: shared.RoleTeacher}
	pupil   = shared.Principal{ID: studentA, Roles: shared.RoleStudent}
)

// seed builds a small school: two teachers, two classes, two students of
// whom only the first has a parent.
func seed() *memory.DB {
	db := memory.Open()

	db.AddUser(managerID, "Nguyen Manager")
	db.AddUser(parentA, "Tran Parent")
	db.AddTeacher(school.Teacher{ID: teacherID, FullName: "Le Teacher", BaseSalaryPerClass: 200_000, RewardBonus: 50_000})
	db.AddTeacher(school.Teacher{ID: otherTchID, FullName: "Pham Teacher", BaseSalaryPerClass: 300_000})

	parent := parentA
	db.AddStudent(school.Student{ID: studentA, FullName: "Tran An", ParentID: &parent})
	db.AddStudent(school.Student{ID: studentB, FullName: "Vo Binh"})

	db.AddClass(school.Class{ID: mathClass, Name: "6A", SubjectName: "Math", TeacherID: teacherID, Fee: 1_500_000})
	db.AddClass(school.Class{ID: physicsClass, Name: "6A", SubjectName: "Physics", TeacherID: otherTchID, Fee: 500_000})

	day := time.Monday
	db.AddSchedule(school.Schedule{
		ID:        mondaySession,
		ClassID:   mathClass,
		Window:    attendance.Window{Start: attendance.MustClock("08:00:00"), End: attendance.MustClock("09:30:00")},
		DayOfWeek: &day,
	})

	db.Enroll(studentA, mathClass, true)
	db.Enroll(studentA, physicsClass, true)
	db.Enroll(studentB, mathClass, true)
	return db
}

// syncRunner runs background work inline and records failures.
type syncRunner struct {
	mu   sync.Mutex
	errs map[string]error
}

func (r *syncRunner) Go(name string, fn func(ctx context.Context) error) {
	err := fn(context.Background())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs == nil {
		r.errs = make(map[string]error)
	}
	r.errs[name] = err
}

// heldLocker always reports the lock as taken.
type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, shared.ErrLocked
}

// recordingInvalidator remembers which students were invalidated. The first
// fails calls return errCacheDown.
type recordingInvalidator struct {
	mu    sync.Mutex
	ids   []shared.UserID
	fails int
	calls int
}

var errCacheDown = errors.New("redis: connection refused")

func (r *recordingInvalidator) InvalidateStudent(_ context.Context, id shared.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fails > 0 {
		r.fails--
		return errCacheDown
	}
	r.ids = append(r.ids, id)
	return nil
}
