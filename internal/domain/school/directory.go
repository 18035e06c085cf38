// Package school описывает справочник школы, которым пользуется ядро:
// ученики, учителя, классы, расписание и зачисления. Ядро только читает его.
package school

import (
	"context"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Student - ученик и его зарегистрированный родитель.
type Student struct {
	ID       shared.UserID
	FullName string
	ParentID *shared.UserID
}

// Teacher - учитель и параметры оплаты.
type Teacher struct {
	ID                 shared.UserID
	FullName           string
	BaseSalaryPerClass finance.Money
	RewardBonus        finance.Money
}

// Class - предмет, который ведёт один учитель.
type Class struct {
	ID          shared.ClassID
	Name        string
	SubjectName string
	TeacherID   shared.UserID
	Fee         finance.Money
}

// Label - "Класс (Предмет)".
func (c *Class) Label() string {
	if c.SubjectName == "" {
		return c.Name
	}
	return c.Name + " (" + c.SubjectName + ")"
}

// Schedule - занятие класса: либо еженедельное (DayOfWeek),
// либо разовое (Date).
type Schedule struct {
	ID        shared.ScheduleID
	ClassID   shared.ClassID
	TeacherID shared.UserID
	Window    attendance.Window
	DayOfWeek *time.Weekday
	Date      *time.Time
}

// Matches проверяет, что дата посещаемости соответствует занятию.
// Разовое занятие требует точного совпадения даты, еженедельное - дня недели.
func (s *Schedule) Matches(date time.Time) bool {
	if s.Date != nil {
		y1, m1, d1 := s.Date.Date()
		y2, m2, d2 := date.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	if s.DayOfWeek != nil {
		return date.Weekday() == *s.DayOfWeek
	}
	return true
}

// Enrollment - зачисление ученика в класс.
type Enrollment struct {
	StudentID shared.UserID
	ClassID   shared.ClassID
	TeacherID shared.UserID
	Fee       finance.Money
	Active    bool
}

// TuitionDue - сумма активных зачислений ученика.
type TuitionDue struct {
	StudentID   shared.UserID
	StudentName string
	ParentID    *shared.UserID
	Amount      finance.Money
}

// ══════════════════════════════════════════════════════════════════════════════
// DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// Directory - чтение справочника.
type Directory interface {
	// Students возвращает найденных учеников; отсутствующие ID просто пропускаются.
	Students(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*Student, error)

	// Student возвращает ErrStudentNotFound, если ученика нет.
	Student(ctx context.Context, id shared.UserID) (*Student, error)

	// Schedule возвращает ErrScheduleNotFound, если занятия нет.
	Schedule(ctx context.Context, id shared.ScheduleID) (*Schedule, error)

	// Class возвращает ErrClassNotFound, если класса нет.
	Class(ctx context.Context, id shared.ClassID) (*Class, error)

	Classes(ctx context.Context, ids []shared.ClassID) (map[shared.ClassID]*Class, error)

	// UserNames возвращает полные имена пользователей любой роли.
	UserNames(ctx context.Context, ids []shared.UserID) (map[shared.UserID]string, error)

	Teachers(ctx context.Context) ([]*Teacher, error)

	// ClassCountsByTeacher - число всех закреплённых классов по учителям.
	ClassCountsByTeacher(ctx context.Context) (map[shared.UserID]int, error)

	ActiveEnrollments(ctx context.Context, studentID shared.UserID) ([]*Enrollment, error)

	IsActivelyEnrolled(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (bool, error)

	// TuitionDue - суммы активных зачислений по ученикам, включая нулевые.
	TuitionDue(ctx context.Context) ([]*TuitionDue, error)

	ChildrenOf(ctx context.Context, parentID shared.UserID) ([]shared.UserID, error)
}
