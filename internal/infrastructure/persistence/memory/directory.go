package memory

import (
	"context"
	"sort"

	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Seeding
// ─────────────────────────────────────────────────────────────────────────────

// AddUser registers a name for any account (manager, parent).
func (db *DB) AddUser(id shared.UserID, name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users[id] = name
}

// AddStudent registers a student and, optionally, their parent.
func (db *DB) AddStudent(s school.Student) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := s
	db.students[s.ID] = &c
	db.users[s.ID] = s.FullName
}

// AddTeacher registers a teacher.
func (db *DB) AddTeacher(t school.Teacher) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c := t
	db.teachers[t.ID] = &c
	db.users[t.ID] = t.FullName
}

// AddClass registers a class.
func (db *DB) AddClass(c school.Class) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := c
	db.classes[c.ID] = &cp
}

// AddSchedule registers a session. TeacherID defaults to the class teacher.
func (db *DB) AddSchedule(s school.Schedule) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := s
	if !cp.TeacherID.IsValid() {
		if c, ok := db.classes[s.ClassID]; ok {
			cp.TeacherID = c.TeacherID
		}
	}
	db.schedules[s.ID] = &cp
}

// Enroll registers an enrollment. Fee and teacher come from the class.
func (db *DB) Enroll(studentID shared.UserID, classID shared.ClassID, active bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := &school.Enrollment{StudentID: studentID, ClassID: classID, Active: active}
	if c, ok := db.classes[classID]; ok {
		e.Fee = c.Fee
		e.TeacherID = c.TeacherID
	}
	db.enrollments = append(db.enrollments, e)
}

// ─────────────────────────────────────────────────────────────────────────────
// school.Directory
// ─────────────────────────────────────────────────────────────────────────────

type directoryReader struct {
	db *DB
}

// NewDirectory returns the read side of the seeded directory.
func NewDirectory(db *DB) school.Directory {
	return &directoryReader{db: db}
}

func (d *directoryReader) Students(_ context.Context, ids []shared.UserID) (map[shared.UserID]*school.Student, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make(map[shared.UserID]*school.Student, len(ids))
	for _, id := range ids {
		if s, ok := d.db.students[id]; ok {
			c := *s
			res[id] = &c
		}
	}
	return res, nil
}

func (d *directoryReader) Student(_ context.Context, id shared.UserID) (*school.Student, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	if s, ok := d.db.students[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, shared.ErrStudentNotFound
}

func (d *directoryReader) Schedule(_ context.Context, id shared.ScheduleID) (*school.Schedule, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	if s, ok := d.db.schedules[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, shared.ErrScheduleNotFound
}

func (d *directoryReader) Class(_ context.Context, id shared.ClassID) (*school.Class, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	if c, ok := d.db.classes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, shared.ErrClassNotFound
}

func (d *directoryReader) Classes(_ context.Context, ids []shared.ClassID) (map[shared.ClassID]*school.Class, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make(map[shared.ClassID]*school.Class, len(ids))
	for _, id := range ids {
		if c, ok := d.db.classes[id]; ok {
			cp := *c
			res[id] = &cp
		}
	}
	return res, nil
}

func (d *directoryReader) UserNames(_ context.Context, ids []shared.UserID) (map[shared.UserID]string, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make(map[shared.UserID]string, len(ids))
	for _, id := range ids {
		if name, ok := d.db.users[id]; ok {
			res[id] = name
		}
	}
	return res, nil
}

func (d *directoryReader) Teachers(context.Context) ([]*school.Teacher, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make([]*school.Teacher, 0, len(d.db.teachers))
	for _, t := range d.db.teachers {
		c := *t
		res = append(res, &c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (d *directoryReader) ClassCountsByTeacher(context.Context) (map[shared.UserID]int, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make(map[shared.UserID]int)
	for _, c := range d.db.classes {
		res[c.TeacherID]++
	}
	return res, nil
}

func (d *directoryReader) ActiveEnrollments(_ context.Context, studentID shared.UserID) ([]*school.Enrollment, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make([]*school.Enrollment, 0)
	for _, e := range d.db.enrollments {
		if e.StudentID == studentID && e.Active {
			c := *e
			res = append(res, &c)
		}
	}
	return res, nil
}

func (d *directoryReader) IsActivelyEnrolled(_ context.Context, studentID shared.UserID, classID shared.ClassID) (bool, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	for _, e := range d.db.enrollments {
		if e.StudentID == studentID && e.ClassID == classID && e.Active {
			return true, nil
		}
	}
	return false, nil
}

func (d *directoryReader) TuitionDue(context.Context) ([]*school.TuitionDue, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	sums := make(map[shared.UserID]finance.Money)
	for _, e := range d.db.enrollments {
		if e.Active {
			sums[e.StudentID] += e.Fee
		}
	}
	res := make([]*school.TuitionDue, 0, len(sums))
	for id, amount := range sums {
		s, ok := d.db.students[id]
		if !ok {
			continue
		}
		due := &school.TuitionDue{StudentID: id, StudentName: s.FullName, Amount: amount}
		if s.ParentID != nil {
			p := *s.ParentID
			due.ParentID = &p
		}
		res = append(res, due)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StudentID < res[j].StudentID })
	return res, nil
}

func (d *directoryReader) ChildrenOf(_ context.Context, parentID shared.UserID) ([]shared.UserID, error) {
	d.db.mu.RLock()
	defer d.db.mu.RUnlock()

	res := make([]shared.UserID, 0)
	for _, s := range d.db.students {
		if s.ParentID != nil && *s.ParentID == parentID {
			res = append(res, s.ID)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}
