// Package memory is an in-process implementation of the repositories.
// It enforces the same uniqueness rules as the postgres schema and rolls back
// a unit of work on error, which makes it the store behind application tests.
// Locker and ScoreCache also stand in for Redis when the worker runs without it.
package memory

import (
	"sort"
	"sync"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

type (
	// DB holds every table behind one lock.
	DB struct {
		mu sync.RWMutex

		// tx serializes units of work.
		tx sync.Mutex

		seq    int64
		faults map[string]error

		ledger
		directory
	}

	// ledger contains the tables written by the core. It is snapshotted
	// at the start of a unit of work.
	ledger struct {
		evaluations   map[int64]*evaluation.Evaluation
		attendance    map[int64]*attendance.Record
		notifications map[int64]*notification.Notification
		tuitions      map[int64]*finance.Tuition
		payrolls      map[int64]*finance.Payroll
	}

	// directory contains the reference data the core only reads.
	directory struct {
		users       map[shared.UserID]string
		students    map[shared.UserID]*school.Student
		teachers    map[shared.UserID]*school.Teacher
		classes     map[shared.ClassID]*school.Class
		schedules   map[shared.ScheduleID]*school.Schedule
		enrollments []*school.Enrollment
	}
)

// Open creates an empty database.
func Open() *DB {
	return &DB{
		faults: make(map[string]error),
		ledger: newLedger(),
		directory: directory{
			users:     make(map[shared.UserID]string),
			students:  make(map[shared.UserID]*school.Student),
			teachers:  make(map[shared.UserID]*school.Teacher),
			classes:   make(map[shared.ClassID]*school.Class),
			schedules: make(map[shared.ScheduleID]*school.Schedule),
		},
	}
}

func newLedger() ledger {
	return ledger{
		evaluations:   make(map[int64]*evaluation.Evaluation),
		attendance:    make(map[int64]*attendance.Record),
		notifications: make(map[int64]*notification.Notification),
		tuitions:      make(map[int64]*finance.Tuition),
		payrolls:      make(map[int64]*finance.Payroll),
	}
}

// snapshot deep-copies the ledger. Caller holds mu.
func (l *ledger) snapshot() ledger {
	s := newLedger()
	for id, e := range l.evaluations {
		s.evaluations[id] = e.Clone()
	}
	for id, r := range l.attendance {
		s.attendance[id] = r.Clone()
	}
	for id, n := range l.notifications {
		s.notifications[id] = n.Clone()
	}
	for id, t := range l.tuitions {
		s.tuitions[id] = t.Clone()
	}
	for id, p := range l.payrolls {
		s.payrolls[id] = p.Clone()
	}
	return s
}

// nextID returns the next primary key. Caller holds mu for writing.
func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// InjectFault makes the next call of op fail with err. Op names are
// "<table>.<Method>", e.g. "notifications.CreateBatch".
func (db *DB) InjectFault(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[op] = err
}

// fault consumes an injected fault. Caller holds mu for writing.
func (db *DB) fault(op string) error {
	if err, ok := db.faults[op]; ok {
		delete(db.faults, op)
		return err
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Counters used by tests
// ─────────────────────────────────────────────────────────────────────────────

// CountEvaluations returns the number of ledger rows.
func (db *DB) CountEvaluations() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.evaluations)
}

// CountNotifications returns the number of stored notifications.
func (db *DB) CountNotifications() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.notifications)
}

// CountAttendance returns the number of attendance records.
func (db *DB) CountAttendance() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.attendance)
}

// Notifications returns every stored notification ordered by id.
func (db *DB) Notifications() []*notification.Notification {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*notification.Notification, 0, len(db.notifications))
	for _, n := range db.notifications {
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tuitions returns every stored tuition ordered by id.
func (db *DB) Tuitions() []*finance.Tuition {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*finance.Tuition, 0, len(db.tuitions))
	for _, t := range db.tuitions {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Payrolls returns every stored payroll ordered by id.
func (db *DB) Payrolls() []*finance.Payroll {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*finance.Payroll, 0, len(db.payrolls))
	for _, p := range db.payrolls {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
