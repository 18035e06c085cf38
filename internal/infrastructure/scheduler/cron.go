package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule is a standard five-field cron expression evaluated in a
// fixed location. Descriptors such as "@daily" and "@every 1h" are accepted.
type CronSchedule struct {
	expr     string
	schedule cron.Schedule
	location *time.Location
}

// ParseCron parses expr. A nil location means UTC.
func ParseCron(expr string, location *time.Location) (*CronSchedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if location == nil {
		location = time.UTC
	}
	return &CronSchedule{expr: expr, schedule: sched, location: location}, nil
}

// MustParseCron is like ParseCron but panics on error.
func MustParseCron(expr string, location *time.Location) *CronSchedule {
	s, err := ParseCron(expr, location)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the first activation strictly after t.
func (c *CronSchedule) Next(t time.Time) time.Time {
	return c.schedule.Next(t.In(c.location))
}

// String returns the expression and its location.
func (c *CronSchedule) String() string {
	return c.expr + " (" + c.location.String() + ")"
}
