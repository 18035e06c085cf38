// Package shared contains common domain types, errors, and value objects
// that are used across all domain packages.
package shared

import (
	"strconv"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies any account of the school directory: student, teacher,
// parent or manager.
type UserID int64

// IsValid checks if the ID is positive.
func (id UserID) IsValid() bool {
	return id > 0
}

// Int64 returns the underlying int64 value.
func (id UserID) Int64() int64 {
	return int64(id)
}

// String returns the string representation.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id int64) (UserID, error) {
	if id <= 0 {
		return 0, ErrInvalidID
	}
	return UserID(id), nil
}

// ClassID identifies a class (a subject taught by one teacher to a group).
type ClassID int64

// IsValid checks if the ID is positive.
func (id ClassID) IsValid() bool {
	return id > 0
}

// Int64 returns the underlying int64 value.
func (id ClassID) Int64() int64 {
	return int64(id)
}

// String returns the string representation.
func (id ClassID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ScheduleID identifies a scheduled session of a class.
type ScheduleID int64

// IsValid checks if the ID is positive.
func (id ScheduleID) IsValid() bool {
	return id > 0
}

// Int64 returns the underlying int64 value.
func (id ScheduleID) Int64() int64 {
	return int64(id)
}

// String returns the string representation.
func (id ScheduleID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UserIDStrings renders ids for error messages.
func UserIDStrings(ids []UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

const (
	// DefaultPageLimit is applied when the caller does not ask for a limit.
	DefaultPageLimit = 100

	// MaxPageLimit caps a single page.
	MaxPageLimit = 500
)

// Page is an offset/limit window over an ordered listing.
type Page struct {
	Offset int
	Limit  int
}

// Normalize returns the page with defaults applied.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Window returns the slice bounds [lo, hi) of the page over n items.
func (p Page) Window(n int) (int, int) {
	p = p.Normalize()
	lo := p.Offset
	if lo > n {
		lo = n
	}
	hi := lo + p.Limit
	if hi > n {
		hi = n
	}
	return lo, hi
}
