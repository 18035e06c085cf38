package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday_UsesSchoolDay(t *testing.T) {
	// 18:30 UTC is already the next day at UTC+7.
	utc := time.Date(2024, 9, 2, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, Date(2024, 9, 3), Today(utc))
}

func TestDueDate(t *testing.T) {
	start := time.Date(2024, 1, 25, 10, 0, 0, 0, SchoolTZ)
	assert.Equal(t, Date(2024, 2, 4), DueDate(start, 10))
	assert.Equal(t, Date(2024, 2, 11), DueDate(StartOfMonth(time.Date(2024, 2, 20, 0, 0, 0, 0, SchoolTZ)), 10))
}

func TestFormatDateStr(t *testing.T) {
	assert.Equal(t, "05/10/2024", FormatDateStr(Date(2024, 10, 5)))
}
