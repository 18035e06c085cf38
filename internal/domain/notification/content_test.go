package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", GroupThousands(0))
	assert.Equal(t, "999", GroupThousands(999))
	assert.Equal(t, "1,000", GroupThousands(1000))
	assert.Equal(t, "1,250,000", GroupThousands(1250000))
	assert.Equal(t, "-12,345", GroupThousands(-12345))
}

func TestContent(t *testing.T) {
	date := time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "Notice: you were absent from the session on 2024-09-03.", AbsenceForStudent(date))
	assert.Contains(t, AbsenceForParent("An Nguyen", date), "your child An Nguyen was absent")
	assert.Contains(t, LateForStudent(date), "late")
	assert.Contains(t, LateForParent("An Nguyen", date), "2024-09-03")

	due := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Tuition for 10/2024 of student An Nguyen is 1,500,000 VND. Due 10/10/2024.",
		TuitionDue("An Nguyen", 1500000, due))

	at := time.Date(2024, 10, 1, 8, 5, 0, 0, time.UTC)
	assert.Equal(t, "Your payroll for 10/2024 has been computed. Total: 3,200,000. Time: 01/10/2024 08:05",
		PayrollComputed(10, 2024, 3200000, at))
}

func TestNew(t *testing.T) {
	n, err := New(NewParams{ReceiverID: 5, Content: "hi", Type: TypeWarning, Source: AttendanceSource(9)})
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.False(t, n.SentAt.IsZero())
	assert.Equal(t, "attendance:9", n.Source.String())

	_, err = New(NewParams{ReceiverID: 0, Content: "hi", Type: TypeWarning})
	assert.True(t, shared.IsValidation(err))

	_, err = New(NewParams{ReceiverID: 5, Content: "hi", Type: "sms"})
	assert.True(t, shared.IsValidation(err))
}
