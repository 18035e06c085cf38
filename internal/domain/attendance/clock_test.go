package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(7*3600+30*60), c)
	assert.Equal(t, "07:30:00", c.String())

	c, err = ParseClock("23:59:59")
	require.NoError(t, err)
	assert.True(t, c.IsValid())

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestWindow_Contains(t *testing.T) {
	day := Window{Start: MustClock("08:00"), End: MustClock("09:30")}
	assert.True(t, day.Contains(MustClock("08:00")))
	assert.True(t, day.Contains(MustClock("09:30")))
	assert.True(t, day.Contains(MustClock("08:45")))
	assert.False(t, day.Contains(MustClock("07:59:59")))
	assert.False(t, day.Contains(MustClock("09:30:01")))

	night := Window{Start: MustClock("22:00"), End: MustClock("02:00")}
	assert.True(t, night.Overnight())
	assert.True(t, night.Contains(MustClock("23:00")))
	assert.True(t, night.Contains(MustClock("01:00")))
	assert.True(t, night.Contains(MustClock("22:00")))
	assert.True(t, night.Contains(MustClock("02:00")))
	assert.False(t, night.Contains(MustClock("12:00")))
}

func TestRecord_MarkLate(t *testing.T) {
	now := time.Now()
	r := &Record{Status: StatusAbsent}
	require.NoError(t, r.MarkLate(MustClock("08:10"), now))
	assert.Equal(t, StatusLate, r.Status)
	require.NotNil(t, r.CheckinTime)
	assert.Equal(t, "08:10:00", r.CheckinTime.String())

	for _, s := range []Status{StatusPresent, StatusLate} {
		r := &Record{Status: s}
		err := r.MarkLate(MustClock("08:10"), now)
		assert.ErrorIs(t, err, shared.ErrStateTransition)
		assert.Equal(t, s, r.Status)
	}
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	c := MustClock("10:00")
	r := &Record{CheckinTime: &c}
	cp := r.Clone()
	*cp.CheckinTime = MustClock("11:00")
	assert.Equal(t, "10:00:00", r.CheckinTime.String())
}
