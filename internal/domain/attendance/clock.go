package attendance

import (
	"fmt"
	"strings"
	"time"
)

// Clock - время суток в секундах от полуночи.
type Clock int

const secondsPerDay = 24 * 60 * 60

// ParseClock разбирает "15:04" или "15:04:05".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// MustClock - ParseClock для констант и тестов.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf берёт время суток из t в его часовом поясе.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// IsValid проверяет диапазон.
func (c Clock) IsValid() bool {
	return c >= 0 && c < secondsPerDay
}

// String форматирует как "15:04:05".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// Window - допустимый интервал отметки [Start, End]. Если Start > End,
// интервал переходит через полночь.
type Window struct {
	Start Clock
	End   Clock
}

// Contains проверяет попадание в интервал, включая границы.
func (w Window) Contains(c Clock) bool {
	if w.Start <= w.End {
		return c >= w.Start && c <= w.End
	}
	return c >= w.Start || c <= w.End
}

// Overnight сообщает, что интервал переходит через полночь.
func (w Window) Overnight() bool {
	return w.Start > w.End
}

// String форматирует как "start-end".
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
