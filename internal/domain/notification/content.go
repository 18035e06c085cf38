package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// Тексты уведомлений. Даты посещаемости в формате YYYY-MM-DD,
// финансовые даты в формате DD/MM/YYYY.

// AbsenceForStudent - предупреждение ученику о пропуске.
func AbsenceForStudent(date time.Time) string {
	return fmt.Sprintf("Notice: you were absent from the session on %s.", date.Format(timeutil.LayoutDate))
}

// AbsenceForParent - предупреждение родителю о пропуске ребёнка.
func AbsenceForParent(childName string, date time.Time) string {
	return fmt.Sprintf("Notice: your child %s was absent from the session on %s.", childName, date.Format(timeutil.LayoutDate))
}

// LateForStudent заменяет AbsenceForStudent после исправления на опоздание.
func LateForStudent(date time.Time) string {
	return fmt.Sprintf("Notice: you were late for the session on %s.", date.Format(timeutil.LayoutDate))
}

// LateForParent заменяет AbsenceForParent после исправления на опоздание.
func LateForParent(childName string, date time.Time) string {
	return fmt.Sprintf("Notice: your child %s was late for the session on %s.", childName, date.Format(timeutil.LayoutDate))
}

// TuitionDue - счёт за обучение для родителя.
func TuitionDue(studentName string, amount int64, dueDate time.Time) string {
	return fmt.Sprintf("Tuition for %s of student %s is %s VND. Due %s.",
		dueDate.Format("01/2006"), studentName, GroupThousands(amount), timeutil.FormatDateStr(dueDate))
}

// PayrollComputed - уведомление учителю о рассчитанной зарплате.
func PayrollComputed(month, year int, total int64, at time.Time) string {
	return fmt.Sprintf("Your payroll for %d/%d has been computed. Total: %s. Time: %s",
		month, year, GroupThousands(total), at.Format("02/01/2006 15:04"))
}

// GroupThousands форматирует целое число с разделителем тысяч: 1,250,000.
func GroupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return sign + s
	}

	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
