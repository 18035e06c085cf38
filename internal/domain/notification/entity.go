// Package notification содержит доменную модель уведомлений школы.
// Ядро только записывает уведомления; доставка находится вне этого модуля.
package notification

import (
	"fmt"
	"strconv"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypePayroll - расчёт зарплаты учителя.
	TypePayroll Type = "payroll"

	// TypeTuition - счёт за обучение для родителя.
	TypeTuition Type = "tuition"

	// TypeSchedule - изменения расписания.
	TypeSchedule Type = "schedule"

	// TypeWarning - дисциплинарные предупреждения (пропуски, опоздания).
	TypeWarning Type = "warning"

	// TypeOthers - всё остальное.
	TypeOthers Type = "others"
)

// IsValid проверяет, что тип известен.
func (t Type) IsValid() bool {
	switch t {
	case TypePayroll, TypeTuition, TypeSchedule, TypeWarning, TypeOthers:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SOURCE REFERENCE
// ══════════════════════════════════════════════════════════════════════════════

// SourceKind - вид события, породившего уведомление.
type SourceKind string

const (
	SourceAttendance SourceKind = "attendance"
	SourceTuition    SourceKind = "tuition"
	SourcePayroll    SourceKind = "payroll"
)

// Source - явная ссылка на запись, из-за которой создано уведомление.
// По ней исправления находят ровно связанные уведомления.
type Source struct {
	Kind SourceKind
	ID   int64
}

// String возвращает "kind:id".
func (s Source) String() string {
	return string(s.Kind) + ":" + strconv.FormatInt(s.ID, 10)
}

// AttendanceSource ссылается на запись посещаемости.
func AttendanceSource(recordID int64) *Source {
	return &Source{Kind: SourceAttendance, ID: recordID}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification - уведомление, адресованное одному пользователю.
type Notification struct {
	ID         int64
	ReceiverID shared.UserID

	// SenderID пуст для системных уведомлений.
	SenderID *shared.UserID

	Content string
	Type    Type
	IsRead  bool
	SentAt  time.Time

	// Source пуст, если уведомление не связано с конкретной записью.
	Source *Source
}

// NewParams содержит параметры для создания уведомления.
type NewParams struct {
	ReceiverID shared.UserID
	SenderID   *shared.UserID
	Content    string
	Type       Type
	Source     *Source
	SentAt     time.Time
}

// New создаёт непрочитанное уведомление с валидацией.
func New(p NewParams) (*Notification, error) {
	if !p.ReceiverID.IsValid() {
		return nil, shared.WrapError("notification", "New", shared.ErrInvalidID,
			"invalid receiver", fmt.Errorf("receiver %d", p.ReceiverID))
	}
	if !p.Type.IsValid() {
		return nil, shared.ErrInvalidNotifType
	}
	if p.Content == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrInvalidInput, "content is empty")
	}
	sentAt := p.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	return &Notification{
		ReceiverID: p.ReceiverID,
		SenderID:   p.SenderID,
		Content:    p.Content,
		Type:       p.Type,
		SentAt:     sentAt,
		Source:     p.Source,
	}, nil
}

// Clone возвращает независимую копию.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.SenderID != nil {
		s := *n.SenderID
		c.SenderID = &s
	}
	if n.Source != nil {
		s := *n.Source
		c.Source = &s
	}
	return &c
}
