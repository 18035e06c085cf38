package notification

import "context"

// Repository - приёмник уведомлений.
type Repository interface {
	// Create сохраняет одно уведомление.
	Create(ctx context.Context, n *Notification) error

	// CreateBatch сохраняет все уведомления одной операцией.
	CreateBatch(ctx context.Context, ns []*Notification) error

	// FindBySource возвращает уведомления данного типа, порождённые записью.
	// Отсутствие уведомлений не является ошибкой.
	FindBySource(ctx context.Context, src Source, typ Type) ([]*Notification, error)

	// UpdateContent переписывает текст уведомления.
	UpdateContent(ctx context.Context, id int64, content string) error
}
