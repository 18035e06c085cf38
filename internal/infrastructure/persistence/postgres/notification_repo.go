package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	q Querier
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(q Querier) *NotificationRepository {
	return &NotificationRepository{q: q}
}

const notificationColumns = `
	id, receiver_id, sender_id, content, type, is_read, sent_at, source_kind, source_id`

const insertNotification = `
	INSERT INTO notifications (receiver_id, sender_id, content, type, is_read, sent_at, source_kind, source_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
`

// Create inserts one notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	err := r.q.QueryRow(ctx, insertNotification, notificationArgs(n)...).Scan(&n.ID)
	if err != nil {
		return mapError("notifications.Create", err, shared.ErrNotificationNotFound)
	}
	return nil
}

// CreateBatch inserts all notifications in one round trip.
func (r *NotificationRepository) CreateBatch(ctx context.Context, ns []*notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range ns {
		batch.Queue(insertNotification, notificationArgs(n)...)
	}

	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for _, n := range ns {
		if err := br.QueryRow().Scan(&n.ID); err != nil {
			return mapError("notifications.CreateBatch", err, shared.ErrNotificationNotFound)
		}
	}
	return nil
}

// FindBySource returns notifications of a type produced by one record.
func (r *NotificationRepository) FindBySource(ctx context.Context, src notification.Source, typ notification.Type) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE source_kind = $1 AND source_id = $2 AND type = $3
		ORDER BY id
		FOR UPDATE`

	return r.collect(ctx, query, string(src.Kind), src.ID, string(typ))
}

// UpdateContent rewrites the text of a notification.
func (r *NotificationRepository) UpdateContent(ctx context.Context, id int64, content string) error {
	tag, err := r.q.Exec(ctx, `UPDATE notifications SET content = $2 WHERE id = $1`, id, content)
	if err != nil {
		return mapError("notifications.UpdateContent", err, shared.ErrNotificationNotFound)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) collect(ctx context.Context, query string, args ...interface{}) ([]*notification.Notification, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func notificationArgs(n *notification.Notification) []interface{} {
	var sender *int64
	if n.SenderID != nil {
		id := n.SenderID.Int64()
		sender = &id
	}
	var kind *string
	var sourceID *int64
	if n.Source != nil {
		k := string(n.Source.Kind)
		kind = &k
		sourceID = &n.Source.ID
	}
	return []interface{}{
		n.ReceiverID.Int64(),
		sender,
		n.Content,
		string(n.Type),
		n.IsRead,
		n.SentAt,
		kind,
		sourceID,
	}
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var n notification.Notification
	var receiverID int64
	var senderID *int64
	var typ string
	var kind *string
	var sourceID *int64

	err := row.Scan(
		&n.ID,
		&receiverID,
		&senderID,
		&n.Content,
		&typ,
		&n.IsRead,
		&n.SentAt,
		&kind,
		&sourceID,
	)
	if err != nil {
		return nil, err
	}
	n.ReceiverID = shared.UserID(receiverID)
	if senderID != nil {
		s := shared.UserID(*senderID)
		n.SenderID = &s
	}
	n.Type = notification.Type(typ)
	if kind != nil && sourceID != nil {
		n.Source = &notification.Source{Kind: notification.SourceKind(*kind), ID: *sourceID}
	}
	return &n, nil
}
