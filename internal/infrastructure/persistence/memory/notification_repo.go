package memory

import (
	"context"
	"sort"

	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

type notificationRepository struct {
	db *DB
}

// NewNotificationRepository returns the notification sink over db.
func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.CreateBatch(ctx, []*notification.Notification{n})
}

func (r *notificationRepository) CreateBatch(_ context.Context, ns []*notification.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("notifications.CreateBatch"); err != nil {
		return err
	}
	for _, n := range ns {
		n.ID = r.db.nextID()
		r.db.notifications[n.ID] = n.Clone()
	}
	return nil
}

func (r *notificationRepository) FindBySource(_ context.Context, src notification.Source, typ notification.Type) ([]*notification.Notification, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*notification.Notification, 0)
	for _, n := range r.db.notifications {
		if n.Source != nil && *n.Source == src && n.Type == typ {
			res = append(res, n.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *notificationRepository) UpdateContent(_ context.Context, id int64, content string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.fault("notifications.UpdateContent"); err != nil {
		return err
	}
	n, ok := r.db.notifications[id]
	if !ok {
		return shared.ErrNotificationNotFound
	}
	n.Content = content
	return nil
}
