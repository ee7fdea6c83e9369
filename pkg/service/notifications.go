package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/formatter"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

const DefaultNotificationPageSize = 20

// NotificationService pages and mutates the signed-in user's notifications.
// Deletes are optimistic: the item leaves the list before the write lands.
type NotificationService struct {
	gw       *backend.Gateway
	pageSize int

	mu     sync.Mutex
	items  []models.Notification
	cursor backend.Cursor
	done   bool

	pending sync.WaitGroup
}

func NewNotificationService(gw *backend.Gateway, pageSize int) *NotificationService {
	if pageSize <= 0 {
		pageSize = DefaultNotificationPageSize
	}
	return &NotificationService{gw: gw, pageSize: pageSize}
}

func (s *NotificationService) query(uid string) *backend.QueryBuilder {
	return s.gw.Collection(backend.CollectionNotifications).
		Where("userId", backend.OpEqual, uid).
		OrderBy("createdAt", backend.Desc)
}

// Load fetches the first page, replacing anything loaded before.
func (s *NotificationService) Load(ctx context.Context) ([]models.Notification, error) {
	s.mu.Lock()
	s.items, s.cursor, s.done = nil, "", false
	s.mu.Unlock()
	return s.LoadMore(ctx)
}

// LoadMore fetches the next page. It returns nil once the list is exhausted.
func (s *NotificationService) LoadMore(ctx context.Context) ([]models.Notification, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return nil, clierrors.AuthError("Sign in to see notifications")
	}

	s.mu.Lock()
	cursor, done := s.cursor, s.done
	s.mu.Unlock()
	if done {
		return nil, nil
	}

	logger.Debug("Loading notifications", "uid", uid, "cursor", cursor)
	q := s.query(uid).Limit(s.pageSize)
	if cursor != "" {
		q = q.StartAfter(cursor)
	}
	snap, err := q.Get(ctx)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load notifications", err)
	}
	page, err := backend.DecodeAll[models.Notification](snap)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load notifications", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, page...)
	if snap.Last != "" {
		s.cursor = snap.Last
	}
	if len(page) < s.pageSize {
		s.done = true
	}
	return page, nil
}

// Items returns the loaded notifications.
func (s *NotificationService) Items() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}

func (s *NotificationService) setRead(id string, read bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Read = read
		}
	}
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.gw.Collection(backend.CollectionNotifications).Doc(id).Update(ctx, backend.Fields{"read": true}); err != nil {
		return clierrors.WriteError("mark notification read", err)
	}
	s.setRead(id, true)
	return nil
}

// ToggleRead flips the read flag and returns the new value.
func (s *NotificationService) ToggleRead(ctx context.Context, id string) (bool, error) {
	doc, err := s.gw.Collection(backend.CollectionNotifications).Doc(id).Get(ctx)
	if err != nil {
		if backend.IsNotFound(err) {
			return false, clierrors.NotFoundError("Notification", id)
		}
		return false, clierrors.ReadError("Failed to load notification", err)
	}
	var n models.Notification
	if err := doc.DataTo(&n); err != nil {
		return false, fmt.Errorf("failed to decode notification: %w", err)
	}
	read := !n.Read
	if err := s.gw.Collection(backend.CollectionNotifications).Doc(id).Update(ctx, backend.Fields{"read": read}); err != nil {
		return n.Read, clierrors.WriteError("update notification", err)
	}
	s.setRead(id, read)
	return read, nil
}

func (s *NotificationService) unread(ctx context.Context, uid string) ([]backend.Document, error) {
	snap, err := s.gw.Collection(backend.CollectionNotifications).
		Where("userId", backend.OpEqual, uid).
		Where("read", backend.OpEqual, false).
		Get(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Docs, nil
}

// MarkAllRead marks every unread notification read in one batch and
// returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context) (int, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return 0, clierrors.AuthError("Sign in to see notifications")
	}
	docs, err := s.unread(ctx, uid)
	if err != nil {
		return 0, clierrors.ReadError("Failed to load notifications", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	ops := make([]backend.BatchOp, 0, len(docs))
	for _, d := range docs {
		ops = append(ops, backend.BatchOp{
			Kind:       backend.BatchUpdate,
			Collection: backend.CollectionNotifications,
			ID:         d.ID,
			Data:       backend.Fields{"read": true},
		})
	}
	if err := s.gw.Batch(ctx, ops); err != nil {
		return 0, clierrors.WriteError("mark all read", err)
	}

	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.mu.Unlock()

	logger.Info("Marked notifications read", "count", len(ops))
	return len(ops), nil
}

// Delete removes the notification from the list at once and deletes it in
// the background. Errors are reported to onError, if set. Call Wait to flush.
func (s *NotificationService) Delete(ctx context.Context, id string, onError func(error)) {
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.gw.Collection(backend.CollectionNotifications).Doc(id).Delete(ctx); err != nil {
			logger.Error("Failed to delete notification", "id", id, "error", err)
			if onError != nil {
				onError(clierrors.WriteError("delete notification", err))
			}
		}
	}()
}

// Wait blocks until background deletes finish.
func (s *NotificationService) Wait() { s.pending.Wait() }

// ClearAll deletes every notification of the signed-in user.
func (s *NotificationService) ClearAll(ctx context.Context) (int, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return 0, clierrors.AuthError("Sign in to see notifications")
	}
	snap, err := s.gw.Collection(backend.CollectionNotifications).
		Where("userId", backend.OpEqual, uid).
		Get(ctx)
	if err != nil {
		return 0, clierrors.ReadError("Failed to load notifications", err)
	}
	ops := make([]backend.BatchOp, 0, len(snap.Docs))
	for _, d := range snap.Docs {
		ops = append(ops, backend.BatchOp{Kind: backend.BatchDelete, Collection: backend.CollectionNotifications, ID: d.ID})
	}
	if len(ops) > 0 {
		if err := s.gw.Batch(ctx, ops); err != nil {
			return 0, clierrors.WriteError("clear notifications", err)
		}
	}

	s.mu.Lock()
	s.items = nil
	s.done = true
	s.mu.Unlock()
	return len(ops), nil
}

// Create writes a notification for another user. CreatedAt is set by the backend.
func (s *NotificationService) Create(ctx context.Context, n models.Notification) (string, error) {
	if n.UserID == "" {
		return "", clierrors.ValidationError("userId", "recipient is required")
	}
	if n.Type == "" {
		n.Type = models.NotificationSystem
	}
	data, err := backend.ToFields(n)
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	data["read"] = false
	data["createdAt"] = s.gw.Timestamp()
	id, err := s.gw.Collection(backend.CollectionNotifications).Add(ctx, data)
	if err != nil {
		return "", clierrors.WriteError("create notification", err)
	}
	return id, nil
}

// UnreadCount counts unread notifications on the backend.
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return 0, clierrors.AuthError("Sign in to see notifications")
	}
	docs, err := s.unread(ctx, uid)
	if err != nil {
		return 0, clierrors.ReadError("Failed to count notifications", err)
	}
	return len(docs), nil
}

// Badge is the unread count as shown on the bell, "" when zero.
func (s *NotificationService) Badge(ctx context.Context) (string, error) {
	n, err := s.UnreadCount(ctx)
	if err != nil {
		return "", err
	}
	return formatter.Badge(n), nil
}

// Get fetches one notification of the signed-in user.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return nil, clierrors.AuthError("Sign in to see notifications")
	}
	doc, err := s.gw.Collection(backend.CollectionNotifications).Doc(id).Get(ctx)
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Notification", id)
		}
		return nil, clierrors.ReadError("Failed to load notification", err)
	}
	var n models.Notification
	if err := doc.DataTo(&n); err != nil {
		return nil, clierrors.ReadError("Failed to load notification", err)
	}
	if n.UserID != uid {
		return nil, clierrors.NotFoundError("Notification", id)
	}
	return &n, nil
}

// Route marks n read and returns where opening it leads.
func (s *NotificationService) Route(ctx context.Context, n models.Notification) (models.TargetKind, string, error) {
	if !n.Read {
		if err := s.MarkRead(ctx, n.ID); err != nil {
			return models.TargetNone, "", err
		}
	}
	kind, id := n.Target()
	return kind, id, nil
}

// Subscribe streams new and changed notifications for the signed-in user.
func (s *NotificationService) Subscribe(ctx context.Context, fn func(backend.ChangeType, models.Notification)) (func(), error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return nil, clierrors.AuthError("Sign in to see notifications")
	}
	return s.gw.Collection(backend.CollectionNotifications).
		Where("userId", backend.OpEqual, uid).
		Subscribe(ctx, func(c backend.Change) {
			var n models.Notification
			if err := c.Doc.DataTo(&n); err != nil {
				logger.Warn("Dropping undecodable notification", "id", c.Doc.ID, "error", err)
				return
			}
			fn(c.Type, n)
		})
}
