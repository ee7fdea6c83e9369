package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

const (
	DefaultConversationWindow = 20
	DefaultMessageHistory     = 50

	subMessages = "messages"
)

// ConversationFilter narrows the conversation list locally.
type ConversationFilter string

const (
	FilterAll      ConversationFilter = "all"
	FilterUnread   ConversationFilter = "unread"
	FilterPinned   ConversationFilter = "pinned"
	FilterArchived ConversationFilter = "archived"
)

// MessageService reads and writes direct-message threads. Threads live in
// the messages collection; each has a messages sub-collection.
type MessageService struct {
	gw      *backend.Gateway
	window  int
	history int
}

func NewMessageService(gw *backend.Gateway, window, history int) *MessageService {
	if window <= 0 {
		window = DefaultConversationWindow
	}
	if history <= 0 {
		history = DefaultMessageHistory
	}
	return &MessageService{gw: gw, window: window, history: history}
}

func (s *MessageService) conversations() *backend.CollectionRef {
	return s.gw.Collection(backend.CollectionMessages)
}

// Conversations loads the most recent threads the user takes part in.
func (s *MessageService) Conversations(ctx context.Context) ([]models.Conversation, error) {
	uid, err := s.gw.RequireUser()
	if err != nil {
		return nil, clierrors.AuthError("Sign in to read messages")
	}
	snap, err := s.conversations().
		Where("participants", backend.OpArrayContains, uid).
		OrderBy("lastMessageAt", backend.Desc).
		Limit(s.window).
		Get(ctx)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load conversations", err)
	}
	convs, err := backend.DecodeAll[models.Conversation](snap)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load conversations", err)
	}
	logger.Debug("Loaded conversations", "count", len(convs))
	return convs, nil
}

// ConversationID is the stable thread id for a pair of users.
func ConversationID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Start returns the thread with another user, creating it when missing.
func (s *MessageService) Start(ctx context.Context, otherUID, otherName string) (*models.Conversation, error) {
	me := s.gw.CurrentUser()
	if me == nil {
		return nil, clierrors.AuthError("Sign in to send messages")
	}
	if otherUID == "" || otherUID == me.UID {
		return nil, clierrors.ValidationError("user", "Pick someone else to message")
	}

	id := ConversationID(me.UID, otherUID)
	ref := s.conversations().Doc(id)
	if doc, err := ref.Get(ctx); err == nil {
		var c models.Conversation
		if err := doc.DataTo(&c); err != nil {
			return nil, fmt.Errorf("failed to decode conversation: %w", err)
		}
		return &c, nil
	} else if !backend.IsNotFound(err) {
		return nil, clierrors.ReadError("Failed to load conversation", err)
	}

	names := map[string]string{me.UID: displayName(me), otherUID: otherName}
	if err := ref.Set(ctx, backend.Fields{
		"participants":     []string{me.UID, otherUID},
		"participantNames": names,
		"lastMessage":      "",
		"lastMessageAt":    s.gw.Timestamp(),
		"unread":           false,
		"unreadCount":      0,
	}); err != nil {
		return nil, clierrors.WriteError("start conversation", err)
	}
	return &models.Conversation{ID: id, Participants: []string{me.UID, otherUID}, ParticipantNames: names}, nil
}

func displayName(id *backend.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	if at := strings.IndexByte(id.Email, '@'); at > 0 {
		return id.Email[:at]
	}
	return "User"
}

// Open marks a thread read and returns its recent history, oldest first.
func (s *MessageService) Open(ctx context.Context, convID string) ([]models.Message, error) {
	if err := s.conversations().Doc(convID).Update(ctx, backend.Fields{
		"unread":      false,
		"unreadCount": 0,
	}); err != nil {
		if backend.IsNotFound(err) {
			return nil, clierrors.NotFoundError("Conversation", convID)
		}
		logger.Warn("Failed to mark conversation read", "id", convID, "error", err)
	}
	return s.Messages(ctx, convID)
}

// Messages returns the last history messages of a thread in ascending order.
func (s *MessageService) Messages(ctx context.Context, convID string) ([]models.Message, error) {
	snap, err := s.conversations().Doc(convID).Collection(subMessages).
		OrderBy("createdAt", backend.Desc).
		Limit(s.history).
		Get(ctx)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load messages", err)
	}
	msgs, err := backend.DecodeAll[models.Message](snap)
	if err != nil {
		return nil, clierrors.ReadError("Failed to load messages", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Send appends a message and updates the thread summary.
func (s *MessageService) Send(ctx context.Context, convID, text string) (string, error) {
	me := s.gw.CurrentUser()
	if me == nil {
		return "", clierrors.AuthError("Sign in to send messages")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", clierrors.ValidationError("text", "Message cannot be empty")
	}

	conv := s.conversations().Doc(convID)
	id, err := conv.Collection(subMessages).Add(ctx, backend.Fields{
		"senderId":   me.UID,
		"senderName": displayName(me),
		"text":       text,
		"createdAt":  s.gw.Timestamp(),
	})
	if err != nil {
		return "", clierrors.WriteError("send message", err)
	}
	if err := conv.Update(ctx, backend.Fields{
		"lastMessage":   text,
		"lastMessageAt": s.gw.Timestamp(),
		"unread":        true,
		"unreadCount":   backend.Increment(1),
	}); err != nil {
		return id, clierrors.WriteError("update conversation", err)
	}

	logger.Debug("Sent message", "conversation", convID, "id", id)
	return id, nil
}

// Delete removes a thread and its messages.
func (s *MessageService) Delete(ctx context.Context, convID string) error {
	snap, err := s.conversations().Doc(convID).Collection(subMessages).Query().Get(ctx)
	if err != nil {
		return clierrors.ReadError("Failed to load messages", err)
	}
	path := backend.CollectionMessages + "/" + convID + "/" + subMessages
	ops := make([]backend.BatchOp, 0, len(snap.Docs)+1)
	for _, d := range snap.Docs {
		ops = append(ops, backend.BatchOp{Kind: backend.BatchDelete, Collection: path, ID: d.ID})
	}
	ops = append(ops, backend.BatchOp{Kind: backend.BatchDelete, Collection: backend.CollectionMessages, ID: convID})
	if err := s.gw.Batch(ctx, ops); err != nil {
		return clierrors.WriteError("delete conversation", err)
	}
	return nil
}

func (s *MessageService) setFlag(ctx context.Context, convID, flag string, on bool) error {
	if err := s.conversations().Doc(convID).Update(ctx, backend.Fields{flag: on}); err != nil {
		if backend.IsNotFound(err) {
			return clierrors.NotFoundError("Conversation", convID)
		}
		return clierrors.WriteError("update conversation", err)
	}
	return nil
}

func (s *MessageService) SetMuted(ctx context.Context, convID string, on bool) error {
	return s.setFlag(ctx, convID, "muted", on)
}

func (s *MessageService) SetPinned(ctx context.Context, convID string, on bool) error {
	return s.setFlag(ctx, convID, "pinned", on)
}

func (s *MessageService) SetArchived(ctx context.Context, convID string, on bool) error {
	return s.setFlag(ctx, convID, "archived", on)
}

// Filter applies a tab and a case-insensitive name/text search. Pinned
// threads sort first; archived ones only show under FilterArchived.
func Filter(convs []models.Conversation, uid string, f ConversationFilter, query string) []models.Conversation {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []models.Conversation
	for _, c := range convs {
		switch f {
		case FilterUnread:
			if !c.Unread || c.Archived {
				continue
			}
		case FilterPinned:
			if !c.Pinned || c.Archived {
				continue
			}
		case FilterArchived:
			if !c.Archived {
				continue
			}
		default:
			if c.Archived {
				continue
			}
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Title(uid)), q) &&
			!strings.Contains(strings.ToLower(c.LastMessage), q) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pinned && !out[j].Pinned })
	return out
}

// TotalUnread sums unread counts of non-muted threads.
func TotalUnread(convs []models.Conversation) int {
	total := 0
	for _, c := range convs {
		if c.Muted {
			continue
		}
		switch {
		case c.UnreadCount > 0:
			total += c.UnreadCount
		case c.Unread:
			total++
		}
	}
	return total
}

// SubscribeMessages streams messages appended to a thread.
func (s *MessageService) SubscribeMessages(ctx context.Context, convID string, fn func(models.Message)) (func(), error) {
	return s.conversations().Doc(convID).Collection(subMessages).Query().
		Subscribe(ctx, func(c backend.Change) {
			if c.Type != backend.ChangeAdded {
				return
			}
			var m models.Message
			if err := c.Doc.DataTo(&m); err != nil {
				logger.Warn("Dropping undecodable message", "id", c.Doc.ID, "error", err)
				return
			}
			fn(m)
		})
}
