package models

import "time"

// Draft is an unpublished payload kept only in local storage.
type Draft struct {
	ID string `json:"id"`
	PostContent
	SavedAt time.Time `json:"savedAt"`
}

// User is a profile document in the users collection.
type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Username    string    `json:"username"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	Posts       int       `json:"posts"`
	Verified    bool      `json:"verified,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// NotificationType names what triggered a notification.
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationComment     NotificationType = "comment"
	NotificationFollow      NotificationType = "follow"
	NotificationMention     NotificationType = "mention"
	NotificationShare       NotificationType = "share"
	NotificationQuiz        NotificationType = "quiz"
	NotificationAchievement NotificationType = "achievement"
	NotificationReminder    NotificationType = "reminder"
	NotificationSystem      NotificationType = "system"
)

// Notification belongs to the user in UserID.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	PostID    string           `json:"postId,omitempty"`
	ActorID   string           `json:"actorId,omitempty"`
	ActorName string           `json:"actorName,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// TargetKind is where opening a notification leads.
type TargetKind string

const (
	TargetNone    TargetKind = ""
	TargetPost    TargetKind = "post"
	TargetProfile TargetKind = "profile"
)

// Target resolves the destination of a notification.
func (n Notification) Target() (TargetKind, string) {
	switch n.Type {
	case NotificationLike, NotificationComment, NotificationShare, NotificationMention:
		if n.PostID != "" {
			return TargetPost, n.PostID
		}
	case NotificationFollow:
		if n.ActorID != "" {
			return TargetProfile, n.ActorID
		}
	}
	return TargetNone, ""
}

// Conversation is a direct-message thread shared by its participants.
type Conversation struct {
	ID               string            `json:"id"`
	Participants     []string          `json:"participants"`
	ParticipantNames map[string]string `json:"participantNames,omitempty"`
	LastMessage      string            `json:"lastMessage"`
	LastMessageAt    time.Time         `json:"lastMessageAt"`
	Unread           bool              `json:"unread"`
	UnreadCount      int               `json:"unreadCount"`
	Muted            bool              `json:"muted,omitempty"`
	Pinned           bool              `json:"pinned,omitempty"`
	Archived         bool              `json:"archived,omitempty"`
}

// Title names the other side of the thread from uid's point of view.
func (c Conversation) Title(uid string) string {
	for _, p := range c.Participants {
		if p == uid {
			continue
		}
		if name := c.ParticipantNames[p]; name != "" {
			return name
		}
		return p
	}
	return "Conversation"
}

// Message is an append-only entry in a conversation.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Topic is a search section entry.
type Topic struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SearchResults groups matches into the three sections shown to the user.
type SearchResults struct {
	Query  string  `json:"query"`
	Users  []User  `json:"users"`
	Topics []Topic `json:"topics"`
	Posts  []Post  `json:"posts"`
}

// Empty reports whether no section has results.
func (r *SearchResults) Empty() bool {
	return len(r.Users) == 0 && len(r.Topics) == 0 && len(r.Posts) == 0
}
