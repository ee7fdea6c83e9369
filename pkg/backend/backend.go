// Package backend is the client's view of the document database, blob
// storage and auth session it depends on. Drivers live in subpackages.
package backend

import (
	"context"
	"errors"
	"io"

	"github.com/studyhub/studyfeed/pkg/models"
)

// Collection names used by the client.
const (
	CollectionUsers         = "users"
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionNotifications = "notifications"
	CollectionMessages      = "messages"
	CollectionFollows       = "follows"
	CollectionNotes         = "notes"
)

var (
	// ErrNotFound is returned by Get and Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrLiveUnsupported is returned when the driver has no real-time channel.
	ErrLiveUnsupported = errors.New("live subscriptions not supported by this backend")
	// ErrSignedOut is returned for operations that need a current user.
	ErrSignedOut = errors.New("not signed in")
)

// Fields is a document body. Values may be FieldTransform sentinels.
type Fields map[string]interface{}

// Document is one stored record.
type Document struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

// BatchKind is the operation inside a batch.
type BatchKind string

const (
	BatchSet    BatchKind = "set"
	BatchUpdate BatchKind = "update"
	BatchDelete BatchKind = "delete"
)

// BatchOp is one write in an atomic batch.
type BatchOp struct {
	Kind       BatchKind `json:"kind"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Data       Fields    `json:"data,omitempty"`
}

// ChangeType classifies a live update.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change is delivered to subscribers.
type Change struct {
	Type ChangeType `json:"type"`
	Doc  Document   `json:"doc"`
}

// DocumentStore is the document database surface the client consumes.
type DocumentStore interface {
	Add(ctx context.Context, collection string, data Fields) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Set(ctx context.Context, collection, id string, data Fields) error
	Update(ctx context.Context, collection, id string, data Fields) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) (*Snapshot, error)
	Batch(ctx context.Context, ops []BatchOp) error
}

// Subscriber delivers changes to documents matching q until the returned cancel func is called.
type Subscriber interface {
	Subscribe(ctx context.Context, q Query, fn func(Change)) (func(), error)
}

// BlobStore uploads a file and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (string, error)
}

// Identity is the signed-in user as the auth provider knows it.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Session is the current authentication state.
type Session interface {
	CurrentUser() *Identity
	CurrentUserID() string
	SignOut(ctx context.Context) error
}

// AnswerChecker resolves quiz and poll answers without shipping the answer to the client.
type AnswerChecker interface {
	CheckAnswer(ctx context.Context, postID, answer string) (*models.Verdict, error)
}

// StaticSession is a fixed identity, used by local drivers and tests.
type StaticSession struct {
	User *Identity
}

func (s *StaticSession) CurrentUser() *Identity { return s.User }

func (s *StaticSession) CurrentUserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.UID
}

func (s *StaticSession) SignOut(ctx context.Context) error {
	s.User = nil
	return nil
}
