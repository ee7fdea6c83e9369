package backend

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
)

// Gateway bundles the backend collaborators behind collection handles.
type Gateway struct {
	docs    DocumentStore
	live    Subscriber
	blobs   BlobStore
	session Session
	answers AnswerChecker
	now     func() time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithSubscriber enables live queries.
func WithSubscriber(s Subscriber) Option { return func(g *Gateway) { g.live = s } }

// WithAnswerChecker enables server-side answer resolution.
func WithAnswerChecker(a AnswerChecker) Option { return func(g *Gateway) { g.answers = a } }

// WithClock overrides time.Now for the Gateway.
func WithClock(now func() time.Time) Option { return func(g *Gateway) { g.now = now } }

// NewGateway wires a document store, blob store and session together.
func NewGateway(docs DocumentStore, blobs BlobStore, session Session, opts ...Option) *Gateway {
	g := &Gateway{docs: docs, blobs: blobs, session: session, now: time.Now}
	if s, ok := docs.(Subscriber); ok {
		g.live = s
	}
	if a, ok := docs.(AnswerChecker); ok {
		g.answers = a
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Collection returns a handle on a top-level collection.
func (g *Gateway) Collection(name string) *CollectionRef {
	return &CollectionRef{g: g, path: name}
}

// Batch applies ops atomically.
func (g *Gateway) Batch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	logger.Debug("Committing batch", "ops", len(ops))
	return g.docs.Batch(ctx, ops)
}

// Timestamp is the server-assigned timestamp sentinel.
func (g *Gateway) Timestamp() FieldTransform { return ServerTimestamp }

// Now is the client clock, used for local-only values such as upload paths.
func (g *Gateway) Now() time.Time { return g.now() }

// Upload stores a blob and returns its public URL.
func (g *Gateway) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	if g.blobs == nil {
		return "", ErrUploadsDisabled
	}
	logger.Debug("Uploading blob", "path", objectPath, "size", size, "content_type", contentType)
	return g.blobs.Put(ctx, path.Clean(objectPath), r, size, contentType)
}

// CurrentUser is the signed-in identity or nil.
func (g *Gateway) CurrentUser() *Identity {
	if g.session == nil {
		return nil
	}
	return g.session.CurrentUser()
}

// CurrentUserID is the signed-in user's id or "".
func (g *Gateway) CurrentUserID() string {
	if g.session == nil {
		return ""
	}
	return g.session.CurrentUserID()
}

// RequireUser returns the current user id or ErrSignedOut.
func (g *Gateway) RequireUser() (string, error) {
	uid := g.CurrentUserID()
	if uid == "" {
		return "", ErrSignedOut
	}
	return uid, nil
}

// SignOut ends the session.
func (g *Gateway) SignOut(ctx context.Context) error {
	if g.session == nil {
		return nil
	}
	return g.session.SignOut(ctx)
}

// AnswerChecker is the server-side resolver, if the driver has one.
func (g *Gateway) AnswerChecker() AnswerChecker { return g.answers }

// CheckAnswer asks the backend for a verdict.
func (g *Gateway) CheckAnswer(ctx context.Context, postID, answer string) (*models.Verdict, error) {
	if g.answers == nil {
		return nil, ErrAnswersUnsupported
	}
	return g.answers.CheckAnswer(ctx, postID, answer)
}

// CollectionRef addresses a collection, possibly nested under a document.
type CollectionRef struct {
	g    *Gateway
	path string
}

// Path is the slash-separated collection path.
func (c *CollectionRef) Path() string { return c.path }

// Add creates a document with a backend-assigned id.
func (c *CollectionRef) Add(ctx context.Context, data Fields) (string, error) {
	logger.Debug("Adding document", "collection", c.path)
	return c.g.docs.Add(ctx, c.path, data)
}

// Doc addresses one document.
func (c *CollectionRef) Doc(id string) *DocRef {
	return &DocRef{g: c.g, collection: c.path, id: id}
}

// Where starts a query with a filter.
func (c *CollectionRef) Where(field string, op Op, value interface{}) *QueryBuilder {
	return c.Query().Where(field, op, value)
}

// OrderBy starts an ordered query.
func (c *CollectionRef) OrderBy(field string, dir Direction) *QueryBuilder {
	return c.Query().OrderBy(field, dir)
}

// Query starts an unfiltered query.
func (c *CollectionRef) Query() *QueryBuilder {
	return &QueryBuilder{g: c.g, q: Query{Collection: c.path}}
}

// DocRef addresses one document.
type DocRef struct {
	g          *Gateway
	collection string
	id         string
}

func (d *DocRef) ID() string { return d.id }

func (d *DocRef) Get(ctx context.Context) (*Document, error) {
	return d.g.docs.Get(ctx, d.collection, d.id)
}

func (d *DocRef) Set(ctx context.Context, data Fields) error {
	return d.g.docs.Set(ctx, d.collection, d.id, data)
}

func (d *DocRef) Update(ctx context.Context, data Fields) error {
	logger.Debug("Updating document", "collection", d.collection, "id", d.id)
	return d.g.docs.Update(ctx, d.collection, d.id, data)
}

func (d *DocRef) Delete(ctx context.Context) error {
	logger.Debug("Deleting document", "collection", d.collection, "id", d.id)
	return d.g.docs.Delete(ctx, d.collection, d.id)
}

// Collection addresses a sub-collection of this document.
func (d *DocRef) Collection(name string) *CollectionRef {
	return &CollectionRef{g: d.g, path: d.collection + "/" + d.id + "/" + name}
}

// QueryBuilder accumulates a Query.
type QueryBuilder struct {
	g *Gateway
	q Query
}

func (b *QueryBuilder) Where(field string, op Op, value interface{}) *QueryBuilder {
	b.q.Filters = append(b.q.Filters, Filter{Field: field, Op: op, Value: value})
	return b
}

func (b *QueryBuilder) OrderBy(field string, dir Direction) *QueryBuilder {
	b.q.OrderBy = field
	b.q.Direction = dir
	return b
}

func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.q.Limit = n
	return b
}

func (b *QueryBuilder) StartAfter(c Cursor) *QueryBuilder {
	b.q.StartAfter = c
	return b
}

// Get runs the query.
func (b *QueryBuilder) Get(ctx context.Context) (*Snapshot, error) {
	logger.Debug("Querying", "collection", b.q.Collection, "filters", len(b.q.Filters), "order_by", b.q.OrderBy, "limit", b.q.Limit)
	return b.g.docs.Query(ctx, b.q)
}

// Subscribe streams changes matching the query.
func (b *QueryBuilder) Subscribe(ctx context.Context, fn func(Change)) (func(), error) {
	if b.g.live == nil {
		return nil, ErrLiveUnsupported
	}
	return b.g.live.Subscribe(ctx, b.q, fn)
}
