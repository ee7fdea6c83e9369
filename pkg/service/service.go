// Package service holds the screen controllers: feed, creation, drafts,
// notifications, messages, search, profile, study and settings. Each
// controller is an instance with its own state; the CLI builds one per run.
package service

import (
	"context"
	"errors"

	"github.com/studyhub/studyfeed/pkg/output"
)

var (
	// ErrNothingToSave is returned when a draft would be empty.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrDraftNotFound is returned for an unknown draft id.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrBusy is returned when an operation of the same kind is still running.
	ErrBusy = errors.New("operation already in progress")
)

// Notifier shows short, non-blocking messages to the user.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Error(msg string)
}

// ConsoleNotifier prints notifications through pkg/output.
type ConsoleNotifier struct{}

func (ConsoleNotifier) Success(msg string) { output.PrintSuccess("%s", msg) }
func (ConsoleNotifier) Info(msg string)    { output.PrintInfo("%s", msg) }
func (ConsoleNotifier) Error(msg string)   { output.PrintError("%s", msg) }

// Author is the byline stamped on new posts.
type Author struct {
	ID       string
	Name     string
	Username string
	PhotoURL string
}

// AuthorSource resolves the signed-in user's byline.
type AuthorSource interface {
	CurrentAuthor(ctx context.Context) (Author, error)
}

// FeedReloader is triggered after a successful publish.
type FeedReloader interface {
	Reload(ctx context.Context) (*FeedPage, error)
}
