// Package rest talks to the hosted backend over HTTP, with live updates
// delivered through the realtime websocket.
package rest

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/backend"
	"github.com/studyhub/studyfeed/pkg/logger"
	"github.com/studyhub/studyfeed/pkg/models"
	"github.com/studyhub/studyfeed/pkg/realtime"
)

const apiPrefix = "/api/v1"

// ErrorResponse is the error body returned by the backend.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type addResponse struct {
	ID string `json:"id"`
}

type batchRequest struct {
	Ops []backend.BatchOp `json:"ops"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

// Store implements backend.DocumentStore, Subscriber and AnswerChecker over HTTP.
type Store struct {
	http *resty.Client
	live *realtime.Client
}

// New wraps a configured resty client. live may be nil, which disables Subscribe.
func New(http *resty.Client, live *realtime.Client) *Store {
	return &Store{http: http, live: live}
}

// ParseError converts a non-2xx response into a backend.APIError.
func ParseError(resp *resty.Response) error {
	statusCode := resp.StatusCode()

	var errResp ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err == nil && errResp.Code != "" {
		return &backend.APIError{
			Code:       errResp.Code,
			Message:    errResp.Message,
			StatusCode: statusCode,
			Details:    errResp.Details,
		}
	}

	return &backend.APIError{
		Code:       "unknown_error",
		Message:    string(resp.Body()),
		StatusCode: statusCode,
	}
}

// CheckResponse checks if response is successful and returns error if not
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return ParseError(resp)
	}
	return nil
}

func collectionPath(collection string) string {
	parts := strings.Split(strings.Trim(collection, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return apiPrefix + "/collections/" + strings.Join(parts, "/")
}

func docPath(collection, id string) string {
	return collectionPath(collection) + "/" + url.PathEscape(id)
}

func (s *Store) Add(ctx context.Context, collection string, data backend.Fields) (string, error) {
	var out addResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(data).
		SetResult(&out).
		Post(collectionPath(collection))
	if err := CheckResponse(resp, err); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*backend.Document, error) {
	var out backend.Document
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(docPath(collection, id))
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data backend.Fields) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(data).
		Put(docPath(collection, id))
	return CheckResponse(resp, err)
}

func (s *Store) Update(ctx context.Context, collection, id string, data backend.Fields) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(data).
		Patch(docPath(collection, id))
	return CheckResponse(resp, err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	resp, err := s.http.R().
		SetContext(ctx).
		Delete(docPath(collection, id))
	err = CheckResponse(resp, err)
	if backend.IsNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) Query(ctx context.Context, q backend.Query) (*backend.Snapshot, error) {
	var out backend.Snapshot
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(q).
		SetResult(&out).
		Post(collectionPath(q.Collection) + ":query")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Batch(ctx context.Context, ops []backend.BatchOp) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(batchRequest{Ops: ops}).
		Post(apiPrefix + "/collections:batch")
	return CheckResponse(resp, err)
}

func (s *Store) Subscribe(ctx context.Context, q backend.Query, fn func(backend.Change)) (func(), error) {
	if s.live == nil {
		return nil, backend.ErrLiveUnsupported
	}
	logger.Debug("Subscribing", "collection", q.Collection, "filters", len(q.Filters))
	return s.live.Subscribe(ctx, q, fn)
}

// CheckAnswer posts the answer and returns the server's verdict.
func (s *Store) CheckAnswer(ctx context.Context, postID, answer string) (*models.Verdict, error) {
	var out models.Verdict
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(answerRequest{Answer: answer}).
		SetResult(&out).
		Post(apiPrefix + "/posts/" + url.PathEscape(postID) + "/answer")
	if err := CheckResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
