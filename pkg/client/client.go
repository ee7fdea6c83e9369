package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/studyhub/studyfeed/pkg/config"
	"github.com/studyhub/studyfeed/pkg/logger"
)

// UserAgent is sent on every request
const UserAgent = "StudyFeed-CLI/0.3.0"

// New builds a configured resty client for baseURL
func New(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	c.SetHeader("User-Agent", UserAgent)

	c.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL)
		return nil
	})

	c.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response", "status", resp.StatusCode(), "elapsed", resp.Time())
		return nil
	})

	return c
}

// FromConfig builds a client from the api.base_url and api.timeout settings.
func FromConfig() *resty.Client {
	timeout := time.Duration(config.GetInt("api.timeout")) * time.Second
	return New(config.GetString("api.base_url"), timeout)
}
