package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Remote is a datasource reading one payload from a URL.
type Remote struct {
	client *Client
	url    string
}

// NewRemote binds url to client. A nil client uses defaults.
func NewRemote(client *Client, url string) *Remote {
	if client == nil {
		client = NewClient(Config{})
	}
	return &Remote{client: client, url: url}
}

// Open fetches the payload. Any non-2xx status is an error.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", r.url, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %s", r.url, resp.Status)
	}
	return resp.Body, nil
}
