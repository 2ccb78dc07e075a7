package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type httpOpener struct {
	client *http.Client
}

func (o *httpOpener) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, NewPermanentError("http", "request", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, 0, classifyNetError("http", "get", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		cause := fmt.Errorf("unexpected status %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, 0, NewTransientError("http", "get", cause)
		}
		return nil, 0, NewPermanentError("http", "get", cause)
	}
	return resp.Body, resp.ContentLength, nil
}
