package transport

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Raw fetches the content of path in repo at rev (empty rev means the default branch)
func (c *Client) Raw(ctx context.Context, repo, path, rev string, timeout time.Duration) (string, error) {
	repoPath := strings.Trim(repo, "/")
	if rev != "" {
		repoPath += "@" + rev
	}

	resp, err := c.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      repoPath + "/-/raw/" + strings.TrimLeft(path, "/"),
		Timeout:   timeout,
		Operation: "file.raw",
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
