package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/mailsift/internal/models"
)

// Client talks to a running mailsift server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

// ServerError is a non-2xx response from the server.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(b))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Classify sends text to the server for classification.
func (c *Client) Classify(ctx context.Context, req *models.ClassifyRequest) (*models.ClassifyResponse, error) {
	var res models.ClassifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/classify", req, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status returns the server's classifier and storage status.
func (c *Client) Status(ctx context.Context) (*models.StatusResponse, error) {
	var res models.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// History returns a page of recent classifications.
func (c *Client) History(ctx context.Context, offset, limit int) (*models.HistoryResponse, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	var res models.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/history?"+q.Encode(), nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return &res, nil
}

// WatchDirectories lists the watched mail-drop directories.
func (c *Client) WatchDirectories(ctx context.Context) ([]string, error) {
	var res struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watch/directories", nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return res.Directories, nil
}

// AddWatchDirectory starts watching path. When sync is set, messages already there are classified.
func (c *Client) AddWatchDirectory(ctx context.Context, path string, sync bool) error {
	in := map[string]any{"path": path, "sync": sync}
	return c.do(ctx, http.MethodPost, "/api/v1/watch/directories", in, nil, http.StatusCreated)
}

// RemoveWatchDirectory stops watching path.
func (c *Client) RemoveWatchDirectory(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, nil, http.StatusOK)
}
