package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"blog-cms/pkg/models"
)

const (
	defaultTimeout   = 10 * time.Second
	adminTokenHeader = "X-Admin-Token"
	idempotencyKey   = "Idempotency-Key"
)

// Backend is the subset of the blog API the session drives.
type Backend interface {
	Login(ctx context.Context, token string) error
	ListPosts(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, token string, in models.PostInput) (models.Post, []models.Post, error)
	DeletePost(ctx context.Context, token, slug string) ([]models.Post, error)
}

// APIError is a non-2xx response. Message is the server's error field when
// one was sent.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("blog api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("blog api: %d %s", e.Status, e.Message)
}

// API talks to a blog server over HTTP. Requests are never retried.
type API struct {
	baseURL string
	http    *http.Client
	newKey  func() string
}

type APIOption func(*API)

func WithTimeout(d time.Duration) APIOption {
	return func(a *API) { a.http.Timeout = d }
}

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		newKey:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) Login(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/api/admin/login", nil, map[string]string{"token": token}, nil)
}

func (a *API) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := a.do(ctx, http.MethodGet, "/api/posts", nil, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost sends a fresh idempotency key so a response lost in transit can
// be replayed by the server rather than turning into a slug conflict.
func (a *API) CreatePost(ctx context.Context, token string, in models.PostInput) (models.Post, []models.Post, error) {
	var resp struct {
		Post  models.Post   `json:"post"`
		Posts []models.Post `json:"posts"`
	}
	header := http.Header{}
	header.Set(adminTokenHeader, token)
	header.Set(idempotencyKey, a.newKey())
	if err := a.do(ctx, http.MethodPost, "/api/posts", header, in, &resp); err != nil {
		return models.Post{}, nil, err
	}
	return resp.Post, resp.Posts, nil
}

func (a *API) DeletePost(ctx context.Context, token, slug string) ([]models.Post, error) {
	var resp struct {
		Posts []models.Post `json:"posts"`
	}
	header := http.Header{}
	header.Set(adminTokenHeader, token)
	if err := a.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(slug), header, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

func (a *API) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}
