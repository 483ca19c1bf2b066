// Package remote is a client of a Quip-style remote document service.
// Documents are exchanged as HTML and written as Markdown or HTML.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const DefaultBaseURL = "https://platform.quip.com/1"

// ErrNoToken is returned by every call of a client without an access
// token. No request is sent.
var ErrNoToken = errors.New("remote access token not configured")

// APIError is a non-2xx response of the service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote API error (%d): %s", e.Status, e.Body)
}

type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// locationReplace replaces the whole document on edit.
const locationReplace = "4"

type User struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Emails          []string `json:"emails"`
	StarredFolderID string   `json:"starred_folder_id,omitempty"`
	PrivateFolderID string   `json:"private_folder_id,omitempty"`
}

type Thread struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	CreatedUsec int64  `json:"created_usec"`
	UpdatedUsec int64  `json:"updated_usec"`
	AuthorID    string `json:"author_id"`
	HTML        string `json:"html"`
	IsDeleted   bool   `json:"is_deleted,omitempty"`
}

type Document struct {
	Thread  Thread   `json:"thread"`
	UserIDs []string `json:"user_ids"`
	HTML    string   `json:"html,omitempty"`
}

// Content returns the HTML of the document.
func (d *Document) Content() string {
	if d.Thread.HTML != "" {
		return d.Thread.HTML
	}
	return d.HTML
}

type Folder struct {
	Folder struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		CreatedUsec int64  `json:"created_usec"`
		UpdatedUsec int64  `json:"updated_usec"`
		Color       string `json:"color,omitempty"`
		ParentID    string `json:"parent_id,omitempty"`
	} `json:"folder"`
	MemberIDs []string      `json:"member_ids"`
	Children  []FolderChild `json:"children,omitempty"`
}

// FolderChild is either a document or a nested folder.
type FolderChild struct {
	ThreadID string `json:"thread_id,omitempty"`
	FolderID string `json:"folder_id,omitempty"`
	Title    string `json:"title"`
}

type Client struct {
	baseURL  *url.URL
	http     *http.Client
	hasToken bool
	logger   *zap.Logger
}

type Option func(*Client) error

func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(strings.TrimSuffix(raw, "/"))
		if err != nil {
			return errors.Wrap(err, "invalid base URL")
		}
		c.baseURL = u
		return nil
	}
}

// WithHTTPClient sets the client whose transport carries the requests.
// The client is copied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		copied := *hc
		c.http = &copied
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

func New(token string, opts ...Option) (*Client, error) {
	c := &Client{
		http:     &http.Client{},
		hasToken: token != "",
		logger:   zap.NewNop(),
	}
	if err := WithBaseURL(DefaultBaseURL)(c); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   base,
	}
	return c, nil
}

func (c *Client) HasToken() bool { return c.hasToken }

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/current", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetFolder(ctx context.Context, id string) (*Folder, error) {
	var folder Folder
	if err := c.do(ctx, http.MethodGet, "/folders/"+url.PathEscape(id), nil, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// RecentDocuments returns recently touched documents keyed by id.
func (c *Client) RecentDocuments(ctx context.Context) (map[string]Document, error) {
	var docs map[string]Document
	if err := c.do(ctx, http.MethodGet, "/threads/recent", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) CreateDocument(ctx context.Context, title, content string, format Format, memberIDs ...string) (*Document, error) {
	form := url.Values{
		"title":   {title},
		"content": {content},
		"format":  {string(format)},
	}
	if len(memberIDs) > 0 {
		form.Set("member_ids", strings.Join(memberIDs, ","))
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, "/threads/new-document", form, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReplaceContent replaces the whole content of a document.
func (c *Client) ReplaceContent(ctx context.Context, id, content string, format Format) (*Document, error) {
	form := url.Values{
		"thread_id": {id},
		"content":   {content},
		"format":    {string(format)},
		"location":  {locationReplace},
	}

	var doc Document
	if err := c.do(ctx, http.MethodPost, "/threads/edit-document", form, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/threads/delete", url.Values{"thread_id": {id}}, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values, result any) error {
	if !c.hasToken {
		return ErrNoToken
	}

	u := c.baseURL.JoinPath(endpoint)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send request to %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.logger.Debug("remote request failed", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s", endpoint)
	}
	return nil
}
