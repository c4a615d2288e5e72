package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/YOROBIZ/sentimentiq/internal/config"
)

const (
	defaultGraphURL = "https://graph.facebook.com/v21.0"
	commentFields   = "id,text,message,from,timestamp,permalink_url"
	maxCommentPages = 5
)

type graphComment struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Message      string `json:"message"`
	PermalinkURL string `json:"permalink_url"`
	From         *struct {
		Name string `json:"name"`
	} `json:"from"`
}

type graphPage struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Meta reads comments of Instagram media or Facebook posts from the Graph API.
type Meta struct {
	client    *http.Client
	baseURL   string
	objectIDs []string
	platform  string
}

// NewMeta creates a Graph API connector. A nil client gets a bearer client
// for cfg.AccessToken.
func NewMeta(ctx context.Context, cfg config.MetaConfig, client *http.Client) *Meta {
	if client == nil {
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
		client.Timeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	platform := cfg.Platform
	if platform == "" {
		platform = "instagram"
	}

	return &Meta{
		client:    client,
		baseURL:   baseURL,
		objectIDs: cfg.ObjectIDs,
		platform:  platform,
	}
}

// Name returns the configured platform, used as the source tag.
func (m *Meta) Name() string {
	return m.platform
}

// Fetch returns the comments of every configured object. A failing object
// aborts the fetch.
func (m *Meta) Fetch(ctx context.Context) ([]Item, error) {
	var items []Item
	for _, objectID := range m.objectIDs {
		comments, err := m.fetchComments(ctx, objectID)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", objectID, err)
		}
		items = append(items, comments...)
	}
	return items, nil
}

func (m *Meta) fetchComments(ctx context.Context, objectID string) ([]Item, error) {
	query := url.Values{"fields": {commentFields}}
	next := fmt.Sprintf("%s/%s/comments?%s", m.baseURL, url.PathEscape(objectID), query.Encode())

	var items []Item
	for page := 0; next != "" && page < maxCommentPages; page++ {
		result, err := m.getPage(ctx, next)
		if err != nil {
			return nil, err
		}

		for _, raw := range result.Data {
			var c graphComment
			if err := json.Unmarshal(raw, &c); err != nil {
				logrus.WithError(err).WithField("source", m.platform).Warn("Skipping undecodable comment")
				continue
			}
			if c.ID == "" {
				continue
			}
			items = append(items, m.toItem(c, raw))
		}
		next = result.Paging.Next
	}
	return items, nil
}

func (m *Meta) getPage(ctx context.Context, pageURL string) (*graphPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph response: %w", err)
	}

	var page graphPage
	if err := json.Unmarshal(body, &page); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, httpError(resp, body)
		}
		return nil, fmt.Errorf("failed to decode graph response: %w", err)
	}
	if page.Error != nil {
		return nil, fmt.Errorf("graph error %d: %s", page.Error.Code, page.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp, body)
	}
	return &page, nil
}

func (m *Meta) toItem(c graphComment, raw json.RawMessage) Item {
	content := c.Text
	if content == "" {
		content = c.Message
	}
	name := "Social User"
	if c.From != nil && c.From.Name != "" {
		name = c.From.Name
	}
	return Item{
		ExternalID:   c.ID,
		CustomerName: name,
		Content:      content,
		Permalink:    c.PermalinkURL,
		Raw:          raw,
	}
}

// Close is a no-op.
func (m *Meta) Close() error {
	return nil
}
