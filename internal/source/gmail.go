package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/YOROBIZ/sentimentiq/internal/config"
)

// GmailName is the source tag of Gmail items.
const GmailName = "gmail"

// Gmail reads a feedback inbox through the Gmail API.
type Gmail struct {
	service   *gmail.Service
	userEmail string
	query     string

	mu        sync.Mutex
	lastCheck time.Time
}

// NewGmail creates a Gmail connector authenticated with a refresh token.
func NewGmail(ctx context.Context, cfg config.GmailConfig) (*Gmail, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return NewGmailWithOptions(ctx, cfg, option.WithTokenSource(tokenSource))
}

// NewGmailWithOptions creates a Gmail connector with explicit client options.
func NewGmailWithOptions(ctx context.Context, cfg config.GmailConfig, opts ...option.ClientOption) (*Gmail, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	user := cfg.UserEmail
	if user == "" {
		user = "me"
	}
	return &Gmail{
		service:   service,
		userEmail: user,
		query:     cfg.Query,
		lastCheck: time.Now().Add(-24 * time.Hour),
	}, nil
}

// Name returns the source tag.
func (g *Gmail) Name() string {
	return GmailName
}

// Fetch returns messages received since the previous fetch. A message that
// cannot be read is skipped.
func (g *Gmail) Fetch(ctx context.Context) ([]Item, error) {
	g.mu.Lock()
	since := g.lastCheck
	g.mu.Unlock()
	started := time.Now()

	query := fmt.Sprintf("after:%d", since.Unix())
	if g.query != "" {
		query = g.query + " " + query
	}

	var items []Item
	err := g.service.Users.Messages.List(g.userEmail).Q(query).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, ref := range resp.Messages {
			msg, err := g.service.Users.Messages.Get(g.userEmail, ref.Id).Format("full").Context(ctx).Do()
			if err != nil {
				logrus.WithError(err).WithField("message_id", ref.Id).Warn("Failed to get Gmail message")
				continue
			}

			email, err := parseGmailMessage(msg)
			if err != nil {
				logrus.WithError(err).WithField("message_id", ref.Id).Warn("Failed to parse Gmail message")
				continue
			}
			items = append(items, email.toItem("gmail_"+msg.Id, "https://mail.google.com/mail/u/0/#inbox/"+msg.Id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	g.mu.Lock()
	g.lastCheck = started
	g.mu.Unlock()
	return items, nil
}

func parseGmailMessage(msg *gmail.Message) (emailMessage, error) {
	email := emailMessage{ID: msg.Id}
	if msg.Payload == nil {
		return email, fmt.Errorf("message has no payload")
	}

	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "From":
			email.From = header.Value
		case "Message-ID", "Message-Id":
			email.MessageID = header.Value
		}
	}

	if err := parseGmailBody(msg.Payload, &email); err != nil {
		return email, err
	}
	return email, nil
}

func parseGmailBody(part *gmail.MessagePart, email *emailMessage) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}

		switch part.MimeType {
		case "text/plain":
			if email.Body == "" {
				email.Body = string(data)
			}
		case "text/html":
			if email.HTMLBody == "" {
				email.HTMLBody = string(data)
			}
		}
	}

	for _, sub := range part.Parts {
		if err := parseGmailBody(sub, email); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the API client holds no connection.
func (g *Gmail) Close() error {
	return nil
}
