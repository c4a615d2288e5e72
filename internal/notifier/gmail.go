package notifier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/YOROBIZ/sentimentiq/internal/config"
)

const sendAttempts = 3

// GmailSender sends plain text e-mails through the Gmail API.
type GmailSender struct {
	service   *gmail.Service
	userEmail string
	from      string
	wait      func(ctx context.Context, d time.Duration) error
}

// NewGmailSender creates a sender authenticated with a refresh token.
func NewGmailSender(ctx context.Context, cfg config.GmailConfig, from string) (*GmailSender, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	return NewGmailSenderWithOptions(ctx, cfg, from, option.WithTokenSource(tokenSource))
}

// NewGmailSenderWithOptions creates a sender with explicit client options.
func NewGmailSenderWithOptions(ctx context.Context, cfg config.GmailConfig, from string, opts ...option.ClientOption) (*GmailSender, error) {
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	user := cfg.UserEmail
	if user == "" {
		user = "me"
	}
	if from == "" {
		from = cfg.UserEmail
	}
	return &GmailSender{service: service, userEmail: user, from: from, wait: sleep}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Send delivers one message. Rate limited sends are retried with a growing
// pause; any other error is returned at once.
func (s *GmailSender) Send(ctx context.Context, to, subject, body string) error {
	raw := buildMessage(s.from, to, subject, body, time.Now())
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		_, err := s.service.Users.Messages.Send(s.userEmail, message).Context(ctx).Do()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRateLimited(err) {
			break
		}
		waitTime := time.Duration(attempt*attempt) * time.Second
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"attempt": attempt,
			"wait":    waitTime.String(),
		}).Warn("Gmail send rate limited")
		if err := s.wait(ctx, waitTime); err != nil {
			return err
		}
	}
	return fmt.Errorf("failed to send alert to %s: %w", to, lastErr)
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate")
}

func buildMessage(from, to, subject, body string, date time.Time) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")

	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}
