package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/config"
)

// IMAPName is the source tag of IMAP items.
const IMAPName = "imap"

// IMAP reads a feedback mailbox over IMAP. The connection is opened on first
// fetch and re-opened after a failure.
type IMAP struct {
	cfg config.IMAPConfig

	mu        sync.Mutex
	client    *client.Client
	lastCheck time.Time
}

// NewIMAP creates an IMAP connector.
func NewIMAP(cfg config.IMAPConfig) *IMAP {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAP{cfg: cfg, lastCheck: time.Now().Add(-24 * time.Hour)}
}

// Name returns the source tag.
func (f *IMAP) Name() string {
	return IMAPName
}

func (f *IMAP) connect() error {
	if f.client != nil {
		return nil
	}

	c, err := client.DialTLS(fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	if err := c.Login(f.cfg.User, f.cfg.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	f.client = c
	return nil
}

func (f *IMAP) reset() {
	if f.client != nil {
		_ = f.client.Logout()
		f.client = nil
	}
}

// Fetch returns the messages received since the day of the previous fetch.
// SINCE has day granularity; re-delivered messages are deduplicated by the
// staging store.
func (f *IMAP) Fetch(ctx context.Context) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.connect(); err != nil {
		return nil, err
	}

	items, err := f.fetch()
	if err != nil {
		f.reset()
		return nil, err
	}
	return items, nil
}

func (f *IMAP) fetch() ([]Item, error) {
	started := time.Now()
	if _, err := f.client.Select(f.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", f.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = f.lastCheck

	uids, err := f.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		f.lastCheck = started
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- f.client.UidFetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}, messages)
	}()

	var items []Item
	for msg := range messages {
		item, err := imapItem(msg, section)
		if err != nil {
			logrus.WithError(err).WithField("uid", msg.Uid).Warn("Failed to parse IMAP message")
			continue
		}
		items = append(items, item)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	f.lastCheck = started
	return items, nil
}

func imapItem(msg *imap.Message, section *imap.BodySectionName) (Item, error) {
	email := emailMessage{ID: fmt.Sprintf("%d", msg.Uid)}
	if msg.Envelope != nil {
		email.Subject = msg.Envelope.Subject
		email.MessageID = msg.Envelope.MessageId
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			email.From = from.Address()
			if from.PersonalName != "" {
				email.From = fmt.Sprintf("%q <%s>", from.PersonalName, from.Address())
			}
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return Item{}, fmt.Errorf("failed to get message body")
	}
	if err := readMessageBody(r, &email); err != nil {
		return Item{}, err
	}

	externalID := strings.Trim(email.MessageID, "<> ")
	if externalID == "" {
		externalID = fmt.Sprintf("imap_%d", msg.Uid)
	}
	return email.toItem(externalID, ""), nil
}

// readMessageBody fills the text and HTML bodies from a MIME message.
func readMessageBody(r io.Reader, email *emailMessage) error {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return fmt.Errorf("failed to read message: %w", err)
	}

	return entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil {
			return err
		}
		mediaType, _, _ := part.Header.ContentType()
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if mediaType != "text/plain" && mediaType != "text/html" && mediaType != "" {
			return nil
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			return fmt.Errorf("failed to read part body: %w", err)
		}

		switch {
		case mediaType == "text/html":
			if email.HTMLBody == "" {
				email.HTMLBody = string(content)
			}
		case email.Body == "":
			email.Body = string(content)
		}
		return nil
	})
}

// Close logs out of the server.
func (f *IMAP) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil
	}
	err := f.client.Logout()
	f.client = nil
	return err
}
