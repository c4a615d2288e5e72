// Package source pulls customer feedback from external providers and hands
// it to the staging store.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/config"
)

// ErrUnknownSource is returned when syncing a connector that is not configured.
var ErrUnknownSource = errors.New("unknown source")

// Item is one piece of feedback as returned by a provider.
type Item struct {
	ExternalID   string
	CustomerName string
	Content      string
	Permalink    string
	Raw          []byte
}

// Connector fetches new items from one provider.
type Connector interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
	Close() error
}

// FromConfig builds the connectors enabled by cfg. In mock mode only the
// demo connector is returned.
func FromConfig(ctx context.Context, cfg config.SourcesConfig) ([]Connector, error) {
	if cfg.Mode == "mock" {
		return []Connector{NewMock()}, nil
	}

	var connectors []Connector
	if cfg.Meta.AccessToken != "" && len(cfg.Meta.ObjectIDs) > 0 {
		connectors = append(connectors, NewMeta(ctx, cfg.Meta, nil))
	}
	if cfg.Gmail.Enabled() {
		gmail, err := NewGmail(ctx, cfg.Gmail)
		if err != nil {
			closeAll(connectors)
			return nil, err
		}
		connectors = append(connectors, gmail)
	}
	if cfg.IMAP.Enabled {
		connectors = append(connectors, NewIMAP(cfg.IMAP))
	}

	if len(connectors) == 0 {
		logrus.Warn("Live source mode without any configured connector")
	}
	return connectors, nil
}

func closeAll(connectors []Connector) {
	for _, c := range connectors {
		if err := c.Close(); err != nil {
			logrus.WithError(err).WithField("source", c.Name()).Warn("Failed to close connector")
		}
	}
}

const maxErrorBody = 200

// httpError reports a non-2xx provider response, body cut to maxErrorBody runes.
func httpError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if runes := []rune(msg); len(runes) > maxErrorBody {
		msg = string(runes[:maxErrorBody])
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}
