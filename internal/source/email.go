package source

import (
	"encoding/json"
	"strings"

	"github.com/YOROBIZ/sentimentiq/internal/parser"
)

// emailMessage is the provider-independent view of a feedback e-mail.
type emailMessage struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id,omitempty"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"-"`
	HTMLBody  string `json:"-"`
}

// content prefers the plain text part; the HTML part is rendered to text.
func (e emailMessage) content() string {
	if body := parser.StripQuotedReply(e.Body); strings.TrimSpace(body) != "" {
		return parser.Sanitize(body)
	}
	return parser.Sanitize(parser.StripQuotedReply(parser.Sanitize(e.HTMLBody)))
}

func (e emailMessage) toItem(externalID, permalink string) Item {
	raw, _ := json.Marshal(e)
	return Item{
		ExternalID:   externalID,
		CustomerName: parser.CustomerName(e.From, "Email User"),
		Content:      e.content(),
		Permalink:    permalink,
		Raw:          raw,
	}
}
