// Package parser turns raw provider content into the plain text that is
// staged for classification.
package parser

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// Content length bounds, in runes.
const (
	MinContentLength = 10
	MaxContentLength = 2000
)

var (
	// ErrContentTooShort is returned for content under MinContentLength runes.
	ErrContentTooShort = errors.New("content too short")
	// ErrContentTooLong is returned for content over MaxContentLength runes.
	ErrContentTooLong = errors.New("content too long")
)

var (
	htmlTag = regexp.MustCompile(`(?i)<\s*/?\s*[a-z][a-z0-9]*[^>]*>`)
	// "On Mon, 4 Mar 2024, Sophie wrote:" / "Le lun. 4 mars 2024, Sophie a écrit :"
	replyHeader = regexp.MustCompile(`(?im)^\s*(on\s.+wrote:|le\s.+a\s+écrit\s*:|-{2,}\s*original message\s*-{2,}).*$`)
)

// Sanitize reduces s to whitespace-normalized plain text. HTML markup is
// rendered to its text, dropping scripts and styles.
func Sanitize(s string) string {
	if htmlTag.MatchString(s) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			doc.Find("script, style, head").Remove()
			doc.Find("br, p, div, li").Each(func(_ int, sel *goquery.Selection) {
				sel.AppendHtml(" ")
			})
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// StripQuotedReply drops quoted lines and everything after a reply header,
// keeping only what the customer wrote in an e-mail.
func StripQuotedReply(body string) string {
	if loc := replyHeader.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}

	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ValidateContent checks the length bounds of already sanitized content.
func ValidateContent(content string) error {
	n := utf8.RuneCountInString(content)
	switch {
	case n < MinContentLength:
		return fmt.Errorf("%w: %d characters, minimum is %d", ErrContentTooShort, n, MinContentLength)
	case n > MaxContentLength:
		return fmt.Errorf("%w: %d characters, maximum is %d", ErrContentTooLong, n, MaxContentLength)
	}
	return nil
}

// CustomerName extracts a display name from an e-mail From header. It falls
// back to the address local part, then to fallback.
func CustomerName(from, fallback string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return fallback
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from
	}
	if name := strings.TrimSpace(addr.Name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(addr.Address, "@"); ok && local != "" {
		return local
	}
	return fallback
}
