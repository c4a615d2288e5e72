// Package notifier e-mails alert rule owners about newly classified feedback.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/YOROBIZ/sentimentiq/internal/metrics"
	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// Sender delivers one e-mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RuleMatcher finds the alert rules that apply to a result.
type RuleMatcher interface {
	FindMatchingRules(ctx context.Context, sentiment, content string) ([]model.AlertRule, error)
}

// Notifier sends one e-mail per distinct target of the matching rules.
type Notifier struct {
	rules   RuleMatcher
	sender  Sender
	metrics *metrics.Metrics
}

// New creates a notifier.
func New(rules RuleMatcher, sender Sender, m *metrics.Metrics) *Notifier {
	return &Notifier{rules: rules, sender: sender, metrics: m}
}

// Notify alerts every target whose rule matches fb. All targets are tried;
// the returned error joins the failures.
func (n *Notifier) Notify(ctx context.Context, item *model.StagedItem, fb *model.Feedback) error {
	rules, err := n.rules.FindMatchingRules(ctx, fb.Sentiment, fb.Content)
	if err != nil {
		return fmt.Errorf("failed to find alert rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	subject, body := compose(item, fb)
	sent := map[string]bool{}
	var errs []error
	for _, rule := range rules {
		target := strings.ToLower(strings.TrimSpace(rule.TargetEmail))
		if target == "" || sent[target] {
			continue
		}
		sent[target] = true

		if err := n.sender.Send(ctx, rule.TargetEmail, subject, body); err != nil {
			errs = append(errs, err)
			if n.metrics != nil {
				n.metrics.AlertFailures.Inc()
			}
			continue
		}
		if n.metrics != nil {
			n.metrics.AlertsSent.Inc()
		}
		logrus.WithFields(logrus.Fields{
			"item_id":   item.ID,
			"rule_id":   rule.ID,
			"target":    rule.TargetEmail,
			"sentiment": fb.Sentiment,
		}).Info("Alert sent")
	}
	return errors.Join(errs...)
}

func compose(item *model.StagedItem, fb *model.Feedback) (string, string) {
	customer := fb.CustomerName
	if customer == "" {
		customer = "unknown customer"
	}
	subject := fmt.Sprintf("[SentimentIQ] %s feedback from %s", fb.Sentiment, customer)

	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Sentiment: %s (confidence %.2f)\n", fb.Sentiment, fb.Confidence)
	if len(fb.KeyPhrases) > 0 {
		fmt.Fprintf(&b, "Themes: %s\n", strings.Join(fb.KeyPhrases, ", "))
	}
	if item.Permalink != "" {
		fmt.Fprintf(&b, "Link: %s\n", item.Permalink)
	}
	fmt.Fprintf(&b, "\n%s\n", fb.Content)
	return subject, b.String()
}
