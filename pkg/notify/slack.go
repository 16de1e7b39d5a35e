// Package notify posts analysis summaries to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

// EnvWebhookURL is read when no webhook is configured explicitly.
const EnvWebhookURL = "SLACK_WEBHOOK_URL"

// Attachment colours.
const (
	ColorGood    = "#36a64f"
	ColorWarning = "#ffcc00"
	ColorDanger  = "#ff0000"
)

// ErrNoWebhook is returned by Send when no webhook URL is known.
var ErrNoWebhook = errors.New("no Slack webhook URL configured")

// Slack sends reports to an incoming webhook.
type Slack struct {
	WebhookURL string
	ReportURL  string // adds a "View Full Report" button when set
}

// NewSlack returns a notifier for url, falling back to SLACK_WEBHOOK_URL.
func NewSlack(url string) *Slack {
	if url == "" {
		url = os.Getenv(EnvWebhookURL)
	}
	return &Slack{WebhookURL: url}
}

// Send posts a summary of r. source names the analyzed artifact; extra is
// rendered as context fields in key order.
func (s *Slack) Send(ctx context.Context, r *analyzer.Report, source string, extra map[string]string) error {
	if s.WebhookURL == "" {
		return ErrNoWebhook
	}

	msg := s.Message(r, source, extra)
	if err := slack.PostWebhookContext(ctx, s.WebhookURL, msg); err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	logger.Debugf("Notify: Slack notification sent for %s", source)
	return nil
}

// Message builds the webhook payload.
func (s *Slack) Message(r *analyzer.Report, source string, extra map[string]string) *slack.WebhookMessage {
	sum := r.Summary
	blocks := []slack.Block{
		markdownSection(fmt.Sprintf("*Docker Image Analysis Report*\nDocker Image Analysis for `%s`", source)),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			markdown(fmt.Sprintf("*Images Analyzed:*\n%d", sum.Total)),
			markdown(fmt.Sprintf("*Status:*\n%s", statusLine(sum))),
			markdown(fmt.Sprintf("*Up-to-date:*\n%d", sum.UpToDate)),
			markdown(fmt.Sprintf("*Outdated:*\n%d", sum.Outdated)),
			markdown(fmt.Sprintf("*Warnings:*\n%d", sum.Warnings)),
			markdown(fmt.Sprintf("*Unknown:*\n%d", sum.Unknown)),
		}, nil),
	}

	if len(r.Results) > 0 {
		var b strings.Builder
		b.WriteString("*Analyzed Images:*\n")
		for _, res := range r.Results {
			fmt.Fprintf(&b, "%s `%s`\n", imageEmoji(res.Status), res.Image)
		}
		blocks = append(blocks, markdownSection(b.String()))
	}

	if outdated := r.ByStatus(analyzer.StatusOutdated); len(outdated) > 0 {
		var b strings.Builder
		b.WriteString("*Outdated Images:*\n")
		for _, res := range outdated {
			fmt.Fprintf(&b, "• `%s` - %s → %s\n", res.Image, orNA(res.Current), orNA(res.Recommended))
		}
		blocks = append(blocks, markdownSection(b.String()))
	}

	if warnings := r.ByStatus(analyzer.StatusWarning); len(warnings) > 0 {
		var b strings.Builder
		b.WriteString("*Warning Images:*\n")
		for _, res := range warnings {
			fmt.Fprintf(&b, "• `%s` - %s\n", res.Image, res.Message)
		}
		blocks = append(blocks, markdownSection(b.String()))
	}

	blocks = append(blocks, slack.NewContextBlock("", contextElements(extra)...))

	if s.ReportURL != "" {
		btn := slack.NewButtonBlockElement("view_report", "view_report",
			slack.NewTextBlockObject(slack.PlainTextType, "View Full Report", false, false))
		btn.URL = s.ReportURL
		btn.Style = slack.StylePrimary
		blocks = append(blocks, slack.NewActionBlock("", btn))
	}

	return &slack.WebhookMessage{
		Text:        fmt.Sprintf("Docker Image Analysis for %s: %s", source, statusLine(sum)),
		Blocks:      &slack.Blocks{BlockSet: blocks},
		Attachments: []slack.Attachment{{Color: Color(sum)}},
	}
}

// Color maps a summary to the attachment colour: red when anything is
// outdated, yellow for warnings or unknowns, green otherwise.
func Color(sum analyzer.Summary) string {
	switch {
	case sum.Outdated > 0:
		return ColorDanger
	case sum.Warnings > 0 || sum.Unknown > 0:
		return ColorWarning
	default:
		return ColorGood
	}
}

func statusLine(sum analyzer.Summary) string {
	switch {
	case sum.Outdated > 0:
		return "❌ Outdated"
	case sum.Warnings > 0 || sum.Unknown > 0:
		return "⚠️ Warning"
	default:
		return "✅ All Up-to-date"
	}
}

func imageEmoji(s analyzer.Status) string {
	switch s {
	case analyzer.StatusUpToDate:
		return "✅"
	case analyzer.StatusOutdated:
		return "❌"
	default:
		return "⚠️"
	}
}

func contextElements(extra map[string]string) []slack.MixedElement {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	elems := []slack.MixedElement{
		markdown("*Host:* " + host),
		markdown("*Time:* " + time.Now().Format("2006-01-02 15:04:05")),
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		elems = append(elems, markdown(fmt.Sprintf("*%s:* %s", k, extra[k])))
	}
	return elems
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(markdown(text), nil, nil)
}

func orNA(s *string) string {
	if s == nil {
		return "N/A"
	}
	return *s
}
