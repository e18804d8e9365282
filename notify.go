package main

import (
	"log"

	"github.com/slack-go/slack"
)

// Notifier posts cycle summaries to a Slack channel. A nil Notifier is a
// no-op, so callers never need to check whether Slack is configured.
type Notifier struct {
	api       *slack.Client
	channelID string
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.SlackBotToken == "" || cfg.ReportChannelID == "" {
		log.Println("Slack summaries disabled (slack_bot_token or report_channel_id not set)")
		return nil
	}
	return &Notifier{
		api:       slack.New(cfg.SlackBotToken),
		channelID: cfg.ReportChannelID,
	}
}

func (n *Notifier) PostSummary(text string) {
	if n == nil {
		return
	}
	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("Error posting summary to Slack: %v", err)
	}
}
