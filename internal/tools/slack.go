package tools

import (
	"context"
	"fmt"

	slackgo "github.com/slack-go/slack"
	"google.golang.org/genai"
)

// SlackTool posts messages to Slack with a bot token. Its name starts with
// "slack_" like a connector action would; the registry's route table keeps
// it local even when an app with that prefix is connected.
type SlackTool struct {
	client         *slackgo.Client
	defaultChannel string
}

// NewSlackTool creates a SlackTool. defaultChannel is used when a call
// passes no channel.
func NewSlackTool(botToken, defaultChannel string) *SlackTool {
	return &SlackTool{
		client:         slackgo.New(botToken),
		defaultChannel: defaultChannel,
	}
}

func (t *SlackTool) Name() string { return "slack_post_message" }

func (t *SlackTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: "Post a message to a Slack channel.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":    {Type: genai.TypeString, Description: "Message text"},
				"channel": {Type: genai.TypeString, Description: "Channel ID, defaults to the configured channel"},
			},
			Required: []string{"text"},
		},
	}
}

func (t *SlackTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	channel, _ := args["channel"].(string)
	if channel == "" {
		channel = t.defaultChannel
	}
	if channel == "" {
		return nil, fmt.Errorf("no channel given and no default configured")
	}

	_, ts, err := t.client.PostMessageContext(ctx, channel, slackgo.MsgOptionText(text, false))
	if err != nil {
		return nil, fmt.Errorf("slack post: %w", err)
	}
	return map[string]any{"channel": channel, "ts": ts}, nil
}
