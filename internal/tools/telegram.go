package tools

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"google.golang.org/genai"
)

// telegramSender is the part of the bot API the tool uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramTool sends messages through a Telegram bot. Like SlackTool, its
// name carries an app-style prefix on purpose.
type TelegramTool struct {
	bot           telegramSender
	defaultChatID int64
}

// NewTelegramTool creates a TelegramTool. The bot handle is created lazily
// by the container so a bad token fails at startup, not per call.
func NewTelegramTool(bot telegramSender, defaultChatID int64) *TelegramTool {
	return &TelegramTool{bot: bot, defaultChatID: defaultChatID}
}

// NewTelegramBot connects to the Telegram bot API with token.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return bot, nil
}

func (t *TelegramTool) Name() string { return "telegram_send_message" }

func (t *TelegramTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: "Send a message to a Telegram chat.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"text":   {Type: genai.TypeString, Description: "Message text"},
				"chatId": {Type: genai.TypeInteger, Description: "Chat ID, defaults to the configured chat"},
			},
			Required: []string{"text"},
		},
	}
}

func (t *TelegramTool) Execute(_ context.Context, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	chatID := t.defaultChatID
	switch v := args["chatId"].(type) {
	case float64:
		chatID = int64(v)
	case int:
		chatID = int64(v)
	case int64:
		chatID = v
	}
	if chatID == 0 {
		return nil, fmt.Errorf("no chatId given and no default configured")
	}

	sent, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return nil, fmt.Errorf("telegram send: %w", err)
	}
	return map[string]any{"chatId": chatID, "messageId": sent.MessageID}, nil
}
