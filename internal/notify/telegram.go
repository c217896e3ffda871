package notify

import (
	"complaintdesk/backend/internal/localization"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier messages the assignee's Telegram chat.
type TelegramNotifier struct {
	Bot       Sender
	Localizer *localization.Localizer
	Lang      string
	// LinkBase, when set, is prefixed to the complaint id to build a link.
	LinkBase string

	api *tgbotapi.BotAPI
}

// NewTelegramNotifier authorizes the bot token against the Bot API.
func NewTelegramNotifier(token string, l *localization.Localizer, lang string, logger *slog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = false
	if logger != nil {
		logger.Info("telegram notifier authorized", "account", bot.Self.UserName)
	}
	return &TelegramNotifier{Bot: bot, Localizer: l, Lang: lang, api: bot}, nil
}

func (t *TelegramNotifier) NotifyAssignment(_ context.Context, n AssignmentNotice) error {
	if n.RecipientChatID == 0 {
		return ErrNoRecipient
	}

	// Values are user text inside a Markdown template.
	vars := map[string]string{
		"name":   markdown(n.RecipientName),
		"number": markdown(n.ComplaintNumber),
		"title":  markdown(n.ComplaintTitle),
	}
	text := t.Localizer.Render(t.Lang, "assignment_body", vars)
	if t.LinkBase != "" {
		text += "\n\n" + t.Localizer.Render(t.Lang, "assignment_link", map[string]string{"url": markdown(t.LinkBase + n.ComplaintID)})
	}

	msg := tgbotapi.NewMessage(n.RecipientChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram notice to %d: %w", n.RecipientChatID, err)
	}
	return nil
}

func markdown(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

// Run long-polls the Bot API and answers /start and /id with the sender's
// chat id, which an admin then stores on the staff profile. It returns when
// ctx ends.
func (t *TelegramNotifier) Run(ctx context.Context) error {
	if t.api == nil {
		return fmt.Errorf("telegram notifier has no bot connection")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	t.ServeUpdates(ctx, t.api.GetUpdatesChan(u))
	return nil
}

// ServeUpdates handles updates until the channel closes or ctx ends.
func (t *TelegramNotifier) ServeUpdates(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			switch update.Message.Command() {
			case "start", "id":
				t.replyChatID(update.Message.Chat.ID)
			}
		}
	}
}

func (t *TelegramNotifier) replyChatID(chatID int64) {
	text := t.Localizer.Render(t.Lang, "chat_id_reply", map[string]string{"chat_id": strconv.FormatInt(chatID, 10)})
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	// Best effort; the user can ask again.
	_, _ = t.Bot.Send(msg)
}
