package notify

import (
	"complaintdesk/backend/internal/config"
	"complaintdesk/backend/internal/localization"
	"log/slog"
)

// FromConfig builds the notifier cfg.Notifier names. A Telegram notifier is
// connected but not polling; callers that want chat-id replies start Run.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Notifier {
	case config.NotifierHTTP:
		return NewHTTPNotifier(cfg.NotifyURL, cfg.NotifyAPIKey), nil
	case config.NotifierTelegram:
		l, err := localization.Default()
		if err != nil {
			return nil, err
		}
		tg, err := NewTelegramNotifier(cfg.TelegramBotToken, l, cfg.NotifyLang, logger)
		if err != nil {
			return nil, err
		}
		tg.LinkBase = cfg.ComplaintLinkURL
		return tg, nil
	default:
		return LogNotifier{Logger: logger}, nil
	}
}
