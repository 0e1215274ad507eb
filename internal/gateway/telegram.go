package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type TelegramGateway struct {
	Bot     *tgbotapi.BotAPI
	Handler *Handler
	Logger  *zap.Logger
}

func NewTelegramGateway(token string, handler *Handler, logger *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("telegram authorized", zap.String("account", bot.Self.UserName))

	return &TelegramGateway{
		Bot:     bot,
		Handler: handler,
		Logger:  logger,
	}, nil
}

// Start handles messages one at a time, so runs never overlap on the
// editor session.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}

			tg.Logger.Info("telegram message",
				zap.String("from", update.Message.From.UserName),
				zap.Int64("chat_id", update.Message.Chat.ID),
				zap.String("text", update.Message.Text),
			)

			reply := tg.Handler.Reply(ctx, update.Message.Text)
			if _, err := tg.Bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
				tg.Logger.Warn("telegram send failed", zap.Error(err))
			}
		}
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}

	_, err = tg.Bot.Send(tgbotapi.NewMessage(id, text))
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
