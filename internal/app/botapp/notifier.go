package botapp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/domain/model"
)

// banNotifier delivers ban lifecycle messages to the affected sender and
// mirrors them to the log channel. Delivery is best effort: a sender who
// blocked the bot must not break the ban itself.
type banNotifier struct {
	gateway   Gateway
	logChatID int64
	logger    *zap.Logger
}

func newBanNotifier(gateway Gateway, logChatID int64, logger *zap.Logger) *banNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &banNotifier{gateway: gateway, logChatID: logChatID, logger: logger}
}

func (n *banNotifier) NotifyBanned(ctx context.Context, ban model.Ban) {
	untilText := "Навсегда"
	if ban.Until != nil {
		untilText = ban.Until.UTC().Format("2006-01-02 15:04:05") + " UTC"
	}

	personal := fmt.Sprintf("🚫 Вы были забанены.\n📅 До: %s\n❓ Причина: %s", untilText, ban.Reason)
	if err := n.gateway.SendText(ctx, ban.SenderID, personal); err != nil {
		n.logger.Warn("notify banned sender", zap.Error(err), zap.Int64("sender_id", ban.SenderID))
	}

	if n.logChatID == 0 {
		return
	}
	mirror := fmt.Sprintf("🚫 Пользователь с ID: %d\n📅 Бан до: %s\n❓ Причина: %s",
		ban.SenderID, untilText, ban.Reason)
	if err := n.gateway.SendText(ctx, n.logChatID, mirror); err != nil {
		n.logger.Warn("mirror ban to log channel", zap.Error(err))
	}
}

func (n *banNotifier) NotifyUnbanned(ctx context.Context, senderID int64, reason string) {
	personal := fmt.Sprintf("✅ Вы были разбанены.\n❓ Причина разбана: %s", reason)
	if err := n.gateway.SendText(ctx, senderID, personal); err != nil {
		n.logger.Warn("notify unbanned sender", zap.Error(err), zap.Int64("sender_id", senderID))
	}

	if n.logChatID == 0 {
		return
	}
	mirror := fmt.Sprintf("🔓 Пользователь с ID: %d был разбанен.\nПричина разбана: %s", senderID, reason)
	if err := n.gateway.SendText(ctx, n.logChatID, mirror); err != nil {
		n.logger.Warn("mirror unban to log channel", zap.Error(err))
	}
}
