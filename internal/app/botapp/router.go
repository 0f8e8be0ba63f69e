package botapp

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/config"
	"github.com/ivankudzin/anonrelay/internal/domain/enums"
	"github.com/ivankudzin/anonrelay/internal/domain/model"
	tginfra "github.com/ivankudzin/anonrelay/internal/infra/telegram"
	"github.com/ivankudzin/anonrelay/internal/markup"
	"github.com/ivankudzin/anonrelay/internal/services/bans"
	"github.com/ivankudzin/anonrelay/internal/services/broadcast"
	"github.com/ivankudzin/anonrelay/internal/services/disclosure"
	"github.com/ivankudzin/anonrelay/internal/services/ledger"
	"github.com/ivankudzin/anonrelay/internal/services/rate"
	"github.com/ivankudzin/anonrelay/internal/services/screen"
	"github.com/ivankudzin/anonrelay/internal/services/sessions"
)

const (
	btnSubmit = "✉️ Отправить сообщение"
	btnAuthor = "🔍 Узнать автора сообщения"
	btnHelp   = "ℹ️ Навигация"
	btnAdmin  = "🔧 Админка"

	welcomeText = "🎄👋 Добро пожаловать!\nВыберите действие ниже:"
	helpText    = "📌 Навигация по боту:\n\n" +
		"1. ✉️ Отправить сообщение — отправьте анонимное сообщение в канал.\n" +
		"2. 🔍 Узнать автора сообщения — платный доступ к автору по номеру сообщения.\n" +
		"3. ℹ️ Навигация — описание функций бота.\n" +
		"4. 🔧 Админка — для администраторов бота (доступ ограничен)."

	bannedReply       = "❌ Вы забанены!"
	submitPrompt      = "✉️ Напишите сообщение, которое хотите отправить. Оно будет отправлено в канал. 🎅🎁"
	authorPrompt      = "🔍 Введите номер сообщения, автора которого хотите узнать."
	noButtonAccess    = "❌ У вас нет доступа к этой кнопке."
	noCallbackAccess  = "❌ У вас нет доступа к этой функции."
	adminMenuText     = "🔧 Админка: выберите действие. 🎅🎄"
	banTargetPrompt   = "🛑 Пожалуйста, отправьте ID пользователя или @username для бана."
	unbanTargetPrompt = "✅ Пожалуйста, отправьте ID пользователя или @username для разбана."
	mailingPrompt     = "📢 Пожалуйста, отправьте сообщение для рассылки всем пользователям.\n" +
		"Вы можете прикрепить текст, ссылки и фотографии. 🎄🎅"
	banDaysPrompt   = "🗓️ Введите количество дней для бана:"
	banDaysInvalid  = "❌ Пожалуйста, введите корректное количество дней (целое число больше 0)."
	banReasonPrompt = "📋 Введите причину бана:"

	mediaNeedsCaption = "❌ Добавьте текст к вашему медиафайлу (фото, видео или GIF). 🎄"
	documentsRejected = "❌ Отправка файлов запрещена."
	relayDone         = "✅ Ваше сообщение отправлено! 🎅🎄"
	relaySendFailed   = "❌ Произошла ошибка при отправке вашего сообщения в группу."
	relayStoreFailed  = "❌ Произошла ошибка при сохранении вашего сообщения."
	banApplyFailed    = "❌ Произошла ошибка при бане."
	unbanApplyFailed  = "❌ Произошла ошибка при разбане пользователя."
	invoicePrompt     = "🔧 Оплатите доступ к информации об авторе сообщения. 🎄"
	invalidNumber     = "🔧 Введите корректный номер сообщения."
	paymentThanks     = "🥳 Спасибо за оплату! Теперь вы можете узнать информацию об авторе сообщения."
	paymentUnknown    = "❌ Неизвестная оплата."
	paymentFailed     = "❌ Произошла ошибка при обработке вашего платежа."
	noRecipients      = "❌ Нет пользователей для рассылки."

	linkBanReason  = "Отправка ссылок."
	wordBanReason  = "Использование запрещенных слов."
	adminUnbanNote = "Админская команда: разбан."

	invoicePriceLabel = "Доступ к информации об авторе"
)

// Gateway is the slice of the messaging surface the router drives. The
// concrete implementation is infra/telegram.Bot; tests substitute a fake.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) error
	SendAnimation(ctx context.Context, chatID int64, fileID, caption string) error
	SendAdminMenu(ctx context.Context, chatID int64, text string) error
	SendInvoice(ctx context.Context, chatID int64, title, description, payload, providerToken, currency string, amount int64, priceLabel string) error
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	ResolveRecipient(ctx context.Context, identifier string) (tginfra.Recipient, error)
}

type Senders interface {
	Upsert(ctx context.Context, sender model.Sender) error
	ListIDs(ctx context.Context) ([]int64, error)
}

type RouterDeps struct {
	Gateway    Gateway
	Sessions   *sessions.Manager
	Bans       *bans.Service
	Screen     *screen.Service
	Rate       *rate.Limiter
	Ledger     *ledger.Service
	Disclosure *disclosure.Service
	Broadcast  *broadcast.Dispatcher
	Senders    Senders
	Clock      clock.Clock
	Logger     *zap.Logger
	Config     config.Config
}

// Router drives every conversation flow: anonymous relay, author disclosure,
// and the admin ban/unban/broadcast flows. It holds no per-sender state of
// its own; the session manager does.
type Router struct {
	gateway    Gateway
	sessions   *sessions.Manager
	bans       *bans.Service
	screen     *screen.Service
	rate       *rate.Limiter
	ledger     *ledger.Service
	disclosure *disclosure.Service
	broadcast  *broadcast.Dispatcher
	senders    Senders
	clock      clock.Clock
	logger     *zap.Logger

	groupChatID   int64
	logChatID     int64
	adminIDs      map[int64]struct{}
	videoMax      time.Duration
	linkBan       time.Duration
	wordBan       time.Duration
	providerToken string
	priceAmount   int64
	priceCurrency string
}

func NewRouter(deps RouterDeps) *Router {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	admins := make(map[int64]struct{}, len(deps.Config.Bot.AdminIDs))
	for _, id := range deps.Config.Bot.AdminIDs {
		admins[id] = struct{}{}
	}

	return &Router{
		gateway:       deps.Gateway,
		sessions:      deps.Sessions,
		bans:          deps.Bans,
		screen:        deps.Screen,
		rate:          deps.Rate,
		ledger:        deps.Ledger,
		disclosure:    deps.Disclosure,
		broadcast:     deps.Broadcast,
		senders:       deps.Senders,
		clock:         clk,
		logger:        logger,
		groupChatID:   deps.Config.Bot.GroupChatID,
		logChatID:     deps.Config.Bot.LogChatID,
		adminIDs:      admins,
		videoMax:      deps.Config.Relay.VideoMaxDuration,
		linkBan:       deps.Config.Screen.LinkBanDuration,
		wordBan:       deps.Config.Screen.WordBanDuration,
		providerToken: deps.Config.Disclosure.ProviderToken,
		priceAmount:   int64(deps.Config.Disclosure.Amount),
		priceCurrency: deps.Config.Disclosure.Currency,
	}
}

func (r *Router) isAdmin(senderID int64) bool {
	_, ok := r.adminIDs[senderID]
	return ok
}

// inbound is one private-chat submission, text or media, normalized for the
// relay pipeline.
type inbound struct {
	userID   int64
	username string
	text     string
	spans    []markup.Span
	kind     enums.MediaKind
	fileID   string
	duration time.Duration
}

func (r *Router) HandleCommand(ctx context.Context, up tginfra.CommandUpdate) error {
	if up.ChatID != up.UserID {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(up.Command)) {
	case "start":
		return r.handleStart(ctx, up)
	default:
		return nil
	}
}

func (r *Router) handleStart(ctx context.Context, up tginfra.CommandUpdate) error {
	if err := r.senders.Upsert(ctx, model.Sender{
		ID:        up.UserID,
		Handle:    up.Username,
		FirstSeen: r.clock.Now().UTC(),
	}); err != nil {
		r.logger.Warn("register sender", zap.Error(err), zap.Int64("sender_id", up.UserID))
	}

	if err := r.sessions.Clear(ctx, up.UserID); err != nil {
		r.logger.Warn("clear session on start", zap.Error(err), zap.Int64("sender_id", up.UserID))
	}

	text := welcomeText + "\n\n" + btnSubmit + "\n" + btnAuthor + "\n" + btnHelp
	if r.isAdmin(up.UserID) {
		text += "\n" + btnAdmin
	}
	return r.reply(ctx, up.ChatID, text)
}

func (r *Router) HandleText(ctx context.Context, up tginfra.TextUpdate) error {
	if up.ChatID != up.UserID {
		return nil
	}

	session, err := r.sessions.Current(ctx, up.UserID)
	if err != nil {
		r.logger.Warn("load session", zap.Error(err), zap.Int64("sender_id", up.UserID))
		session = model.Session{SenderID: up.UserID, State: enums.SessionIdle}
	}

	switch session.State {
	case enums.SessionAwaitingMessage:
		return r.relay(ctx, inbound{
			userID:   up.UserID,
			username: up.Username,
			text:     up.Text,
			spans:    up.Spans,
		})
	case enums.SessionAwaitingAuthorNum:
		return r.handleAuthorNumber(ctx, up)
	case enums.SessionAdminBanTarget:
		return r.handleBanTarget(ctx, up)
	case enums.SessionAdminBanDuration:
		return r.handleBanDuration(ctx, up)
	case enums.SessionAdminBanReason:
		return r.handleBanReason(ctx, up, session)
	case enums.SessionAdminUnbanTarget:
		return r.handleUnbanTarget(ctx, up)
	case enums.SessionAdminBroadcast:
		return r.handleBroadcastInput(ctx, up.UserID, broadcast.Content{
			Text: markup.RenderHTML(up.Text, up.Spans),
		})
	default:
		return r.handleMenu(ctx, up)
	}
}

func (r *Router) handleMenu(ctx context.Context, up tginfra.TextUpdate) error {
	switch strings.TrimSpace(up.Text) {
	case btnSubmit:
		banned, err := r.bans.IsBanned(ctx, up.UserID, r.clock.Now())
		if err != nil {
			r.logger.Warn("ban check", zap.Error(err), zap.Int64("sender_id", up.UserID))
		}
		if banned {
			return r.reply(ctx, up.ChatID, bannedReply)
		}
		if err := r.sessions.Open(ctx, up.UserID, enums.SessionAwaitingMessage); err != nil {
			r.logger.Warn("open submit flow", zap.Error(err), zap.Int64("sender_id", up.UserID))
			return nil
		}
		return r.reply(ctx, up.ChatID, submitPrompt)
	case btnAuthor:
		if err := r.sessions.Open(ctx, up.UserID, enums.SessionAwaitingAuthorNum); err != nil {
			r.logger.Warn("open author flow", zap.Error(err), zap.Int64("sender_id", up.UserID))
			return nil
		}
		return r.reply(ctx, up.ChatID, authorPrompt)
	case btnHelp:
		return r.reply(ctx, up.ChatID, helpText)
	case btnAdmin:
		if !r.isAdmin(up.UserID) {
			return r.reply(ctx, up.ChatID, noButtonAccess)
		}
		if err := r.gateway.SendAdminMenu(ctx, up.ChatID, adminMenuText); err != nil {
			r.logger.Warn("send admin menu", zap.Error(err))
		}
		return nil
	default:
		// Anything outside an open flow is ignored, like the original bot.
		return nil
	}
}

func (r *Router) HandleMedia(ctx context.Context, up tginfra.MediaUpdate) error {
	if up.ChatID != up.UserID {
		return nil
	}

	session, err := r.sessions.Current(ctx, up.UserID)
	if err != nil {
		r.logger.Warn("load session", zap.Error(err), zap.Int64("sender_id", up.UserID))
		return nil
	}

	switch session.State {
	case enums.SessionAwaitingMessage:
		return r.relay(ctx, inbound{
			userID:   up.UserID,
			username: up.Username,
			text:     up.Caption,
			spans:    up.Spans,
			kind:     up.Kind,
			fileID:   up.FileID,
			duration: up.Duration,
		})
	case enums.SessionAdminBroadcast:
		if up.Kind == enums.MediaKindDocument {
			return r.reply(ctx, up.ChatID, documentsRejected)
		}
		return r.handleBroadcastInput(ctx, up.UserID, broadcast.Content{
			Text:      markup.RenderHTML(up.Caption, up.Spans),
			MediaKind: up.Kind,
			FileID:    up.FileID,
		})
	default:
		return nil
	}
}

// relay runs the full acceptance pipeline for one submission: ban check,
// content screening, media rules, cooldown, ledger append, then fan-out to
// the group and the log channel. Validation failures hold the flow open so
// the sender can correct and resend.
func (r *Router) relay(ctx context.Context, in inbound) error {
	now := r.clock.Now()

	banned, err := r.bans.IsBanned(ctx, in.userID, now)
	if err != nil {
		r.logger.Warn("ban check", zap.Error(err), zap.Int64("sender_id", in.userID))
		r.clearSession(ctx, in.userID)
		return r.reply(ctx, in.userID, relayStoreFailed)
	}
	if banned {
		r.clearSession(ctx, in.userID)
		return r.reply(ctx, in.userID, bannedReply)
	}

	if r.screen.ContainsLink(in.text) {
		return r.punish(ctx, in, r.linkBan, linkBanReason,
			fmt.Sprintf("❌ Вы забанены на %d часов за отправку ссылок.", int(r.linkBan.Hours())))
	}
	if r.screen.ContainsBannedWord(in.text) {
		return r.punish(ctx, in, r.wordBan, wordBanReason,
			fmt.Sprintf("❌ Вы забанены на %d часов за использование запрещенных слов.", int(r.wordBan.Hours())))
	}

	if in.kind != enums.MediaKindNone && strings.TrimSpace(in.text) == "" {
		return r.reply(ctx, in.userID, mediaNeedsCaption)
	}
	if in.kind == enums.MediaKindDocument {
		return r.reply(ctx, in.userID, documentsRejected)
	}
	if in.kind == enums.MediaKindVideo && r.videoMax > 0 && in.duration > r.videoMax {
		return r.reply(ctx, in.userID,
			fmt.Sprintf("❌ Видео не может быть длиннее %d секунд. 🎅", int(r.videoMax.Seconds())))
	}

	wait, onCooldown, err := r.rate.OnCooldown(ctx, in.userID)
	if err != nil {
		r.logger.Warn("cooldown check", zap.Error(err), zap.Int64("sender_id", in.userID))
	}
	if onCooldown {
		return r.reply(ctx, in.userID, fmt.Sprintf("⏳ Пожалуйста, подождите %d секунд.", wait))
	}
	if err := r.rate.Record(ctx, in.userID); err != nil {
		r.logger.Warn("record cooldown", zap.Error(err), zap.Int64("sender_id", in.userID))
	}

	submission, err := r.ledger.Append(ctx, in.userID, in.username, in.text, now)
	if err != nil {
		r.logger.Error("append submission", zap.Error(err), zap.Int64("sender_id", in.userID))
		r.clearSession(ctx, in.userID)
		return r.reply(ctx, in.userID, relayStoreFailed)
	}

	r.mirrorToLog(ctx, fmt.Sprintf("👤 Пользователь: @%s - %d\n⏰ Время: %s\n📝 Сообщение: %s",
		in.username, in.userID, submission.CreatedAt.Format("2006-01-02 15:04:05"),
		html.EscapeString(submission.Text)))

	caption := fmt.Sprintf("📩 Новое сообщение! 🎄\n\nСообщение: %s\n\n№%d.",
		markup.RenderHTML(in.text, in.spans), submission.ID)

	if err := r.sendToGroup(ctx, in, caption); err != nil {
		r.logger.Error("relay to group", zap.Error(err), zap.Int64("submission_id", submission.ID))
		r.clearSession(ctx, in.userID)
		return r.reply(ctx, in.userID, relaySendFailed)
	}

	r.clearSession(ctx, in.userID)
	return r.reply(ctx, in.userID, relayDone)
}

func (r *Router) sendToGroup(ctx context.Context, in inbound, caption string) error {
	switch in.kind {
	case enums.MediaKindPhoto:
		return r.gateway.SendPhoto(ctx, r.groupChatID, in.fileID, caption)
	case enums.MediaKindVideo:
		return r.gateway.SendVideo(ctx, r.groupChatID, in.fileID, caption)
	case enums.MediaKindAnimation:
		return r.gateway.SendAnimation(ctx, r.groupChatID, in.fileID, caption)
	default:
		return r.gateway.SendText(ctx, r.groupChatID, caption)
	}
}

func (r *Router) punish(ctx context.Context, in inbound, duration time.Duration, reason, replyText string) error {
	until := r.clock.Now().UTC().Add(duration)
	err := r.bans.Apply(ctx, model.Ban{
		SenderID:  in.userID,
		Until:     &until,
		Reason:    reason,
		CreatedAt: r.clock.Now().UTC(),
	})
	r.clearSession(ctx, in.userID)
	if err != nil {
		r.logger.Error("apply ban", zap.Error(err), zap.Int64("sender_id", in.userID))
		return r.reply(ctx, in.userID, banApplyFailed)
	}
	return r.reply(ctx, in.userID, replyText)
}

func (r *Router) handleAuthorNumber(ctx context.Context, up tginfra.TextUpdate) error {
	submissionID, err := strconv.ParseInt(strings.TrimSpace(up.Text), 10, 64)
	if err != nil {
		// Hold the flow open and let the sender retype the number.
		return r.reply(ctx, up.ChatID, invalidNumber)
	}

	out, err := r.disclosure.RequestDisclosure(ctx, up.UserID, submissionID, r.clock.Now())
	if err != nil {
		r.clearSession(ctx, up.UserID)
		if errors.Is(err, disclosure.ErrSubmissionNotFound) {
			return r.reply(ctx, up.ChatID, fmt.Sprintf("❌ Сообщение с номером #%d не найдено.", submissionID))
		}
		r.logger.Error("request disclosure", zap.Error(err), zap.Int64("submission_id", submissionID))
		return r.reply(ctx, up.ChatID, relayStoreFailed)
	}

	r.clearSession(ctx, up.UserID)

	if out.Revealed {
		s := out.Submission
		return r.reply(ctx, up.ChatID, fmt.Sprintf(
			"✅ Информация о сообщении #%d:\n\n<b>Отправитель:</b> @%s (ID: %d)\n<b>Текст:</b> %s\n<b>Дата:</b> %s",
			s.ID, s.SenderHandle, s.SenderID, html.EscapeString(s.Text),
			s.CreatedAt.Format("2006-01-02 15:04:05")))
	}

	if err := r.gateway.SendInvoice(ctx, up.ChatID,
		fmt.Sprintf("Доступ к сообщению #%d", submissionID),
		"🔧 Оплатите доступ к информации об авторе сообщения.",
		out.Payment.Payload,
		r.providerToken,
		out.Payment.Currency,
		out.Payment.Amount,
		invoicePriceLabel,
	); err != nil {
		r.logger.Error("send invoice", zap.Error(err), zap.Int64("submission_id", submissionID))
		return r.reply(ctx, up.ChatID, paymentFailed)
	}

	return r.reply(ctx, up.ChatID, invoicePrompt)
}

func (r *Router) handleBanTarget(ctx context.Context, up tginfra.TextUpdate) error {
	if !r.isAdmin(up.UserID) {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, noCallbackAccess)
	}

	target := strings.TrimSpace(up.Text)
	recipient, err := r.gateway.ResolveRecipient(ctx, target)
	if err != nil || recipient.Kind != enums.RecipientKindPrivate {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID,
			fmt.Sprintf("❌ Не удалось найти пользователя с идентификатором или @username: %s", target))
	}

	if err := r.sessions.Advance(ctx, up.UserID, enums.SessionAdminBanDuration, map[string]string{
		"target_id":     strconv.FormatInt(recipient.ID, 10),
		"target_handle": recipient.Handle,
	}); err != nil {
		r.logger.Warn("advance ban flow", zap.Error(err), zap.Int64("admin_id", up.UserID))
		return nil
	}
	return r.reply(ctx, up.ChatID, banDaysPrompt)
}

func (r *Router) handleBanDuration(ctx context.Context, up tginfra.TextUpdate) error {
	if !r.isAdmin(up.UserID) {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, noCallbackAccess)
	}

	days, err := strconv.Atoi(strings.TrimSpace(up.Text))
	if err != nil || days <= 0 {
		// Hold the flow open; the admin retypes the number.
		return r.reply(ctx, up.ChatID, banDaysInvalid)
	}

	if err := r.sessions.Advance(ctx, up.UserID, enums.SessionAdminBanReason, map[string]string{
		"days": strconv.Itoa(days),
	}); err != nil {
		r.logger.Warn("advance ban flow", zap.Error(err), zap.Int64("admin_id", up.UserID))
		return nil
	}
	return r.reply(ctx, up.ChatID, banReasonPrompt)
}

func (r *Router) handleBanReason(ctx context.Context, up tginfra.TextUpdate, session model.Session) error {
	if !r.isAdmin(up.UserID) {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, noCallbackAccess)
	}

	targetID, err := strconv.ParseInt(session.Value("target_id"), 10, 64)
	if err != nil || targetID <= 0 {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, banApplyFailed)
	}
	days, err := strconv.Atoi(session.Value("days"))
	if err != nil || days <= 0 {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, banApplyFailed)
	}
	targetHandle := session.Value("target_handle")
	reason := strings.TrimSpace(up.Text)

	until := r.clock.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	applyErr := r.bans.Apply(ctx, model.Ban{
		SenderID:  targetID,
		Until:     &until,
		Reason:    reason,
		CreatedAt: r.clock.Now().UTC(),
	})
	r.clearSession(ctx, up.UserID)
	if applyErr != nil {
		r.logger.Error("apply admin ban", zap.Error(applyErr), zap.Int64("target_id", targetID))
		return r.reply(ctx, up.ChatID, banApplyFailed)
	}

	return r.reply(ctx, up.ChatID, fmt.Sprintf(
		"✅ Пользователь @%s (ID: %d) был забанен на %d дней.\nПричина: %s",
		targetHandle, targetID, days, reason))
}

func (r *Router) handleUnbanTarget(ctx context.Context, up tginfra.TextUpdate) error {
	if !r.isAdmin(up.UserID) {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID, noCallbackAccess)
	}

	target := strings.TrimSpace(up.Text)
	recipient, err := r.gateway.ResolveRecipient(ctx, target)
	if err != nil || recipient.Kind != enums.RecipientKindPrivate {
		r.clearSession(ctx, up.UserID)
		return r.reply(ctx, up.ChatID,
			fmt.Sprintf("❌ Не удалось найти пользователя с идентификатором или @username: %s", target))
	}

	removeErr := r.bans.Remove(ctx, recipient.ID, adminUnbanNote)
	r.clearSession(ctx, up.UserID)
	if removeErr != nil {
		r.logger.Error("admin unban", zap.Error(removeErr), zap.Int64("target_id", recipient.ID))
		return r.reply(ctx, up.ChatID, unbanApplyFailed)
	}

	return r.reply(ctx, up.ChatID, fmt.Sprintf(
		"✅ Пользователь @%s (ID: %d) был разбанен.", recipient.Handle, recipient.ID))
}

func (r *Router) handleBroadcastInput(ctx context.Context, adminID int64, content broadcast.Content) error {
	if !r.isAdmin(adminID) {
		r.clearSession(ctx, adminID)
		return r.reply(ctx, adminID, noCallbackAccess)
	}

	recipients, err := r.senders.ListIDs(ctx)
	if err != nil {
		r.logger.Error("list broadcast recipients", zap.Error(err))
		r.clearSession(ctx, adminID)
		return r.reply(ctx, adminID, relayStoreFailed)
	}
	if len(recipients) == 0 {
		r.clearSession(ctx, adminID)
		return r.reply(ctx, adminID, noRecipients)
	}

	summary, err := r.broadcast.Broadcast(ctx, content, recipients)
	r.clearSession(ctx, adminID)
	if err != nil {
		r.logger.Error("broadcast", zap.Error(err))
	}

	return r.reply(ctx, adminID, fmt.Sprintf(
		"📢 Рассылка завершена.\nУспешно отправлено: %d\nНе удалось отправить: %d",
		summary.Sent, summary.Failed))
}

func (r *Router) HandleCallback(ctx context.Context, up tginfra.CallbackUpdate) error {
	if !strings.HasPrefix(up.Data, "admin_") {
		return r.answerCallback(ctx, up.CallbackID, "")
	}
	if !r.isAdmin(up.UserID) {
		return r.answerCallback(ctx, up.CallbackID, noCallbackAccess)
	}

	var state enums.SessionState
	var prompt string
	switch up.Data {
	case "admin_ban":
		state, prompt = enums.SessionAdminBanTarget, banTargetPrompt
	case "admin_unban":
		state, prompt = enums.SessionAdminUnbanTarget, unbanTargetPrompt
	case "admin_mailing":
		state, prompt = enums.SessionAdminBroadcast, mailingPrompt
	default:
		return r.answerCallback(ctx, up.CallbackID, "")
	}

	if err := r.sessions.Open(ctx, up.UserID, state); err != nil {
		r.logger.Warn("open admin flow", zap.Error(err), zap.Int64("admin_id", up.UserID))
		return r.answerCallback(ctx, up.CallbackID, "")
	}
	if err := r.reply(ctx, up.ChatID, prompt); err != nil {
		return err
	}
	return r.answerCallback(ctx, up.CallbackID, "")
}

// HandlePreCheckout approves every pre-checkout query. The real gate is the
// payload check when the completed payment arrives.
func (r *Router) HandlePreCheckout(ctx context.Context, up tginfra.PreCheckoutUpdate) error {
	if err := r.gateway.AnswerPreCheckout(ctx, up.QueryID, true, ""); err != nil {
		r.logger.Warn("answer pre checkout", zap.Error(err), zap.String("query_id", up.QueryID))
	}
	return nil
}

func (r *Router) HandlePayment(ctx context.Context, up tginfra.PaymentUpdate) error {
	_, err := r.disclosure.ConfirmPayment(ctx, up.Payload, up.ChargeID, r.clock.Now())
	if err != nil {
		if errors.Is(err, disclosure.ErrUnknownPayload) {
			return r.reply(ctx, up.ChatID, paymentUnknown)
		}
		r.logger.Error("confirm payment", zap.Error(err), zap.String("payload", up.Payload))
		return r.reply(ctx, up.ChatID, paymentFailed)
	}
	return r.reply(ctx, up.ChatID, paymentThanks)
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) error {
	if err := r.gateway.SendText(ctx, chatID, text); err != nil {
		r.logger.Warn("send reply", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	return nil
}

func (r *Router) mirrorToLog(ctx context.Context, text string) {
	if r.logChatID == 0 {
		return
	}
	if err := r.gateway.SendText(ctx, r.logChatID, text); err != nil {
		r.logger.Warn("mirror to log channel", zap.Error(err))
	}
}

func (r *Router) clearSession(ctx context.Context, senderID int64) {
	if err := r.sessions.Clear(ctx, senderID); err != nil {
		r.logger.Warn("clear session", zap.Error(err), zap.Int64("sender_id", senderID))
	}
}

func (r *Router) answerCallback(ctx context.Context, callbackID, text string) error {
	if err := r.gateway.AnswerCallback(ctx, callbackID, text); err != nil {
		r.logger.Warn("answer callback", zap.Error(err))
	}
	return nil
}
