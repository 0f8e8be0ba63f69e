package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/anonrelay/internal/domain/enums"
	"github.com/ivankudzin/anonrelay/internal/markup"
)

// Bot wraps the Telegram API behind the small gateway surface the
// application needs: long-poll updates in, HTML-formatted sends out.
type Bot struct {
	api *tgbotapi.BotAPI
}

type CommandUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Command  string
	Args     string
}

type TextUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Spans    []markup.Span
}

type MediaUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Kind     enums.MediaKind
	FileID   string
	Duration time.Duration
	Caption  string
	Spans    []markup.Span
}

type CallbackUpdate struct {
	CallbackID string
	ChatID     int64
	UserID     int64
	Username   string
	Data       string
}

type PreCheckoutUpdate struct {
	QueryID string
	UserID  int64
	Payload string
}

type PaymentUpdate struct {
	ChatID   int64
	UserID   int64
	Username string
	Payload  string
	ChargeID string
	Amount   int64
	Currency string
}

// Recipient is a resolved chat identity. Kind tells individuals apart from
// groups and channels.
type Recipient struct {
	ID     int64
	Handle string
	Kind   enums.RecipientKind
}

type Handlers struct {
	OnCommand     func(context.Context, CommandUpdate) error
	OnText        func(context.Context, TextUpdate) error
	OnMedia       func(context.Context, MediaUpdate) error
	OnCallback    func(context.Context, CallbackUpdate) error
	OnPreCheckout func(context.Context, PreCheckoutUpdate) error
	OnPayment     func(context.Context, PaymentUpdate) error
}

func NewBot(token string) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api}, nil
}

func (b *Bot) Listen(ctx context.Context, handlers Handlers) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			if err := b.dispatch(ctx, handlers, update); err != nil {
				return err
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handlers Handlers, update tgbotapi.Update) error {
	if update.PreCheckoutQuery != nil && handlers.OnPreCheckout != nil {
		return handlers.OnPreCheckout(ctx, PreCheckoutUpdate{
			QueryID: update.PreCheckoutQuery.ID,
			UserID:  update.PreCheckoutQuery.From.ID,
			Payload: update.PreCheckoutQuery.InvoicePayload,
		})
	}

	if update.CallbackQuery != nil && update.CallbackQuery.From != nil && handlers.OnCallback != nil {
		chatID := int64(0)
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		return handlers.OnCallback(ctx, CallbackUpdate{
			CallbackID: update.CallbackQuery.ID,
			ChatID:     chatID,
			UserID:     update.CallbackQuery.From.ID,
			Username:   update.CallbackQuery.From.UserName,
			Data:       update.CallbackQuery.Data,
		})
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	if msg.SuccessfulPayment != nil && handlers.OnPayment != nil {
		return handlers.OnPayment(ctx, PaymentUpdate{
			ChatID:   msg.Chat.ID,
			UserID:   msg.From.ID,
			Username: msg.From.UserName,
			Payload:  msg.SuccessfulPayment.InvoicePayload,
			ChargeID: msg.SuccessfulPayment.ProviderPaymentChargeID,
			Amount:   int64(msg.SuccessfulPayment.TotalAmount),
			Currency: msg.SuccessfulPayment.Currency,
		})
	}

	if msg.IsCommand() && handlers.OnCommand != nil {
		return handlers.OnCommand(ctx, CommandUpdate{
			ChatID:   msg.Chat.ID,
			UserID:   msg.From.ID,
			Username: msg.From.UserName,
			Command:  msg.Command(),
			Args:     msg.CommandArguments(),
		})
	}

	if media, ok := mediaFromMessage(msg); ok {
		if handlers.OnMedia != nil {
			return handlers.OnMedia(ctx, media)
		}
		return nil
	}

	if msg.Text != "" && handlers.OnText != nil {
		return handlers.OnText(ctx, TextUpdate{
			ChatID:   msg.Chat.ID,
			UserID:   msg.From.ID,
			Username: msg.From.UserName,
			Text:     msg.Text,
			Spans:    spansFromEntities(msg.Entities),
		})
	}

	return nil
}

func mediaFromMessage(msg *tgbotapi.Message) (MediaUpdate, bool) {
	media := MediaUpdate{
		ChatID:   msg.Chat.ID,
		UserID:   msg.From.ID,
		Username: msg.From.UserName,
		Caption:  msg.Caption,
		Spans:    spansFromEntities(msg.CaptionEntities),
	}

	switch {
	case len(msg.Photo) > 0:
		media.Kind = enums.MediaKindPhoto
		media.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Animation != nil:
		// Telegram sets both Animation and Document for GIFs, so the
		// animation check has to come before the document one.
		media.Kind = enums.MediaKindAnimation
		media.FileID = msg.Animation.FileID
	case msg.Video != nil:
		media.Kind = enums.MediaKindVideo
		media.FileID = msg.Video.FileID
		media.Duration = time.Duration(msg.Video.Duration) * time.Second
	case msg.Document != nil:
		media.Kind = enums.MediaKindDocument
		media.FileID = msg.Document.FileID
	default:
		return MediaUpdate{}, false
	}

	return media, true
}

func spansFromEntities(entities []tgbotapi.MessageEntity) []markup.Span {
	if len(entities) == 0 {
		return nil
	}

	spans := make([]markup.Span, 0, len(entities))
	for _, entity := range entities {
		spans = append(spans, markup.Span{
			Offset: entity.Offset,
			Length: entity.Length,
			Kind:   entity.Type,
			URL:    entity.URL,
		})
	}
	return spans
}

func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if chatID == 0 {
		return fmt.Errorf("chat id is required")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram photo: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendVideo(ctx context.Context, chatID int64, fileID, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram video: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendAnimation(ctx context.Context, chatID int64, fileID, caption string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram animation: %w", err)
	}

	_ = ctx
	return nil
}

// SendAdminMenu posts the admin action picker. Button callback data is what
// the router's callback handler matches on.
func (b *Bot) SendAdminMenu(ctx context.Context, chatID int64, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛑 Забанить пользователя", "admin_ban"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Разбанить пользователя", "admin_unban"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 Рассылка", "admin_mailing"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send admin menu: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) SendInvoice(ctx context.Context, chatID int64, title, description, payload, providerToken, currency string, amount int64, priceLabel string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(providerToken) == "" {
		return fmt.Errorf("payments provider token is empty")
	}

	invoice := tgbotapi.NewInvoice(
		chatID,
		title,
		description,
		payload,
		providerToken,
		"",
		currency,
		[]tgbotapi.LabeledPrice{{Label: priceLabel, Amount: int(amount)}},
	)
	if _, err := b.api.Send(invoice); err != nil {
		return fmt.Errorf("send telegram invoice: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}

	cfg := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	}
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer pre checkout query: %w", err)
	}

	_ = ctx
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if b == nil || b.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if strings.TrimSpace(callbackID) == "" {
		return nil
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(cfg); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	_ = ctx
	return nil
}

// ResolveRecipient looks up a chat by numeric id or @username. The chat type
// is preserved so callers can refuse to ban groups and channels.
func (b *Bot) ResolveRecipient(ctx context.Context, identifier string) (Recipient, error) {
	if b == nil || b.api == nil {
		return Recipient{}, fmt.Errorf("telegram bot is not initialized")
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Recipient{}, fmt.Errorf("recipient identifier is empty")
	}

	chatCfg := tgbotapi.ChatInfoConfig{}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		chatCfg.ChatID = id
	} else {
		chatCfg.SuperGroupUsername = "@" + strings.TrimPrefix(identifier, "@")
	}

	chat, err := b.api.GetChat(chatCfg)
	if err != nil {
		return Recipient{}, fmt.Errorf("resolve recipient %q: %w", identifier, err)
	}

	kind := enums.RecipientKindPrivate
	switch chat.Type {
	case "group", "supergroup":
		kind = enums.RecipientKindGroup
	case "channel":
		kind = enums.RecipientKindChannel
	}

	_ = ctx
	return Recipient{
		ID:     chat.ID,
		Handle: chat.UserName,
		Kind:   kind,
	}, nil
}
