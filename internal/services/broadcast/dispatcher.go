package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ivankudzin/anonrelay/internal/domain/enums"
)

type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) error
	SendAnimation(ctx context.Context, chatID int64, fileID, caption string) error
}

// Content is one admin-authored broadcast message: plain text, or a media
// attachment with the text as its caption.
type Content struct {
	Text      string
	MediaKind enums.MediaKind
	FileID    string
}

type Summary struct {
	Sent   int
	Failed int
}

// Dispatcher fans one message out to every recipient. A recipient-level
// delivery failure is counted and logged, never propagated, so one blocked
// or departed recipient cannot abort the batch.
type Dispatcher struct {
	gateway Gateway
	delay   time.Duration
	clock   clock.Clock
	logger  *zap.Logger
}

func NewDispatcher(gateway Gateway, delay time.Duration, clk clock.Clock, logger *zap.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		gateway: gateway,
		delay:   delay,
		clock:   clk,
		logger:  logger,
	}
}

func (d *Dispatcher) Broadcast(ctx context.Context, content Content, recipients []int64) (Summary, error) {
	if d.gateway == nil {
		return Summary{}, fmt.Errorf("broadcast gateway is nil")
	}

	var summary Summary
	for i, chatID := range recipients {
		if i > 0 && d.delay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-d.clock.After(d.delay):
			}
		}

		if err := d.send(ctx, chatID, content); err != nil {
			summary.Failed++
			d.logger.Warn("broadcast delivery failed",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
			continue
		}
		summary.Sent++
	}

	return summary, nil
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, content Content) error {
	switch content.MediaKind {
	case enums.MediaKindPhoto:
		return d.gateway.SendPhoto(ctx, chatID, content.FileID, content.Text)
	case enums.MediaKindVideo:
		return d.gateway.SendVideo(ctx, chatID, content.FileID, content.Text)
	case enums.MediaKindAnimation:
		return d.gateway.SendAnimation(ctx, chatID, content.FileID, content.Text)
	default:
		return d.gateway.SendText(ctx, chatID, content.Text)
	}
}
