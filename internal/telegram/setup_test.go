package telegram

import (
	"context"
	"slices"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tgcollector/internal/bot/handlers"
	"github.com/edgard/tgcollector/internal/logger"
)

func TestApplyMiddlewareOrder(t *testing.T) {
	t.Parallel()

	var calls []string
	mw := func(name string) bot.Middleware {
		return func(next bot.HandlerFunc) bot.HandlerFunc {
			return func(ctx context.Context, b *bot.Bot, u *models.Update) {
				calls = append(calls, name)
				next(ctx, b, u)
			}
		}
	}
	h := applyMiddleware(func(context.Context, *bot.Bot, *models.Update) {
		calls = append(calls, "handler")
	}, []bot.Middleware{mw("outer"), mw("inner")})

	h(context.Background(), nil, &models.Update{})
	if want := []string{"outer", "inner", "handler"}; !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestNewTelegramBotRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegramBot("", logger.Discard()); err == nil {
		t.Error("NewTelegramBot(\"\") succeeded, want error")
	}
}

func TestRegisterHandlers(t *testing.T) {
	t.Parallel()

	if err := RegisterHandlers(nil, logger.Discard(), nil); err == nil {
		t.Error("RegisterHandlers(nil bot) succeeded, want error")
	}

	b, err := NewTelegramBot("123:test", logger.Discard(), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("NewTelegramBot: %v", err)
	}
	regs := map[string]handlers.RegisteredHandler{
		"/ping": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "ping",
			Handler:     func(context.Context, *bot.Bot, *models.Update) {},
			MatchType:   bot.MatchTypeCommandStartOnly,
		},
		"/empty": {Pattern: "empty"},
	}
	if err := RegisterHandlers(b, logger.Discard(), regs); err != nil {
		t.Errorf("RegisterHandlers() = %v", err)
	}
}

func TestTokenPrefix(t *testing.T) {
	t.Parallel()
	if got := tokenPrefix("12345678:secret"); got != "12345678..." {
		t.Errorf("tokenPrefix() = %q", got)
	}
	if got := tokenPrefix("short"); got != "***" {
		t.Errorf("tokenPrefix(short) = %q", got)
	}
}
