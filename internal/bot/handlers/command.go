package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/database"
	"github.com/edgard/tgcollector/internal/errs"
)

const defaultCommandTimeout = 2 * time.Minute

var validate = validator.New()

// commandFunc runs an operator command and returns the reply text.
type commandFunc func(ctx context.Context, args []string) (string, error)

// newCommand wraps run into a handler that parses arguments, bounds the run
// by timeout and replies with the result or a translated error.
func newCommand(deps HandlerDeps, name string, timeout time.Duration, run commandFunc) bot.HandlerFunc {
	log := deps.Logger.With("handler", name)

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		chatID := update.Message.Chat.ID
		args := commandArgs(update.Message.Text)

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		text, err := run(runCtx, args)
		if err != nil {
			log.ErrorContext(ctx, "Command failed",
				"chat_id", chatID, "error", err, "code", errs.Code(err), "duration", time.Since(start))
			text = userMessage(err, deps.Config.Messages)
		} else {
			log.InfoContext(ctx, "Command completed", "chat_id", chatID, "duration", time.Since(start))
		}
		sendText(ctx, b, log, chatID, text)
	}
}

// commandArgs returns the words after the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// userMessage translates an error into an operator reply. Typed outcomes
// are shown as is; transient failures and unknown errors use the
// configured messages.
func userMessage(err error, msgs config.MessagesConfig) string {
	if errs.IsTransient(err) || errors.Is(err, context.Canceled) {
		return msgs.Timeout
	}
	switch errs.Code(err) {
	case errs.CodeAuthentication, errs.CodeValidation, errs.CodeEntityResolution, errs.CodeDataIntegrity:
		return "⚠️ " + err.Error()
	default:
		return msgs.GeneralError
	}
}

func sendText(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}

func usage(text string) error {
	return errs.NewValidationError("usage: "+text, nil)
}

// checkArgs validates a parsed argument struct, reporting the usage on failure.
func checkArgs(args any, usageText string) error {
	if err := validate.Struct(args); err != nil {
		return errs.NewValidationError("usage: "+usageText, err)
	}
	return nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// lookupGroup finds a group by stored row id, or by platform id when the
// argument is negative (-100... for channels).
func lookupGroup(ctx context.Context, store database.Store, arg string) (*database.Group, error) {
	id, err := parseInt64(arg)
	if err != nil {
		return nil, errs.NewValidationError(fmt.Sprintf("invalid group id %q", arg), err)
	}

	var group *database.Group
	if id < 0 {
		group, err = store.GetGroupByPlatformID(ctx, id)
	} else {
		group, err = store.GetGroup(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, errs.NewValidationError(fmt.Sprintf("group %s not found", arg), nil)
	}
	return group, nil
}
