package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/tgcollector/internal/collector"
)

// RegisteredHandler represents a command handler with its description and middleware.
// It encapsulates all information needed to register and document a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot commands.
// Everything but /start and /help is restricted to the admin.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["/help"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "help",
		Handler:     NewHelpHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}
	pending := newPendingCodes()

	admin := map[string]tgbot.HandlerFunc{
		"accounts":    NewAccountsHandler(deps),
		"add_account": NewAddAccountHandler(deps),
		"login":       NewLoginHandler(deps, pending),
		"verify":      NewVerifyHandler(deps, pending),
		"logout":      NewLogoutHandler(deps, pending),
		"groups":      NewGroupsHandler(deps),
		"sync_groups": NewSyncGroupsHandler(deps),
		"join":        NewJoinHandler(deps),
		"toggle":      NewToggleHandler(deps),
		"collect":     NewCollectHandler(deps, collector.ModeIncremental),
		"backfill":    NewCollectHandler(deps, collector.ModeHistorical),
		"summarize":   NewSummarizeHandler(deps),
	}
	for pattern, handler := range admin {
		handlers["/"+pattern] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  adminMiddleware,
		}
	}

	return handlers
}
