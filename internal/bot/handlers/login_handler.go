package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-telegram/bot"

	"github.com/edgard/tgcollector/internal/errs"
)

const (
	loginUsage  = "/login <account_id> [sms] [phone]"
	verifyUsage = "/verify <account_id> <code>"
	logoutUsage = "/logout <account_id>"
)

// pendingCodes holds the latest code hash per account between /login and /verify.
type pendingCodes struct {
	mu     sync.Mutex
	hashes map[int64]string
}

func newPendingCodes() *pendingCodes {
	return &pendingCodes{hashes: make(map[int64]string)}
}

func (p *pendingCodes) put(accountID int64, hash string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hashes[accountID] = hash
}

func (p *pendingCodes) get(accountID int64) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	hash, ok := p.hashes[accountID]
	return hash, ok
}

func (p *pendingCodes) drop(accountID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hashes, accountID)
}

type loginArgs struct {
	AccountID int64 `validate:"gt=0"`
	ForceSMS  bool
	Phone     string `validate:"omitempty,e164"`
}

func parseLogin(args []string) (loginArgs, error) {
	var parsed loginArgs
	if len(args) == 0 || len(args) > 3 {
		return parsed, usage(loginUsage)
	}
	id, err := parseInt64(args[0])
	if err != nil {
		return parsed, usage(loginUsage)
	}
	parsed.AccountID = id
	for _, a := range args[1:] {
		switch {
		case strings.EqualFold(a, "sms"):
			parsed.ForceSMS = true
		case strings.HasPrefix(a, "+"):
			parsed.Phone = a
		default:
			return parsed, usage(loginUsage)
		}
	}
	return parsed, checkArgs(parsed, loginUsage)
}

// NewLoginHandler returns a handler for /login.
func NewLoginHandler(deps HandlerDeps, pending *pendingCodes) bot.HandlerFunc {
	return newCommand(deps, "login", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		parsed, err := parseLogin(args)
		if err != nil {
			return "", err
		}
		hash, err := deps.Auth.StartLogin(ctx, parsed.AccountID, parsed.Phone, parsed.ForceSMS)
		if err != nil {
			return "", err
		}
		pending.put(parsed.AccountID, hash)
		return fmt.Sprintf(deps.Config.Messages.CodeSent, parsed.AccountID), nil
	})
}

// parseVerify accepts the code split over several words, since the platform
// invalidates codes pasted into a chat verbatim.
func parseVerify(args []string) (int64, string, error) {
	if len(args) < 2 {
		return 0, "", usage(verifyUsage)
	}
	id, err := parseInt64(args[0])
	if err != nil || id <= 0 {
		return 0, "", usage(verifyUsage)
	}
	code := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, strings.Join(args[1:], ""))
	if err := validate.Var(code, "required,numeric,min=5,max=6"); err != nil {
		return 0, "", errs.NewValidationError("usage: "+verifyUsage, err)
	}
	return id, code, nil
}

// NewVerifyHandler returns a handler for /verify.
func NewVerifyHandler(deps HandlerDeps, pending *pendingCodes) bot.HandlerFunc {
	return newCommand(deps, "verify", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		accountID, code, err := parseVerify(args)
		if err != nil {
			return "", err
		}
		hash, ok := pending.get(accountID)
		if !ok {
			return fmt.Sprintf("No login in progress for account %d. Run /login %d first.", accountID, accountID), nil
		}
		if err := deps.Auth.VerifyCode(ctx, accountID, code, hash); err != nil {
			return "", err
		}
		pending.drop(accountID)
		return fmt.Sprintf(deps.Config.Messages.LoginSucceeded, accountID), nil
	})
}

// NewLogoutHandler returns a handler for /logout.
func NewLogoutHandler(deps HandlerDeps, pending *pendingCodes) bot.HandlerFunc {
	return newCommand(deps, "logout", defaultCommandTimeout, func(ctx context.Context, args []string) (string, error) {
		if len(args) != 1 {
			return "", usage(logoutUsage)
		}
		accountID, err := parseInt64(args[0])
		if err != nil || accountID <= 0 {
			return "", usage(logoutUsage)
		}
		if err := deps.Auth.Logout(ctx, accountID); err != nil {
			return "", err
		}
		pending.drop(accountID)
		return fmt.Sprintf("Account %d logged out.", accountID), nil
	})
}
