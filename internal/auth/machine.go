// Package auth drives phone-code login of platform accounts.
//
// An account moves NoSession -> CodeRequested -> Authenticated. StartLogin
// may be repeated at any point and always issues a new code, invalidating
// the previous one. The state is derived from what the session store holds,
// nothing is kept in memory between calls.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/logger"
	"github.com/edgard/tgcollector/internal/platform"
	"github.com/edgard/tgcollector/internal/session"
)

// CodeTTL is how long a requested login code is accepted.
const CodeTTL = 5 * time.Minute

// State is the login state of an account.
type State int

const (
	StateNoSession State = iota
	StateCodeRequested
	StateCodeExpired
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateCodeRequested:
		return "code_requested"
	case StateCodeExpired:
		return "code_expired"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Machine runs login flows against the platform.
type Machine struct {
	sessions  *session.Store
	connector platform.Connector
	clock     clockwork.Clock
	logger    *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// NewMachine creates a login state machine.
func NewMachine(sessions *session.Store, connector platform.Connector, log *slog.Logger, opts ...Option) *Machine {
	if log == nil {
		log = logger.Discard()
	}
	m := &Machine{
		sessions:  sessions,
		connector: connector,
		clock:     clockwork.NewRealClock(),
		logger:    log.With("component", "auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the login state of an account.
func (m *Machine) State(ctx context.Context, accountID int64) (State, error) {
	sess, err := m.sessions.Load(ctx, accountID)
	if err != nil {
		return StateNoSession, err
	}
	return m.stateOf(sess), nil
}

func (m *Machine) stateOf(sess *session.Session) State {
	switch {
	case sess.Active && sess.HasBlob():
		return StateAuthenticated
	case !sess.HasBlob() || sess.LastCodeRequest.IsZero():
		return StateNoSession
	case m.codeExpired(sess):
		return StateCodeExpired
	default:
		return StateCodeRequested
	}
}

func (m *Machine) codeExpired(sess *session.Session) bool {
	return m.clock.Since(sess.LastCodeRequest) > CodeTTL
}

// StartLogin requests a login code for the account and returns the code
// hash to pass to VerifyCode. An existing session is logged out first on a
// best-effort basis. phoneOverride, when set, replaces the stored phone
// number for this and later logins.
func (m *Machine) StartLogin(ctx context.Context, accountID int64, phoneOverride string, forceSMS bool) (string, error) {
	sess, err := m.sessions.Load(ctx, accountID)
	if err != nil {
		return "", err
	}
	log := m.logger.With("account_id", accountID)

	if phoneOverride != "" && phoneOverride != sess.Phone {
		if err := m.sessions.SetPhone(ctx, accountID, phoneOverride); err != nil {
			return "", err
		}
		sess.Phone = phoneOverride
	}

	if sess.HasBlob() {
		_, err := m.connector.Run(ctx, sess.Credentials, sess.Blob, func(ctx context.Context, c platform.Client) error {
			return c.LogOut(ctx)
		})
		if err != nil {
			log.WarnContext(ctx, "Logout of previous session failed, continuing with fresh login", "error", err)
		} else {
			log.InfoContext(ctx, "Previous session logged out")
		}
	}

	var codeHash string
	blob, err := m.connector.Run(ctx, sess.Credentials, nil, func(ctx context.Context, c platform.Client) error {
		var err error
		codeHash, err = c.RequestLoginCode(ctx, sess.Phone, forceSMS)
		return err
	})
	if err != nil {
		if blob == nil {
			return "", errs.NewTransientError("connect for login", err)
		}
		log.WarnContext(ctx, "Login code request rejected", "error", err)
		return "", MapPlatformError(err)
	}
	if len(blob) == 0 {
		return "", errs.NewAuthenticationError("platform returned no session for login", nil)
	}

	if err := m.sessions.SavePending(ctx, accountID, blob, m.clock.Now().UTC()); err != nil {
		return "", err
	}

	log.InfoContext(ctx, "Login code requested", "force_sms", forceSMS)
	return codeHash, nil
}

// VerifyCode completes a login started by StartLogin. It fails with
// ErrNoPendingSession when no code was requested and with ErrCodeExpired
// once CodeTTL has passed since the request, whatever the code.
func (m *Machine) VerifyCode(ctx context.Context, accountID int64, code, codeHash string) error {
	sess, err := m.sessions.Load(ctx, accountID)
	if err != nil {
		return err
	}
	log := m.logger.With("account_id", accountID)

	if !sess.HasBlob() || sess.LastCodeRequest.IsZero() {
		return ErrNoPendingSession
	}
	if m.codeExpired(sess) {
		log.InfoContext(ctx, "Login code expired", "requested_at", sess.LastCodeRequest)
		return ErrCodeExpired
	}

	blob, err := m.connector.Run(ctx, sess.Credentials, sess.Blob, func(ctx context.Context, c platform.Client) error {
		return c.SignIn(ctx, sess.Phone, code, codeHash)
	})
	if err != nil {
		if blob == nil {
			return errs.NewTransientError("connect for sign-in", err)
		}
		mapped := MapPlatformError(err)
		log.WarnContext(ctx, "Sign-in rejected", "error", mapped)
		return mapped
	}

	if err := m.sessions.SaveAuthenticated(ctx, accountID, blob); err != nil {
		return err
	}
	log.InfoContext(ctx, "Account signed in")
	return nil
}

// Logout signs the account out of the platform and drops its session. The
// remote logout is best effort; the local session is cleared either way.
func (m *Machine) Logout(ctx context.Context, accountID int64) error {
	sess, err := m.sessions.Load(ctx, accountID)
	if err != nil {
		return err
	}
	if !sess.HasBlob() {
		return nil
	}

	_, err = m.connector.Run(ctx, sess.Credentials, sess.Blob, func(ctx context.Context, c platform.Client) error {
		return c.LogOut(ctx)
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Remote logout failed", "account_id", accountID, "error", err)
	}
	if err := m.sessions.Clear(ctx, accountID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// IsRecoverable reports whether the user can fix a login failure by
// starting over or retrying the code.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrCodeExpired) || errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrNoPendingSession)
}
