// Package auth implements the Authenticator (C4): the pluggable-
// authentication handshake driven exclusively from the pre-auth loop, plus
// the irreversible privilege drop that follows a successful login (§4.12).
package auth

import (
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/msteinert/pam/v2"
)

// Request carries the AUTHENTICATE message's three parameters (§4.12).
type Request struct {
	User     string
	Password string
	RHost    string
}

// Result is everything the dispatcher needs once authentication succeeds:
// the canonical account name to store process-wide (§9) and nothing else —
// by the time Login returns, the uid/gid switch has already happened.
type Result struct {
	CanonicalUser string
}

// Authenticator owns a PAM transaction for the lifetime of the worker
// process. There is exactly one per process, opened once by Login and torn
// down by the registered teardown at process exit (§4.12 step 4, §9).
type Authenticator struct {
	service string
	log     *slog.Logger
	tx      *pam.Transaction
}

// New returns an Authenticator bound to the configured PAM service name.
func New(service string, log *slog.Logger) *Authenticator {
	return &Authenticator{service: service, log: log}
}

// Login runs the full PAM handshake and privilege drop for req. On any
// failure it ends the PAM session (if one was started) and returns an error;
// the caller reports AUTH_FAILED and keeps the worker alive for another
// attempt (§7 "Auth" error kind). On success the process's real and
// effective uid/gid have already been switched to req.User's account and a
// teardown has been registered with os.Exit's caller via Close.
func (a *Authenticator) Login(req Request) (Result, error) {
	tx, err := pam.StartFunc(a.service, req.User, func(style pam.Style, msg string) (string, error) {
		switch style {
		case pam.PromptEchoOff, pam.PromptEchoOn:
			return req.Password, nil
		default:
			return "", nil
		}
	})
	if err != nil {
		return Result{}, fmt.Errorf("pam start: %w", err)
	}

	if req.RHost != "" {
		if err := tx.SetItem(pam.Rhost, req.RHost); err != nil {
			return a.fail(tx, fmt.Errorf("pam set rhost: %w", err))
		}
	}
	if err := tx.SetItem(pam.Ruser, req.User); err != nil {
		return a.fail(tx, fmt.Errorf("pam set ruser: %w", err))
	}

	if err := tx.Authenticate(pam.Silent | pam.DisallowNullAuthtok); err != nil {
		return a.fail(tx, fmt.Errorf("pam authenticate: %w", err))
	}
	if err := tx.AcctMgmt(pam.Silent); err != nil {
		return a.fail(tx, fmt.Errorf("pam acct mgmt: %w", err))
	}
	if err := tx.SetCred(pam.EstablishCred); err != nil {
		return a.fail(tx, fmt.Errorf("pam set cred: %w", err))
	}
	if err := tx.OpenSession(pam.Silent); err != nil {
		return a.fail(tx, fmt.Errorf("pam open session: %w", err))
	}

	canonical, err := tx.GetItem(pam.User)
	if err != nil || canonical == "" {
		canonical = req.User
	}

	env, err := tx.GetEnvList()
	if err != nil {
		return a.fail(tx, fmt.Errorf("pam get envlist: %w", err))
	}

	if err := dropPrivileges(canonical); err != nil {
		return a.fail(tx, fmt.Errorf("drop privileges: %w", err))
	}

	reinstallEnv(env)

	a.tx = tx
	a.log.Info("authenticated", "user", canonical)
	return Result{CanonicalUser: canonical}, nil
}

// fail ends tx and returns cause unchanged; a failure of the teardown itself
// is logged as a warning, not returned.
func (a *Authenticator) fail(tx *pam.Transaction, cause error) (Result, error) {
	if endErr := tx.End(); endErr != nil {
		a.log.Warn("pam end after failed login", "error", endErr)
	}
	return Result{}, cause
}

// Close ends the PAM session started by Login. It is registered as the
// process's sole post-authentication teardown (§4.12 step 4) and must run at
// most once.
func (a *Authenticator) Close() error {
	if a.tx == nil {
		return nil
	}
	tx := a.tx
	a.tx = nil
	if err := tx.CloseSession(pam.Silent); err != nil {
		_ = tx.End()
		return fmt.Errorf("pam close session: %w", err)
	}
	return tx.End()
}

// dropPrivileges resolves account to a uid/gid pair and switches the
// process's real and effective ids to it. The switch is irreversible: once
// it succeeds there is no path back to a higher-privileged uid (§4.12 step
// 4, §5 "Privilege").
func dropPrivileges(account string) error {
	u, err := user.Lookup(account)
	if err != nil {
		return fmt.Errorf("lookup account %q: %w", account, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	// Group before user: once the uid switch succeeds the process may no
	// longer have permission to change its gid.
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}

// reinstallEnv wipes the current environment and replaces it with the
// NAME=VALUE pairs PAM reports for the authenticated session (§4.12 step 4).
func reinstallEnv(pairs []string) {
	os.Clearenv()
	for _, kv := range pairs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		_ = os.Setenv(name, value)
	}
}
