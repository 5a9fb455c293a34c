package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/trackkeeper/internal/api"
	"github.com/dmitrijs2005/trackkeeper/internal/common"
)

// getSimpleText and getPassword point at the interactive helpers; tests swap
// them out.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errPasswordMismatch = errors.New("passwords do not match")

// prompt reads one line.
func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// secret reads a password. The terminal buffer is wiped; the Go string copy
// lives until it is collected.
func (a *App) secret(text string) (string, error) {
	pw, err := getPassword(a.reader, text, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// newSecret reads a password twice and insists both match.
func (a *App) newSecret(text string) (string, error) {
	pw, err := a.secret(text)
	if err != nil {
		return "", err
	}
	again, err := a.secret("Repeat " + text)
	if err != nil {
		return "", err
	}
	if pw != again {
		return "", errPasswordMismatch
	}
	return pw, nil
}

// Register prompts for account details and creates the account. The server
// checks the confirmation, so both entries are sent as typed.
func (a *App) Register(ctx context.Context) error {
	username, err := a.prompt("Enter username")
	if err != nil {
		return err
	}
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.secret("Password")
	if err != nil {
		return err
	}
	confirm, err := a.secret("Repeat password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.Register(ctx, &api.RegisterRequest{
		Username:     username,
		Email:        email,
		Password:     password,
		PasswordConf: confirm,
	})
	if err != nil {
		return a.report(ctx, "register", err)
	}
	a.println("Registered and logged in as", user.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}
	password, err := a.secret("Password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	user, err := a.client.Login(ctx, email, password)
	if err != nil {
		return a.report(ctx, "login", err)
	}
	a.println("Logged in as", user.Email)
	return nil
}

// Refresh rotates the stored token pair.
func (a *App) Refresh(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if _, err := a.client.Refresh(ctx); err != nil {
		return a.report(ctx, "refresh", err)
	}
	a.println("Session refreshed")
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	sess, err := a.client.Session(ctx)
	if err != nil {
		return a.report(ctx, "whoami", err)
	}
	a.println("Logged in as", sess.Username, "<"+sess.Email+">", "id", sess.UserID)
	return nil
}

// Logout ends this device's session; LogoutAll every session of the user.
func (a *App) Logout(ctx context.Context) error {
	return a.logout(ctx, false)
}

func (a *App) LogoutAll(ctx context.Context) error {
	return a.logout(ctx, true)
}

func (a *App) logout(ctx context.Context, everywhere bool) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.Logout(ctx, everywhere)
	if err != nil {
		return a.report(ctx, "logout", err)
	}
	a.println(msg)
	return nil
}

func (a *App) Forgot(ctx context.Context) error {
	email, err := a.prompt("Enter email")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.ForgotPassword(ctx, email)
	if err != nil {
		return a.report(ctx, "forgot", err)
	}
	a.println(msg)
	return nil
}

// Reset redeems a reset token from the e-mail.
func (a *App) Reset(ctx context.Context) error {
	token, err := a.prompt("Enter reset token")
	if err != nil {
		return err
	}
	password, err := a.newSecret("New password")
	if err != nil {
		return a.report(ctx, "reset", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.ResetPassword(ctx, token, password)
	if err != nil {
		return a.report(ctx, "reset", err)
	}
	a.println(msg)
	return nil
}

// ChangePassword needs a session. Every session ends afterwards, this one
// included.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn(ctx) {
		a.println("You are not logged in. Use 'login' first.")
		return nil
	}
	current, err := a.secret("Current password")
	if err != nil {
		return err
	}
	password, err := a.newSecret("New password")
	if err != nil {
		return a.report(ctx, "passwd", err)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	msg, err := a.client.ChangePassword(ctx, current, password)
	if err != nil {
		return a.report(ctx, "passwd", err)
	}
	a.println(msg)
	a.println("Please log in again.")
	return nil
}
