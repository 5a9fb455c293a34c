package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/trackkeeper/internal/api"
	"github.com/dmitrijs2005/trackkeeper/internal/client/client"
	"github.com/dmitrijs2005/trackkeeper/internal/client/config"
	"github.com/dmitrijs2005/trackkeeper/internal/client/session"
	"github.com/dmitrijs2005/trackkeeper/internal/common"
	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/logging"
)

// authClient is the part of client.GRPCClient the commands use.
type authClient interface {
	Register(ctx context.Context, in *api.RegisterRequest) (*api.User, error)
	Login(ctx context.Context, email, password string) (*api.User, error)
	Refresh(ctx context.Context) (*session.Session, error)
	Logout(ctx context.Context, everywhere bool) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
	ChangePassword(ctx context.Context, current, newPassword string) (string, error)
	Session(ctx context.Context) (*session.Session, error)
	Close() error
}

type App struct {
	config *config.Config
	client authClient
	logger logging.Logger
	reader *bufio.Reader
	out    io.Writer
	db     *sql.DB
}

// NewApp opens the session database and prepares the server connection.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	db, err := client.OpenDatabase(ctx, c.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("session database: %w", err)
	}

	store := session.NewStore(db, dbx.NewTransactor(db, nil))
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, store)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(c, apiClient, logging.NewJSON(os.Stderr, c.LogLevel), os.Stdin, os.Stdout)
	a.db = db
	return a, nil
}

func newApp(c *config.Config, ac authClient, logger logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		client: ac,
		logger: logger,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	a.println("trackkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader, a.out)
	return a.Close()
}

func (a *App) Close() error {
	err := a.client.Close()
	if a.db != nil {
		err = errors.Join(err, a.db.Close())
	}
	return err
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	_, err := a.client.Session(ctx)
	return err == nil
}

// status is shown in the prompt.
func (a *App) status(ctx context.Context) string {
	sess, err := a.client.Session(ctx)
	if err != nil {
		return ""
	}
	name := sess.Username
	if name == "" {
		name = sess.Email
	}
	return "(" + name + ")"
}

// withTimeout bounds a single server call.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// report prints err for the user and returns it. Classified errors carry a
// message meant for people; anything else is logged in full.
func (a *App) report(ctx context.Context, op string, err error) error {
	var ce *common.Error
	switch {
	case errors.As(err, &ce):
		a.println("Error:", ce.Message)
	case errors.Is(err, client.ErrNotLoggedIn):
		a.println("You are not logged in. Use 'login' first.")
	case errors.Is(err, client.ErrUnavailable):
		a.println("Server unavailable, try again later.")
	default:
		a.println("Error:", err)
	}
	a.logger.Debug(ctx, "command failed", "op", op, "error", err)
	return err
}
