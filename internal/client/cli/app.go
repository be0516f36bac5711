package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/config"
	"github.com/dmitrijs2005/gophvault/internal/client/session"
)

type App struct {
	config   *config.Config
	client   client.Client
	sessions *session.Store
	state    *session.State

	reader *bufio.Reader
	out    io.Writer

	newClient func(cfg *config.Config) client.Client
}

func NewApp(in io.Reader, out io.Writer) *App {
	return &App{
		reader: bufio.NewReader(in),
		out:    out,
		newClient: func(cfg *config.Config) client.Client {
			return client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout)
		},
	}
}

// init loads the session for cfg and hands its token to the client. A
// session saved against another server is ignored.
func (a *App) init(cfg *config.Config) error {
	a.config = cfg
	a.client = a.newClient(cfg)
	a.sessions = session.NewStore(cfg.SessionFile)

	st, err := a.sessions.Load()
	if err != nil {
		return err
	}
	if st.Server != cfg.ServerURL {
		st = &session.State{}
	}
	a.state = st
	a.client.SetToken(st.Token)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.state != nil && a.state.Token != ""
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}
	return nil
}

// remember stores a freshly issued session.
func (a *App) remember(username string, s *client.Session) error {
	a.state = &session.State{
		Server:      a.config.ServerURL,
		Username:    username,
		PrincipalID: s.PrincipalID,
		Token:       s.Token,
		ExpiresAt:   s.ExpiresAt,
	}
	return a.sessions.Save(a.state)
}

func (a *App) forget() error {
	a.state = &session.State{}
	return a.sessions.Clear()
}

// syncRenewal persists an assertion the server renewed during the command.
func (a *App) syncRenewal(ctx context.Context) error {
	if !a.isLoggedIn() {
		return nil
	}
	token := a.client.Token()
	if token == "" || token == a.state.Token {
		return nil
	}

	a.state.Token = token
	if v, err := a.client.Verify(ctx); err == nil {
		a.state.ExpiresAt = v.ExpiresAt
	}
	return a.sessions.Save(a.state)
}

func (a *App) describeSession() string {
	if !a.isLoggedIn() {
		return "not logged in"
	}
	return fmt.Sprintf("logged in as %s on %s (expires %s)",
		a.state.Username, a.state.Server, a.state.ExpiresAt.Local().Format(time.DateTime))
}
