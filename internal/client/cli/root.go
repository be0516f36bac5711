package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/buildinfo"
	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/config"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configFile  string
	server      string
	timeout     time.Duration
	sessionFile string
}

// NewRootCommand builds the command tree around a.
func NewRootCommand(a *App) *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           "gophvault",
		Short:         "Encrypted, versioned file vault client",
		Version:       buildinfo.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(flags.configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerURL = flags.server
			}
			if cmd.Flags().Changed("timeout") {
				cfg.RequestTimeout = flags.timeout
			}
			if cmd.Flags().Changed("session") {
				cfg.SessionFile = flags.sessionFile
			}
			return a.init(cfg)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.syncRenewal(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&flags.server, "server", "a", "", "server base URL")
	pf.DurationVarP(&flags.timeout, "timeout", "t", 0, "request timeout")
	pf.StringVar(&flags.sessionFile, "session", "", "session file path")

	root.AddCommand(
		a.registerCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.statusCommand(),
		a.mfaCommand(),
		a.putCommand(),
		a.lsCommand(),
		a.getCommand(),
		a.updateCommand(),
		a.rmCommand(),
	)

	return root
}

// Execute runs the CLI and reports the error, if any, in colour with a hint
// for the common cases.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := NewRootCommand(a)
	root.SetArgs(args)
	root.SetIn(a.reader)
	root.SetOut(a.out)
	root.SetErr(a.out)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	failure(a.out, err)
	switch {
	case errors.Is(err, client.ErrNotLoggedIn):
		hint(a.out, "Run gophvault login first")
	case errors.Is(err, common.ErrorUnauthorized):
		hint(a.out, "Your session may have expired, run gophvault login")
	case errors.Is(err, client.ErrUnavailable):
		hint(a.out, "Check that the server is running and --server is correct")
	}
	return err
}
