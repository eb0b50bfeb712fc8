package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/stremur/internal/client"
	"github.com/and161185/stremur/internal/logging"
	"github.com/and161185/stremur/internal/model"
	"github.com/and161185/stremur/internal/session"
)

type commandContext struct {
	addr     string
	logLevel string

	once   sync.Once
	cl     *client.Client
	sel    *session.Selector
	log    *zap.Logger
	setErr error
}

// setup builds the client and restores the persisted profile once per run.
func (c *commandContext) setup(ctx context.Context) error {
	c.once.Do(func() {
		log, err := logging.New(c.logLevel)
		if err != nil {
			c.setErr = err
			return
		}
		c.log = log
		cl, err := client.New(c.addr)
		if err != nil {
			c.setErr = err
			return
		}
		c.cl = cl
		if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
			c.setErr = err
			return
		}
		c.sel = session.NewSelector(cl, session.NewFileStorage(cfgDir()), log)
		if _, err := c.sel.Restore(ctx); err != nil {
			c.setErr = fmt.Errorf("restore profile: %w", err)
		}
	})
	return c.setErr
}

// session returns the active profile's session or tells the user to pick one.
func (c *commandContext) session() (model.Session, error) {
	s, err := c.sel.Session()
	if err != nil {
		return model.Session{}, fmt.Errorf("%w (run: stremur use <profile-id>)", err)
	}
	return s, nil
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "stremur",
		Short:         "Household profiles and watch state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return cc.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cc.addr, "addr", "http://localhost:8080", "server address")
	root.PersistentFlags().StringVar(&cc.logLevel, "log-level", "error", "log level")

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the CLI version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "stremur %s (%s)\n", version, buildDate)
			},
		},
		newProfilesCommand(cc),
		newUseCommand(cc),
		newLogoutCommand(cc),
		newWhoamiCommand(cc),
		newHistoryCommand(cc),
		newProgressCommand(cc),
		newWatchlistCommand(cc),
		newPlayCommand(cc),
	)
	return root
}
