package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"iprescribe-console/internal/config"
	"iprescribe-console/internal/store"
)

var version = "dev"

type rootOptions struct {
	ephemeral bool
	loadCfg   func() (config.Config, error)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithConfig(config.LoadConfig)
}

func newRootCmdWithConfig(loadCfg func() (config.Config, error)) *cobra.Command {
	opts := &rootOptions{loadCfg: loadCfg}

	cmd := &cobra.Command{
		Use:   "iprescribe-console",
		Short: "Local admin console for the iPrescribe API",
		Long: `iprescribe-console serves the iPrescribe admin dashboard on a local port
and keeps one signed-in session for it.

Example usage:
  iprescribe-console serve               # Serve the console on 127.0.0.1:5173
  iprescribe-console serve --ephemeral   # Do not persist the session
  iprescribe-console session show        # Print the stored session
  iprescribe-console session clear       # Sign out without the browser`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.ephemeral, "ephemeral", false, "keep the session in memory only")

	cmd.AddCommand(newServeCmd(opts), newSessionCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) openStore(cfg config.Config) *store.Store {
	if o.ephemeral {
		return store.New()
	}
	return store.NewWithOptions(store.Options{StateFile: cfg.StateFile})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the console version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
