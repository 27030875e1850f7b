package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"iprescribe-console/internal/session"
)

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the stored session",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadCfg()
			if err != nil {
				return err
			}
			mgr := session.New(opts.openStore(cfg), nil)
			mgr.Init()
			st := mgr.State()

			out := sessionSummary{
				Authenticated: st.IsAuthenticated,
				Admin:         st.IsAdmin,
				StateFile:     cfg.StateFile,
			}
			if opts.ephemeral {
				out.StateFile = ""
			}
			if st.Identity != nil {
				out.Email = st.Identity.Email
				out.Name = st.Identity.DisplayName()
			}
			if !st.ExpiresAt.IsZero() {
				exp := st.ExpiresAt.UTC()
				out.ExpiresAt = &exp
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			if !out.Authenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s> (admin: %t)\n", out.Name, out.Email, out.Admin)
			if out.ExpiresAt != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Token expires %s\n", out.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	showCmd.Flags().Bool("json", false, "output as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credential and identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadCfg()
			if err != nil {
				return err
			}
			if err := opts.openStore(cfg).Clear(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}

type sessionSummary struct {
	Authenticated bool       `json:"authenticated"`
	Admin         bool       `json:"admin"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	StateFile     string     `json:"state_file,omitempty"`
}
