package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd(st *cli) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	sessions.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete sessions idle for longer than SESSION_TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := st.container.History.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", n)
			return nil
		},
	})
	return sessions
}
