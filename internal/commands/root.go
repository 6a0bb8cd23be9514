// Package commands holds the findlanqbot admin CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammadjaf013/findlanqbot/config"
	"github.com/mohammadjaf013/findlanqbot/internal/app"
	"github.com/mohammadjaf013/findlanqbot/internal/logger"
)

// cli carries what PersistentPreRunE prepared for the subcommands.
type cli struct {
	cfgFile   string
	container *app.Container
}

func NewRootCmd() *cobra.Command {
	st := &cli{}

	root := &cobra.Command{
		Use:           "findlanqbot",
		Short:         "Admin tool for the FindLanq knowledge base and chat sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.cfgFile)
			if err != nil {
				return err
			}
			log := logger.New(cfg.LogLevel)
			log.SetOutput(cmd.ErrOrStderr())

			c, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			st.container = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if st.container == nil {
				return nil
			}
			err := st.container.Close()
			st.container = nil
			return err
		},
	}
	root.PersistentFlags().StringVarP(&st.cfgFile, "config", "c", "", "config file (yaml, json or toml); environment variables override it")

	root.AddCommand(
		newIngestCmd(st),
		newFilesCmd(st),
		newAskCmd(st),
		newSessionsCmd(st),
	)
	return root
}

func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
