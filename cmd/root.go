package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/table-reservation-agent/pkg/config"
	logx "github.com/tanpawarit/table-reservation-agent/pkg/logger"
)

var Version = "dev"

func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "tablebot",
		Short:         "Conversational restaurant table booking agent",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			configx.SetEnvFile(envFile)
			conf, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return fmt.Errorf("load log config: %w", err)
			}
			logx.Init(*conf)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env", "", "path to an env file (defaults to ./.env)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newMigrateCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
