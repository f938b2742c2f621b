package cmd

import (
	"github.com/emrgen/mediakit/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "worker",
		Short: "run the export worker and periodic cleanups",
		Run: func(cmd *cobra.Command, args []string) {
			if err := server.Start(); err != nil {
				logrus.Fatalf("error starting worker: %v", err)
			}
		},
	}

	return command
}
