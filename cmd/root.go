package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediakit",
	Short: "media kit builder tool",
	Example: `mediakit db migrate
mediakit kit new -c guest:abc -n basic -t guest
mediakit kit import -c user:42 -f kit.json
mediakit kit show -c user:42
mediakit queue enqueue -c user:42 -f pdf -t pro
mediakit queue process -n 10
mediakit share create -c user:42 -a password -p s3cret
mediakit share resolve -s <share-id> -p s3cret
mediakit worker`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(kitCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(workerCmd())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
