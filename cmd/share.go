package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "share link commands",
}

func init() {
	shareCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	shareCmd.AddCommand(createShareCmd())
	shareCmd.AddCommand(resolveShareCmd())
	shareCmd.AddCommand(revokeShareCmd())
}

func createShareCmd() *cobra.Command {
	var contextID string
	var accessType string
	var password string
	var expires time.Duration
	var regenerate bool

	var required = []string{"context"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create or return the share link of a context",
		Example: "mediakit share create -c user:42 -a password -p s3cret -e 72h",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ref, err := parseRef(contextID)
			if err != nil {
				logrus.Error(err)
				return
			}

			opts := service.ShareOptions{
				AccessType: model.ShareAccess(accessType),
				Password:   password,
				Regenerate: regenerate,
			}
			if expires > 0 {
				at := time.Now().UTC().Add(expires)
				opts.ExpiresAt = &at
			}

			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			link, err := engine.Shares.GenerateLink(context.Background(), ref, opts)
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Share ID", link.ShareID)
			printField("Access", string(link.AccessType))
			if link.ExpiresAt != nil {
				printField("Expires", link.ExpiresAt.Format(time.RFC3339))
			}
			printField("Views", strconv.FormatInt(link.ViewCount, 10))
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().StringVarP(&accessType, "access", "a", string(model.ShareAccessPublic), "public, password or private")
	command.Flags().StringVarP(&password, "password", "p", "", "password for password protected links")
	command.Flags().DurationVarP(&expires, "expires", "e", 0, "expire the link after this duration")
	command.Flags().BoolVarP(&regenerate, "regenerate", "r", false, "replace an existing link with a new id")

	command.Flags().SortFlags = false

	return command
}

func resolveShareCmd() *cobra.Command {
	var shareID string
	var password string

	var required = []string{"share-id"}

	command := &cobra.Command{
		Use:     "resolve",
		Short:   "resolve a share link to its document",
		Example: "mediakit share resolve -s <share-id> -p s3cret",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			shared, err := engine.Shares.Resolve(context.Background(), shareID, password)
			if err != nil {
				color.Red("%v", err)
				return
			}

			printSections(shared.Document)
			printField("Context", shared.Link.ContextID)
			printField("Views", strconv.FormatInt(shared.Link.ViewCount, 10))
		},
	}

	command.Flags().StringVarP(&shareID, "share-id", "s", "", "share id (required)")
	command.Flags().StringVarP(&password, "password", "p", "", "link password")

	return command
}

func revokeShareCmd() *cobra.Command {
	var contextID string

	var required = []string{"context"}

	command := &cobra.Command{
		Use:     "revoke",
		Short:   "delete the share link of a context",
		Example: "mediakit share revoke -c user:42",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ref, err := parseRef(contextID)
			if err != nil {
				logrus.Error(err)
				return
			}

			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			if err := engine.Shares.Revoke(context.Background(), ref); err != nil {
				logrus.Error(err)
				return
			}
			color.Green("share link of %s revoked", ref)
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")

	return command
}
