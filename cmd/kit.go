package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/document"
	"github.com/emrgen/mediakit/internal/registry"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/emrgen/mediakit/internal/validator"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var kitCmd = &cobra.Command{
	Use:   "kit",
	Short: "media kit document commands",
}

func init() {
	kitCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	kitCmd.AddCommand(migrateKitCmd())
	kitCmd.AddCommand(validateKitCmd())
	kitCmd.AddCommand(checksumKitCmd())
	kitCmd.AddCommand(importKitCmd())
	kitCmd.AddCommand(newKitCmd())
	kitCmd.AddCommand(showKitCmd())
	kitCmd.AddCommand(undoKitCmd())
}

func migrateKitCmd() *cobra.Command {
	var file string

	var required = []string{"file"}

	command := &cobra.Command{
		Use:     "migrate",
		Short:   "migrate a document file to the current schema",
		Example: "mediakit kit migrate -f legacy.json > kit.json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			doc, err := readDocument(file)
			if err != nil {
				logrus.Error(err)
				return
			}

			migrated, err := document.Migrate(doc)
			if err != nil {
				logrus.Error(err)
				return
			}
			migrated.Renormalize()

			data, err := document.Encode(migrated)
			if err != nil {
				logrus.Error(err)
				return
			}
			fmt.Println(string(data))
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "document file, - for stdin (required)")

	return command
}

func validateKitCmd() *cobra.Command {
	var file string

	var required = []string{"file"}

	command := &cobra.Command{
		Use:     "validate",
		Short:   "validate a document file",
		Example: "mediakit kit validate -f kit.json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			doc, err := readDocument(file)
			if err != nil {
				logrus.Error(err)
				return
			}

			v := validator.New(registry.DefaultSectionRegistry(), registry.DefaultComponentRegistry())
			violations := v.Validate(doc)
			if len(violations) == 0 {
				color.Green("document is valid")
				return
			}

			printViolations(violations)
			os.Exit(1)
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "document file, - for stdin (required)")

	return command
}

func checksumKitCmd() *cobra.Command {
	var file string

	var required = []string{"file"}

	command := &cobra.Command{
		Use:     "checksum",
		Short:   "print the checksum of a document file",
		Example: "mediakit kit checksum -f kit.json",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			doc, err := readDocument(file)
			if err != nil {
				logrus.Error(err)
				return
			}

			sum, err := document.Checksum(doc)
			if err != nil {
				logrus.Error(err)
				return
			}
			fmt.Println(sum)
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "document file, - for stdin (required)")

	return command
}

func importKitCmd() *cobra.Command {
	var contextID string
	var file string
	var tier string

	var required = []string{"context", "file"}

	command := &cobra.Command{
		Use:     "import",
		Short:   "save a document file as the current state of a context",
		Example: "mediakit kit import -c user:42 -f kit.json -t pro",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			ref, err := parseRef(contextID)
			if err != nil {
				logrus.Error(err)
				return
			}

			doc, err := readDocument(file)
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

			res, err := engine.Builder.Save(context.Background(), ref, doc, service.SaveOptions{
				Kind: service.SaveImport,
				Tier: access.Tier(tier),
			})
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				printViolations(verr.Violations)
				return
			}
			if err != nil {
				logrus.Error(err)
				return
			}

			if !res.Changed {
				color.Yellow("document unchanged")
			}
			printField("Checksum", res.Checksum)
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().StringVarP(&file, "file", "f", "", "document file, - for stdin (required)")
	command.Flags().StringVarP(&tier, "tier", "t", "", "check the document against the limits of a tier")

	command.Flags().SortFlags = false

	return command
}

func newKitCmd() *cobra.Command {
	var contextID string
	var template string
	var tier string

	var required = []string{"context", "template"}

	command := &cobra.Command{
		Use:     "new",
		Short:   "create a document from a template",
		Example: "mediakit kit new -c guest:abc -n basic -t guest",
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

			doc, err := engine.Builder.CreateFromTemplate(context.Background(), ref, template, access.Tier(tier))
			if err != nil {
				logrus.Error(err)
				return
			}

			printSections(doc)
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().StringVarP(&template, "template", "n", "", "template name (required)")
	command.Flags().StringVarP(&tier, "tier", "t", string(access.TierFree), "tier of the caller")

	command.Flags().SortFlags = false

	return command
}

func showKitCmd() *cobra.Command {
	var contextID string
	var raw bool

	var required = []string{"context"}

	command := &cobra.Command{
		Use:     "show",
		Short:   "show the current document of a context",
		Example: "mediakit kit show -c user:42",
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

			ctx := context.Background()
			doc, err := engine.Builder.Load(ctx, ref)
			if err != nil {
				logrus.Error(err)
				return
			}

			if raw {
				data, err := document.Encode(doc)
				if err != nil {
					logrus.Error(err)
					return
				}
				fmt.Println(string(data))
				return
			}

			sum, err := document.Checksum(doc)
			if err != nil {
				logrus.Error(err)
				return
			}
			history, err := engine.Builder.HistoryStatus(ctx, ref)
			if err != nil {
				logrus.Error(err)
				return
			}

			printSections(doc)
			printField("Version", doc.Version)
			printField("Checksum", sum)
			printField("Components", strconv.Itoa(len(doc.Components)))
			printField("History", fmt.Sprintf("%d undo, %d redo", history.Undo, history.Redo))
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().BoolVarP(&raw, "raw", "r", false, "print the document json")

	return command
}

func undoKitCmd() *cobra.Command {
	var contextID string
	var redo bool

	var required = []string{"context"}

	command := &cobra.Command{
		Use:     "undo",
		Short:   "restore the previous state of a context",
		Example: "mediakit kit undo -c user:42 --redo",
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

			action := "undo"
			var doc *document.Document
			if redo {
				action = "redo"
				doc, err = engine.Builder.Redo(context.Background(), ref)
			} else {
				doc, err = engine.Builder.Undo(context.Background(), ref)
			}
			if errors.Is(err, service.ErrHistoryEmpty) {
				color.Yellow("nothing to %s", action)
				return
			}
			if err != nil {
				logrus.Error(err)
				return
			}

			printSections(doc)
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().BoolVar(&redo, "redo", false, "re-apply the last undone state instead")

	return command
}

func printSections(doc *document.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Order", "ID", "Type", "Layout", "Components"})
	for _, s := range doc.Sections {
		table.Append([]string{strconv.Itoa(s.Order), s.ID, s.Type, string(s.Layout), strconv.Itoa(s.Components.Len())})
	}
	table.Render()
}
