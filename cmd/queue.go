package cmd

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/emrgen/mediakit/internal/access"
	"github.com/emrgen/mediakit/internal/model"
	"github.com/emrgen/mediakit/internal/service"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "export queue commands",
}

func init() {
	queueCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	queueCmd.AddCommand(enqueueExportCmd())
	queueCmd.AddCommand(processExportsCmd())
	queueCmd.AddCommand(exportStatusCmd())
	queueCmd.AddCommand(listExportsCmd())
	queueCmd.AddCommand(cleanupExportsCmd())
}

func enqueueExportCmd() *cobra.Command {
	var contextID string
	var format string
	var tier string
	var title string

	var required = []string{"context", "format"}

	command := &cobra.Command{
		Use:     "enqueue",
		Short:   "queue an export of the current document",
		Example: "mediakit queue enqueue -c user:42 -f pdf -t pro",
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

			handle, err := engine.Exports.Enqueue(context.Background(), ref, service.ExportRequest{
				Format: format,
				Tier:   access.Tier(tier),
				Title:  title,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Queue ID", handle.QueueID)
			printField("Filename", handle.Filename)
			printField("Watermark", strconv.FormatBool(handle.Watermark))
			printField("Estimate", handle.Estimate.String())
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session> (required)")
	command.Flags().StringVarP(&format, "format", "f", "", "pdf, html, png or svg (required)")
	command.Flags().StringVarP(&tier, "tier", "t", string(access.TierFree), "tier of the caller")
	command.Flags().StringVar(&title, "title", "", "document title")

	command.Flags().SortFlags = false

	return command
}

func processExportsCmd() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:     "process",
		Short:   "process queued exports",
		Example: "mediakit queue process -n 5",
		Run: func(cmd *cobra.Command, args []string) {
			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Queue ID", "Format", "Status", "Export", "Error"})

			ctx := context.Background()
			processed := 0
			for ; processed < limit; processed++ {
				res := engine.Exports.ProcessNext(ctx)
				if res == nil {
					break
				}
				table.Append([]string{res.QueueID, res.Format, string(res.Status), res.ExportID, res.Error})
			}

			if processed == 0 {
				color.Yellow("queue is empty")
				return
			}
			table.Render()
		},
	}

	command.Flags().IntVarP(&limit, "limit", "n", 1, "maximum number of exports to process")

	return command
}

func exportStatusCmd() *cobra.Command {
	var queueID string

	var required = []string{"queue-id"}

	command := &cobra.Command{
		Use:     "status",
		Short:   "show the status of an export",
		Example: "mediakit queue status -q <queue-id>",
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

			status, err := engine.Exports.Status(context.Background(), queueID)
			if err != nil {
				logrus.Error(err)
				return
			}

			job := status.Job
			printField("Queue ID", job.QueueID)
			printField("Context", job.ContextID)
			printField("Format", job.Format)
			printField("Status", string(job.Status))
			printField("Created", job.CreatedAt.Format(time.RFC3339))
			if job.ErrorMessage != nil {
				printField("Error", *job.ErrorMessage)
			}
			if status.Export != nil {
				printField("URL", status.Export.URL)
				printField("Size", strconv.FormatInt(status.Export.Size, 10))
			}
		},
	}

	command.Flags().StringVarP(&queueID, "queue-id", "q", "", "queue id (required)")

	return command
}

func listExportsCmd() *cobra.Command {
	var contextID string

	command := &cobra.Command{
		Use:     "list",
		Short:   "list the exports of a context, or queue counts without one",
		Example: "mediakit queue list -c user:42",
		Run: func(cmd *cobra.Command, args []string) {
			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			ctx := context.Background()
			table := tablewriter.NewWriter(os.Stdout)

			if contextID == "" {
				counts, err := engine.Exports.Stats(ctx)
				if err != nil {
					logrus.Error(err)
					return
				}

				table.SetHeader([]string{"Status", "Jobs"})
				for _, status := range []model.ExportJobStatus{model.ExportJobQueued, model.ExportJobProcessing, model.ExportJobCompleted, model.ExportJobFailed} {
					table.Append([]string{string(status), strconv.FormatInt(counts[status], 10)})
				}
				table.Render()
				return
			}

			ref, err := parseRef(contextID)
			if err != nil {
				logrus.Error(err)
				return
			}

			jobs, err := engine.Exports.List(ctx, ref)
			if err != nil {
				logrus.Error(err)
				return
			}

			table.SetHeader([]string{"Queue ID", "Format", "Status", "Filename", "Created"})
			for _, job := range jobs {
				table.Append([]string{job.QueueID, job.Format, string(job.Status), job.Filename, job.CreatedAt.Format(time.RFC3339)})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&contextID, "context", "c", "", "context, user:<id> or guest:<session>")

	return command
}

func cleanupExportsCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "cleanup",
		Short: "remove exports and jobs past their retention",
		Run: func(cmd *cobra.Command, args []string) {
			engine, err := openEngine()
			if err != nil {
				logrus.Error(err)
				return
			}
			defer closeEngine(engine)

			res, err := engine.Exports.Cleanup(context.Background())
			if err != nil {
				logrus.Error(err)
				return
			}

			printField("Artifacts", strconv.Itoa(res.Artifacts))
			printField("Jobs", strconv.FormatInt(res.Jobs, 10))
		},
	}

	return command
}
